package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Zack-y11/e-commerce/internal/addresses"
	"github.com/Zack-y11/e-commerce/internal/auth"
	"github.com/Zack-y11/e-commerce/internal/carts"
	"github.com/Zack-y11/e-commerce/internal/categories"
	"github.com/Zack-y11/e-commerce/internal/gateway"
	"github.com/Zack-y11/e-commerce/internal/orders"
	"github.com/Zack-y11/e-commerce/internal/payments"
	"github.com/Zack-y11/e-commerce/internal/products"
	"github.com/Zack-y11/e-commerce/internal/users"
	"github.com/Zack-y11/e-commerce/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type UserStore interface {
	InsertUser(ctx context.Context, nu users.NewUser) (users.User, error)
	Authenticate(ctx context.Context, creds users.Credentials) (users.User, error)
	GetUser(ctx context.Context, id string) (users.User, error)
	UpdateUser(ctx context.Context, id string, uu users.UpdateUser) (users.User, error)
	DeleteUser(ctx context.Context, id string) error
}

type CategoryStore interface {
	InsertCategory(ctx context.Context, nc categories.NewCategory) (categories.Category, error)
	UpdateCategory(ctx context.Context, id string, nc categories.NewCategory) (categories.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	GetCategory(ctx context.Context, id string) (categories.Category, error)
	ListCategories(ctx context.Context) ([]categories.Category, error)
}

type ProductStore interface {
	InsertProduct(ctx context.Context, np products.NewProduct) (products.Product, error)
	UpdateProduct(ctx context.Context, sku string, np products.NewProduct) (products.Product, error)
	DeleteProduct(ctx context.Context, sku string) error
	GetProductBySKU(ctx context.Context, sku string) (products.Product, error)
	ListProducts(ctx context.Context) ([]products.Product, error)
	ListProductsByCategory(ctx context.Context, categoryID string) ([]products.Product, error)
}

type CartStore interface {
	CreateCart(ctx context.Context, userID string) (carts.Cart, error)
	ListCarts(ctx context.Context, userID string) ([]carts.Cart, error)
	GetCart(ctx context.Context, userID, cartID string) (carts.Cart, error)
	DeleteCart(ctx context.Context, userID, cartID string) error
	AddItem(ctx context.Context, userID, cartID string, n carts.NewCartItem) (carts.CartItem, error)
	RemoveItem(ctx context.Context, userID, cartID, productID string) error
}

type AddressStore interface {
	CreateAddress(ctx context.Context, userID string, n addresses.NewAddress) (addresses.Address, error)
	ListAddresses(ctx context.Context, userID string) ([]addresses.Address, error)
	UpdateAddress(ctx context.Context, userID, addressID string, n addresses.NewAddress) (addresses.Address, error)
	DeleteAddress(ctx context.Context, userID, addressID string) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, userID string, n orders.NewOrder) (orders.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (orders.Order, error)
	ListOrders(ctx context.Context, userID string) ([]orders.Order, error)
	GetOrderInfo(ctx context.Context, userID, orderID string) (orders.Info, error)
	UpdateStatus(ctx context.Context, a orders.Actor, orderID string, to orders.Status) (orders.Order, error)
	DeleteOrder(ctx context.Context, userID, orderID string) error
	AddItem(ctx context.Context, userID, orderID string, n orders.NewItem) (orders.Order, error)
	RemoveItem(ctx context.Context, userID, orderID, productID string) (orders.RemoveResult, error)
}

type PaymentStore interface {
	GetPayment(ctx context.Context, id string) (payments.Payment, error)
	ListByUser(ctx context.Context, userID string) ([]payments.Payment, error)
	ListByOrder(ctx context.Context, userID, orderID string) ([]payments.Payment, error)
	UpdatePayment(ctx context.Context, id string, u payments.UpdatePayment) (payments.Payment, error)
	DeletePayment(ctx context.Context, id string) error
}

// Checkout is the gateway-facing side of payments.
type Checkout interface {
	CreateIntent(ctx context.Context, userID, orderID string, np payments.NewPayment, requestKey string) (payments.IntentResult, error)
	HandleEvent(ctx context.Context, ev gateway.Event) (payments.ReconcileResult, bool, error)
}

type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (gateway.Event, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps is everything the HTTP layer talks to.
type Deps struct {
	Keys       *auth.Keys
	DB         Pinger
	Users      UserStore
	Categories CategoryStore
	Products   ProductStore
	Carts      CartStore
	Addresses  AddressStore
	Orders     OrderStore
	Payments   PaymentStore
	Checkout   Checkout
	Webhooks   WebhookParser

	// Metrics is optional. Gatherer serves /metrics when set.
	Metrics  *middleware.Metrics
	Gatherer prometheus.Gatherer
}

type Handler struct {
	Deps
}

func NewHandler(d Deps) (*Handler, error) {
	if d.Users == nil || d.Orders == nil || d.Payments == nil || d.Checkout == nil || d.Webhooks == nil {
		return nil, errors.New("handler dependencies are missing")
	}
	return &Handler{Deps: d}, nil
}

func API(endpointPrefix string, requestTimeout time.Duration, d Deps) (*gin.Engine, error) {
	r := gin.New()

	m, err := middleware.NewMid(d.Keys)
	if err != nil {
		return nil, err
	}
	h, err := NewHandler(d)
	if err != nil {
		return nil, err
	}

	r.Use(middleware.Logger(), gin.Recovery())
	if d.Metrics != nil {
		r.Use(d.Metrics.Handler())
	}
	r.Use(middleware.Timeout(requestTimeout))

	r.GET("/ping", HealthCheck)
	r.GET("/healthz", h.Healthz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group(endpointPrefix)
	{
		v1.POST("/signup", h.Signup)
		v1.POST("/login", h.Login)
		v1.POST("/logout", h.Logout)
		v1.POST("/webhook", h.Webhook)

		v1.GET("/categories", h.ListCategories)
		v1.GET("/categories/:id", h.GetCategory)
		v1.GET("/products", h.ListProducts)
		v1.GET("/products/:sku", h.GetProduct)
		v1.GET("/products/category/:category", h.ListProductsByCategory)
	}

	authed := r.Group(endpointPrefix)
	{
		authed.Use(m.Authentication())

		authed.GET("/profile", h.GetProfile)
		authed.PUT("/profile", h.UpdateProfile)
		authed.DELETE("/profile", h.DeleteProfile)

		authed.POST("/categories", m.Authorize(h.CreateCategory, auth.RoleAdmin))
		authed.PUT("/categories/:id", m.Authorize(h.UpdateCategory, auth.RoleAdmin))
		authed.DELETE("/categories/:id", m.Authorize(h.DeleteCategory, auth.RoleAdmin))

		authed.POST("/products", m.Authorize(h.CreateProduct, auth.RoleAdmin))
		authed.PUT("/products/:sku", m.Authorize(h.UpdateProduct, auth.RoleAdmin))
		authed.DELETE("/products/:sku", m.Authorize(h.DeleteProduct, auth.RoleAdmin))

		authed.GET("/carts", h.ListCarts)
		authed.POST("/carts", h.CreateCart)
		authed.GET("/carts/:id", h.GetCart)
		authed.DELETE("/carts/:id", h.DeleteCart)
		authed.POST("/carts/:id/items", h.AddCartItem)
		authed.DELETE("/carts/:id/items/:productId", h.RemoveCartItem)

		authed.GET("/shipping-addresses", h.ListAddresses)
		authed.POST("/shipping-addresses", h.CreateAddress)
		authed.PUT("/shipping-addresses/:id", h.UpdateAddress)
		authed.DELETE("/shipping-addresses/:id", h.DeleteAddress)

		authed.POST("/order", h.CreateOrder)
		authed.GET("/order", h.ListOrders)
		authed.GET("/order/:id", h.GetOrder)
		authed.GET("/order/info/:id", h.GetOrderInfo)
		authed.PUT("/order/:id", h.UpdateOrder)
		authed.DELETE("/order/:id", h.DeleteOrder)
		authed.POST("/order/:id/items", h.AddOrderItem)
		authed.DELETE("/order/:id/items/:productId", h.RemoveOrderItem)

		authed.GET("/payments", h.ListPayments)
		authed.POST("/payments/:id", h.CreatePaymentIntent)
		authed.GET("/payments/:id", h.GetPayment)
		authed.PUT("/payments/:id", m.Authorize(h.UpdatePayment, auth.RoleAdmin))
		authed.DELETE("/payments/:id", m.Authorize(h.DeletePayment, auth.RoleAdmin))
		authed.GET("/payments/order/:id", h.ListOrderPayments)
	}
	return r, nil
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

// Healthz reports whether the database is reachable.
func (h *Handler) Healthz(c *gin.Context) {
	if h.DB == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.DB.PingContext(ctx); err != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
