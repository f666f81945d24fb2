package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Zack-y11/e-commerce/internal/auth"
	"github.com/Zack-y11/e-commerce/internal/orders"
	"github.com/Zack-y11/e-commerce/pkg/ctxmanage"
	"github.com/Zack-y11/e-commerce/pkg/logkey"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateOrder(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var n orders.NewOrder
	if !bindJSON(c, &n) {
		return
	}

	o, err := h.Orders.CreateOrder(c.Request.Context(), claims.Subject, n)
	if err != nil {
		abortWithError(c, "error creating order", err)
		return
	}
	slog.Info("order created", slog.String(logkey.TraceID, ctxmanage.GetTraceIdOfRequest(c)),
		slog.String(logkey.OrderID, o.ID), slog.String(logkey.UserID, claims.Subject))
	c.JSON(http.StatusCreated, o)
}

func (h *Handler) ListOrders(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := h.Orders.ListOrders(c.Request.Context(), claims.Subject)
	if err != nil {
		abortWithError(c, "error fetching orders", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetOrder(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	o, err := h.Orders.GetOrder(c.Request.Context(), claims.Subject, c.Param("id"))
	if err != nil {
		abortWithError(c, "error fetching order", err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) GetOrderInfo(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	info, err := h.Orders.GetOrderInfo(c.Request.Context(), claims.Subject, c.Param("id"))
	if err != nil {
		abortWithError(c, "error fetching order info", err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// UpdateOrder changes the order status. Owners may cancel an unpaid order.
// Fulfilment statuses need the admin role.
func (h *Handler) UpdateOrder(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var u orders.UpdateOrder
	if !bindJSON(c, &u) {
		return
	}
	to, err := orders.ParseStatus(string(u.Status))
	if err != nil {
		abortWithError(c, "invalid order status", err)
		return
	}

	actor := orders.Actor{UserID: claims.Subject, Admin: claims.HasRole(auth.RoleAdmin)}
	o, err := h.Orders.UpdateStatus(c.Request.Context(), actor, c.Param("id"), to)
	if err != nil {
		abortWithError(c, "error updating order", err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) DeleteOrder(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.Orders.DeleteOrder(c.Request.Context(), claims.Subject, c.Param("id")); err != nil {
		abortWithError(c, "error deleting order", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AddOrderItem(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var n orders.NewItem
	if !bindJSON(c, &n) {
		return
	}

	o, err := h.Orders.AddItem(c.Request.Context(), claims.Subject, c.Param("id"), n)
	if err != nil {
		abortWithError(c, "error adding item to order", err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *Handler) RemoveOrderItem(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	res, err := h.Orders.RemoveItem(c.Request.Context(), claims.Subject, c.Param("id"), c.Param("productId"))
	if err != nil {
		abortWithError(c, "error removing item from order", err)
		return
	}
	if res.OrderDeleted {
		slog.Info("order deleted with its last item", slog.String(logkey.TraceID, ctxmanage.GetTraceIdOfRequest(c)),
			slog.String(logkey.OrderID, c.Param("id")))
	}
	c.JSON(http.StatusOK, res)
}
