package handlers

import (
	"net/http"

	"github.com/Zack-y11/e-commerce/internal/carts"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListCarts(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := h.Carts.ListCarts(c.Request.Context(), claims.Subject)
	if err != nil {
		abortWithError(c, "error fetching carts", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) CreateCart(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	cart, err := h.Carts.CreateCart(c.Request.Context(), claims.Subject)
	if err != nil {
		abortWithError(c, "error creating cart", err)
		return
	}
	c.JSON(http.StatusCreated, cart)
}

func (h *Handler) GetCart(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	cart, err := h.Carts.GetCart(c.Request.Context(), claims.Subject, c.Param("id"))
	if err != nil {
		abortWithError(c, "error fetching cart", err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) DeleteCart(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.Carts.DeleteCart(c.Request.Context(), claims.Subject, c.Param("id")); err != nil {
		abortWithError(c, "error deleting cart", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AddCartItem(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var n carts.NewCartItem
	if !bindJSON(c, &n) {
		return
	}
	item, err := h.Carts.AddItem(c.Request.Context(), claims.Subject, c.Param("id"), n)
	if err != nil {
		abortWithError(c, "error adding product to cart", err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) RemoveCartItem(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	err := h.Carts.RemoveItem(c.Request.Context(), claims.Subject, c.Param("id"), c.Param("productId"))
	if err != nil {
		abortWithError(c, "error removing product from cart", err)
		return
	}
	c.Status(http.StatusNoContent)
}
