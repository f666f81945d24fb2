package handlers

import (
	"net/http"

	"github.com/Zack-y11/e-commerce/internal/addresses"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListAddresses(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := h.Addresses.ListAddresses(c.Request.Context(), claims.Subject)
	if err != nil {
		abortWithError(c, "error fetching shipping addresses", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) CreateAddress(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var n addresses.NewAddress
	if !bindJSON(c, &n) {
		return
	}
	a, err := h.Addresses.CreateAddress(c.Request.Context(), claims.Subject, n)
	if err != nil {
		abortWithError(c, "error creating shipping address", err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) UpdateAddress(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var n addresses.NewAddress
	if !bindJSON(c, &n) {
		return
	}
	a, err := h.Addresses.UpdateAddress(c.Request.Context(), claims.Subject, c.Param("id"), n)
	if err != nil {
		abortWithError(c, "error updating shipping address", err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAddress(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.Addresses.DeleteAddress(c.Request.Context(), claims.Subject, c.Param("id")); err != nil {
		abortWithError(c, "error deleting shipping address", err)
		return
	}
	c.Status(http.StatusNoContent)
}
