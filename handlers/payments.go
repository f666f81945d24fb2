package handlers

import (
	"net/http"

	"github.com/Zack-y11/e-commerce/internal/apperr"
	"github.com/Zack-y11/e-commerce/internal/auth"
	"github.com/Zack-y11/e-commerce/internal/payments"

	"github.com/gin-gonic/gin"
)

// IdempotencyHeader lets a client retry intent creation without creating
// a second set of gateway objects.
const IdempotencyHeader = "Idempotency-Key"

func (h *Handler) CreatePaymentIntent(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}

	// The body is optional, an empty one charges in the default currency.
	var np payments.NewPayment
	if c.Request.ContentLength > 0 && !bindJSON(c, &np) {
		return
	}

	res, err := h.Checkout.CreateIntent(c.Request.Context(), claims.Subject, c.Param("id"), np, c.GetHeader(IdempotencyHeader))
	if err != nil {
		abortWithError(c, "error creating payment intent", err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) ListPayments(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := h.Payments.ListByUser(c.Request.Context(), claims.Subject)
	if err != nil {
		abortWithError(c, "error fetching payments", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) ListOrderPayments(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := h.Payments.ListByOrder(c.Request.Context(), claims.Subject, c.Param("id"))
	if err != nil {
		abortWithError(c, "error fetching order payments", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetPayment returns a payment of the caller. Admins can read any payment.
func (h *Handler) GetPayment(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	p, err := h.Payments.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, "error fetching payment", err)
		return
	}
	if p.UserID != claims.Subject && !claims.HasRole(auth.RoleAdmin) {
		abortWithError(c, "payment of another user requested", apperr.NotFound("payment not found"))
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePayment(c *gin.Context) {
	var u payments.UpdatePayment
	if !bindJSON(c, &u) {
		return
	}
	p, err := h.Payments.UpdatePayment(c.Request.Context(), c.Param("id"), u)
	if err != nil {
		abortWithError(c, "error updating payment", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePayment(c *gin.Context) {
	if err := h.Payments.DeletePayment(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, "error deleting payment", err)
		return
	}
	c.Status(http.StatusNoContent)
}
