package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Zack-y11/e-commerce/internal/apperr"
	"github.com/Zack-y11/e-commerce/internal/gateway"
	"github.com/Zack-y11/e-commerce/internal/orders"
	"github.com/Zack-y11/e-commerce/pkg/ctxmanage"
	"github.com/Zack-y11/e-commerce/pkg/logkey"

	"github.com/gin-gonic/gin"
)

const signatureHeader = "Stripe-Signature"

// Webhook receives gateway notifications. Nothing is processed before the
// signature checks out.
func (h *Handler) Webhook(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	// Limit the request body size
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		slog.Error("failed to read webhook body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	event, err := h.Webhooks.ParseWebhook(payload, c.GetHeader(signatureHeader))
	if err != nil {
		slog.Error("webhook rejected", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		msg := "invalid payload"
		if errors.Is(err, gateway.ErrInvalidSignature) {
			msg = "invalid signature"
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	res, handled, err := h.Checkout.HandleEvent(c.Request.Context(), event)
	if err != nil {
		if errors.Is(err, orders.ErrIllegalTransition) {
			slog.Error("webhook asks for an illegal order transition", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.EventID, event.ID), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": apperr.Message(err)})
			return
		}
		abortWithError(c, "failed to reconcile webhook event", err)
		return
	}
	if !handled {
		slog.Info("unhandled event type", slog.String(logkey.TraceID, traceId), slog.String("event_type", event.Type))
		c.JSON(http.StatusOK, gin.H{
			"message": "Event type not handled",
			"event":   event.Type,
		})
		return
	}

	slog.Info("webhook event reconciled", slog.String(logkey.TraceID, traceId), slog.String(logkey.EventID, event.ID),
		slog.Bool("duplicate", res.Duplicate), slog.Bool("stale", res.Stale), slog.String("order_status", string(res.OrderStatus)))
	c.JSON(http.StatusOK, res)
}
