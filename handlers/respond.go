package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Zack-y11/e-commerce/internal/apperr"
	"github.com/Zack-y11/e-commerce/internal/auth"
	"github.com/Zack-y11/e-commerce/pkg/ctxmanage"
	"github.com/Zack-y11/e-commerce/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = int64(64 * 1024)

var validate = validator.New()

func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindGatewayFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError logs err and writes the status and message its kind maps to.
func abortWithError(c *gin.Context, msg string, err error) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	status := statusOf(err)

	if status >= http.StatusInternalServerError {
		slog.Error(msg, slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
	} else {
		slog.Warn(msg, slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
	}

	body := apperr.Message(err)
	if status == http.StatusInternalServerError {
		body = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

func currentUser(c *gin.Context) (auth.Claims, bool) {
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, ctxmanage.GetTraceIdOfRequest(c)))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return auth.Claims{}, false
	}
	return claims, true
}

// bindJSON decodes the body into v and runs the validate tags on it. It
// writes the 400 itself and reports false when the request is unusable.
func bindJSON(c *gin.Context, v any) bool {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := c.ShouldBindJSON(v); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return false
	}

	err := validate.Struct(v)
	if err == nil {
		return true
	}
	slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))

	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) && len(vErrs) > 0 {
		vErr := vErrs[0]
		switch vErr.Tag() {
		case "required":
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Field() + " value missing"})
		case "min":
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Field() + " value is less than " + vErr.Param()})
		case "max":
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Field() + " value is more than " + vErr.Param()})
		case "email", "uuid", "e164", "url":
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Field() + " is not a valid " + vErr.Tag()})
		default:
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Field() + " is invalid"})
		}
		return false
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
	return false
}
