package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tenantbot/internal/entities"
)

// respondError maps the error taxonomy onto status codes. Internal errors
// are logged and hidden from the caller.
func (h *Handler) respondError(c *gin.Context, err error) {
	var shortfall *entities.InsufficientEnergyError
	var flood *entities.FloodWaitError

	switch {
	case errors.As(err, &shortfall):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "energy": shortfall.Current, "required": shortfall.Required})
	case errors.As(err, &flood):
		c.Header("Retry-After", strconv.Itoa(flood.Seconds))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Platform rate limit", "retry_after": flood.Seconds})
	case errors.Is(err, entities.ErrUserInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, entities.ErrTenantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, entities.ErrNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, entities.ErrNotSupported):
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
	case errors.Is(err, entities.ErrStorageContention):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage busy, retry later"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Operation timed out"})
	default:
		h.log.Error("Request failed",
			zap.String("route", c.FullPath()),
			zap.Int("tenant_id", tenantFrom(c)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
