package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tenantbot/internal/entities"
)

// GetProfileStatus reports the lock, the baseline and, with a live session,
// whether the account currently differs from it.
func (h *Handler) GetProfileStatus(c *gin.Context) {
	tc := h.registry.TenantContext(tenantFrom(c))
	status, err := h.monitor.Status(c.Request.Context(), tc)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) UnlockProfile(c *gin.Context) {
	if err := h.monitor.Unlock(c.Request.Context(), tenantFrom(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unlocked"})
}

// SaveBaseline accepts the account's current profile as the new baseline.
func (h *Handler) SaveBaseline(c *gin.Context) {
	tc := h.registry.TenantContext(tenantFrom(c))
	if tc.Client == nil {
		h.respondError(c, entities.ErrNoSession)
		return
	}
	baseline, err := h.monitor.SaveCurrentAsBaseline(c.Request.Context(), tc)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, baseline)
}
