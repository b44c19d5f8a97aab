package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tenantbot/internal/entities"
	"tenantbot/internal/usecases"
)

type batchRequest[T any] struct {
	Items []T `json:"items"`
}

func bindBatch[T any](c *gin.Context) ([]T, bool) {
	var req batchRequest[T]
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return nil, false
	}
	if len(req.Items) == 0 || len(req.Items) > MaxBatchSize {
		badRequest(c, "items must hold between 1 and "+strconv.Itoa(MaxBatchSize)+" entries")
		return nil, false
	}
	return req.Items, true
}

func batchResponse(c *gin.Context, results []usecases.ItemResult) {
	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "failed": failed})
}

func ruleID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("rid"))
	if err != nil || id <= 0 {
		badRequest(c, "Invalid rule id")
		return 0, false
	}
	return id, true
}

func (h *Handler) listResult(c *gin.Context, v any, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": v})
}

func (h *Handler) deleteResult(c *gin.Context, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ========================================
// Badwords, redactions, whitelist
// ========================================

func (h *Handler) ListBadwords(c *gin.Context) {
	items, err := h.rules.ListBadwords(c.Request.Context(), tenantFrom(c))
	h.listResult(c, items, err)
}

func (h *Handler) UpsertBadwords(c *gin.Context) {
	items, ok := bindBatch[entities.BadwordRule](c)
	if !ok {
		return
	}
	batchResponse(c, h.rules.UpsertBadwords(c.Request.Context(), tenantFrom(c), items))
}

func (h *Handler) DeleteBadword(c *gin.Context) {
	if id, ok := ruleID(c); ok {
		h.deleteResult(c, h.rules.DeleteBadword(c.Request.Context(), tenantFrom(c), id))
	}
}

func (h *Handler) ListRedactions(c *gin.Context) {
	items, err := h.rules.ListRedactions(c.Request.Context(), tenantFrom(c))
	h.listResult(c, items, err)
}

func (h *Handler) UpsertRedactions(c *gin.Context) {
	items, ok := bindBatch[entities.RedactionRule](c)
	if !ok {
		return
	}
	batchResponse(c, h.rules.UpsertRedactions(c.Request.Context(), tenantFrom(c), items))
}

func (h *Handler) DeleteRedaction(c *gin.Context) {
	if id, ok := ruleID(c); ok {
		h.deleteResult(c, h.rules.DeleteRedaction(c.Request.Context(), tenantFrom(c), id))
	}
}

func (h *Handler) ListWhitelist(c *gin.Context) {
	items, err := h.rules.ListWhitelist(c.Request.Context(), tenantFrom(c))
	h.listResult(c, items, err)
}

func (h *Handler) UpsertWhitelist(c *gin.Context) {
	items, ok := bindBatch[entities.WhitelistPhrase](c)
	if !ok {
		return
	}
	batchResponse(c, h.rules.UpsertWhitelistBatch(c.Request.Context(), tenantFrom(c), items))
}

func (h *Handler) DeleteWhitelist(c *gin.Context) {
	if id, ok := ruleID(c); ok {
		h.deleteResult(c, h.rules.DeleteWhitelist(c.Request.Context(), tenantFrom(c), id))
	}
}

// ========================================
// Energy costs
// ========================================

func (h *Handler) ListEnergyCosts(c *gin.Context) {
	items, err := h.rules.ListEnergyCosts(c.Request.Context(), tenantFrom(c))
	h.listResult(c, items, err)
}

func (h *Handler) SetEnergyCosts(c *gin.Context) {
	items, ok := bindBatch[entities.EnergyCost](c)
	if !ok {
		return
	}
	batchResponse(c, h.rules.SetEnergyCosts(c.Request.Context(), tenantFrom(c), items))
}

func (h *Handler) SeedDefaultCosts(c *gin.Context) {
	seeded, err := h.rules.SeedDefaultCosts(c.Request.Context(), tenantFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"seeded": seeded})
}

func (h *Handler) DeleteEnergyCost(c *gin.Context) {
	contentType := entities.ContentType(c.Param("type"))
	h.deleteResult(c, h.rules.DeleteEnergyCost(c.Request.Context(), tenantFrom(c), contentType))
}

// ========================================
// Settings
// ========================================

func (h *Handler) GetAutocorrect(c *gin.Context) {
	setting, err := h.rules.GetAutocorrect(c.Request.Context(), tenantFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, setting)
}

func (h *Handler) SetAutocorrect(c *gin.Context) {
	var setting entities.AutocorrectSetting
	if err := c.ShouldBindJSON(&setting); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	if err := h.rules.SetAutocorrect(c.Request.Context(), tenantFrom(c), setting); err != nil {
		h.respondError(c, err)
		return
	}
	h.GetAutocorrect(c)
}

func (h *Handler) ListNotices(c *gin.Context) {
	items, err := h.rules.ListPowerMessages(c.Request.Context(), tenantFrom(c))
	h.listResult(c, items, err)
}

func (h *Handler) UpsertNotice(c *gin.Context) {
	var msg entities.PowerMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	msg.Text = SanitizeString(msg.Text)
	saved, err := h.rules.UpsertPowerMessage(c.Request.Context(), tenantFrom(c), msg)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) DeleteNotice(c *gin.Context) {
	if id, ok := ruleID(c); ok {
		h.deleteResult(c, h.rules.DeletePowerMessage(c.Request.Context(), tenantFrom(c), id))
	}
}

func (h *Handler) GetChatScope(c *gin.Context) {
	scope, err := h.rules.GetChatScope(c.Request.Context(), tenantFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, scope)
}

func (h *Handler) SetChatScope(c *gin.Context) {
	var scope entities.ChatScope
	if err := c.ShouldBindJSON(&scope); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	if len(scope.Chats) > MaxBatchSize {
		badRequest(c, "Too many chats")
		return
	}
	for _, chat := range scope.Chats {
		if !ValidChatID(chat) {
			badRequest(c, "Invalid chat id: "+chat)
			return
		}
	}
	if err := h.rules.SetChatScope(c.Request.Context(), tenantFrom(c), scope); err != nil {
		h.respondError(c, err)
		return
	}
	h.GetChatScope(c)
}

func (h *Handler) GetProtection(c *gin.Context) {
	settings, err := h.rules.GetProtection(c.Request.Context(), tenantFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *Handler) SetProtection(c *gin.Context) {
	var settings entities.ProtectionSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	if err := h.rules.SetProtection(c.Request.Context(), tenantFrom(c), settings); err != nil {
		h.respondError(c, err)
		return
	}
	h.GetProtection(c)
}
