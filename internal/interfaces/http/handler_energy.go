package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tenantbot/internal/entities"
)

type amountRequest struct {
	Amount int `json:"amount"`
}

// bindAmount reads {"amount": n}; the usecase validates the range.
func bindAmount(c *gin.Context) (int, bool) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return 0, false
	}
	return req.Amount, true
}

func (h *Handler) GetEnergy(c *gin.Context) {
	info, err := h.energy.GetEnergy(c.Request.Context(), tenantFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) AddEnergy(c *gin.Context) {
	amount, ok := bindAmount(c)
	if !ok {
		return
	}
	info, added, err := h.energy.Add(c.Request.Context(), tenantFrom(c), amount)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"energy": info, "added": added})
}

func (h *Handler) RemoveEnergy(c *gin.Context) {
	amount, ok := bindAmount(c)
	if !ok {
		return
	}
	h.energyResult(c)(h.energy.RemoveFloor(c.Request.Context(), tenantFrom(c), amount))
}

func (h *Handler) SetEnergy(c *gin.Context) {
	amount, ok := bindAmount(c)
	if !ok {
		return
	}
	h.energyResult(c)(h.energy.SetExact(c.Request.Context(), tenantFrom(c), amount))
}

func (h *Handler) SetMaxEnergy(c *gin.Context) {
	amount, ok := bindAmount(c)
	if !ok {
		return
	}
	h.energyResult(c)(h.energy.UpdateMaxEnergy(c.Request.Context(), tenantFrom(c), amount))
}

func (h *Handler) SetRechargeRate(c *gin.Context) {
	amount, ok := bindAmount(c)
	if !ok {
		return
	}
	h.energyResult(c)(h.energy.UpdateRechargeRate(c.Request.Context(), tenantFrom(c), amount))
}

func (h *Handler) energyResult(c *gin.Context) func(entities.EnergyInfo, error) {
	return func(info entities.EnergyInfo, err error) {
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}
