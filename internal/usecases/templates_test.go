package usecases

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tenantbot/internal/entities"
)

func TestLowEnergyNoticePrefersCustom(t *testing.T) {
	tpl := NewTemplates()
	tpl.pick = func(n int) int { return n - 1 }

	custom := []entities.PowerMessage{
		{Text: "out of juice", Active: true},
		{Text: "disabled one", Active: false},
		{Text: "   ", Active: true},
	}
	assert.Equal(t, "out of juice", tpl.LowEnergyNotice(custom))
	assert.Equal(t, lowEnergyMessages[len(lowEnergyMessages)-1], tpl.LowEnergyNotice(nil))
}

func TestPowerStatus(t *testing.T) {
	tpl := NewTemplates()

	report := tpl.PowerStatus(entities.EnergyInfo{Energy: 35, MaxEnergy: 100, RechargeRate: 2})
	assert.Contains(t, report, "Power: 35/100 (35%)")
	assert.Contains(t, report, "[███░░░░░░░]")
	assert.Contains(t, report, "Recharge Rate: 2 energy/minute")
}
