package usecases

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"tenantbot/internal/entities"
)

var lowEnergyMessages = []string{
	"*batteries flash red in their cybernetic eyes as their motors whine in need for more power*",
	"*servos lock up momentarily as power levels critically low - requires immediate recharge*",
	"*warning beeps emanate from hidden speakers as energy reserves reach minimum threshold*",
	"*mechanical joints creak and groan, struggling against power conservation protocols*",
	"*LED indicators dim to amber as backup power systems engage automatically*",
	"*internal cooling fans spin down to preserve remaining battery life*",
	"*synthetic voice modulator crackles with static due to insufficient power*",
	"*optical sensors flicker briefly as energy management systems prioritize core functions*",
}

var flipMessages = []string{
	"*launches into a perfect backflip, gyroscopes whirring, and sticks the landing*",
	"*attempts a flip, overshoots by ninety degrees and reboots face down*",
	"*calculates trajectory, executes a flawless aerial somersault, bows*",
}

var beepMessages = []string{
	"*beep boop*",
	"*emits a cheerful series of beeps and blinks twice*",
	"*BEEP. Acknowledged. Beep.*",
}

var danceMessages = []string{
	"*servos sync to an unheard beat as they break into the robot*",
	"*spins in place, arms locked at ninety degrees, LEDs pulsing in rhythm*",
	"*moonwalks across the floor with suspicious mechanical precision*",
}

// Templates produces this system's own outgoing texts.
type Templates struct {
	pick func(n int) int
}

func NewTemplates() *Templates {
	return &Templates{pick: rand.IntN}
}

func (t *Templates) choose(options []string) string {
	return options[t.pick(len(options))]
}

// LowEnergyNotice prefers the tenant's active custom notices.
func (t *Templates) LowEnergyNotice(custom []entities.PowerMessage) string {
	var active []string
	for _, m := range custom {
		if m.Active && strings.TrimSpace(m.Text) != "" {
			active = append(active, m.Text)
		}
	}
	if len(active) > 0 {
		return t.choose(active)
	}
	return t.choose(lowEnergyMessages)
}

func (t *Templates) Flip() string  { return t.choose(flipMessages) }
func (t *Templates) Beep() string  { return t.choose(beepMessages) }
func (t *Templates) Dance() string { return t.choose(danceMessages) }

// PowerStatus renders the /availablepower report.
func (t *Templates) PowerStatus(info entities.EnergyInfo) string {
	percent, filled := 0, 0
	if info.MaxEnergy > 0 {
		percent = info.Energy * 100 / info.MaxEnergy
		filled = info.Energy * 10 / info.MaxEnergy
	}
	filled = min(10, max(0, filled))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)

	return fmt.Sprintf("*⚡ Energy Status ⚡\nPower: %d/%d (%d%%)\n[%s]\nRecharge Rate: %d energy/minute*",
		info.Energy, info.MaxEnergy, percent, bar, info.RechargeRate)
}

func (t *Templates) PowerGranted() string {
	return "⚡ Power Granted! ⚡"
}
