package entities

import "time"

const (
	DefaultEnergy       = 100
	DefaultMaxEnergy    = 100
	DefaultRechargeRate = 1

	MinMaxEnergy    = 1
	MaxMaxEnergy    = 1000
	MinRechargeRate = 0
	MaxRechargeRate = 10
)

type Tenant struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Phone       string `json:"phone"`     // Platform account identifier
	Connected   bool   `json:"connected"` // Marked connected by the registry
	IsAdmin     bool   `json:"is_admin"`
}

// EnergyState is the persisted energy row of a tenant.
type EnergyState struct {
	Energy       int       `json:"energy"`
	MaxEnergy    int       `json:"max_energy"`
	RechargeRate int       `json:"recharge_rate"` // Units per minute
	LastUpdate   time.Time `json:"last_energy_update"`
}

func DefaultEnergyState(now time.Time) EnergyState {
	return EnergyState{
		Energy:       DefaultEnergy,
		MaxEnergy:    DefaultMaxEnergy,
		RechargeRate: DefaultRechargeRate,
		LastUpdate:   now,
	}
}

// EnergyInfo is what energy reads report to callers.
type EnergyInfo struct {
	Energy       int `json:"energy"`
	MaxEnergy    int `json:"max_energy"`
	RechargeRate int `json:"recharge_rate"`
}

func (s EnergyState) Info() EnergyInfo {
	return EnergyInfo{Energy: s.Energy, MaxEnergy: s.MaxEnergy, RechargeRate: s.RechargeRate}
}
