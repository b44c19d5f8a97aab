package usecases

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"tenantbot/internal/config"
	"tenantbot/internal/entities"
	"tenantbot/internal/interfaces"
	"tenantbot/internal/metrics"
)

// EnergyService owns every read and write of tenant energy. Reads apply the
// lazy recharge, so they may write.
type EnergyService struct {
	store   interfaces.EnergyStore
	log     *zap.Logger
	metrics *metrics.Metrics
	retry   config.StorageConfig

	now func() time.Time
}

func NewEnergyService(store interfaces.EnergyStore, log *zap.Logger, m *metrics.Metrics, retry config.StorageConfig) *EnergyService {
	if retry.RetryAttempts < 1 {
		retry.RetryAttempts = 1
	}
	return &EnergyService{
		store:   store,
		log:     log,
		metrics: m,
		retry:   retry,
		now:     time.Now,
	}
}

// applyRecharge credits whole elapsed minutes and normalizes the row.
func applyRecharge(s *entities.EnergyState, now time.Time) bool {
	dirty := false
	if elapsed := int64(now.Sub(s.LastUpdate) / time.Minute); elapsed > 0 {
		gained := elapsed * int64(s.RechargeRate)
		s.Energy = int(min(int64(s.MaxEnergy), int64(s.Energy)+gained))
		s.LastUpdate = now
		dirty = true
	}
	if s.Energy > s.MaxEnergy {
		s.Energy = s.MaxEnergy
		dirty = true
	}
	if s.Energy < 0 {
		s.Energy = 0
		dirty = true
	}
	return dirty
}

// mutate runs fn after the recharge step, retrying on storage contention.
// The last storage error is returned as is.
func (s *EnergyService) mutate(ctx context.Context, tenantID int, op string, fn func(st *entities.EnergyState) bool) (entities.EnergyState, error) {
	var state entities.EnergyState

	operation := func() error {
		var err error
		state, err = s.store.MutateEnergy(ctx, tenantID, func(st *entities.EnergyState) (bool, error) {
			recharged := applyRecharge(st, s.now())
			changed := fn != nil && fn(st)
			return recharged || changed, nil
		})
		if err == nil || errors.Is(err, entities.ErrStorageContention) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retry.RetryInitial
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	bounded := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.retry.RetryAttempts-1)), ctx)

	err := backoff.RetryNotify(operation, bounded, func(err error, wait time.Duration) {
		s.metrics.StorageRetries.Inc()
		s.log.Warn("Energy write contended, retrying",
			zap.Int("tenant_id", tenantID), zap.String("op", op), zap.Duration("wait", wait), zap.Error(err))
	})
	if err != nil {
		s.log.Error("Energy operation failed",
			zap.Int("tenant_id", tenantID), zap.String("op", op), zap.Error(err))
		return state, err
	}
	return state, nil
}

func (s *EnergyService) GetEnergy(ctx context.Context, tenantID int) (entities.EnergyInfo, error) {
	state, err := s.mutate(ctx, tenantID, "get", nil)
	return state.Info(), err
}

// Consume debits amount or fails with *InsufficientEnergyError, leaving the
// balance as it was after recharge.
func (s *EnergyService) Consume(ctx context.Context, tenantID, amount int) (entities.EnergyInfo, error) {
	if amount < 0 {
		return entities.EnergyInfo{}, entities.ErrOutOfRange
	}
	var shortfall *entities.InsufficientEnergyError
	state, err := s.mutate(ctx, tenantID, "consume", func(st *entities.EnergyState) bool {
		shortfall = nil
		if st.Energy < amount {
			shortfall = &entities.InsufficientEnergyError{Current: st.Energy, Required: amount}
			return false
		}
		st.Energy -= amount
		return amount > 0
	})
	if err != nil {
		return state.Info(), err
	}
	if shortfall != nil {
		return state.Info(), shortfall
	}
	return state.Info(), nil
}

// Add credits amount up to max energy and reports how much was actually added.
func (s *EnergyService) Add(ctx context.Context, tenantID, amount int) (entities.EnergyInfo, int, error) {
	if amount < 0 {
		return entities.EnergyInfo{}, 0, entities.ErrOutOfRange
	}
	added := 0
	state, err := s.mutate(ctx, tenantID, "add", func(st *entities.EnergyState) bool {
		before := st.Energy
		st.Energy = min(st.MaxEnergy, st.Energy+amount)
		added = st.Energy - before
		return added != 0
	})
	return state.Info(), added, err
}

// RemoveFloor debits amount, stopping at zero.
func (s *EnergyService) RemoveFloor(ctx context.Context, tenantID, amount int) (entities.EnergyInfo, error) {
	if amount < 0 {
		return entities.EnergyInfo{}, entities.ErrOutOfRange
	}
	state, err := s.mutate(ctx, tenantID, "remove", func(st *entities.EnergyState) bool {
		before := st.Energy
		st.Energy = max(0, st.Energy-amount)
		return st.Energy != before
	})
	return state.Info(), err
}

func (s *EnergyService) SetExact(ctx context.Context, tenantID, value int) (entities.EnergyInfo, error) {
	state, err := s.mutate(ctx, tenantID, "set", func(st *entities.EnergyState) bool {
		before := st.Energy
		st.Energy = min(st.MaxEnergy, max(0, value))
		return st.Energy != before
	})
	return state.Info(), err
}

// UpdateMaxEnergy changes the cap and trims the balance in the same write.
func (s *EnergyService) UpdateMaxEnergy(ctx context.Context, tenantID, newMax int) (entities.EnergyInfo, error) {
	if newMax < entities.MinMaxEnergy || newMax > entities.MaxMaxEnergy {
		return entities.EnergyInfo{}, entities.ErrOutOfRange
	}
	state, err := s.mutate(ctx, tenantID, "update_max", func(st *entities.EnergyState) bool {
		st.MaxEnergy = newMax
		if st.Energy > newMax {
			st.Energy = newMax
		}
		return true
	})
	return state.Info(), err
}

func (s *EnergyService) UpdateRechargeRate(ctx context.Context, tenantID, rate int) (entities.EnergyInfo, error) {
	if rate < entities.MinRechargeRate || rate > entities.MaxRechargeRate {
		return entities.EnergyInfo{}, entities.ErrOutOfRange
	}
	state, err := s.mutate(ctx, tenantID, "update_rate", func(st *entities.EnergyState) bool {
		st.RechargeRate = rate
		return true
	})
	return state.Info(), err
}
