package usecases

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantbot/internal/entities"
	"tenantbot/internal/repository"
)

func TestGetEnergyRechargesWholeMinutes(t *testing.T) {
	f := newFixture(t)
	id := f.tenant(t, 5, 100, 1)
	f.clock.Advance(10*time.Minute + 59*time.Second)

	info, err := f.energy.GetEnergy(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 15, info.Energy)

	// Partial minutes are not carried over after a credited read.
	f.clock.Advance(30 * time.Second)
	info, err = f.energy.GetEnergy(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 15, info.Energy)
}

func TestGetEnergyCapsAtMax(t *testing.T) {
	f := newFixture(t)
	id := f.tenant(t, 95, 100, 10)
	f.clock.Advance(24 * time.Hour)

	info, err := f.energy.GetEnergy(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 100, info.Energy)
	assert.Equal(t, 100, info.MaxEnergy)
	assert.Equal(t, 10, info.RechargeRate)
}

func TestGetEnergyNormalizesOutOfRangeRow(t *testing.T) {
	f := newFixture(t)
	id := f.tenant(t, 0, 50, 0)
	f.store.PutEnergy(id, entities.EnergyState{Energy: 80, MaxEnergy: 50, LastUpdate: f.clock.Now()})

	info, err := f.energy.GetEnergy(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 50, info.Energy)
}

func TestConsumeInsufficientLeavesEnergy(t *testing.T) {
	f := newFixture(t)
	id := f.tenant(t, 15, 100, 1)

	_, err := f.energy.Consume(context.Background(), id, 20)
	var shortfall *entities.InsufficientEnergyError
	require.ErrorAs(t, err, &shortfall)
	assert.Equal(t, 15, shortfall.Current)
	assert.Equal(t, 20, shortfall.Required)

	info, err := f.energy.GetEnergy(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 15, info.Energy)
}

func TestConsumeAppliesRechargeFirst(t *testing.T) {
	f := newFixture(t)
	id := f.tenant(t, 5, 100, 2)
	f.clock.Advance(5 * time.Minute)

	info, err := f.energy.Consume(context.Background(), id, 12)
	require.NoError(t, err)
	assert.Equal(t, 3, info.Energy)
}

func TestConsumeRejectsNegative(t *testing.T) {
	f := newFixture(t)
	id := f.tenant(t, 5, 100, 1)

	_, err := f.energy.Consume(context.Background(), id, -1)
	assert.ErrorIs(t, err, entities.ErrUserInput)
}

func TestAddClampsAndReportsAdded(t *testing.T) {
	f := newFixture(t)
	id := f.tenant(t, 90, 100, 1)

	info, added, err := f.energy.Add(context.Background(), id, 25)
	require.NoError(t, err)
	assert.Equal(t, 100, info.Energy)
	assert.Equal(t, 10, added)
}

func TestRemoveFloorStopsAtZero(t *testing.T) {
	f := newFixture(t)
	id := f.tenant(t, 7, 100, 1)

	info, err := f.energy.RemoveFloor(context.Background(), id, 50)
	require.NoError(t, err)
	assert.Equal(t, 0, info.Energy)
}

func TestSetExactClamps(t *testing.T) {
	f := newFixture(t)
	id := f.tenant(t, 7, 100, 1)
	ctx := context.Background()

	info, err := f.energy.SetExact(ctx, id, 500)
	require.NoError(t, err)
	assert.Equal(t, 100, info.Energy)

	info, err = f.energy.SetExact(ctx, id, -3)
	require.NoError(t, err)
	assert.Equal(t, 0, info.Energy)
}

func TestUpdateMaxEnergy(t *testing.T) {
	f := newFixture(t)
	id := f.tenant(t, 80, 100, 1)
	ctx := context.Background()

	info, err := f.energy.UpdateMaxEnergy(ctx, id, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, info.MaxEnergy)
	assert.Equal(t, 50, info.Energy)

	for _, bad := range []int{0, 1001, -5} {
		_, err = f.energy.UpdateMaxEnergy(ctx, id, bad)
		assert.ErrorIs(t, err, entities.ErrOutOfRange, "max %d", bad)
	}

	info, err = f.energy.GetEnergy(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 50, info.MaxEnergy)
}

func TestUpdateRechargeRateRange(t *testing.T) {
	f := newFixture(t)
	id := f.tenant(t, 80, 100, 1)
	ctx := context.Background()

	info, err := f.energy.UpdateRechargeRate(ctx, id, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, info.RechargeRate)

	_, err = f.energy.UpdateRechargeRate(ctx, id, 11)
	assert.ErrorIs(t, err, entities.ErrOutOfRange)
	_, err = f.energy.UpdateRechargeRate(ctx, id, -1)
	assert.ErrorIs(t, err, entities.ErrOutOfRange)
}

func TestMutationRetriesContention(t *testing.T) {
	f := newFixture(t)
	id := f.tenant(t, 50, 100, 1)
	locked := &repository.ContentionError{Err: errors.New("database is locked")}
	f.store.InjectEnergyFaults(locked, locked)

	info, err := f.energy.Consume(context.Background(), id, 10)
	require.NoError(t, err)
	assert.Equal(t, 40, info.Energy)
}

func TestMutationSurfacesLastErrorAfterRetries(t *testing.T) {
	f := newFixture(t)
	id := f.tenant(t, 50, 100, 1)
	locked := &repository.ContentionError{Err: errors.New("database is locked")}
	f.store.InjectEnergyFaults(locked, locked, locked)

	_, err := f.energy.Consume(context.Background(), id, 10)
	assert.Same(t, locked, err)

	info, err := f.energy.GetEnergy(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 50, info.Energy)
}

func TestMutationDoesNotRetryOtherErrors(t *testing.T) {
	f := newFixture(t)
	id := f.tenant(t, 50, 100, 1)
	broken := errors.New("connection reset")
	f.store.InjectEnergyFaults(broken)

	_, _, err := f.energy.Add(context.Background(), id, 10)
	assert.Same(t, broken, err)

	info, err := f.energy.GetEnergy(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 50, info.Energy)
}

func TestConcurrentConsumeNeverNegative(t *testing.T) {
	f := newFixture(t)
	id := f.tenant(t, 30, 100, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.energy.Consume(context.Background(), id, 4); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	info, err := f.energy.GetEnergy(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 7, succeeded)
	assert.Equal(t, 2, info.Energy)
}
