package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tenantbot/internal/entities"
)

func newTestWaiter(f *fixture, retries int, maxDelay time.Duration) (*FloodWaiter, *[]time.Duration) {
	w := NewFloodWaiter(retries, maxDelay, zap.NewNop(), f.metrics)
	var slept []time.Duration
	w.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return w, &slept
}

func TestFloodWaitRetriesOnce(t *testing.T) {
	f := newFixture(t)
	w, slept := newTestWaiter(f, 1, time.Minute)

	calls := 0
	err := w.Do(context.Background(), "request_code", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &entities.FloodWaitError{Seconds: 7}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{7 * time.Second}, *slept)
}

func TestFloodWaitCapped(t *testing.T) {
	f := newFixture(t)
	w, slept := newTestWaiter(f, 1, time.Minute)

	calls := 0
	err := w.Do(context.Background(), "upload_photo", func(ctx context.Context) error {
		calls++
		return &entities.FloodWaitError{Seconds: 1}
	})

	var flood *entities.FloodWaitError
	require.ErrorAs(t, err, &flood)
	assert.Equal(t, 2, calls)
	assert.Len(t, *slept, 1)
}

func TestFloodWaitDelayTooLong(t *testing.T) {
	f := newFixture(t)
	w, slept := newTestWaiter(f, 3, time.Minute)

	err := w.Do(context.Background(), "revert", func(ctx context.Context) error {
		return &entities.FloodWaitError{Seconds: 3600}
	})

	require.Error(t, err)
	assert.Empty(t, *slept)
}

func TestFloodWaitOtherErrorsPassThrough(t *testing.T) {
	f := newFixture(t)
	w, slept := newTestWaiter(f, 1, time.Minute)
	boom := errors.New("boom")

	err := w.Do(context.Background(), "revert", func(ctx context.Context) error { return boom })

	assert.Same(t, boom, err)
	assert.Empty(t, *slept)
}

func TestFloodWaitSleepHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}
