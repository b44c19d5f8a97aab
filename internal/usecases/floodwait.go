package usecases

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"tenantbot/internal/entities"
	"tenantbot/internal/metrics"
)

// FloodWaiter retries platform calls that were rate limited, sleeping for
// the platform-requested delay. Retries are capped.
type FloodWaiter struct {
	maxRetries int
	maxDelay   time.Duration
	log        *zap.Logger
	metrics    *metrics.Metrics
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewFloodWaiter(maxRetries int, maxDelay time.Duration, log *zap.Logger, m *metrics.Metrics) *FloodWaiter {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &FloodWaiter{
		maxRetries: maxRetries,
		maxDelay:   maxDelay,
		log:        log,
		metrics:    m,
		sleep:      sleepCtx,
	}
}

// Do runs fn and repeats it after a flood-wait at most maxRetries times.
// A requested delay above maxDelay is surfaced instead of slept.
func (w *FloodWaiter) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		var flood *entities.FloodWaitError
		if !errors.As(err, &flood) {
			return err
		}
		w.metrics.FloodWaits.WithLabelValues(op).Inc()

		delay := time.Duration(flood.Seconds) * time.Second
		if attempt >= w.maxRetries || (w.maxDelay > 0 && delay > w.maxDelay) {
			w.log.Warn("Flood wait not retried",
				zap.String("op", op), zap.Int("seconds", flood.Seconds), zap.Int("attempt", attempt))
			return err
		}

		w.log.Info("Flood wait, sleeping before retry", zap.String("op", op), zap.Int("seconds", flood.Seconds))
		if err := w.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
