package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"tenantbot/internal/entities"
)

// Guard serializes every store call across all tenants.
type Guard struct {
	sem chan struct{}
}

func NewGuard() *Guard {
	return &Guard{sem: make(chan struct{}, 1)}
}

// Do runs fn while holding the guard. Waiting for the guard honours ctx.
func (g *Guard) Do(ctx context.Context, fn func() error) error {
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.sem }()
	return fn()
}

// ContentionError wraps a driver error that is safe to retry.
type ContentionError struct {
	Err error
}

func (e *ContentionError) Error() string { return e.Err.Error() }
func (e *ContentionError) Unwrap() error { return e.Err }

func (e *ContentionError) Is(target error) bool {
	return target == entities.ErrStorageContention
}

// Postgres SQLSTATEs for serialization failure, deadlock and lock timeout.
var contentionCodes = map[string]struct{}{
	"40001": {},
	"40P01": {},
	"55P03": {},
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var contention *ContentionError
	if errors.As(err, &contention) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := contentionCodes[pgErr.Code]; ok {
			return &ContentionError{Err: err}
		}
	}
	return err
}
