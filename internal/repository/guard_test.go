package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantbot/internal/entities"
)

func TestGuardSerializes(t *testing.T) {
	g := NewGuard()
	var active, peak int32
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Do(context.Background(), func() error {
				n := atomic.AddInt32(&active, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak)
}

func TestGuardHonoursContext(t *testing.T) {
	g := NewGuard()
	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = g.Do(context.Background(), func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := g.Do(ctx, func() error { return nil })
	close(release)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMapErrorContention(t *testing.T) {
	err := mapError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrStorageContention)

	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr))

	other := mapError(&pgconn.PgError{Code: "23505"})
	assert.False(t, errors.Is(other, entities.ErrStorageContention))
	assert.Nil(t, mapError(nil))
}
