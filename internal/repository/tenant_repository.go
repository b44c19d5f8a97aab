package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tenantbot/internal/entities"
	"tenantbot/internal/interfaces"
)

type TenantRepository struct {
	db    *pgxpool.Pool
	guard *Guard
}

func NewTenantRepository(db *pgxpool.Pool, guard *Guard) *TenantRepository {
	return &TenantRepository{db: db, guard: guard}
}

// CreateTenant inserts a tenant with default energy values.
func (r *TenantRepository) CreateTenant(ctx context.Context, t entities.Tenant) (entities.Tenant, error) {
	err := r.guard.Do(ctx, func() error {
		return r.db.QueryRow(ctx, `
			INSERT INTO tenants (username, display_name, phone, is_admin, energy, max_energy, recharge_rate, last_energy_update)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			t.Username, t.DisplayName, t.Phone, t.IsAdmin,
			entities.DefaultEnergy, entities.DefaultMaxEnergy, entities.DefaultRechargeRate, time.Now().UTC(),
		).Scan(&t.ID)
	})
	if err != nil {
		return t, fmt.Errorf("create tenant: %w", mapError(err))
	}
	return t, nil
}

func (r *TenantRepository) GetTenant(ctx context.Context, tenantID int) (*entities.Tenant, error) {
	var t entities.Tenant
	err := r.guard.Do(ctx, func() error {
		return r.db.QueryRow(ctx,
			"SELECT id, username, display_name, phone, connected, is_admin FROM tenants WHERE id = $1",
			tenantID).Scan(&t.ID, &t.Username, &t.DisplayName, &t.Phone, &t.Connected, &t.IsAdmin)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

func (r *TenantRepository) SetConnected(ctx context.Context, tenantID int, connected bool) error {
	return r.guard.Do(ctx, func() error {
		_, err := r.db.Exec(ctx, "UPDATE tenants SET connected = $2 WHERE id = $1", tenantID, connected)
		return mapError(err)
	})
}

func (r *TenantRepository) ListConnectedTenants(ctx context.Context) ([]entities.Tenant, error) {
	var tenants []entities.Tenant
	err := r.guard.Do(ctx, func() error {
		rows, err := r.db.Query(ctx,
			"SELECT id, username, display_name, phone, connected, is_admin FROM tenants WHERE connected ORDER BY id")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var t entities.Tenant
			if err := rows.Scan(&t.ID, &t.Username, &t.DisplayName, &t.Phone, &t.Connected, &t.IsAdmin); err != nil {
				return err
			}
			tenants = append(tenants, t)
		}
		return rows.Err()
	})
	return tenants, mapError(err)
}

// MutateEnergy locks the tenant row for the duration of fn.
func (r *TenantRepository) MutateEnergy(ctx context.Context, tenantID int, fn interfaces.EnergyMutator) (entities.EnergyState, error) {
	var state entities.EnergyState
	err := r.guard.Do(ctx, func() error {
		tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		err = tx.QueryRow(ctx, `
			SELECT energy, max_energy, recharge_rate, last_energy_update
			FROM tenants WHERE id = $1 FOR UPDATE`, tenantID,
		).Scan(&state.Energy, &state.MaxEnergy, &state.RechargeRate, &state.LastUpdate)
		if errors.Is(err, pgx.ErrNoRows) {
			return entities.ErrTenantNotFound
		}
		if err != nil {
			return err
		}

		dirty, err := fn(&state)
		if err != nil {
			return err
		}
		if !dirty {
			return nil
		}

		_, err = tx.Exec(ctx, `
			UPDATE tenants
			SET energy = $2, max_energy = $3, recharge_rate = $4, last_energy_update = $5
			WHERE id = $1`,
			tenantID, state.Energy, state.MaxEnergy, state.RechargeRate, state.LastUpdate.UTC())
		if err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	return state, mapError(err)
}
