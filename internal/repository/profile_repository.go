package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tenantbot/internal/entities"
)

type ProfileRepository struct {
	db    *pgxpool.Pool
	guard *Guard
}

func NewProfileRepository(db *pgxpool.Pool, guard *Guard) *ProfileRepository {
	return &ProfileRepository{db: db, guard: guard}
}

func (r *ProfileRepository) GetBaseline(ctx context.Context, tenantID int) (*entities.ProfileBaseline, error) {
	b := entities.ProfileBaseline{TenantID: tenantID}
	err := r.guard.Do(ctx, func() error {
		return r.db.QueryRow(ctx, `
			SELECT first_name, last_name, bio, photo_id, photo_path, locked_at, active
			FROM profile_baselines WHERE tenant_id = $1`, tenantID,
		).Scan(&b.FirstName, &b.LastName, &b.Bio, &b.PhotoID, &b.PhotoPath, &b.LockedAt, &b.Active)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &b, nil
}

func (r *ProfileRepository) SaveBaseline(ctx context.Context, b entities.ProfileBaseline) error {
	if b.LockedAt.IsZero() {
		b.LockedAt = time.Now()
	}
	return r.guard.Do(ctx, func() error {
		_, err := r.db.Exec(ctx, `
			INSERT INTO profile_baselines (tenant_id, first_name, last_name, bio, photo_id, photo_path, locked_at, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (tenant_id) DO UPDATE
			SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name, bio = EXCLUDED.bio,
			    photo_id = EXCLUDED.photo_id, photo_path = EXCLUDED.photo_path,
			    locked_at = EXCLUDED.locked_at, active = EXCLUDED.active`,
			b.TenantID, b.FirstName, b.LastName, b.Bio, b.PhotoID, b.PhotoPath, b.LockedAt.UTC(), b.Active)
		return mapError(err)
	})
}

func (r *ProfileRepository) SetBaselineActive(ctx context.Context, tenantID int, active bool) error {
	return r.guard.Do(ctx, func() error {
		_, err := r.db.Exec(ctx, "UPDATE profile_baselines SET active = $2 WHERE tenant_id = $1", tenantID, active)
		return mapError(err)
	})
}

func (r *ProfileRepository) ClearBaseline(ctx context.Context, tenantID int) error {
	return r.guard.Do(ctx, func() error {
		_, err := r.db.Exec(ctx, "DELETE FROM profile_baselines WHERE tenant_id = $1", tenantID)
		return mapError(err)
	})
}

func (r *ProfileRepository) GetProtection(ctx context.Context, tenantID int) (entities.ProtectionSettings, error) {
	s := entities.ProtectionSettings{TenantID: tenantID, Enabled: true, Penalty: entities.DefaultProfilePenalty}
	err := r.guard.Do(ctx, func() error {
		return r.db.QueryRow(ctx,
			"SELECT enabled, penalty FROM profile_protection WHERE tenant_id = $1",
			tenantID).Scan(&s.Enabled, &s.Penalty)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return s, nil
	}
	return s, mapError(err)
}

func (r *ProfileRepository) SetProtection(ctx context.Context, s entities.ProtectionSettings) error {
	return r.guard.Do(ctx, func() error {
		_, err := r.db.Exec(ctx, `
			INSERT INTO profile_protection (tenant_id, enabled, penalty) VALUES ($1, $2, $3)
			ON CONFLICT (tenant_id) DO UPDATE SET enabled = EXCLUDED.enabled, penalty = EXCLUDED.penalty`,
			s.TenantID, s.Enabled, s.Penalty)
		return mapError(err)
	})
}
