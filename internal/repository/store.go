package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore bundles the repositories behind one serializing guard.
type PostgresStore struct {
	*TenantRepository
	*RuleRepository
	*ProfileRepository
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	guard := NewGuard()
	return &PostgresStore{
		TenantRepository:  NewTenantRepository(db, guard),
		RuleRepository:    NewRuleRepository(db, guard),
		ProfileRepository: NewProfileRepository(db, guard),
	}
}
