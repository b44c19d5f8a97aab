package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"tenantbot/internal/config"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
	log  *zap.Logger
}

func NewPostgresClient(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*PostgresClient, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Pool configuration
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	client := &PostgresClient{Pool: pool, log: log}

	// Auto-migrate schema
	if err := client.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return client, nil
}

var migrations = []struct {
	name string
	sql  string
}{
	{"tenants", `
		CREATE TABLE IF NOT EXISTS tenants (
			id SERIAL PRIMARY KEY,
			username VARCHAR(64) UNIQUE NOT NULL,
			display_name VARCHAR(128) NOT NULL DEFAULT '',
			phone VARCHAR(32) NOT NULL DEFAULT '',
			connected BOOLEAN NOT NULL DEFAULT FALSE,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			energy INT NOT NULL DEFAULT 100 CHECK (energy >= 0),
			max_energy INT NOT NULL DEFAULT 100 CHECK (max_energy BETWEEN 1 AND 1000),
			recharge_rate INT NOT NULL DEFAULT 1 CHECK (recharge_rate BETWEEN 0 AND 10),
			last_energy_update TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"badwords", `
		CREATE TABLE IF NOT EXISTS badwords (
			id SERIAL PRIMARY KEY,
			tenant_id INT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			phrase TEXT NOT NULL,
			penalty INT NOT NULL DEFAULT 5,
			case_sensitive BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE (tenant_id, phrase, case_sensitive)
		);`},
	{"custom_redactions", `
		CREATE TABLE IF NOT EXISTS custom_redactions (
			id SERIAL PRIMARY KEY,
			tenant_id INT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			original_phrase TEXT NOT NULL,
			replacement_phrase TEXT NOT NULL,
			penalty INT NOT NULL DEFAULT 0,
			case_sensitive BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE (tenant_id, original_phrase)
		);`},
	{"whitelist_phrases", `
		CREATE TABLE IF NOT EXISTS whitelist_phrases (
			id SERIAL PRIMARY KEY,
			tenant_id INT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			phrase TEXT NOT NULL,
			case_sensitive BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE (tenant_id, phrase, case_sensitive)
		);`},
	{"energy_costs", `
		CREATE TABLE IF NOT EXISTS energy_costs (
			tenant_id INT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			content_type VARCHAR(32) NOT NULL,
			cost INT NOT NULL CHECK (cost >= 0),
			PRIMARY KEY (tenant_id, content_type)
		);`},
	{"autocorrect_settings", `
		CREATE TABLE IF NOT EXISTS autocorrect_settings (
			tenant_id INT PRIMARY KEY REFERENCES tenants(id) ON DELETE CASCADE,
			enabled BOOLEAN NOT NULL DEFAULT FALSE,
			penalty_per_correction INT NOT NULL DEFAULT 0
		);`},
	{"power_messages", `
		CREATE TABLE IF NOT EXISTS power_messages (
			id SERIAL PRIMARY KEY,
			tenant_id INT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			text TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE
		);`},
	{"chat_scope_settings", `
		CREATE TABLE IF NOT EXISTS chat_scope_settings (
			tenant_id INT PRIMARY KEY REFERENCES tenants(id) ON DELETE CASCADE,
			mode VARCHAR(16) NOT NULL DEFAULT 'blacklist'
		);`},
	{"chat_scope_entries", `
		CREATE TABLE IF NOT EXISTS chat_scope_entries (
			tenant_id INT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			chat_id VARCHAR(128) NOT NULL,
			PRIMARY KEY (tenant_id, chat_id)
		);`},
	{"profile_baselines", `
		CREATE TABLE IF NOT EXISTS profile_baselines (
			tenant_id INT PRIMARY KEY REFERENCES tenants(id) ON DELETE CASCADE,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			bio TEXT NOT NULL DEFAULT '',
			photo_id VARCHAR(128) NOT NULL DEFAULT '',
			photo_path TEXT NOT NULL DEFAULT '',
			locked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			active BOOLEAN NOT NULL DEFAULT TRUE
		);`},
	{"profile_protection", `
		CREATE TABLE IF NOT EXISTS profile_protection (
			tenant_id INT PRIMARY KEY REFERENCES tenants(id) ON DELETE CASCADE,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			penalty INT NOT NULL DEFAULT 10
		);`},
}

func (p *PostgresClient) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := p.Pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("create %s table: %w", m.name, err)
		}
	}
	p.log.Info("Database schema ready", zap.Int("tables", len(migrations)))
	return nil
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}
