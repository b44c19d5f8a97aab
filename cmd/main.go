package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tenantbot/internal/config"
	"tenantbot/internal/entities"
	"tenantbot/internal/infrastructure"
	"tenantbot/internal/interfaces"
	"tenantbot/internal/logger"
	"tenantbot/internal/repository"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once config is loaded.
type app struct {
	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "tenantbot",
		Short: "Multi-tenant messaging userbot with an energy economy",
		Long: `tenantbot keeps one linked messaging session per tenant and runs every
outgoing message through an energy-gated filter pipeline, while guarding
the tenant's profile against edits.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a.cfg, a.log = cfg, log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newTokenCmd(a),
		newTenantCmd(a),
	)
	return root
}

// persistentStore is the store plus tenant provisioning.
type persistentStore interface {
	interfaces.Store
	CreateTenant(ctx context.Context, t entities.Tenant) (entities.Tenant, error)
}

// openStore returns the configured store and a close func.
func (a *app) openStore(ctx context.Context) (persistentStore, func(), error) {
	switch a.cfg.Database.Driver {
	case "memory":
		a.log.Warn("Using in-memory store, state is lost on exit")
		return repository.NewMemoryStore(), func() {}, nil
	case "postgres":
		pg, err := infrastructure.NewPostgresClient(ctx, a.cfg.Database, a.log)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return repository.NewPostgresStore(pg.Pool), pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", a.cfg.Database.Driver)
	}
}
