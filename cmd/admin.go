package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tenantbot/internal/entities"
	"tenantbot/internal/infrastructure"
	"tenantbot/internal/usecases"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Database.Driver != "postgres" {
				return errors.New("migrate needs DATABASE_URL (postgres store)")
			}
			pg, err := infrastructure.NewPostgresClient(cmd.Context(), a.cfg.Database, a.log)
			if err != nil {
				return err
			}
			defer pg.Close()
			return pg.Migrate(cmd.Context())
		},
	}
}

func newTokenCmd(a *app) *cobra.Command {
	var (
		subject  string
		role     string
		tenantID int
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token for the control API",
		Example: `  tenantbot token --subject ops --role admin
  tenantbot token --subject alice --role tenant --tenant 4 --ttl 720h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Auth.JWTSecret == "" {
				return errors.New("JWT_SECRET is required")
			}
			switch role {
			case usecases.RoleAdmin:
				tenantID = 0
			case usecases.RoleTenant:
				if tenantID <= 0 {
					return errors.New("--tenant is required for tenant tokens")
				}
			default:
				return fmt.Errorf("unknown role %q", role)
			}
			if strings.TrimSpace(subject) == "" {
				return errors.New("--subject is required")
			}

			token, err := usecases.NewOperatorAuth(a.cfg.Auth.JWTSecret).Issue(subject, role, tenantID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "operator name recorded in the token")
	cmd.Flags().StringVar(&role, "role", usecases.RoleTenant, "admin or tenant")
	cmd.Flags().IntVar(&tenantID, "tenant", 0, "tenant id for tenant tokens")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func newTenantCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	var t entities.Tenant
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant with default energy and cost table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Database.Driver != "postgres" {
				return errors.New("tenant create needs DATABASE_URL (postgres store)")
			}
			t.Username = strings.TrimSpace(t.Username)
			if t.Username == "" {
				return errors.New("--username is required")
			}

			ctx := cmd.Context()
			store, closeStore, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			created, err := store.CreateTenant(ctx, t)
			if err != nil {
				return err
			}
			seeded, err := usecases.NewRuleService(store, store, a.log).SeedDefaultCosts(ctx, created.ID)
			if err != nil {
				return fmt.Errorf("tenant %d created but cost seeding failed: %w", created.ID, err)
			}
			a.log.Info("Tenant created", zap.Int("tenant_id", created.ID), zap.Int("costs_seeded", seeded))
			fmt.Fprintln(cmd.OutOrStdout(), created.ID)
			return nil
		},
	}
	create.Flags().StringVar(&t.Username, "username", "", "platform username, used by /grant")
	create.Flags().StringVar(&t.DisplayName, "display-name", "", "display name")
	create.Flags().StringVar(&t.Phone, "phone", "", "phone number for pairing-code sign in; empty uses QR")
	create.Flags().BoolVar(&t.IsAdmin, "admin", false, "mark the tenant as admin")

	cmd.AddCommand(create)
	return cmd
}
