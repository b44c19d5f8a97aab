package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tenantbot/internal/entities"
	"tenantbot/internal/infrastructure"
	"tenantbot/internal/interfaces"
	httpapi "tenantbot/internal/interfaces/http"
	"tenantbot/internal/metrics"
	"tenantbot/internal/usecases"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var devTenant string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Recover tenant sessions and serve the control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), devTenant)
		},
	}
	cmd.Flags().StringVar(&devTenant, "dev-tenant", "", "create a tenant with this username at startup (memory store only)")
	return cmd
}

func (a *app) serve(parent context.Context, devTenant string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log := a.cfg, a.log
	if cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required to serve the control API")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if devTenant != "" {
		if cfg.Database.Driver != "memory" {
			return errors.New("--dev-tenant only works with the memory store")
		}
		t, err := store.CreateTenant(ctx, entities.Tenant{Username: devTenant, DisplayName: devTenant})
		if err != nil {
			return err
		}
		log.Info("Development tenant created", zap.Int("tenant_id", t.ID))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Platform adapters
	wa, err := infrastructure.NewWhatsAppManager(cfg.Session, log)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Monitor.PhotoDir, 0o700); err != nil {
		return fmt.Errorf("create photo dir: %w", err)
	}
	notifier := infrastructure.NewTelegramNotifier(cfg.Alert.TelegramToken, cfg.Alert.TelegramChatID, log)

	var corrector interfaces.TextCorrector
	gemini, err := infrastructure.NewGeminiCorrector(ctx, cfg.Corrector, log)
	switch {
	case err != nil:
		log.Warn("Autocorrect disabled", zap.Error(err))
	case gemini != nil:
		corrector = gemini
	default:
		log.Info("Autocorrect disabled, no GEMINI_API_KEY")
	}

	// Usecases
	energy := usecases.NewEnergyService(store, log, m, cfg.Storage)
	flood := usecases.NewFloodWaiter(cfg.Session.FloodWaitMaxRetries, cfg.Session.FloodWaitMaxDelay, log, m)
	templates := usecases.NewTemplates()
	pipeline := usecases.NewInterceptor(energy, store, store, corrector, templates, log, m, cfg.Pipeline.OOCPrefix)
	commands := usecases.NewCommandHandler(energy, store, templates,
		infrastructure.NewReplyLimiter(cfg.Pipeline.ReplyInterval, 1), log, m)
	monitor := usecases.NewProfileMonitor(store, energy, flood, notifier, log, m,
		cfg.Monitor.PhotoDir, cfg.Monitor.PollInterval)

	registry := usecases.NewRegistry(usecases.RegistryDeps{
		Store:     store,
		Factory:   wa,
		Artifacts: wa,
		Pipeline:  pipeline,
		Commands:  commands,
		Monitor:   monitor,
		Flood:     flood,
		Notifier:  notifier,
		Log:       log,
		Metrics:   m,
		Session:   cfg.Session,
		Origins:   cfg.Pipeline,
	})
	defer registry.Shutdown()

	if _, err := registry.RecoverAll(ctx); err != nil {
		log.Error("Session recovery failed", zap.Error(err))
	}

	// Control API
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	httpapi.SetupRoutes(router, httpapi.Deps{
		Registry: registry,
		Energy:   energy,
		Rules:    usecases.NewRuleService(store, store, log),
		Monitor:  monitor,
		Tenants:  store,
		Gatherer: reg,
		Log:      log,
	}, httpapi.NewMiddleware(usecases.NewOperatorAuth(cfg.Auth.JWTSecret), cfg.Server.AllowedOrigins, log, m), cfg.Server)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Control API listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("control API: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	return nil
}
