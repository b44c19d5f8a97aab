package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tenantbot/internal/config"
	"tenantbot/internal/entities"
	"tenantbot/internal/interfaces"
	"tenantbot/internal/metrics"
)

// RegistryDeps are the collaborators a Registry coordinates.
type RegistryDeps struct {
	Store     interfaces.Store
	Factory   interfaces.PlatformFactory
	Artifacts interfaces.ArtifactStore
	Pipeline  *Interceptor
	Commands  *CommandHandler
	Monitor   *ProfileMonitor
	Flood     *FloodWaiter
	Notifier  interfaces.Notifier
	Log       *zap.Logger
	Metrics   *metrics.Metrics
	Session   config.SessionConfig
	Origins   config.PipelineConfig
}

// RecoverySummary counts startup recovery outcomes.
type RecoverySummary struct {
	Restored int `json:"restored"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
	Orphaned int `json:"orphaned"`
}

// Registry owns every tenant Session and the handlers they run. Background
// tasks live until Remove or Shutdown.
type Registry struct {
	store     interfaces.Store
	factory   interfaces.PlatformFactory
	artifacts interfaces.ArtifactStore
	pipeline  *Interceptor
	commands  *CommandHandler
	monitor   *ProfileMonitor
	flood     *FloodWaiter
	notifier  interfaces.Notifier
	log       *zap.Logger
	metrics   *metrics.Metrics
	cfg       config.SessionConfig
	originCfg config.PipelineConfig

	root     context.Context
	shutdown context.CancelFunc
	detached sync.WaitGroup

	mu       sync.Mutex
	sessions map[int]*Session
}

func NewRegistry(deps RegistryDeps) *Registry {
	root, cancel := context.WithCancel(context.Background())
	if deps.Session.EventBuffer < 1 {
		deps.Session.EventBuffer = 1
	}
	r := &Registry{
		store:     deps.Store,
		factory:   deps.Factory,
		artifacts: deps.Artifacts,
		pipeline:  deps.Pipeline,
		commands:  deps.Commands,
		monitor:   deps.Monitor,
		flood:     deps.Flood,
		notifier:  deps.Notifier,
		log:       deps.Log,
		metrics:   deps.Metrics,
		cfg:       deps.Session,
		originCfg: deps.Origins,
		root:      root,
		shutdown:  cancel,
		sessions:  make(map[int]*Session),
	}
	if r.commands != nil {
		r.commands.SetDirectory(r)
	}
	return r
}

// GetOrCreate returns the live Session for the tenant, constructing an
// unauthenticated one when none exists.
func (r *Registry) GetOrCreate(tenant entities.Tenant) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[tenant.ID]; ok {
		return s
	}
	s := &Session{
		tenant:  tenant,
		auth:    NewAuthenticator(tenant.ID, r.factory, r.artifacts, r.flood, r.log, r.metrics),
		origins: NewOriginLedger(r.originCfg.OriginSize, r.originCfg.OriginTTL),
	}
	r.sessions[tenant.ID] = s
	return s
}

func (r *Registry) Get(tenantID int) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[tenantID]
	return s, ok
}

// open loads the tenant record and returns its Session.
func (r *Registry) open(ctx context.Context, tenantID int) (*Session, error) {
	if s, ok := r.Get(tenantID); ok {
		return s, nil
	}
	tenant, err := r.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, entities.ErrTenantNotFound
	}
	return r.GetOrCreate(*tenant), nil
}

// RequestCode starts a sign-in. An already authorized session goes live
// immediately.
func (r *Registry) RequestCode(ctx context.Context, tenantID int) (entities.CodeDelivery, error) {
	s, err := r.open(ctx, tenantID)
	if err != nil {
		return entities.CodeDelivery{}, err
	}
	r.stopSession(s)

	delivery, err := s.auth.RequestCode(ctx, s.tenant.Phone)
	if err != nil {
		return delivery, err
	}
	if delivery.AlreadyAuthorized {
		r.activate(ctx, s)
	}
	return delivery, nil
}

func (r *Registry) SubmitCode(ctx context.Context, tenantID int, code string) (entities.AuthState, error) {
	s, ok := r.Get(tenantID)
	if !ok {
		return entities.AuthNone, entities.ErrNoSession
	}
	state, err := s.auth.SubmitCode(ctx, code)
	if err != nil {
		return state, err
	}
	if state == entities.AuthAuthenticated {
		r.activate(ctx, s)
	}
	return state, nil
}

func (r *Registry) SubmitPassword(ctx context.Context, tenantID int, password string) error {
	s, ok := r.Get(tenantID)
	if !ok {
		return entities.ErrNoSession
	}
	if err := s.auth.SubmitPassword(ctx, password); err != nil {
		return err
	}
	r.activate(ctx, s)
	return nil
}

// Restore reconnects one tenant from its persisted artifact.
func (r *Registry) Restore(ctx context.Context, tenantID int) (bool, error) {
	s, err := r.open(ctx, tenantID)
	if err != nil {
		return false, err
	}
	r.stopSession(s)

	ok, err := s.auth.Restore(ctx)
	if err != nil || !ok {
		r.drop(tenantID, s)
		return false, err
	}
	r.activate(ctx, s)
	return true, nil
}

// activate marks the tenant connected, locks the profile and starts both
// background tasks.
func (r *Registry) activate(ctx context.Context, s *Session) {
	log := r.log.With(zap.Int("tenant_id", s.tenant.ID), zap.String("op", "activate"))

	if err := r.store.SetConnected(ctx, s.tenant.ID, true); err != nil {
		log.Error("Failed to mark tenant connected", zap.Error(err))
	}
	if _, err := r.monitor.Activate(ctx, s.tenantContext()); err != nil {
		log.Error("Failed to capture profile baseline", zap.Error(err))
	}
	if s.start(r.root, r) {
		r.metrics.SessionsConnected.Inc()
		log.Info("Session running")
	}
}

// Remove stops the tenant's tasks, signs out, deletes the session artifact
// and unlocks the profile.
func (r *Registry) Remove(ctx context.Context, tenantID int) error {
	return r.teardown(ctx, tenantID, true)
}

func (r *Registry) teardown(ctx context.Context, tenantID int, logout bool) error {
	log := r.log.With(zap.Int("tenant_id", tenantID), zap.String("op", "remove"))

	r.mu.Lock()
	s, ok := r.sessions[tenantID]
	delete(r.sessions, tenantID)
	r.mu.Unlock()

	if ok {
		r.stopSession(s)
		if logout {
			if err := s.auth.Logout(ctx); err != nil {
				log.Warn("Platform logout failed", zap.Error(err))
			}
		}
		s.auth.Close()
	}

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := r.artifacts.Delete(ctx, tenantID); err != nil {
		log.Error("Failed to delete session artifact", zap.Error(err))
		keep(err)
	}
	if err := r.monitor.Unlock(ctx, tenantID); err != nil && !errors.Is(err, entities.ErrNoBaseline) {
		log.Error("Failed to unlock profile", zap.Error(err))
		keep(err)
	}
	if err := r.store.SetConnected(ctx, tenantID, false); err != nil {
		log.Error("Failed to mark tenant disconnected", zap.Error(err))
		keep(err)
	}
	log.Info("Session removed")
	return firstErr
}

// lost handles a platform-side sign out.
func (r *Registry) lost(tenantID int) {
	ctx := context.WithoutCancel(r.root)
	if err := r.teardown(ctx, tenantID, false); err != nil {
		r.log.Error("Cleanup after session loss incomplete", zap.Int("tenant_id", tenantID), zap.Error(err))
	}
	r.alert(ctx, fmt.Sprintf("Session lost for tenant %d, platform signed it out", tenantID))
}

func (r *Registry) stopSession(s *Session) {
	if s.stop() {
		r.metrics.SessionsConnected.Dec()
	}
}

// drop forgets s unless another Session replaced it meanwhile.
func (r *Registry) drop(tenantID int, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[tenantID] == s {
		delete(r.sessions, tenantID)
	}
}

// RecoverAll restores every tenant that has a persisted artifact. Each
// tenant is an isolated unit; one failure never stops the others.
func (r *Registry) RecoverAll(ctx context.Context) (RecoverySummary, error) {
	ids, err := r.artifacts.List(ctx)
	if err != nil {
		return RecoverySummary{}, fmt.Errorf("list session artifacts: %w", err)
	}

	orphaned := r.clearOrphanedFlags(ctx, ids)

	var restored, skipped, failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	if r.cfg.RecoveryConcurrency > 0 {
		g.SetLimit(r.cfg.RecoveryConcurrency)
	}
	for _, id := range ids {
		g.Go(func() error {
			switch r.recoverOne(gctx, id) {
			case "restored":
				restored.Add(1)
			case "skipped":
				skipped.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := RecoverySummary{
		Restored: int(restored.Load()),
		Skipped:  int(skipped.Load()),
		Failed:   int(failed.Load()),
		Orphaned: orphaned,
	}
	r.log.Info("Session recovery finished",
		zap.Int("restored", summary.Restored), zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed), zap.Int("orphaned", summary.Orphaned))
	if len(ids) > 0 {
		r.alert(ctx, fmt.Sprintf("Recovery finished: %d restored, %d skipped, %d failed",
			summary.Restored, summary.Skipped, summary.Failed))
	}
	return summary, nil
}

// clearOrphanedFlags marks tenants disconnected when they are flagged
// connected but have no session artifact left to restore.
func (r *Registry) clearOrphanedFlags(ctx context.Context, artifactIDs []int) int {
	connected, err := r.store.ListConnectedTenants(ctx)
	if err != nil {
		r.log.Error("Failed to list connected tenants", zap.String("op", "recover"), zap.Error(err))
		return 0
	}
	has := make(map[int]bool, len(artifactIDs))
	for _, id := range artifactIDs {
		has[id] = true
	}

	cleared := 0
	for _, t := range connected {
		if has[t.ID] {
			continue
		}
		log := r.log.With(zap.Int("tenant_id", t.ID), zap.String("op", "recover"))
		if err := r.store.SetConnected(ctx, t.ID, false); err != nil {
			log.Error("Failed to clear connected flag", zap.Error(err))
			continue
		}
		log.Warn("Tenant marked connected without a session artifact, flag cleared")
		cleared++
	}
	return cleared
}

func (r *Registry) recoverOne(ctx context.Context, tenantID int) (result string) {
	log := r.log.With(zap.Int("tenant_id", tenantID), zap.String("op", "recover"))
	defer func() {
		if p := recover(); p != nil {
			log.Error("Recovery panicked", zap.Any("panic", p))
			result = "failed"
		}
		r.metrics.Recoveries.WithLabelValues(result).Inc()
	}()

	tenant, err := r.store.GetTenant(ctx, tenantID)
	if err != nil {
		log.Error("Failed to load tenant", zap.Error(err))
		return "failed"
	}
	if tenant == nil {
		log.Warn("Session artifact has no tenant record, skipping")
		return "skipped"
	}
	if !tenant.Connected {
		log.Warn("Tenant not marked connected, skipping")
		return "skipped"
	}

	s := r.GetOrCreate(*tenant)
	ok, err := s.auth.Restore(ctx)
	if err != nil {
		log.Error("Failed to restore session", zap.Error(err))
		r.drop(tenantID, s)
		return "failed"
	}
	if !ok {
		log.Warn("Session could not be restored")
		r.drop(tenantID, s)
		if err := r.store.SetConnected(ctx, tenantID, false); err != nil {
			log.Error("Failed to mark tenant disconnected", zap.Error(err))
		}
		return "failed"
	}

	r.activate(ctx, s)
	return "restored"
}

// listen feeds the pipeline and command handler until ctx ends.
func (r *Registry) listen(ctx context.Context, tc TenantContext, events <-chan entities.PlatformEvent, signals chan<- struct{}) {
	log := r.log.With(zap.Int("tenant_id", tc.TenantID), zap.String("op", "listen"))
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			switch evt.Kind {
			case entities.EventMessage:
				r.dispatch(ctx, tc, evt.Message, log)
			case entities.EventAccountUpdate:
				select {
				case signals <- struct{}{}:
				default:
				}
			case entities.EventLoggedOut:
				log.Warn("Platform signed the session out")
				r.detached.Add(1)
				go func() {
					defer r.detached.Done()
					r.lost(tc.TenantID)
				}()
				return
			}
		}
	}
}

func (r *Registry) dispatch(ctx context.Context, tc TenantContext, msg *entities.MessageEvent, log *zap.Logger) {
	if msg == nil {
		return
	}
	if msg.Direction == entities.Outgoing {
		if _, err := r.pipeline.Process(ctx, tc, msg); err != nil && ctx.Err() == nil {
			log.Error("Pipeline aborted", zap.Error(err))
		}
		return
	}
	if r.commands == nil {
		return
	}
	if _, err := r.commands.Handle(ctx, tc, msg); err != nil && ctx.Err() == nil {
		log.Error("Command failed", zap.Error(err))
	}
}

// IsLockedTenant reports whether platformID is a running tenant whose
// profile is locked.
func (r *Registry) IsLockedTenant(ctx context.Context, platformID string) bool {
	if platformID == "" {
		return false
	}
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	tenantID := 0
	for _, s := range sessions {
		if client := s.auth.Client(); client != nil && client.SelfID() == platformID {
			tenantID = s.tenant.ID
			break
		}
	}
	if tenantID == 0 {
		return false
	}

	baseline, err := r.store.GetBaseline(ctx, tenantID)
	if err != nil {
		r.log.Warn("Baseline lookup failed", zap.Int("tenant_id", tenantID), zap.Error(err))
		return false
	}
	return baseline != nil && baseline.Active
}

// Status reports session health. Tenants without a Session report None.
func (r *Registry) Status(tenantID int) entities.SessionStatus {
	if s, ok := r.Get(tenantID); ok {
		return s.Status()
	}
	return entities.SessionStatus{TenantID: tenantID, State: entities.AuthNone}
}

// TenantContext returns the per-call view for tenantID. Client is nil when
// no session is live.
func (r *Registry) TenantContext(tenantID int) TenantContext {
	if s, ok := r.Get(tenantID); ok {
		return s.tenantContext()
	}
	return TenantContext{TenantID: tenantID}
}

// QRCode returns the pending pairing payload, if the platform uses one.
func (r *Registry) QRCode(tenantID int) (string, error) {
	s, ok := r.Get(tenantID)
	if !ok || s.auth.Client() == nil {
		return "", entities.ErrNoSession
	}
	return s.auth.Client().QRCode(), nil
}

// Shutdown stops every session and disconnects its client. Artifacts and
// connected flags are kept so RecoverAll can bring them back.
func (r *Registry) Shutdown() {
	r.shutdown()

	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		r.stopSession(s)
		s.auth.Close()
	}
	r.detached.Wait()
	r.log.Info("All sessions stopped", zap.Int("count", len(sessions)))
}

func (r *Registry) alert(ctx context.Context, text string) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(ctx, text); err != nil {
		r.log.Warn("Operator alert failed", zap.Error(err))
	}
}
