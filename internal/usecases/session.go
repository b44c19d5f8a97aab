package usecases

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"tenantbot/internal/entities"
	"tenantbot/internal/interfaces"
)

// Session is one tenant's platform connection plus its two background
// tasks: the message listener and the profile monitor.
type Session struct {
	tenant  entities.Tenant
	auth    *Authenticator
	origins *OriginLedger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	// client whose event sink feeds the running listener
	subscribed interfaces.PlatformClient
}

func (s *Session) TenantID() int { return s.tenant.ID }

func (s *Session) Auth() *Authenticator { return s.auth }

func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Session) Status() entities.SessionStatus {
	client := s.auth.Client()
	return entities.SessionStatus{
		TenantID:  s.tenant.ID,
		State:     s.auth.State(),
		Connected: client != nil && client.IsConnected(),
		Running:   s.Running(),
	}
}

// tenantContext is the per-call view handed to handlers.
func (s *Session) tenantContext() TenantContext {
	return TenantContext{
		TenantID: s.tenant.ID,
		Username: s.tenant.Username,
		Client:   s.auth.Client(),
		Origins:  s.origins,
	}
}

// start launches the listener and monitor under a context derived from
// parent. It is a no-op when the tasks already run.
func (s *Session) start(parent context.Context, r *Registry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}

	tc := s.tenantContext()
	if tc.Client == nil {
		return false
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.running = true
	s.subscribed = tc.Client

	events := make(chan entities.PlatformEvent, r.cfg.EventBuffer)
	signals := make(chan struct{}, 1)
	log := r.log.With(zap.Int("tenant_id", s.tenant.ID))

	tc.Client.Subscribe(func(evt entities.PlatformEvent) {
		select {
		case events <- evt:
		default:
			log.Warn("Platform event dropped, listener behind", zap.Int("kind", int(evt.Kind)))
		}
	})

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		r.listen(ctx, tc, events, signals)
	}()
	go func() {
		defer s.wg.Done()
		r.monitor.Run(ctx, tc, signals)
	}()
	return true
}

// stop cancels both tasks together and waits for them to return.
func (s *Session) stop() bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return false
	}
	if s.subscribed != nil {
		s.subscribed.Subscribe(nil)
		s.subscribed = nil
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	return true
}
