package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"tenantbot/internal/entities"
	"tenantbot/internal/interfaces"
	"tenantbot/internal/metrics"
)

// Authenticator drives one tenant's platform client to the authenticated
// state. None and Failed are the entry points for a new attempt.
type Authenticator struct {
	tenantID  int
	factory   interfaces.PlatformFactory
	artifacts interfaces.ArtifactStore
	flood     *FloodWaiter
	log       *zap.Logger
	metrics   *metrics.Metrics

	mu     sync.Mutex
	state  entities.AuthState
	client interfaces.PlatformClient
}

func NewAuthenticator(
	tenantID int,
	factory interfaces.PlatformFactory,
	artifacts interfaces.ArtifactStore,
	flood *FloodWaiter,
	log *zap.Logger,
	m *metrics.Metrics,
) *Authenticator {
	return &Authenticator{
		tenantID:  tenantID,
		factory:   factory,
		artifacts: artifacts,
		flood:     flood,
		log:       log.With(zap.Int("tenant_id", tenantID)),
		metrics:   m,
		state:     entities.AuthNone,
	}
}

func (a *Authenticator) State() entities.AuthState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Client returns the current platform client, nil before the first attempt.
func (a *Authenticator) Client() interfaces.PlatformClient {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client
}

// RequestCode opens a fresh connection and asks the platform for a
// verification code. An already authorized session short-circuits.
func (a *Authenticator) RequestCode(ctx context.Context, phone string) (entities.CodeDelivery, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	log := a.log.With(zap.String("op", "request_code"))

	delivery, err := a.requestCode(ctx, phone)
	if errors.Is(err, entities.ErrDuplicatedSessionKey) {
		log.Warn("Session key duplicated, retrying with a fresh artifact")
		a.discard()
		if derr := a.artifacts.Delete(ctx, a.tenantID); derr != nil {
			log.Error("Failed to delete session artifact", zap.Error(derr))
		}
		delivery, err = a.requestCode(ctx, phone)
	}
	if err != nil {
		log.Error("Code request failed", zap.Error(err))
		a.discard()
		a.transition(entities.AuthFailed)
		return entities.CodeDelivery{}, err
	}

	if delivery.AlreadyAuthorized {
		log.Info("Session already authorized")
		a.transition(entities.AuthAuthenticated)
		return delivery, nil
	}
	log.Info("Verification code sent", zap.String("method", delivery.Method), zap.Int("code_length", delivery.CodeLength))
	a.transition(entities.AuthCodeSent)
	return delivery, nil
}

func (a *Authenticator) requestCode(ctx context.Context, phone string) (entities.CodeDelivery, error) {
	a.discard()

	client, err := a.factory.NewClient(ctx, a.tenantID)
	if err != nil {
		return entities.CodeDelivery{}, fmt.Errorf("create client: %w", err)
	}
	a.client = client

	if err := client.Connect(ctx); err != nil {
		return entities.CodeDelivery{}, fmt.Errorf("connect: %w", err)
	}
	authorized, err := client.IsAuthorized(ctx)
	if err != nil {
		return entities.CodeDelivery{}, fmt.Errorf("check authorization: %w", err)
	}
	if authorized {
		return entities.CodeDelivery{AlreadyAuthorized: true}, nil
	}

	var delivery entities.CodeDelivery
	err = a.flood.Do(ctx, "request_code", func(ctx context.Context) error {
		var rerr error
		delivery, rerr = client.RequestCode(ctx, phone)
		return rerr
	})
	return delivery, err
}

// SubmitCode signs in with the verification code. A second-factor
// requirement moves to Requires2FA. An invalid code leaves the state alone.
func (a *Authenticator) SubmitCode(ctx context.Context, code string) (entities.AuthState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	log := a.log.With(zap.String("op", "submit_code"))

	if a.state != entities.AuthCodeSent || a.client == nil {
		return a.state, entities.ErrNoCodeRequested
	}

	result, err := a.client.SignIn(ctx, code)
	switch {
	case errors.Is(err, entities.ErrInvalidCode):
		log.Warn("Invalid verification code")
		return a.state, err
	case err != nil:
		log.Error("Sign in failed", zap.Error(err))
		a.transition(entities.AuthFailed)
		return a.state, fmt.Errorf("sign in: %w", err)
	case result.NeedsPassword:
		log.Info("Code accepted, password required")
		a.transition(entities.AuthRequires2FA)
	default:
		log.Info("Signed in")
		a.transition(entities.AuthAuthenticated)
	}
	return a.state, nil
}

// SubmitPassword completes a second-factor sign in. Failures keep the state.
func (a *Authenticator) SubmitPassword(ctx context.Context, password string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	log := a.log.With(zap.String("op", "submit_password"))

	if a.state != entities.AuthRequires2FA || a.client == nil {
		return entities.ErrNoPasswordPending
	}
	if err := a.client.SignInPassword(ctx, password); err != nil {
		log.Warn("Password sign in failed", zap.Error(err))
		return err
	}
	log.Info("Signed in with password")
	a.transition(entities.AuthAuthenticated)
	return nil
}

// Restore reconnects from the persisted artifact without contacting the
// user. An artifact the platform no longer accepts is deleted.
func (a *Authenticator) Restore(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	log := a.log.With(zap.String("op", "restore"))

	if !a.artifacts.Exists(a.tenantID) {
		log.Warn("No session artifact to restore")
		return false, nil
	}
	a.discard()

	client, err := a.factory.NewClient(ctx, a.tenantID)
	if err != nil {
		a.transition(entities.AuthFailed)
		return false, fmt.Errorf("create client: %w", err)
	}
	a.client = client

	if err := client.Connect(ctx); err != nil {
		a.discard()
		if errors.Is(err, entities.ErrDuplicatedSessionKey) {
			a.dropArtifact(ctx, log)
		}
		a.transition(entities.AuthFailed)
		return false, fmt.Errorf("connect: %w", err)
	}
	authorized, err := client.IsAuthorized(ctx)
	if err != nil {
		a.discard()
		a.transition(entities.AuthFailed)
		return false, fmt.Errorf("check authorization: %w", err)
	}
	if !authorized {
		log.Warn("Session artifact exists but is no longer authorized")
		a.discard()
		a.dropArtifact(ctx, log)
		a.transition(entities.AuthNone)
		return false, nil
	}

	log.Info("Session restored")
	a.transition(entities.AuthAuthenticated)
	return true, nil
}

// Logout signs the account out on the platform side when it is signed in.
func (a *Authenticator) Logout(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil || a.state != entities.AuthAuthenticated {
		return nil
	}
	return a.client.Logout(ctx)
}

// Close drops the client and returns to None.
func (a *Authenticator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.discard()
	a.transition(entities.AuthNone)
}

func (a *Authenticator) dropArtifact(ctx context.Context, log *zap.Logger) {
	if err := a.artifacts.Delete(ctx, a.tenantID); err != nil {
		log.Error("Failed to delete session artifact", zap.Error(err))
	}
}

// discard disconnects and forgets the client. Called with mu held.
func (a *Authenticator) discard() {
	if a.client == nil {
		return
	}
	if a.client.IsConnected() {
		a.client.Disconnect()
	}
	a.client = nil
}

// transition is called with mu held.
func (a *Authenticator) transition(to entities.AuthState) {
	if a.state == to {
		return
	}
	a.log.Debug("Auth state changed", zap.String("from", string(a.state)), zap.String("to", string(to)))
	a.state = to
	a.metrics.AuthTransitions.WithLabelValues(string(to)).Inc()
}
