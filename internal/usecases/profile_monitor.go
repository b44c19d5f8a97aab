package usecases

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"tenantbot/internal/entities"
	"tenantbot/internal/interfaces"
	"tenantbot/internal/metrics"
)

// Reconcile triggers.
const (
	TriggerEvent = "event"
	TriggerPoll  = "poll"
)

// ProfileStatus is the protection view for one tenant.
type ProfileStatus struct {
	Protection entities.ProtectionSettings `json:"protection"`
	Baseline   *entities.ProfileBaseline   `json:"baseline,omitempty"`
	Live       *entities.Profile           `json:"live,omitempty"`
	Changed    bool                        `json:"changed"`
}

// ProfileMonitor keeps a locked tenant's profile at its baseline.
type ProfileMonitor struct {
	profiles interfaces.ProfileStore
	energy   *EnergyService
	flood    *FloodWaiter
	notifier interfaces.Notifier
	log      *zap.Logger
	metrics  *metrics.Metrics
	photoDir string
	interval time.Duration
	now      func() time.Time
}

func NewProfileMonitor(
	profiles interfaces.ProfileStore,
	energy *EnergyService,
	flood *FloodWaiter,
	notifier interfaces.Notifier,
	log *zap.Logger,
	m *metrics.Metrics,
	photoDir string,
	interval time.Duration,
) *ProfileMonitor {
	return &ProfileMonitor{
		profiles: profiles,
		energy:   energy,
		flood:    flood,
		notifier: notifier,
		log:      log,
		metrics:  m,
		photoDir: photoDir,
		interval: interval,
		now:      time.Now,
	}
}

// Activate locks the profile after authentication. It returns nil when
// protection is disabled for the tenant.
func (m *ProfileMonitor) Activate(ctx context.Context, tc TenantContext) (*entities.ProfileBaseline, error) {
	settings, err := m.profiles.GetProtection(ctx, tc.TenantID)
	if err != nil {
		return nil, err
	}
	if !settings.Enabled {
		return nil, nil
	}
	return m.CaptureBaseline(ctx, tc)
}

// CaptureBaseline persists the live profile as the baseline unless an
// active one already exists. A missing baseline photo file is fetched again.
func (m *ProfileMonitor) CaptureBaseline(ctx context.Context, tc TenantContext) (*entities.ProfileBaseline, error) {
	log := m.log.With(zap.Int("tenant_id", tc.TenantID), zap.String("op", "capture_baseline"))

	live, err := tc.Client.GetFullProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	existing, err := m.profiles.GetBaseline(ctx, tc.TenantID)
	if err != nil {
		return nil, err
	}

	if existing != nil && existing.Active {
		if existing.PhotoID != "" && !fileExists(existing.PhotoPath) {
			m.refetchPhoto(ctx, tc, existing, live, log)
		}
		log.Info("Loaded existing profile baseline")
		return existing, nil
	}

	return m.saveBaseline(ctx, tc, live, log)
}

// SaveCurrentAsBaseline replaces the baseline with the live profile.
func (m *ProfileMonitor) SaveCurrentAsBaseline(ctx context.Context, tc TenantContext) (*entities.ProfileBaseline, error) {
	log := m.log.With(zap.Int("tenant_id", tc.TenantID), zap.String("op", "save_baseline"))
	live, err := tc.Client.GetFullProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	return m.saveBaseline(ctx, tc, live, log)
}

func (m *ProfileMonitor) saveBaseline(ctx context.Context, tc TenantContext, live entities.Profile, log *zap.Logger) (*entities.ProfileBaseline, error) {
	baseline := entities.ProfileBaseline{
		TenantID:  tc.TenantID,
		FirstName: live.FirstName,
		LastName:  live.LastName,
		Bio:       live.Bio,
		PhotoID:   live.PhotoID,
		LockedAt:  m.now(),
		Active:    true,
	}
	if live.PhotoID != "" {
		path, err := m.downloadPhoto(ctx, tc)
		if err != nil {
			log.Warn("Baseline photo not stored, photo reverts will be skipped", zap.Error(err))
		} else {
			baseline.PhotoPath = path
		}
	}
	if err := m.profiles.SaveBaseline(ctx, baseline); err != nil {
		return nil, err
	}
	log.Info("Profile locked", zap.Bool("has_photo", baseline.PhotoID != ""))
	return &baseline, nil
}

// refetchPhoto restores the local photo copy. It only downloads when the
// live photo is still the baseline one.
func (m *ProfileMonitor) refetchPhoto(ctx context.Context, tc TenantContext, baseline *entities.ProfileBaseline, live entities.Profile, log *zap.Logger) {
	if live.PhotoID != baseline.PhotoID {
		log.Warn("Baseline photo file missing and live photo differs, cannot refetch")
		return
	}
	path, err := m.downloadPhoto(ctx, tc)
	if err != nil {
		log.Warn("Failed to refetch baseline photo", zap.Error(err))
		return
	}
	baseline.PhotoPath = path
	if err := m.profiles.SaveBaseline(ctx, *baseline); err != nil {
		log.Error("Failed to persist refetched photo path", zap.Error(err))
		return
	}
	log.Info("Baseline photo refetched")
}

func (m *ProfileMonitor) downloadPhoto(ctx context.Context, tc TenantContext) (string, error) {
	if err := os.MkdirAll(m.photoDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(m.photoDir, fmt.Sprintf("tenant_%d.jpg", tc.TenantID))
	if err := tc.Client.DownloadPhoto(ctx, path); err != nil {
		return "", err
	}
	return path, nil
}

// Reconcile compares the live profile with the active baseline and, on any
// difference, charges the penalty once and reverts. It reports whether a
// revert happened.
func (m *ProfileMonitor) Reconcile(ctx context.Context, tc TenantContext, trigger string) (bool, error) {
	log := m.log.With(zap.Int("tenant_id", tc.TenantID), zap.String("op", "reconcile"), zap.String("trigger", trigger))

	baseline, err := m.profiles.GetBaseline(ctx, tc.TenantID)
	if err != nil {
		return false, err
	}
	if baseline == nil || !baseline.Active {
		return false, nil
	}
	settings, err := m.profiles.GetProtection(ctx, tc.TenantID)
	if err != nil {
		return false, err
	}
	if !settings.Enabled {
		return false, nil
	}

	live, err := tc.Client.GetFullProfile(ctx)
	if err != nil {
		return false, fmt.Errorf("fetch profile: %w", err)
	}
	diff := entities.DiffProfile(baseline.Profile(), live)
	if !diff.Any() {
		return false, nil
	}

	log.Warn("Profile change detected",
		zap.Bool("first_name_changed", diff.FirstName),
		zap.Bool("last_name_changed", diff.LastName),
		zap.Bool("bio_changed", diff.Bio),
		zap.Bool("photo_changed", diff.Photo))

	m.penalize(ctx, tc.TenantID, settings.Penalty, log)
	m.metrics.ProfileReverts.WithLabelValues(trigger).Inc()

	if err := m.Revert(ctx, tc, baseline, live); err != nil {
		return false, err
	}
	m.alert(ctx, fmt.Sprintf("Profile change reverted for tenant %d", tc.TenantID), log)
	return true, nil
}

// penalize drains to zero when the balance cannot cover the full penalty.
func (m *ProfileMonitor) penalize(ctx context.Context, tenantID, penalty int, log *zap.Logger) {
	if penalty <= 0 {
		return
	}
	info, err := m.energy.Consume(ctx, tenantID, penalty)
	var shortfall *entities.InsufficientEnergyError
	if errors.As(err, &shortfall) {
		info, err = m.energy.RemoveFloor(ctx, tenantID, penalty)
	}
	if err != nil {
		log.Error("Profile penalty failed", zap.Error(err))
		return
	}
	m.metrics.EnergyConsumed.WithLabelValues("profile").Add(float64(penalty))
	log.Info("Profile penalty applied", zap.Int("penalty", penalty), zap.Int("energy", info.Energy))
}

// Revert writes the baseline back to the platform.
func (m *ProfileMonitor) Revert(ctx context.Context, tc TenantContext, baseline *entities.ProfileBaseline, live entities.Profile) error {
	if baseline == nil {
		return entities.ErrNoBaseline
	}
	log := m.log.With(zap.Int("tenant_id", tc.TenantID), zap.String("op", "revert"))
	diff := entities.DiffProfile(baseline.Profile(), live)

	if diff.FirstName || diff.LastName || diff.Bio {
		err := m.flood.Do(ctx, "revert_profile", func(ctx context.Context) error {
			return tc.Client.UpdateProfile(ctx, baseline.FirstName, baseline.LastName, baseline.Bio)
		})
		if err != nil {
			return fmt.Errorf("revert profile text: %w", err)
		}
	}

	if !diff.Photo {
		log.Info("Profile reverted")
		return nil
	}

	if live.PhotoID != "" {
		if err := tc.Client.DeletePhotos(ctx); err != nil {
			return fmt.Errorf("delete photo: %w", err)
		}
	}
	if baseline.PhotoID != "" {
		if err := m.reupload(ctx, tc, baseline, log); err != nil {
			return err
		}
	}

	log.Info("Profile reverted")
	return nil
}

// reupload restores the stored baseline photo and adopts the new photo id.
func (m *ProfileMonitor) reupload(ctx context.Context, tc TenantContext, baseline *entities.ProfileBaseline, log *zap.Logger) error {
	if !fileExists(baseline.PhotoPath) {
		// Nothing to restore; lock the profile without a photo so later
		// passes do not keep flagging the gap.
		log.Warn("Baseline photo file missing, photo not restored")
		baseline.PhotoID = ""
		baseline.PhotoPath = ""
		if err := m.profiles.SaveBaseline(ctx, *baseline); err != nil {
			return fmt.Errorf("drop unrestorable baseline photo: %w", err)
		}
		return nil
	}

	var photoID string
	err := m.flood.Do(ctx, "upload_photo", func(ctx context.Context) error {
		var uerr error
		photoID, uerr = tc.Client.UploadPhoto(ctx, baseline.PhotoPath)
		return uerr
	})
	if err != nil {
		return fmt.Errorf("upload photo: %w", err)
	}

	if photoID != "" && photoID != baseline.PhotoID {
		baseline.PhotoID = photoID
		if err := m.profiles.SaveBaseline(ctx, *baseline); err != nil {
			return fmt.Errorf("refresh baseline photo id: %w", err)
		}
	}
	return nil
}

// Unlock clears the lock flag. A new baseline is captured on the next
// authentication. It reports ErrNoBaseline when none was ever captured.
func (m *ProfileMonitor) Unlock(ctx context.Context, tenantID int) error {
	baseline, err := m.profiles.GetBaseline(ctx, tenantID)
	if err != nil {
		return err
	}
	if baseline == nil {
		return entities.ErrNoBaseline
	}
	if err := m.profiles.SetBaselineActive(ctx, tenantID, false); err != nil {
		return err
	}
	m.log.Info("Profile unlocked", zap.Int("tenant_id", tenantID))
	return nil
}

// Status reports protection state. tc.Client may be nil when no session runs.
func (m *ProfileMonitor) Status(ctx context.Context, tc TenantContext) (ProfileStatus, error) {
	settings, err := m.profiles.GetProtection(ctx, tc.TenantID)
	if err != nil {
		return ProfileStatus{}, err
	}
	baseline, err := m.profiles.GetBaseline(ctx, tc.TenantID)
	if err != nil {
		return ProfileStatus{}, err
	}
	status := ProfileStatus{Protection: settings, Baseline: baseline}
	if tc.Client == nil {
		return status, nil
	}

	live, err := tc.Client.GetFullProfile(ctx)
	if err != nil {
		return status, fmt.Errorf("fetch profile: %w", err)
	}
	status.Live = &live
	if baseline != nil && baseline.Active {
		status.Changed = entities.DiffProfile(baseline.Profile(), live).Any()
	}
	return status, nil
}

// Run polls on a fixed interval and also reconciles whenever signals fires.
// It returns when ctx is cancelled.
func (m *ProfileMonitor) Run(ctx context.Context, tc TenantContext, signals <-chan struct{}) {
	log := m.log.With(zap.Int("tenant_id", tc.TenantID), zap.String("op", "monitor"))
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		trigger := TriggerPoll
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-signals:
			trigger = TriggerEvent
		}
		if _, err := m.Reconcile(ctx, tc, trigger); err != nil && ctx.Err() == nil {
			log.Error("Profile reconcile failed", zap.Error(err))
		}
	}
}

func (m *ProfileMonitor) alert(ctx context.Context, text string, log *zap.Logger) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, text); err != nil {
		log.Warn("Operator alert failed", zap.Error(err))
	}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
