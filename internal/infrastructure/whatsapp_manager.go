package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.uber.org/zap"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"tenantbot/internal/config"
	"tenantbot/internal/interfaces"
	"tenantbot/internal/logger"
)

const (
	devicePrefix = "tenant_"
	deviceSuffix = ".db"
)

// WhatsAppManager builds per-tenant clients and owns their device stores.
// Each tenant gets its own SQLite file under baseDir.
type WhatsAppManager struct {
	baseDir     string
	deviceName  string
	pairTimeout time.Duration
	log         *zap.Logger
}

var (
	_ interfaces.PlatformFactory = (*WhatsAppManager)(nil)
	_ interfaces.ArtifactStore   = (*WhatsAppManager)(nil)
)

// NewWhatsAppManager creates the device directory if needed.
func NewWhatsAppManager(cfg config.SessionConfig, log *zap.Logger) (*WhatsAppManager, error) {
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create devices directory: %w", err)
	}
	return &WhatsAppManager{
		baseDir:     cfg.Dir,
		deviceName:  cfg.DeviceName,
		pairTimeout: cfg.PairTimeout,
		log:         log.Named("whatsapp"),
	}, nil
}

func (m *WhatsAppManager) devicePath(tenantID int) string {
	return filepath.Join(m.baseDir, fmt.Sprintf("%s%d%s", devicePrefix, tenantID, deviceSuffix))
}

// NewClient opens (or creates) the tenant's device store and wraps a fresh
// whatsmeow client around it.
func (m *WhatsAppManager) NewClient(ctx context.Context, tenantID int) (interfaces.PlatformClient, error) {
	log := m.log.With(zap.Int("tenant_id", tenantID))
	dbPath := m.devicePath(tenantID)

	container, err := sqlstore.New(ctx, "sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", logger.WhatsApp(log, "Database"))
	if err != nil {
		return nil, fmt.Errorf("failed to open device store for tenant %d: %w", tenantID, err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to get device for tenant %d: %w", tenantID, err)
	}

	client := whatsmeow.NewClient(device, logger.WhatsApp(log, "Client"))
	return newWhatsAppClient(tenantID, client, container, m.deviceName, m.pairTimeout, log), nil
}

// List returns the tenant ids that have a device file on disk.
func (m *WhatsAppManager) List(ctx context.Context) ([]int, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var ids []int
	for _, e := range entries {
		if id, ok := parseDeviceFile(e.Name()); ok && !e.IsDir() {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (m *WhatsAppManager) Exists(tenantID int) bool {
	_, err := os.Stat(m.devicePath(tenantID))
	return err == nil
}

// Delete removes the device file and its SQLite journals.
func (m *WhatsAppManager) Delete(ctx context.Context, tenantID int) error {
	base := m.devicePath(tenantID)
	var errs []error
	for _, path := range []string{base, base + "-wal", base + "-shm", base + "-journal"} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to delete device for tenant %d: %w", tenantID, err)
	}
	m.log.Info("Device artifact deleted", zap.Int("tenant_id", tenantID))
	return nil
}

func parseDeviceFile(name string) (int, bool) {
	if !strings.HasPrefix(name, devicePrefix) || !strings.HasSuffix(name, deviceSuffix) {
		return 0, false
	}
	id, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, devicePrefix), deviceSuffix))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
