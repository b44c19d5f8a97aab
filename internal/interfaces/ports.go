package interfaces

import (
	"context"

	"tenantbot/internal/entities"
)

// EnergyMutator changes a tenant's energy row in place. Returning dirty=false
// skips the write.
type EnergyMutator func(s *entities.EnergyState) (dirty bool, err error)

type TenantStore interface {
	GetTenant(ctx context.Context, tenantID int) (*entities.Tenant, error)
	SetConnected(ctx context.Context, tenantID int, connected bool) error
	ListConnectedTenants(ctx context.Context) ([]entities.Tenant, error)
}

type EnergyStore interface {
	// MutateEnergy runs fn against the current row atomically with respect to
	// every other mutation of the same row.
	MutateEnergy(ctx context.Context, tenantID int, fn EnergyMutator) (entities.EnergyState, error)
}

type RuleStore interface {
	ListBadwords(ctx context.Context, tenantID int) ([]entities.BadwordRule, error)
	UpsertBadword(ctx context.Context, rule entities.BadwordRule) (entities.BadwordRule, error)
	DeleteBadword(ctx context.Context, tenantID, id int) error

	ListRedactions(ctx context.Context, tenantID int) ([]entities.RedactionRule, error)
	UpsertRedaction(ctx context.Context, rule entities.RedactionRule) (entities.RedactionRule, error)
	DeleteRedaction(ctx context.Context, tenantID, id int) error

	ListWhitelist(ctx context.Context, tenantID int) ([]entities.WhitelistPhrase, error)
	UpsertWhitelist(ctx context.Context, phrase entities.WhitelistPhrase) (entities.WhitelistPhrase, error)
	DeleteWhitelist(ctx context.Context, tenantID, id int) error

	ListEnergyCosts(ctx context.Context, tenantID int) ([]entities.EnergyCost, error)
	// GetEnergyCost returns found=false when the tenant has no row for the type.
	GetEnergyCost(ctx context.Context, tenantID int, contentType entities.ContentType) (cost int, found bool, err error)
	UpsertEnergyCost(ctx context.Context, cost entities.EnergyCost) error
	DeleteEnergyCost(ctx context.Context, tenantID int, contentType entities.ContentType) error

	GetAutocorrect(ctx context.Context, tenantID int) (entities.AutocorrectSetting, error)
	SetAutocorrect(ctx context.Context, setting entities.AutocorrectSetting) error

	ListPowerMessages(ctx context.Context, tenantID int) ([]entities.PowerMessage, error)
	UpsertPowerMessage(ctx context.Context, msg entities.PowerMessage) (entities.PowerMessage, error)
	DeletePowerMessage(ctx context.Context, tenantID, id int) error

	GetChatScope(ctx context.Context, tenantID int) (entities.ChatScope, error)
	SetChatScope(ctx context.Context, tenantID int, scope entities.ChatScope) error
}

type ProfileStore interface {
	// GetBaseline returns nil, nil when no baseline exists.
	GetBaseline(ctx context.Context, tenantID int) (*entities.ProfileBaseline, error)
	SaveBaseline(ctx context.Context, baseline entities.ProfileBaseline) error
	SetBaselineActive(ctx context.Context, tenantID int, active bool) error
	ClearBaseline(ctx context.Context, tenantID int) error

	GetProtection(ctx context.Context, tenantID int) (entities.ProtectionSettings, error)
	SetProtection(ctx context.Context, settings entities.ProtectionSettings) error
}

// Store is the full persisted store capability set.
type Store interface {
	TenantStore
	EnergyStore
	RuleStore
	ProfileStore
}

// ArtifactStore owns the persisted platform session blobs.
type ArtifactStore interface {
	List(ctx context.Context) ([]int, error)
	Exists(tenantID int) bool
	Delete(ctx context.Context, tenantID int) error
}

// PlatformClient is one tenant's connection to the messaging platform.
type PlatformClient interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
	IsAuthorized(ctx context.Context) (bool, error)

	RequestCode(ctx context.Context, phone string) (entities.CodeDelivery, error)
	SignIn(ctx context.Context, code string) (entities.SignInResult, error)
	SignInPassword(ctx context.Context, password string) error
	// Logout invalidates the session on the platform side.
	Logout(ctx context.Context) error
	QRCode() string

	// SelfID is the platform id of the signed-in account.
	SelfID() string
	SelfName() string

	GetFullProfile(ctx context.Context) (entities.Profile, error)
	UpdateProfile(ctx context.Context, firstName, lastName, bio string) error
	UploadPhoto(ctx context.Context, path string) (photoID string, err error)
	DeletePhotos(ctx context.Context) error
	DownloadPhoto(ctx context.Context, dst string) error

	NewMessageID() string
	SendMessage(ctx context.Context, chatID, messageID, text string) error
	DeleteMessage(ctx context.Context, chatID, messageID string) error

	// Subscribe registers the sink for outgoing, incoming and account-update events.
	Subscribe(sink func(entities.PlatformEvent))
}

// PlatformFactory builds a fresh client bound to a tenant's session artifact.
type PlatformFactory interface {
	NewClient(ctx context.Context, tenantID int) (PlatformClient, error)
}

type TextCorrector interface {
	Correct(ctx context.Context, text string) (corrected string, corrections int, err error)
}

// Notifier forwards operator alerts.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
