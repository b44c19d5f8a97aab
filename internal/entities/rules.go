package entities

const RedactionMarker = "<redacted>"

type BadwordRule struct {
	ID            int    `json:"id"`
	TenantID      int    `json:"tenant_id"`
	Phrase        string `json:"phrase"`
	Penalty       int    `json:"penalty"`
	CaseSensitive bool   `json:"case_sensitive"`
}

type RedactionRule struct {
	ID            int    `json:"id"`
	TenantID      int    `json:"tenant_id"`
	Original      string `json:"original_phrase"`
	Replacement   string `json:"replacement_phrase"`
	Penalty       int    `json:"penalty"`
	CaseSensitive bool   `json:"case_sensitive"`
}

type WhitelistPhrase struct {
	ID            int    `json:"id"`
	TenantID      int    `json:"tenant_id"`
	Phrase        string `json:"phrase"`
	CaseSensitive bool   `json:"case_sensitive"`
}

type EnergyCost struct {
	TenantID    int         `json:"tenant_id"`
	ContentType ContentType `json:"content_type"`
	Cost        int         `json:"cost"`
}

type AutocorrectSetting struct {
	TenantID             int  `json:"tenant_id"`
	Enabled              bool `json:"enabled"`
	PenaltyPerCorrection int  `json:"penalty_per_correction"`
}

// PowerMessage is a tenant-defined low-energy notice.
type PowerMessage struct {
	ID       int    `json:"id"`
	TenantID int    `json:"tenant_id"`
	Text     string `json:"text"`
	Active   bool   `json:"active"`
}

type ChatListMode string

const (
	ChatListBlacklist ChatListMode = "blacklist"
	ChatListWhitelist ChatListMode = "whitelist"
)

// ChatScope controls which chats the pipeline applies to while the profile is locked.
type ChatScope struct {
	Mode  ChatListMode `json:"mode"`
	Chats []string     `json:"chats"`
}

// Applies reports whether outgoing messages in chatID go through the pipeline.
func (c ChatScope) Applies(chatID string) bool {
	listed := false
	for _, id := range c.Chats {
		if id == chatID {
			listed = true
			break
		}
	}
	if c.Mode == ChatListWhitelist {
		return listed
	}
	return !listed
}

// DefaultEnergyCosts is seeded for every new tenant.
var DefaultEnergyCosts = map[ContentType]int{
	ContentText:       1,
	ContentPhoto:      3,
	ContentVideo:      5,
	ContentAudio:      4,
	ContentVoice:      2,
	ContentDocument:   3,
	ContentSticker:    2,
	ContentAnimation:  3,
	ContentVideoNote:  4,
	ContentLocation:   2,
	ContentContact:    2,
	ContentPoll:       3,
	ContentVenue:      2,
	ContentWebPage:    1,
	ContentMediaGroup: 5,
	ContentDice:       1,
	ContentGame:       2,
}

const DefaultUnknownCost = 1
