package usecases

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"tenantbot/internal/entities"
	"tenantbot/internal/interfaces"
)

// Validation bounds for tenant-editable rules.
const (
	MinRulePenalty        = 1
	MaxRulePenalty        = 100
	MaxEnergyCost         = 100
	MinCorrectionPenalty  = 1
	MaxCorrectionPenalty  = 50
	MaxProfilePenalty     = 100
	MaxPhraseLength       = 200
	MaxPowerMessageLength = 1000
)

// ItemResult is the outcome of one item in a batch update.
type ItemResult struct {
	Index int    `json:"index"`
	ID    int    `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// RuleService validates and persists tenant rule tables.
type RuleService struct {
	rules    interfaces.RuleStore
	profiles interfaces.ProfileStore
	log      *zap.Logger
}

func NewRuleService(rules interfaces.RuleStore, profiles interfaces.ProfileStore, log *zap.Logger) *RuleService {
	return &RuleService{rules: rules, profiles: profiles, log: log}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", entities.ErrInvalidRule, fmt.Sprintf(format, args...))
}

func checkPhrase(phrase string) (string, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return "", invalid("phrase must not be empty")
	}
	if len(phrase) > MaxPhraseLength {
		return "", invalid("phrase longer than %d bytes", MaxPhraseLength)
	}
	return phrase, nil
}

func checkPenalty(penalty, lo, hi int) error {
	if penalty < lo || penalty > hi {
		return invalid("penalty must be between %d and %d", lo, hi)
	}
	return nil
}

func (s *RuleService) ListBadwords(ctx context.Context, tenantID int) ([]entities.BadwordRule, error) {
	return s.rules.ListBadwords(ctx, tenantID)
}

func (s *RuleService) UpsertBadword(ctx context.Context, tenantID int, rule entities.BadwordRule) (entities.BadwordRule, error) {
	phrase, err := checkPhrase(rule.Phrase)
	if err != nil {
		return rule, err
	}
	if err := checkPenalty(rule.Penalty, MinRulePenalty, MaxRulePenalty); err != nil {
		return rule, err
	}
	rule.TenantID, rule.Phrase = tenantID, phrase
	return s.rules.UpsertBadword(ctx, rule)
}

// UpsertBadwords stores each rule independently; one bad item does not stop the rest.
func (s *RuleService) UpsertBadwords(ctx context.Context, tenantID int, rules []entities.BadwordRule) []ItemResult {
	return batch(rules, func(r entities.BadwordRule) (int, error) {
		saved, err := s.UpsertBadword(ctx, tenantID, r)
		return saved.ID, err
	}, s.logBatch(tenantID, "badwords"))
}

func (s *RuleService) DeleteBadword(ctx context.Context, tenantID, id int) error {
	return s.rules.DeleteBadword(ctx, tenantID, id)
}

func (s *RuleService) ListRedactions(ctx context.Context, tenantID int) ([]entities.RedactionRule, error) {
	return s.rules.ListRedactions(ctx, tenantID)
}

func (s *RuleService) UpsertRedaction(ctx context.Context, tenantID int, rule entities.RedactionRule) (entities.RedactionRule, error) {
	original, err := checkPhrase(rule.Original)
	if err != nil {
		return rule, err
	}
	if len(rule.Replacement) > MaxPhraseLength {
		return rule, invalid("replacement longer than %d bytes", MaxPhraseLength)
	}
	if err := checkPenalty(rule.Penalty, MinRulePenalty, MaxRulePenalty); err != nil {
		return rule, err
	}
	rule.TenantID, rule.Original = tenantID, original
	return s.rules.UpsertRedaction(ctx, rule)
}

func (s *RuleService) UpsertRedactions(ctx context.Context, tenantID int, rules []entities.RedactionRule) []ItemResult {
	return batch(rules, func(r entities.RedactionRule) (int, error) {
		saved, err := s.UpsertRedaction(ctx, tenantID, r)
		return saved.ID, err
	}, s.logBatch(tenantID, "redactions"))
}

func (s *RuleService) DeleteRedaction(ctx context.Context, tenantID, id int) error {
	return s.rules.DeleteRedaction(ctx, tenantID, id)
}

func (s *RuleService) ListWhitelist(ctx context.Context, tenantID int) ([]entities.WhitelistPhrase, error) {
	return s.rules.ListWhitelist(ctx, tenantID)
}

func (s *RuleService) UpsertWhitelist(ctx context.Context, tenantID int, phrase entities.WhitelistPhrase) (entities.WhitelistPhrase, error) {
	text, err := checkPhrase(phrase.Phrase)
	if err != nil {
		return phrase, err
	}
	phrase.TenantID, phrase.Phrase = tenantID, text
	return s.rules.UpsertWhitelist(ctx, phrase)
}

func (s *RuleService) UpsertWhitelistBatch(ctx context.Context, tenantID int, phrases []entities.WhitelistPhrase) []ItemResult {
	return batch(phrases, func(p entities.WhitelistPhrase) (int, error) {
		saved, err := s.UpsertWhitelist(ctx, tenantID, p)
		return saved.ID, err
	}, s.logBatch(tenantID, "whitelist"))
}

func (s *RuleService) DeleteWhitelist(ctx context.Context, tenantID, id int) error {
	return s.rules.DeleteWhitelist(ctx, tenantID, id)
}

// ListEnergyCosts returns the tenant's table sorted by content type.
func (s *RuleService) ListEnergyCosts(ctx context.Context, tenantID int) ([]entities.EnergyCost, error) {
	costs, err := s.rules.ListEnergyCosts(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	sort.Slice(costs, func(i, j int) bool { return costs[i].ContentType < costs[j].ContentType })
	return costs, nil
}

func (s *RuleService) SetEnergyCost(ctx context.Context, tenantID int, cost entities.EnergyCost) error {
	if _, known := entities.DefaultEnergyCosts[cost.ContentType]; !known {
		return invalid("unknown content type %q", cost.ContentType)
	}
	if cost.Cost < 0 || cost.Cost > MaxEnergyCost {
		return invalid("cost must be between 0 and %d", MaxEnergyCost)
	}
	cost.TenantID = tenantID
	return s.rules.UpsertEnergyCost(ctx, cost)
}

func (s *RuleService) SetEnergyCosts(ctx context.Context, tenantID int, costs []entities.EnergyCost) []ItemResult {
	return batch(costs, func(c entities.EnergyCost) (int, error) {
		return 0, s.SetEnergyCost(ctx, tenantID, c)
	}, s.logBatch(tenantID, "energy_costs"))
}

func (s *RuleService) DeleteEnergyCost(ctx context.Context, tenantID int, contentType entities.ContentType) error {
	return s.rules.DeleteEnergyCost(ctx, tenantID, contentType)
}

// SeedDefaultCosts fills in every content type the tenant has no row for.
func (s *RuleService) SeedDefaultCosts(ctx context.Context, tenantID int) (int, error) {
	existing, err := s.rules.ListEnergyCosts(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	have := make(map[entities.ContentType]bool, len(existing))
	for _, c := range existing {
		have[c.ContentType] = true
	}

	seeded := 0
	for contentType, cost := range entities.DefaultEnergyCosts {
		if have[contentType] {
			continue
		}
		if err := s.rules.UpsertEnergyCost(ctx, entities.EnergyCost{TenantID: tenantID, ContentType: contentType, Cost: cost}); err != nil {
			return seeded, err
		}
		seeded++
	}
	if seeded > 0 {
		s.log.Info("Seeded default energy costs", zap.Int("tenant_id", tenantID), zap.Int("count", seeded))
	}
	return seeded, nil
}

func (s *RuleService) GetAutocorrect(ctx context.Context, tenantID int) (entities.AutocorrectSetting, error) {
	return s.rules.GetAutocorrect(ctx, tenantID)
}

func (s *RuleService) SetAutocorrect(ctx context.Context, tenantID int, setting entities.AutocorrectSetting) error {
	if err := checkPenalty(setting.PenaltyPerCorrection, MinCorrectionPenalty, MaxCorrectionPenalty); err != nil {
		return err
	}
	setting.TenantID = tenantID
	return s.rules.SetAutocorrect(ctx, setting)
}

func (s *RuleService) ListPowerMessages(ctx context.Context, tenantID int) ([]entities.PowerMessage, error) {
	return s.rules.ListPowerMessages(ctx, tenantID)
}

func (s *RuleService) UpsertPowerMessage(ctx context.Context, tenantID int, msg entities.PowerMessage) (entities.PowerMessage, error) {
	msg.Text = strings.TrimSpace(msg.Text)
	if msg.Text == "" {
		return msg, invalid("notice must not be empty")
	}
	if len(msg.Text) > MaxPowerMessageLength {
		return msg, invalid("notice longer than %d bytes", MaxPowerMessageLength)
	}
	msg.TenantID = tenantID
	return s.rules.UpsertPowerMessage(ctx, msg)
}

func (s *RuleService) DeletePowerMessage(ctx context.Context, tenantID, id int) error {
	return s.rules.DeletePowerMessage(ctx, tenantID, id)
}

func (s *RuleService) GetChatScope(ctx context.Context, tenantID int) (entities.ChatScope, error) {
	return s.rules.GetChatScope(ctx, tenantID)
}

// SetChatScope replaces the chat list. Duplicate and blank entries are dropped.
func (s *RuleService) SetChatScope(ctx context.Context, tenantID int, scope entities.ChatScope) error {
	switch scope.Mode {
	case entities.ChatListBlacklist, entities.ChatListWhitelist:
	default:
		return invalid("unknown chat list mode %q", scope.Mode)
	}
	seen := make(map[string]bool, len(scope.Chats))
	chats := make([]string, 0, len(scope.Chats))
	for _, c := range scope.Chats {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		chats = append(chats, c)
	}
	scope.Chats = chats
	return s.rules.SetChatScope(ctx, tenantID, scope)
}

func (s *RuleService) GetProtection(ctx context.Context, tenantID int) (entities.ProtectionSettings, error) {
	return s.profiles.GetProtection(ctx, tenantID)
}

func (s *RuleService) SetProtection(ctx context.Context, tenantID int, settings entities.ProtectionSettings) error {
	if settings.Penalty < 0 || settings.Penalty > MaxProfilePenalty {
		return invalid("profile penalty must be between 0 and %d", MaxProfilePenalty)
	}
	settings.TenantID = tenantID
	return s.profiles.SetProtection(ctx, settings)
}

func (s *RuleService) logBatch(tenantID int, table string) func([]ItemResult) {
	return func(results []ItemResult) {
		failed := 0
		for _, r := range results {
			if r.Error != "" {
				failed++
			}
		}
		s.log.Info("Batch rule update",
			zap.Int("tenant_id", tenantID), zap.String("table", table),
			zap.Int("items", len(results)), zap.Int("failed", failed))
	}
}

func batch[T any](items []T, save func(T) (int, error), done func([]ItemResult)) []ItemResult {
	results := make([]ItemResult, len(items))
	for i, item := range items {
		results[i].Index = i
		id, err := save(item)
		if err != nil {
			results[i].Error = err.Error()
			continue
		}
		results[i].ID = id
	}
	done(results)
	return results
}
