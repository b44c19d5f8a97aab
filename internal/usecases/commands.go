package usecases

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"tenantbot/internal/entities"
	"tenantbot/internal/interfaces"
	"tenantbot/internal/metrics"
)

var (
	adminQuoted   = regexp.MustCompile(`(?i)^/admin\s+@([\p{L}\p{N}_]+)\s+say\s+"([^"]*)"$`)
	adminUnquoted = regexp.MustCompile(`(?i)^/admin\s+@([\p{L}\p{N}_]+)\s+say\s+(.+)$`)
)

// SenderDirectory tells the command handler about other tenants.
type SenderDirectory interface {
	// IsLockedTenant reports whether platformID belongs to a running tenant
	// whose profile is locked.
	IsLockedTenant(ctx context.Context, platformID string) bool
}

type replyLimiter interface {
	Allow(key string) bool
}

// CommandHandler answers command tokens seen in incoming messages.
type CommandHandler struct {
	energy    *EnergyService
	profiles  interfaces.ProfileStore
	templates *Templates
	limiter   replyLimiter
	directory SenderDirectory
	log       *zap.Logger
	metrics   *metrics.Metrics
}

func NewCommandHandler(
	energy *EnergyService,
	profiles interfaces.ProfileStore,
	templates *Templates,
	limiter replyLimiter,
	log *zap.Logger,
	m *metrics.Metrics,
) *CommandHandler {
	return &CommandHandler{
		energy:    energy,
		profiles:  profiles,
		templates: templates,
		limiter:   limiter,
		log:       log,
		metrics:   m,
	}
}

// SetDirectory wires the sender lookup once the registry exists.
func (h *CommandHandler) SetDirectory(d SenderDirectory) {
	h.directory = d
}

// Handle returns the command name it recognised, or "" for ordinary content.
func (h *CommandHandler) Handle(ctx context.Context, tc TenantContext, evt *entities.MessageEvent) (string, error) {
	text := strings.TrimSpace(evt.Text)
	if !strings.HasPrefix(text, "/") {
		return "", nil
	}
	lower := strings.ToLower(text)
	log := h.log.With(zap.Int("tenant_id", tc.TenantID), zap.String("op", "command"), zap.String("chat_id", evt.ChatID))

	var command, reply string
	switch {
	case strings.HasPrefix(lower, "/grant "):
		return "grant", h.grant(ctx, tc, evt, text, log)
	case strings.HasPrefix(lower, "/admin "):
		return "admin", h.adminSay(ctx, tc, evt, text, log)
	case lower == "/flip":
		command, reply = "flip", h.templates.Flip()
	case lower == "/beep":
		command, reply = "beep", h.templates.Beep()
	case lower == "/dance":
		command, reply = "dance", h.templates.Dance()
	case lower == "/availablepower":
		info, err := h.energy.GetEnergy(ctx, tc.TenantID)
		if err != nil {
			return "availablepower", err
		}
		command, reply = "availablepower", h.templates.PowerStatus(info)
	default:
		return "", nil
	}

	return command, h.reply(ctx, tc, evt.ChatID, command, reply, log)
}

func (h *CommandHandler) reply(ctx context.Context, tc TenantContext, chatID, command, text string, log *zap.Logger) error {
	if !h.limiter.Allow(fmt.Sprintf("%d|%s", tc.TenantID, chatID)) {
		log.Debug("Command reply throttled", zap.String("command", command))
		return nil
	}
	if err := tc.sendTagged(ctx, chatID, text, entities.OriginSystem); err != nil {
		return fmt.Errorf("send %s reply: %w", command, err)
	}
	h.metrics.CommandsHandled.WithLabelValues(command).Inc()
	log.Info("Command answered", zap.String("command", command))
	return nil
}

// grant handles "/grant @name amount". Only the named tenant's own session
// acts on it, so a group chat with several tenants credits once.
func (h *CommandHandler) grant(ctx context.Context, tc TenantContext, evt *entities.MessageEvent, text string, log *zap.Logger) error {
	parts := strings.Fields(text)
	if len(parts) != 3 {
		log.Info("Grant ignored, malformed")
		return nil
	}
	target := strings.TrimPrefix(parts[1], "@")
	amount, err := strconv.Atoi(parts[2])
	if err != nil || amount <= 0 {
		log.Info("Grant denied, invalid amount")
		return nil
	}

	ok, err := h.authorizeTarget(ctx, tc, evt, target, "grant", log)
	if err != nil || !ok {
		return err
	}

	info, added, err := h.energy.Add(ctx, tc.TenantID, amount)
	if err != nil {
		return err
	}
	log.Info("Power granted", zap.Int("added", added), zap.Int("energy", info.Energy), zap.Int("max_energy", info.MaxEnergy))
	return h.reply(ctx, tc, evt.ChatID, "grant", h.templates.PowerGranted(), log)
}

// adminSay handles `/admin @name say "text"` and the unquoted form by
// sending the text as the named tenant in the same chat.
func (h *CommandHandler) adminSay(ctx context.Context, tc TenantContext, evt *entities.MessageEvent, text string, log *zap.Logger) error {
	match := adminQuoted.FindStringSubmatch(text)
	if match == nil {
		match = adminUnquoted.FindStringSubmatch(text)
	}
	if match == nil || strings.TrimSpace(match[2]) == "" {
		log.Info("Admin override ignored, malformed")
		return nil
	}

	ok, err := h.authorizeTarget(ctx, tc, evt, match[1], "admin", log)
	if err != nil || !ok {
		return err
	}
	if err := tc.sendTagged(ctx, evt.ChatID, match[2], entities.OriginSystem); err != nil {
		return fmt.Errorf("send admin override: %w", err)
	}
	h.metrics.CommandsHandled.WithLabelValues("admin").Inc()
	log.Info("Admin override sent", zap.String("sender_id", evt.SenderID))
	return nil
}

// authorizeTarget applies the rules shared by targeted commands. Only the
// named tenant's own session acts, the sender must not be a locked tenant,
// and the target must be locked.
func (h *CommandHandler) authorizeTarget(ctx context.Context, tc TenantContext, evt *entities.MessageEvent, target, command string, log *zap.Logger) (bool, error) {
	if !h.isSelf(tc, target) {
		return false, nil
	}
	if h.directory != nil && h.directory.IsLockedTenant(ctx, evt.SenderID) {
		log.Info("Command denied, sender profile locked", zap.String("command", command))
		return false, nil
	}
	baseline, err := h.profiles.GetBaseline(ctx, tc.TenantID)
	if err != nil {
		return false, err
	}
	if baseline == nil || !baseline.Active {
		log.Info("Command denied, target has no active session lock", zap.String("command", command))
		return false, nil
	}
	return true, nil
}

func (h *CommandHandler) isSelf(tc TenantContext, target string) bool {
	if target == "" {
		return false
	}
	if strings.EqualFold(target, tc.Username) {
		return true
	}
	name := tc.Client.SelfName()
	return name != "" && strings.EqualFold(target, name)
}
