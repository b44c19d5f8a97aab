package usecases

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"tenantbot/internal/entities"
	"tenantbot/internal/interfaces"
	"tenantbot/internal/metrics"
)

// TenantContext is what a session hands its handlers for one call.
type TenantContext struct {
	TenantID int
	Username string
	Client   interfaces.PlatformClient
	Origins  *OriginLedger
}

// sendTagged records the origin before the message exists so the echo of
// the send is recognised.
func (tc TenantContext) sendTagged(ctx context.Context, chatID, text string, origin entities.Origin) error {
	id := tc.Client.NewMessageID()
	tc.Origins.Mark(chatID, id, origin)
	return tc.Client.SendMessage(ctx, chatID, id, text)
}

// Skip reasons for messages the pipeline leaves alone.
const (
	SkipRewrite   = "rewrite"
	SkipOOC       = "ooc"
	SkipChatScope = "chat_scope"
)

// Outcome describes what the pipeline did with one outgoing message.
type Outcome struct {
	Skipped     string
	ContentType entities.ContentType
	Cost        int
	System      bool
	Whitelisted bool
	Gated       bool
	Rewritten   bool
	FinalText   string

	BadwordPenalty     int
	RedactionPenalty   int
	AutocorrectPenalty int
	BaseCharged        bool
}

// Interceptor runs the ordered outgoing-message pipeline.
type Interceptor struct {
	energy    *EnergyService
	rules     interfaces.RuleStore
	profiles  interfaces.ProfileStore
	corrector interfaces.TextCorrector
	templates *Templates
	log       *zap.Logger
	metrics   *metrics.Metrics
	oocPrefix string
}

func NewInterceptor(
	energy *EnergyService,
	rules interfaces.RuleStore,
	profiles interfaces.ProfileStore,
	corrector interfaces.TextCorrector,
	templates *Templates,
	log *zap.Logger,
	m *metrics.Metrics,
	oocPrefix string,
) *Interceptor {
	return &Interceptor{
		energy:    energy,
		rules:     rules,
		profiles:  profiles,
		corrector: corrector,
		templates: templates,
		log:       log,
		metrics:   m,
		oocPrefix: strings.ToLower(oocPrefix),
	}
}

// Process handles one outgoing message. An error means the pipeline stopped
// before touching the message or the balance.
func (p *Interceptor) Process(ctx context.Context, tc TenantContext, evt *entities.MessageEvent) (Outcome, error) {
	log := p.log.With(zap.Int("tenant_id", tc.TenantID), zap.String("op", "intercept"), zap.String("message_id", evt.ID))
	var out Outcome

	origin := tc.Origins.Lookup(evt.ChatID, evt.ID)
	if origin == entities.OriginRewrite {
		out.Skipped = SkipRewrite
		return out, nil
	}
	out.System = origin == entities.OriginSystem

	if !out.System {
		if p.isOOC(evt.Text) {
			out.Skipped = SkipOOC
			return out, nil
		}
		applies, err := p.chatInScope(ctx, tc.TenantID, evt.ChatID)
		if err != nil {
			return out, err
		}
		if !applies {
			out.Skipped = SkipChatScope
			return out, nil
		}
	}

	// 1. classify
	out.ContentType = Classify(evt)
	cost, err := p.costFor(ctx, tc.TenantID, out.ContentType)
	if err != nil {
		return out, err
	}
	out.Cost = cost
	p.metrics.MessagesProcessed.WithLabelValues(string(out.ContentType)).Inc()

	// 2-3. gate, unless system origin or whitelisted
	if !out.System {
		phrases, err := p.rules.ListWhitelist(ctx, tc.TenantID)
		if err != nil {
			return out, err
		}
		out.Whitelisted = IsWhitelisted(evt.Text, phrases)
	}
	if !out.System && !out.Whitelisted {
		info, err := p.energy.GetEnergy(ctx, tc.TenantID)
		if err != nil {
			return out, err
		}
		if info.Energy < cost {
			out.Gated = true
			p.replaceWithNotice(ctx, tc, evt, log)
			p.metrics.MessagesGated.Inc()
			log.Info("Message gated for low energy",
				zap.String("content_type", string(out.ContentType)),
				zap.Int("energy", info.Energy), zap.Int("cost", cost))
			return out, nil
		}
	}

	// 4-6. rewrite stages, text only
	out.FinalText = evt.Text
	if out.ContentType == entities.ContentText && strings.TrimSpace(evt.Text) != "" {
		p.rewriteStages(ctx, tc, evt, &out, log)
	}

	// 7. base cost
	out.BaseCharged = p.charge(ctx, tc.TenantID, cost, "base", log)

	// 8. penalties
	p.charge(ctx, tc.TenantID, out.BadwordPenalty, "badword", log)
	p.charge(ctx, tc.TenantID, out.RedactionPenalty, "redaction", log)
	p.charge(ctx, tc.TenantID, out.AutocorrectPenalty, "autocorrect", log)

	return out, nil
}

func (p *Interceptor) isOOC(text string) bool {
	if p.oocPrefix == "" {
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), p.oocPrefix)
}

// chatInScope applies the tenant's chat list only while the profile is locked.
func (p *Interceptor) chatInScope(ctx context.Context, tenantID int, chatID string) (bool, error) {
	baseline, err := p.profiles.GetBaseline(ctx, tenantID)
	if err != nil {
		return false, err
	}
	if baseline == nil || !baseline.Active {
		return true, nil
	}
	scope, err := p.rules.GetChatScope(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return scope.Applies(chatID), nil
}

func (p *Interceptor) costFor(ctx context.Context, tenantID int, contentType entities.ContentType) (int, error) {
	cost, found, err := p.rules.GetEnergyCost(ctx, tenantID, contentType)
	if err != nil {
		return 0, err
	}
	if !found {
		return entities.DefaultUnknownCost, nil
	}
	return cost, nil
}

func (p *Interceptor) replaceWithNotice(ctx context.Context, tc TenantContext, evt *entities.MessageEvent, log *zap.Logger) {
	if err := tc.Client.DeleteMessage(ctx, evt.ChatID, evt.ID); err != nil {
		log.Warn("Failed to delete gated message", zap.Error(err))
	}

	custom, err := p.rules.ListPowerMessages(ctx, tc.TenantID)
	if err != nil {
		log.Warn("Failed to load custom notices", zap.Error(err))
	}
	notice := p.templates.LowEnergyNotice(custom)
	if err := tc.sendTagged(ctx, evt.ChatID, notice, entities.OriginSystem); err != nil {
		log.Error("Failed to send low-energy notice", zap.Error(err))
	}
}

// rewriteStages runs badword, custom redaction and autocorrect in that order
// and resends the result once if anything changed.
func (p *Interceptor) rewriteStages(ctx context.Context, tc TenantContext, evt *entities.MessageEvent, out *Outcome, log *zap.Logger) {
	badwords, err := p.rules.ListBadwords(ctx, tc.TenantID)
	if err != nil {
		log.Error("Failed to load badwords", zap.Error(err))
	}
	bw := ApplyBadwords(evt.Text, badwords)
	out.BadwordPenalty = bw.Penalty
	if bw.Changed() {
		p.metrics.Redactions.WithLabelValues("badword").Add(float64(bw.Matches))
	}

	redactions, err := p.rules.ListRedactions(ctx, tc.TenantID)
	if err != nil {
		log.Error("Failed to load custom redactions", zap.Error(err))
	}
	rd := ApplyRedactions(bw.Text, redactions)
	out.RedactionPenalty = rd.Penalty
	if rd.Changed() {
		p.metrics.Redactions.WithLabelValues("custom").Add(float64(rd.Matches))
	}

	text := rd.Text
	if corrected, penalty, ok := p.autocorrect(ctx, tc.TenantID, text, log); ok {
		text = corrected
		out.AutocorrectPenalty = penalty
	}

	out.FinalText = text
	if text == evt.Text {
		return
	}

	if err := tc.Client.DeleteMessage(ctx, evt.ChatID, evt.ID); err != nil {
		log.Error("Failed to delete message for rewrite", zap.Error(err))
		return
	}
	if err := tc.sendTagged(ctx, evt.ChatID, text, entities.OriginRewrite); err != nil {
		log.Error("Failed to resend rewritten message", zap.Error(err))
		return
	}
	out.Rewritten = true
	log.Info("Message rewritten",
		zap.Int("badword_matches", bw.Matches),
		zap.Int("custom_matches", rd.Matches),
		zap.Int("autocorrect_penalty", out.AutocorrectPenalty))
}

func (p *Interceptor) autocorrect(ctx context.Context, tenantID int, text string, log *zap.Logger) (string, int, bool) {
	if p.corrector == nil {
		return "", 0, false
	}
	setting, err := p.rules.GetAutocorrect(ctx, tenantID)
	if err != nil {
		log.Error("Failed to load autocorrect setting", zap.Error(err))
		return "", 0, false
	}
	if !setting.Enabled {
		return "", 0, false
	}
	corrected, corrections, err := p.corrector.Correct(ctx, text)
	if err != nil {
		log.Warn("Autocorrect unavailable", zap.Error(err))
		return "", 0, false
	}
	if corrections < 1 || corrected == "" {
		return "", 0, false
	}
	p.metrics.Redactions.WithLabelValues("autocorrect").Add(float64(corrections))
	return corrected, corrections * setting.PenaltyPerCorrection, true
}

// charge debits amount and logs the outcome. Shortfalls are not retried.
func (p *Interceptor) charge(ctx context.Context, tenantID, amount int, reason string, log *zap.Logger) bool {
	if amount <= 0 {
		return false
	}
	info, err := p.energy.Consume(ctx, tenantID, amount)
	var shortfall *entities.InsufficientEnergyError
	switch {
	case errors.As(err, &shortfall):
		p.metrics.EnergyInsufficient.WithLabelValues(reason).Inc()
		log.Info("Insufficient energy",
			zap.String("reason", reason), zap.Int("energy", shortfall.Current), zap.Int("required", shortfall.Required))
		return false
	case err != nil:
		log.Error("Energy charge failed", zap.String("reason", reason), zap.Error(err))
		return false
	}
	p.metrics.EnergyConsumed.WithLabelValues(reason).Add(float64(amount))
	log.Debug("Energy charged", zap.String("reason", reason), zap.Int("amount", amount), zap.Int("energy", info.Energy))
	return true
}
