package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantbot/internal/entities"
)

type pipelineFixture struct {
	*fixture
	client    *fakeClient
	corrector *fakeCorrector
	pipeline  *Interceptor
	tc        TenantContext
	tenantID  int
}

func newPipelineFixture(t *testing.T, energy int) *pipelineFixture {
	f := newFixture(t)
	id := f.tenant(t, energy, 100, 0)
	for contentType, cost := range entities.DefaultEnergyCosts {
		require.NoError(t, f.store.UpsertEnergyCost(context.Background(),
			entities.EnergyCost{TenantID: id, ContentType: contentType, Cost: cost}))
	}

	client := newFakeClient()
	corrector := &fakeCorrector{}
	tpl := NewTemplates()
	tpl.pick = func(int) int { return 0 }

	return &pipelineFixture{
		fixture:   f,
		client:    client,
		corrector: corrector,
		pipeline:  NewInterceptor(f.energy, f.store, f.store, corrector, tpl, f.log, f.metrics, "ooc:"),
		tc:        TenantContext{TenantID: id, Username: "alice", Client: client, Origins: NewOriginLedger(64, 0)},
		tenantID:  id,
	}
}

func (p *pipelineFixture) energyNow(t *testing.T) int {
	info, err := p.energy.GetEnergy(context.Background(), p.tenantID)
	require.NoError(t, err)
	return info.Energy
}

func textEvent(id, text string) *entities.MessageEvent {
	return &entities.MessageEvent{ID: id, ChatID: "chat-1", Text: text, Direction: entities.Outgoing}
}

func TestPipelinePlainTextChargesBaseCost(t *testing.T) {
	p := newPipelineFixture(t, 10)

	out, err := p.pipeline.Process(context.Background(), p.tc, textEvent("m1", "hello"))
	require.NoError(t, err)

	assert.Equal(t, entities.ContentText, out.ContentType)
	assert.Equal(t, 1, out.Cost)
	assert.True(t, out.BaseCharged)
	assert.False(t, out.Rewritten)
	assert.Equal(t, 9, p.energyNow(t))
	assert.Empty(t, p.client.sentMessages())
}

func TestPipelineGatesWhenEnergyBelowCost(t *testing.T) {
	p := newPipelineFixture(t, 2)
	evt := &entities.MessageEvent{ID: "m1", ChatID: "chat-1", Media: entities.Media{Kind: entities.MediaPhoto}}

	out, err := p.pipeline.Process(context.Background(), p.tc, evt)
	require.NoError(t, err)

	assert.True(t, out.Gated)
	assert.False(t, out.BaseCharged)
	assert.Equal(t, []string{"chat-1|m1"}, p.client.deletedMessages())

	sent := p.client.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, lowEnergyMessages[0], sent[0].Text)
	assert.Equal(t, entities.OriginSystem, p.tc.Origins.Lookup("chat-1", sent[0].ID))
	assert.Equal(t, 2, p.energyNow(t))
}

func TestPipelineGateUsesCustomNotice(t *testing.T) {
	p := newPipelineFixture(t, 0)
	_, err := p.store.UpsertPowerMessage(context.Background(),
		entities.PowerMessage{TenantID: p.tenantID, Text: "*needs a nap*", Active: true})
	require.NoError(t, err)

	_, err = p.pipeline.Process(context.Background(), p.tc, textEvent("m1", "hi"))
	require.NoError(t, err)

	sent := p.client.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "*needs a nap*", sent[0].Text)
}

func TestPipelineSystemMessageSkipsGateButIsCharged(t *testing.T) {
	p := newPipelineFixture(t, 3)
	require.NoError(t, p.store.UpsertEnergyCost(context.Background(),
		entities.EnergyCost{TenantID: p.tenantID, ContentType: entities.ContentText, Cost: 2}))
	p.tc.Origins.Mark("chat-1", "sys-9", entities.OriginSystem)

	out, err := p.pipeline.Process(context.Background(), p.tc, textEvent("sys-9", lowEnergyMessages[0]))
	require.NoError(t, err)

	assert.True(t, out.System)
	assert.False(t, out.Gated)
	assert.True(t, out.BaseCharged)
	assert.Equal(t, 1, p.energyNow(t))
}

func TestPipelineSystemMessageIsStillRedacted(t *testing.T) {
	p := newPipelineFixture(t, 50)
	_, err := p.store.UpsertBadword(context.Background(),
		entities.BadwordRule{TenantID: p.tenantID, Phrase: "darn", Penalty: 4})
	require.NoError(t, err)
	p.tc.Origins.Mark("chat-1", "sys-2", entities.OriginSystem)

	out, err := p.pipeline.Process(context.Background(), p.tc, textEvent("sys-2", "*out of darn power*"))
	require.NoError(t, err)

	assert.True(t, out.System)
	assert.True(t, out.Rewritten)
	assert.Equal(t, "*out of <redacted> power*", out.FinalText)
	assert.Equal(t, []string{"chat-1|sys-2"}, p.client.deletedMessages())
	// base 1 + penalty 4
	assert.Equal(t, 45, p.energyNow(t))
}

func TestPipelineSystemMessageInsufficientIsLoggedOnly(t *testing.T) {
	p := newPipelineFixture(t, 0)
	p.tc.Origins.Mark("chat-1", "sys-1", entities.OriginSystem)

	out, err := p.pipeline.Process(context.Background(), p.tc, textEvent("sys-1", "*beep boop*"))
	require.NoError(t, err)

	assert.False(t, out.Gated)
	assert.False(t, out.BaseCharged)
	assert.Equal(t, 0, p.energyNow(t))
	assert.Empty(t, p.client.deletedMessages())
}

func TestPipelineTemplateTextFromUserIsNotExempt(t *testing.T) {
	p := newPipelineFixture(t, 0)

	out, err := p.pipeline.Process(context.Background(), p.tc, textEvent("m1", lowEnergyMessages[0]))
	require.NoError(t, err)

	assert.False(t, out.System)
	assert.True(t, out.Gated)
}

func TestPipelineWhitelistSkipsGateButIsCharged(t *testing.T) {
	p := newPipelineFixture(t, 0)
	_, err := p.store.UpsertWhitelist(context.Background(),
		entities.WhitelistPhrase{TenantID: p.tenantID, Phrase: "good night"})
	require.NoError(t, err)

	out, err := p.pipeline.Process(context.Background(), p.tc, textEvent("m1", " Good Night "))
	require.NoError(t, err)

	assert.True(t, out.Whitelisted)
	assert.False(t, out.Gated)
	assert.False(t, out.BaseCharged)
	assert.Empty(t, p.client.sentMessages())
}

func TestPipelineBadwordRewriteAndPenalty(t *testing.T) {
	p := newPipelineFixture(t, 50)
	_, err := p.store.UpsertBadword(context.Background(),
		entities.BadwordRule{TenantID: p.tenantID, Phrase: "spam", Penalty: 5})
	require.NoError(t, err)

	out, err := p.pipeline.Process(context.Background(), p.tc, textEvent("m1", "This is SPAM here and spam again"))
	require.NoError(t, err)

	assert.True(t, out.Rewritten)
	assert.Equal(t, 10, out.BadwordPenalty)
	assert.Equal(t, "This is <redacted> here and <redacted> again", out.FinalText)
	assert.Equal(t, []string{"chat-1|m1"}, p.client.deletedMessages())

	sent := p.client.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, out.FinalText, sent[0].Text)
	assert.Equal(t, entities.OriginRewrite, p.tc.Origins.Lookup("chat-1", sent[0].ID))

	// base 1 + penalty 10
	assert.Equal(t, 39, p.energyNow(t))

	// The echo of the resend is not processed again.
	echo, err := p.pipeline.Process(context.Background(), p.tc, textEvent(sent[0].ID, sent[0].Text))
	require.NoError(t, err)
	assert.Equal(t, SkipRewrite, echo.Skipped)
	assert.Equal(t, 39, p.energyNow(t))
}

func TestPipelineStagesChainInOrder(t *testing.T) {
	p := newPipelineFixture(t, 50)
	ctx := context.Background()
	_, err := p.store.UpsertBadword(ctx, entities.BadwordRule{TenantID: p.tenantID, Phrase: "darn", Penalty: 2})
	require.NoError(t, err)
	_, err = p.store.UpsertRedaction(ctx, entities.RedactionRule{TenantID: p.tenantID, Original: "colour", Replacement: "hue", Penalty: 1})
	require.NoError(t, err)
	require.NoError(t, p.store.SetAutocorrect(ctx, entities.AutocorrectSetting{TenantID: p.tenantID, Enabled: true, PenaltyPerCorrection: 3}))
	p.corrector.corrected = "<redacted>, what a nice hue."
	p.corrector.corrections = 2

	out, err := p.pipeline.Process(ctx, p.tc, textEvent("m1", "darn, what a nise colour."))
	require.NoError(t, err)

	require.Len(t, p.corrector.calls, 1)
	assert.Equal(t, "<redacted>, what a nise hue.", p.corrector.calls[0])
	assert.Equal(t, 2, out.BadwordPenalty)
	assert.Equal(t, 1, out.RedactionPenalty)
	assert.Equal(t, 6, out.AutocorrectPenalty)

	sent := p.client.sentMessages()
	require.Len(t, sent, 1, "one resend for all stages")
	assert.Equal(t, "<redacted>, what a nice hue.", sent[0].Text)
	assert.Equal(t, 50-1-2-1-6, p.energyNow(t))
}

func TestPipelineAutocorrectOnly(t *testing.T) {
	p := newPipelineFixture(t, 50)
	require.NoError(t, p.store.SetAutocorrect(context.Background(),
		entities.AutocorrectSetting{TenantID: p.tenantID, Enabled: true, PenaltyPerCorrection: 3}))
	p.corrector.corrected = "their house"
	p.corrector.corrections = 2

	out, err := p.pipeline.Process(context.Background(), p.tc, textEvent("m1", "thier hosue"))
	require.NoError(t, err)

	assert.Equal(t, 6, out.AutocorrectPenalty)
	assert.Equal(t, "their house", out.FinalText)
	assert.True(t, out.Rewritten)
}

func TestPipelineAutocorrectFailureKeepsText(t *testing.T) {
	p := newPipelineFixture(t, 50)
	require.NoError(t, p.store.SetAutocorrect(context.Background(),
		entities.AutocorrectSetting{TenantID: p.tenantID, Enabled: true, PenaltyPerCorrection: 3}))
	p.corrector.err = errors.New("quota exceeded")

	out, err := p.pipeline.Process(context.Background(), p.tc, textEvent("m1", "thier hosue"))
	require.NoError(t, err)

	assert.False(t, out.Rewritten)
	assert.Zero(t, out.AutocorrectPenalty)
	assert.Equal(t, 49, p.energyNow(t))
}

func TestPipelinePenaltyShortfallKeepsRewrite(t *testing.T) {
	p := newPipelineFixture(t, 4)
	_, err := p.store.UpsertBadword(context.Background(),
		entities.BadwordRule{TenantID: p.tenantID, Phrase: "spam", Penalty: 5})
	require.NoError(t, err)

	out, err := p.pipeline.Process(context.Background(), p.tc, textEvent("m1", "spam"))
	require.NoError(t, err)

	assert.True(t, out.Rewritten)
	assert.True(t, out.BaseCharged)
	assert.Len(t, p.client.sentMessages(), 1)
	assert.Equal(t, 3, p.energyNow(t))
}

func TestPipelineMediaSkipsTextStages(t *testing.T) {
	p := newPipelineFixture(t, 50)
	_, err := p.store.UpsertBadword(context.Background(),
		entities.BadwordRule{TenantID: p.tenantID, Phrase: "spam", Penalty: 5})
	require.NoError(t, err)

	evt := &entities.MessageEvent{ID: "m1", ChatID: "chat-1", Text: "spam caption",
		Media: entities.Media{Kind: entities.MediaDocument, MimeType: "video/mp4"}}
	out, err := p.pipeline.Process(context.Background(), p.tc, evt)
	require.NoError(t, err)

	assert.Equal(t, entities.ContentVideo, out.ContentType)
	assert.False(t, out.Rewritten)
	assert.Equal(t, 45, p.energyNow(t))
}

func TestPipelineUnknownCostDefaultsToOne(t *testing.T) {
	p := newPipelineFixture(t, 50)
	require.NoError(t, p.store.DeleteEnergyCost(context.Background(), p.tenantID, entities.ContentPoll))

	out, err := p.pipeline.Process(context.Background(), p.tc,
		&entities.MessageEvent{ID: "m1", ChatID: "chat-1", Media: entities.Media{Kind: entities.MediaPoll}})
	require.NoError(t, err)

	assert.Equal(t, 1, out.Cost)
	assert.Equal(t, 49, p.energyNow(t))
}

func TestPipelineOOCBypassesEverything(t *testing.T) {
	p := newPipelineFixture(t, 0)

	out, err := p.pipeline.Process(context.Background(), p.tc, textEvent("m1", "OOC: brb"))
	require.NoError(t, err)

	assert.Equal(t, SkipOOC, out.Skipped)
	assert.Empty(t, p.client.sentMessages())
	assert.Empty(t, p.client.deletedMessages())
}

func TestPipelineChatScopeWhileLocked(t *testing.T) {
	p := newPipelineFixture(t, 0)
	ctx := context.Background()
	require.NoError(t, p.store.SaveBaseline(ctx, entities.ProfileBaseline{TenantID: p.tenantID, Active: true}))
	require.NoError(t, p.store.SetChatScope(ctx, p.tenantID,
		entities.ChatScope{Mode: entities.ChatListBlacklist, Chats: []string{"chat-1"}}))

	out, err := p.pipeline.Process(ctx, p.tc, textEvent("m1", "hi"))
	require.NoError(t, err)
	assert.Equal(t, SkipChatScope, out.Skipped)

	other := &entities.MessageEvent{ID: "m2", ChatID: "chat-2", Text: "hi"}
	out, err = p.pipeline.Process(ctx, p.tc, other)
	require.NoError(t, err)
	assert.True(t, out.Gated)

	// Unlocked profiles ignore the list.
	require.NoError(t, p.store.SetBaselineActive(ctx, p.tenantID, false))
	out, err = p.pipeline.Process(ctx, p.tc, textEvent("m3", "hi"))
	require.NoError(t, err)
	assert.True(t, out.Gated)
}

func TestPipelineStorageFailureAborts(t *testing.T) {
	p := newPipelineFixture(t, 10)
	broken := errors.New("connection reset")
	p.store.InjectEnergyFaults(broken)

	_, err := p.pipeline.Process(context.Background(), p.tc, textEvent("m1", "hello"))
	assert.ErrorIs(t, err, broken)
	assert.Empty(t, p.client.sentMessages())
	assert.Equal(t, 10, p.energyNow(t))
}
