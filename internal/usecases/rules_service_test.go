package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantbot/internal/entities"
)

func newRuleService(t *testing.T) (*fixture, *RuleService, int) {
	f := newFixture(t)
	id := f.tenant(t, 100, 100, 1)
	return f, NewRuleService(f.store, f.store, f.log), id
}

func TestUpsertBadwordValidates(t *testing.T) {
	_, svc, id := newRuleService(t)

	_, err := svc.UpsertBadword(context.Background(), id, entities.BadwordRule{Phrase: "   ", Penalty: 5})
	assert.ErrorIs(t, err, entities.ErrInvalidRule)
	assert.ErrorIs(t, err, entities.ErrUserInput)

	_, err = svc.UpsertBadword(context.Background(), id, entities.BadwordRule{Phrase: "spam", Penalty: 0})
	assert.ErrorIs(t, err, entities.ErrInvalidRule)

	_, err = svc.UpsertBadword(context.Background(), id, entities.BadwordRule{Phrase: "spam", Penalty: 101})
	assert.ErrorIs(t, err, entities.ErrInvalidRule)

	saved, err := svc.UpsertBadword(context.Background(), id, entities.BadwordRule{Phrase: "  spam ", Penalty: 5})
	require.NoError(t, err)
	assert.Equal(t, "spam", saved.Phrase)
	assert.Equal(t, id, saved.TenantID)
}

func TestBatchIsolatesFailures(t *testing.T) {
	_, svc, id := newRuleService(t)

	results := svc.UpsertBadwords(context.Background(), id, []entities.BadwordRule{
		{Phrase: "spam", Penalty: 5},
		{Phrase: "", Penalty: 5},
		{Phrase: "scam", Penalty: 7},
	})

	require.Len(t, results, 3)
	assert.Empty(t, results[0].Error)
	assert.NotEmpty(t, results[1].Error)
	assert.Empty(t, results[2].Error)

	rules, err := svc.ListBadwords(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, rules, 2)
}

func TestSetEnergyCostValidates(t *testing.T) {
	_, svc, id := newRuleService(t)

	assert.ErrorIs(t, svc.SetEnergyCost(context.Background(), id,
		entities.EnergyCost{ContentType: "hologram", Cost: 1}), entities.ErrInvalidRule)
	assert.ErrorIs(t, svc.SetEnergyCost(context.Background(), id,
		entities.EnergyCost{ContentType: entities.ContentPhoto, Cost: -1}), entities.ErrInvalidRule)

	require.NoError(t, svc.SetEnergyCost(context.Background(), id,
		entities.EnergyCost{ContentType: entities.ContentPhoto, Cost: 0}))
}

func TestSeedDefaultCostsKeepsExisting(t *testing.T) {
	f, svc, id := newRuleService(t)
	require.NoError(t, svc.SetEnergyCost(context.Background(), id,
		entities.EnergyCost{ContentType: entities.ContentPhoto, Cost: 9}))

	seeded, err := svc.SeedDefaultCosts(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, len(entities.DefaultEnergyCosts)-1, seeded)

	cost, found, err := f.store.GetEnergyCost(context.Background(), id, entities.ContentPhoto)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 9, cost)

	seeded, err = svc.SeedDefaultCosts(context.Background(), id)
	require.NoError(t, err)
	assert.Zero(t, seeded)

	costs, err := svc.ListEnergyCosts(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, costs, len(entities.DefaultEnergyCosts))
	assert.Equal(t, entities.ContentAnimation, costs[0].ContentType)
}

func TestSetAutocorrectBounds(t *testing.T) {
	_, svc, id := newRuleService(t)

	assert.ErrorIs(t, svc.SetAutocorrect(context.Background(), id,
		entities.AutocorrectSetting{Enabled: true, PenaltyPerCorrection: 51}), entities.ErrInvalidRule)
	require.NoError(t, svc.SetAutocorrect(context.Background(), id,
		entities.AutocorrectSetting{Enabled: true, PenaltyPerCorrection: 3}))

	got, err := svc.GetAutocorrect(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Equal(t, 3, got.PenaltyPerCorrection)
}

func TestSetChatScope(t *testing.T) {
	_, svc, id := newRuleService(t)

	assert.ErrorIs(t, svc.SetChatScope(context.Background(), id,
		entities.ChatScope{Mode: "greylist"}), entities.ErrInvalidRule)

	require.NoError(t, svc.SetChatScope(context.Background(), id, entities.ChatScope{
		Mode:  entities.ChatListWhitelist,
		Chats: []string{"a", " a ", "", "b"},
	}))
	scope, err := svc.GetChatScope(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entities.ChatListWhitelist, scope.Mode)
	assert.ElementsMatch(t, []string{"a", "b"}, scope.Chats)
}

func TestPowerMessagesAndProtection(t *testing.T) {
	_, svc, id := newRuleService(t)

	_, err := svc.UpsertPowerMessage(context.Background(), id, entities.PowerMessage{Text: " "})
	assert.ErrorIs(t, err, entities.ErrInvalidRule)
	msg, err := svc.UpsertPowerMessage(context.Background(), id, entities.PowerMessage{Text: "*sputters*", Active: true})
	require.NoError(t, err)
	assert.Equal(t, id, msg.TenantID)

	assert.ErrorIs(t, svc.SetProtection(context.Background(), id,
		entities.ProtectionSettings{Enabled: true, Penalty: 500}), entities.ErrInvalidRule)
	require.NoError(t, svc.SetProtection(context.Background(), id,
		entities.ProtectionSettings{Enabled: false, Penalty: 0}))
	p, err := svc.GetProtection(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, p.Enabled)
}
