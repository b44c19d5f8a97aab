package usecases

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tenantbot/internal/entities"
)

func TestApplyBadwordsWholeWord(t *testing.T) {
	rules := []entities.BadwordRule{{Phrase: "spam", Penalty: 5}}

	res := ApplyBadwords("This is SPAM here and spam again", rules)
	assert.Equal(t, "This is <redacted> here and <redacted> again", res.Text)
	assert.Equal(t, 10, res.Penalty)
	assert.Equal(t, 2, res.Matches)

	res = ApplyBadwords("no spammer here", rules)
	assert.False(t, res.Changed())
	assert.Equal(t, "no spammer here", res.Text)
	assert.Zero(t, res.Penalty)
}

func TestApplyBadwordsCaseSensitive(t *testing.T) {
	rules := []entities.BadwordRule{{Phrase: "Bob", Penalty: 3, CaseSensitive: true}}

	res := ApplyBadwords("bob and Bob", rules)
	assert.Equal(t, "bob and <redacted>", res.Text)
	assert.Equal(t, 3, res.Penalty)
}

func TestApplyBadwordsSumsAcrossRules(t *testing.T) {
	rules := []entities.BadwordRule{
		{Phrase: "darn", Penalty: 2},
		{Phrase: "heck", Penalty: 4},
		{Phrase: "  ", Penalty: 100},
	}

	res := ApplyBadwords("darn, heck, darn!", rules)
	assert.Equal(t, "<redacted>, <redacted>, <redacted>!", res.Text)
	assert.Equal(t, 8, res.Penalty)
}

func TestApplyBadwordsUnicodePhrases(t *testing.T) {
	rules := []entities.BadwordRule{
		{Phrase: "café", Penalty: 2},
		{Phrase: "дурак", Penalty: 3},
	}

	res := ApplyBadwords("say café now", rules)
	assert.Equal(t, "say <redacted> now", res.Text)
	assert.Equal(t, 2, res.Penalty)

	res = ApplyBadwords("Дурак, ты дурак!", rules)
	assert.Equal(t, "<redacted>, ты <redacted>!", res.Text)
	assert.Equal(t, 6, res.Penalty)

	res = ApplyBadwords("cafés and дураки", rules)
	assert.False(t, res.Changed())
	assert.Equal(t, "cafés and дураки", res.Text)
}

func TestApplyBadwordsAdjacentMatches(t *testing.T) {
	rules := []entities.BadwordRule{{Phrase: "spam", Penalty: 1}}

	res := ApplyBadwords("spam spam,spam", rules)
	assert.Equal(t, "<redacted> <redacted>,<redacted>", res.Text)
	assert.Equal(t, 3, res.Matches)

	res = ApplyBadwords("spamspam spam", rules)
	assert.Equal(t, "spamspam <redacted>", res.Text)
	assert.Equal(t, 1, res.Matches)
}

func TestApplyBadwordsQuotesMeta(t *testing.T) {
	rules := []entities.BadwordRule{{Phrase: "a.b", Penalty: 1}}

	res := ApplyBadwords("axb a.b", rules)
	assert.Equal(t, "axb <redacted>", res.Text)
}

func TestApplyRedactionsCustomReplacement(t *testing.T) {
	rules := []entities.RedactionRule{
		{Original: "hello", Replacement: "beep $1", Penalty: 1},
	}

	res := ApplyRedactions("Hello there, hello!", rules)
	assert.Equal(t, "beep $1 there, beep $1!", res.Text)
	assert.Equal(t, 2, res.Penalty)

	res = ApplyRedactions("Привет, мир", []entities.RedactionRule{{Original: "мир", Replacement: "world", Penalty: 1}})
	assert.Equal(t, "Привет, world", res.Text)
	assert.Equal(t, 1, res.Penalty)
}

func TestIsWhitelisted(t *testing.T) {
	phrases := []entities.WhitelistPhrase{
		{Phrase: "good morning"},
		{Phrase: "OK", CaseSensitive: true},
	}

	assert.True(t, IsWhitelisted("  Good Morning ", phrases))
	assert.False(t, IsWhitelisted("good morning everyone", phrases))
	assert.True(t, IsWhitelisted("OK", phrases))
	assert.False(t, IsWhitelisted("ok", phrases))
	assert.False(t, IsWhitelisted("", phrases))
}
