package infrastructure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReplyLimiterPerKey(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewReplyLimiter(2*time.Second, 1)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1:chat"))
	assert.False(t, rl.Allow("1:chat"))
	assert.True(t, rl.Allow("1:other"), "keys are independent")

	now = now.Add(2 * time.Second)
	assert.True(t, rl.Allow("1:chat"))
}

func TestReplyLimiterPrunesIdle(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewReplyLimiter(time.Second, 1)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	rl.Allow("b")
	assert.Equal(t, 2, rl.Stats()["active_keys"])

	now = now.Add(11 * time.Minute)
	rl.Allow("c")
	assert.Equal(t, 1, rl.Stats()["active_keys"])
}

func TestReplyLimiterUnlimited(t *testing.T) {
	rl := NewReplyLimiter(0, 1)
	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("k"))
	}
}
