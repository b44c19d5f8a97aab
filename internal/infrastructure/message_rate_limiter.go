package infrastructure

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ReplyLimiter throttles canned replies per tenant and chat.
type ReplyLimiter struct {
	mu       sync.Mutex
	limiters map[string]*replyBucket
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
}

type replyBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewReplyLimiter allows one reply per interval with the given burst.
func NewReplyLimiter(interval time.Duration, burst int) *ReplyLimiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	if burst < 1 {
		burst = 1
	}
	return &ReplyLimiter{
		limiters: make(map[string]*replyBucket),
		limit:    limit,
		burst:    burst,
		idleTTL:  10 * time.Minute,
		now:      time.Now,
	}
}

// Allow consumes a token for key if one is available.
func (rl *ReplyLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.prune(now)

	bucket, exists := rl.limiters[key]
	if !exists {
		bucket = &replyBucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.AllowN(now, 1)
}

// Reset drops all state for key.
func (rl *ReplyLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.limiters, key)
}

// prune removes buckets not used within idleTTL. Called with mu held.
func (rl *ReplyLimiter) prune(now time.Time) {
	for key, bucket := range rl.limiters {
		if now.Sub(bucket.lastSeen) > rl.idleTTL {
			delete(rl.limiters, key)
		}
	}
}

func (rl *ReplyLimiter) Stats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]interface{}{
		"active_keys": len(rl.limiters),
		"rate":        float64(rl.limit),
		"burst":       rl.burst,
	}
}
