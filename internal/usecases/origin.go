package usecases

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"tenantbot/internal/entities"
)

// OriginLedger remembers which message ids this system sent. Ids are
// recorded before sending so the outgoing echo always finds its tag.
type OriginLedger struct {
	cache *expirable.LRU[string, entities.Origin]
}

// NewOriginLedger keeps up to size tags for ttl. A zero ttl keeps tags until
// they are evicted by size.
func NewOriginLedger(size int, ttl time.Duration) *OriginLedger {
	if size < 1 {
		size = 1024
	}
	return &OriginLedger{cache: expirable.NewLRU[string, entities.Origin](size, nil, ttl)}
}

func originKey(chatID, messageID string) string {
	return chatID + "|" + messageID
}

func (l *OriginLedger) Mark(chatID, messageID string, origin entities.Origin) {
	l.cache.Add(originKey(chatID, messageID), origin)
}

// Lookup returns OriginUser for ids the ledger has never seen.
func (l *OriginLedger) Lookup(chatID, messageID string) entities.Origin {
	origin, ok := l.cache.Get(originKey(chatID, messageID))
	if !ok {
		return entities.OriginUser
	}
	return origin
}
