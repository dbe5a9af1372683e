package query

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/riverwatch/hydrosync/internal/domain"
	"github.com/riverwatch/hydrosync/internal/identity"
)

// ttlCache is a thread-safe cache of current readings keyed by canonical
// identity. Expired entries are kept until overwritten so the layer can
// fall back to them when the store is unreachable.
type ttlCache struct {
	ttl   time.Duration
	clock clockwork.Clock

	mu      sync.Mutex
	entries map[identity.Key]cacheEntry
}

type cacheEntry struct {
	reading  domain.CurrentReading
	cachedAt time.Time
}

func newTTLCache(ttl time.Duration, clock clockwork.Clock) *ttlCache {
	return &ttlCache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[identity.Key]cacheEntry),
	}
}

// get returns the cached reading. fresh is false once the entry has
// outlived the TTL.
func (c *ttlCache) get(key identity.Key) (reading domain.CurrentReading, fresh, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.CurrentReading{}, false, false
	}
	return e.reading, c.clock.Now().Sub(e.cachedAt) <= c.ttl, true
}

func (c *ttlCache) put(key identity.Key, reading domain.CurrentReading) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{reading: reading, cachedAt: c.clock.Now()}
}
