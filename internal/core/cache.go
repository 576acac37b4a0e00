package core

import (
	"sync"
	"time"
)

// decisionCache holds determinate access decisions for a short TTL.
// Entitlement checks run on every premium page view and may cross two
// network boundaries; the cache keeps the hot path local.
type decisionCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     Clock
	entries map[cacheKey]cacheEntry
}

type cacheKey struct {
	userID        string
	contentItemID string
}

type cacheEntry struct {
	decision Decision
	expires  time.Time
}

func newDecisionCache(ttl time.Duration, now Clock) *decisionCache {
	if now == nil {
		now = time.Now
	}
	return &decisionCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[cacheKey]cacheEntry),
	}
}

func (c *decisionCache) get(userID, contentItemID string) (Decision, bool) {
	if c.ttl <= 0 {
		return Decision{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[cacheKey{userID, contentItemID}]
	if !ok {
		return Decision{}, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, cacheKey{userID, contentItemID})
		return Decision{}, false
	}
	return e.decision, true
}

func (c *decisionCache) put(userID, contentItemID string, d Decision) {
	// Undetermined is a transient infrastructure state, not a fact
	// about the user; caching it would pin the outage.
	if c.ttl <= 0 || d.Undetermined() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()
	c.entries[cacheKey{userID, contentItemID}] = cacheEntry{
		decision: d,
		expires:  c.now().Add(c.ttl),
	}
}

func (c *decisionCache) invalidate(userID, contentItemID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey{userID, contentItemID})
}

// sweepLocked drops expired entries. Called opportunistically on writes;
// the map stays small because the TTL is short.
func (c *decisionCache) sweepLocked() {
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
}
