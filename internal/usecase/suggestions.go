package usecase

import (
	"sync"
	"time"
)

const defaultSuggestionTTL = 30 * time.Minute

type suggestionEntry struct {
	slugs     []string
	updatedAt time.Time
}

// suggestionCache remembers the collections last listed to each user so a
// follow-up like "stats for #2" can be resolved. Expired entries are dropped
// on read and on write.
type suggestionCache struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]suggestionEntry
}

func newSuggestionCache(ttl time.Duration) *suggestionCache {
	if ttl <= 0 {
		ttl = defaultSuggestionTTL
	}
	return &suggestionCache{ttl: ttl, now: time.Now, entries: map[string]suggestionEntry{}}
}

func (c *suggestionCache) Put(key string, slugs []string) {
	if key == "" || len(slugs) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if now.Sub(e.updatedAt) > c.ttl {
			delete(c.entries, k)
		}
	}
	c.entries[key] = suggestionEntry{slugs: append([]string(nil), slugs...), updatedAt: now}
}

// Pick returns the n-th (1-based) remembered slug for key.
func (c *suggestionCache) Pick(key string, n int) (string, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if c.now().Sub(e.updatedAt) > c.ttl {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.updatedAt.Equal(e.updatedAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return "", false
	}
	if n < 1 || n > len(e.slugs) {
		return "", false
	}
	return e.slugs[n-1], true
}
