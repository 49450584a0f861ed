package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ppiankov/kcal/internal/model"
)

// DefaultCapacity is the number of entries kept when no capacity is configured
const DefaultCapacity = 200

// MemoryCache is a bounded LRU of resolved entries.
// It may hold entries below the promotion threshold; those live here only for
// the current session.
type MemoryCache struct {
	lru       *lru.Cache[model.Key, model.Entry]
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// NewMemoryCache creates a new memory cache holding at most capacity entries
func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	c := &MemoryCache{}
	// NewWithEvict only fails for a non-positive size
	c.lru, _ = lru.NewWithEvict(capacity, func(model.Key, model.Entry) {
		c.evictions.Add(1)
	})
	return c
}

// Get retrieves an entry and marks it most recently used
func (c *MemoryCache) Get(key model.Key) (model.Entry, bool) {
	e, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return e, ok
}

// Peek retrieves an entry without touching recency or counters
func (c *MemoryCache) Peek(key model.Key) (model.Entry, bool) {
	return c.lru.Peek(key)
}

// Set stores an entry, evicting the least recently used one if full
func (c *MemoryCache) Set(key model.Key, entry model.Entry) {
	c.lru.Add(key, entry)
}

// Delete removes an entry
func (c *MemoryCache) Delete(key model.Key) {
	c.lru.Remove(key)
}

// Keys returns the cached keys from oldest to newest
func (c *MemoryCache) Keys() []model.Key {
	return c.lru.Keys()
}

// Len returns the number of cached entries
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Purge removes all entries
func (c *MemoryCache) Purge() {
	c.lru.Purge()
}

// Stats returns the current counters
func (c *MemoryCache) Stats() Stats {
	return Stats{
		Entries:   c.lru.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
