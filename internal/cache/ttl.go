package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// TTLCache is a string memo with per-item expiry.
// The translation adapter uses it so repeated names skip the network.
type TTLCache struct {
	cache *gocache.Cache
}

// NewTTLCache creates a new TTL cache
func NewTTLCache(defaultTTL time.Duration, cleanupInterval time.Duration) *TTLCache {
	return &TTLCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get retrieves a value from the cache
func (c *TTLCache) Get(key string) (string, bool) {
	if val, found := c.cache.Get(key); found {
		return val.(string), true
	}
	return "", false
}

// Set stores a value with the default TTL
func (c *TTLCache) Set(key string, value string) {
	c.cache.SetDefault(key, value)
}

// Add stores a value only if key is absent or expired.
// It reports whether the value was stored.
func (c *TTLCache) Add(key string, value string) bool {
	return c.cache.Add(key, value, gocache.DefaultExpiration) == nil
}

// Delete removes a value from the cache
func (c *TTLCache) Delete(key string) {
	c.cache.Delete(key)
}

// Clear removes all values from the cache
func (c *TTLCache) Clear() {
	c.cache.Flush()
}

// Len returns the number of items, including expired ones not yet cleaned up
func (c *TTLCache) Len() int {
	return c.cache.ItemCount()
}
