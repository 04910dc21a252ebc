package calculator

import "sync"

// Cache memoizes balances per counterparty key for one record collection.
//
// The whole table is dropped as soon as a different collection hash is seen;
// there is no per-key invalidation. Results are identical with or without the
// cache. Cache is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	hash    uint64
	primed  bool
	entries map[string]Balance
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Balance)}
}

// Sync records hash as the current collection hash, clearing every entry
// when it differs from the last one seen. It reports whether it did.
func (c *Cache) Sync(hash uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.primed && c.hash == hash {
		return false
	}
	c.hash = hash
	c.primed = true
	c.entries = make(map[string]Balance)
	return true
}

// GetOrCompute returns the cached balance for key under hash, computing and
// storing it on a miss. A balance computed for a hash that is no longer
// current is returned but not stored. The second result reports a cache hit.
func (c *Cache) GetOrCompute(hash uint64, key string, compute func() Balance) (Balance, bool) {
	c.mu.RLock()
	if c.primed && c.hash == hash {
		if b, ok := c.entries[key]; ok {
			c.mu.RUnlock()
			return b, true
		}
	}
	c.mu.RUnlock()

	b := compute()

	c.mu.Lock()
	if c.primed && c.hash == hash {
		c.entries[key] = b
	}
	c.mu.Unlock()
	return b, false
}

// Len returns the number of cached balances.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
