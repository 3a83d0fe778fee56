package imaging

import (
	"sync"
)

// DefaultCacheEntries bounds a Cache created with a non-positive size.
const DefaultCacheEntries = 64

type cacheKey struct {
	hash     uint64
	animated bool
}

// Cache shares decoded images between loads of byte-identical files.
//
// Entries are keyed by the xxhash of the file contents plus the animated
// flag, so an edited file never hits a stale entry and reloading an unchanged
// file returns the very same *Decoded. When the cache is full the oldest
// entry is evicted.
//
// Cache is safe for concurrent use. A nil *Cache is valid and caches nothing.
type Cache struct {
	mu      sync.RWMutex
	max     int
	entries map[cacheKey]*Decoded
	order   []cacheKey
}

// NewCache creates a cache holding at most maxEntries decoded images.
func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	return &Cache{
		max:     maxEntries,
		entries: make(map[cacheKey]*Decoded),
	}
}

func (c *Cache) get(hash uint64, animated bool) (*Decoded, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	d, ok := c.entries[cacheKey{hash, animated}]
	c.mu.RUnlock()
	return d, ok
}

func (c *Cache) put(hash uint64, animated bool, d *Decoded) {
	if c == nil {
		return
	}
	key := cacheKey{hash, animated}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		return
	}
	for len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = d
	c.order = append(c.order, key)
}

// Len returns the number of cached images.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all images from the cache.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[cacheKey]*Decoded)
	c.order = nil
	c.mu.Unlock()
}

// Evict removes every entry decoded from contents with the given hash.
func (c *Cache) Evict(hash uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.order[:0]
	for _, key := range c.order {
		if key.hash == hash {
			delete(c.entries, key)
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept
}
