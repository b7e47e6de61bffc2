package indexer

import (
	"sync"
	"time"
)

// cacheEntry is an opaque response payload with its creation time.
type cacheEntry struct {
	payload []byte
	created time.Time
}

// CacheStats is a read-only snapshot of cache behavior.
type CacheStats struct {
	Entries int           `json:"entries"`
	Hits    uint64        `json:"hits"`
	Misses  uint64        `json:"misses"`
	TTL     time.Duration `json:"ttl"`
}

// ResponseCache memoizes upstream responses by endpoint+parameters for a
// bounded TTL. Entries past the TTL are treated as misses and overwritten
// on the next successful fetch; nothing is proactively evicted, so memory
// is bounded only by the key space of observed calls.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	hits    uint64
	misses  uint64

	now func() time.Time
}

// NewResponseCache builds a cache with the given TTL.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached payload for key if it is still fresh.
func (c *ResponseCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.created) >= c.ttl {
		c.misses++
		return nil, false
	}
	c.hits++
	return e.payload, true
}

// Put stores payload under key, replacing any stale entry.
func (c *ResponseCache) Put(key string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{payload: payload, created: c.now()}
}

// Clear drops every entry. Hit/miss counters are preserved; use the
// performance counters reset for those.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Stats returns a snapshot of cache state.
func (c *ResponseCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses, TTL: c.ttl}
}
