package enrichment

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kailas-cloud/edurag/internal/domain"
)

type cacheEntry struct {
	refs      []domain.ExternalReference
	expiresAt time.Time
}

// MemoryCache is a process-local TTL cache with a capacity bound.
// On overflow an arbitrary entry is dropped; there is no LRU ordering.
type MemoryCache struct {
	mu       sync.Mutex
	items    map[string]cacheEntry
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// NewMemoryCache creates a cache. now defaults to time.Now.
func NewMemoryCache(ttl time.Duration, capacity int, now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	if capacity <= 0 {
		capacity = 256
	}
	return &MemoryCache{
		items:    make(map[string]cacheEntry, capacity),
		ttl:      ttl,
		capacity: capacity,
		now:      now,
	}
}

// Get returns a live entry. Expired entries are removed on read.
func (c *MemoryCache) Get(_ context.Context, key string) ([]domain.ExternalReference, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.items, key)
		return nil, false
	}
	return slices.Clone(e.refs), true
}

// Set stores refs for the cache TTL, dropping one arbitrary entry when full.
func (c *MemoryCache) Set(_ context.Context, key string, refs []domain.ExternalReference) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.capacity {
		for k := range c.items {
			delete(c.items, k)
			break
		}
	}
	stored := slices.Clone(refs)
	if stored == nil {
		stored = []domain.ExternalReference{}
	}
	c.items[key] = cacheEntry{refs: stored, expiresAt: c.now().Add(c.ttl)}
}

// Evict removes key.
func (c *MemoryCache) Evict(_ context.Context, key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
