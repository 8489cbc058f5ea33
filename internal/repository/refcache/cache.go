// Package refcache keeps external reference lookups in Redis so every replica shares them.
package refcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/edurag/internal/db"
	"github.com/kailas-cloud/edurag/internal/domain"
)

// store is the consumer interface for the reference cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int, error)
}

// Cache implements enrichment.Cache over Redis. Capacity is left to Redis eviction.
type Cache struct {
	store  store
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a Redis-backed reference cache under {keyPrefix}ref_cache:.
func New(s store, keyPrefix string, ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: s, prefix: keyPrefix + "ref_cache:", ttl: ttl, logger: logger}
}

// Get returns cached references. Store errors and corrupt entries are misses.
func (c *Cache) Get(ctx context.Context, key string) ([]domain.ExternalReference, bool) {
	data, err := c.store.Get(ctx, c.prefix+key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Reference cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var refs []domain.ExternalReference
	if err := json.Unmarshal(data, &refs); err != nil {
		c.logger.Warn("Corrupt reference cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if refs == nil {
		refs = []domain.ExternalReference{}
	}
	return refs, true
}

// Set stores refs with the cache TTL. An empty slice is stored as [].
func (c *Cache) Set(ctx context.Context, key string, refs []domain.ExternalReference) {
	if refs == nil {
		refs = []domain.ExternalReference{}
	}
	data, err := json.Marshal(refs)
	if err != nil {
		c.logger.Warn("Reference cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, c.prefix+key, data, c.ttl); err != nil {
		c.logger.Warn("Reference cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Evict deletes key.
func (c *Cache) Evict(ctx context.Context, key string) {
	if _, err := c.store.Del(ctx, c.prefix+key); err != nil {
		c.logger.Warn("Reference cache evict failed", zap.String("key", key), zap.Error(err))
	}
}
