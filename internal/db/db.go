// Package db defines the storage contracts for the chunk index and its
// auxiliary key-value data (embedding cache, reference cache, budget counters).
// internal/db/redis implements them for Redis 8 and Valkey with the search module.
package db

import (
	"context"
	"time"
)

// Store is everything the redis driver offers. Consumers declare the narrow
// subset they use instead of depending on Store.
type Store interface {
	Ping(ctx context.Context) error
	HashStore
	KVStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// HashSetItem is one chunk hash written by HSetMulti.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore holds chunk hashes.
type HashStore interface {
	HSetMulti(ctx context.Context, items []HashSetItem) error
	// HGetAllMulti returns one map per key, empty for keys that no longer exist.
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) (int, error)
	// Scan returns keys matching pattern; limit <= 0 means all.
	Scan(ctx context.Context, pattern string, limit int) ([]string, error)
}

// KVStore holds cache entries and counters.
type KVStore interface {
	// Get returns ErrKeyNotFound for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	// SetWithTTL stores value; ttl <= 0 means no expiry.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// IncrWithTTL adds delta to a counter and sets ttl only if the counter has none yet.
	// It returns the new value.
	IncrWithTTL(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
}

// IndexManager manages the FT index lifecycle.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	// DropIndex removes the index definition and keeps the indexed hashes.
	DropIndex(ctx context.Context, name string) error
}

// Searcher queries an FT index.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*SearchResult, error)
}
