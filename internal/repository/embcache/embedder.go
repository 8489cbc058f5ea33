// Package embcache caches provider embeddings in Redis so re-ingestion and repeated queries stay free.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/edurag/internal/db"
	"github.com/kailas-cloud/edurag/internal/domain"
	"github.com/kailas-cloud/edurag/internal/domain/vector"
)

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

const (
	modalityText  = "text"
	modalityImage = "image"
)

// CachedEmbedder memoizes vectors by a hash of the embedded input.
// Hits report zero tokens because the provider was not called.
type CachedEmbedder struct {
	inner  domain.Embedder
	kv     store
	ns     string
	ttl    time.Duration
	lookup *prometheus.CounterVec
	log    *zap.Logger
}

// New wraps inner. Keys live under keyPrefix+"emb_cache:". A non-positive ttl
// stores entries without expiry. lookups is labelled by result ("hit", "miss") and may be nil.
func New(
	inner domain.Embedder,
	s store,
	keyPrefix string,
	ttl time.Duration,
	lookups *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{
		inner:  inner,
		kv:     s,
		ns:     keyPrefix + "emb_cache:",
		ttl:    ttl,
		lookup: lookups,
		log:    logger,
	}
}

// Embed serves a text vector from cache or the provider.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return c.memo(ctx, modalityText, text, func() (domain.EmbeddingResult, error) {
		return c.inner.Embed(ctx, text)
	})
}

// EmbedImage serves an image vector keyed by its URL.
func (c *CachedEmbedder) EmbedImage(ctx context.Context, url string) (domain.EmbeddingResult, error) {
	ie, ok := c.inner.(domain.ImageEmbedder)
	if !ok {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: image embedding not supported", domain.ErrEmbeddingProviderError)
	}
	return c.memo(ctx, modalityImage, url, func() (domain.EmbeddingResult, error) {
		return ie.EmbedImage(ctx, url)
	})
}

func (c *CachedEmbedder) memo(
	ctx context.Context, modality, input string, fetch func() (domain.EmbeddingResult, error),
) (domain.EmbeddingResult, error) {
	key := c.key(modality, input)
	if vec, ok := c.load(ctx, key); ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	res, err := fetch()
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed %s: %w", modality, err)
	}
	c.save(ctx, key, res.Embedding)
	return res, nil
}

// BatchEmbed answers hits from cache and sends the misses to the provider in one call.
// Token counts cover the misses only.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	keys := make([]string, len(texts))
	pending := make([]int, 0, len(texts))
	for i, t := range texts {
		keys[i] = c.key(modalityText, t)
		if vec, ok := c.load(ctx, keys[i]); ok {
			out.Embeddings[i] = vec
		} else {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return out, nil
	}

	misses := make([]string, len(pending))
	for j, i := range pending {
		misses[j] = texts[i]
	}
	res, err := c.fetchBatch(ctx, misses)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	if len(res.Embeddings) != len(misses) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: provider returned %d vectors for %d inputs",
			domain.ErrEmbeddingProviderError, len(res.Embeddings), len(misses))
	}
	for j, i := range pending {
		out.Embeddings[i] = res.Embeddings[j]
		c.save(ctx, keys[i], res.Embeddings[j])
	}
	out.PromptTokens, out.TotalTokens = res.PromptTokens, res.TotalTokens
	return out, nil
}

func (c *CachedEmbedder) fetchBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	res, err := domain.EmbedAll(ctx, c.inner, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed %d cache misses: %w", len(texts), err)
	}
	return res, nil
}

// HealthCheck passes through to the provider.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

func (c *CachedEmbedder) key(modality, input string) string {
	sum := sha256.Sum256([]byte(input))
	return c.ns + modality + ":" + hex.EncodeToString(sum[:])
}

// load counts a hit only when the stored bytes decode to a vector.
func (c *CachedEmbedder) load(ctx context.Context, key string) ([]float32, bool) {
	raw, err := c.kv.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
	case err != nil:
		c.log.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
	case len(raw) > 0:
		vec, decodeErr := vector.FromBytes(raw)
		if decodeErr == nil {
			c.count("hit")
			return vec, true
		}
		c.log.Warn("Dropping undecodable cached embedding", zap.String("key", key), zap.Error(decodeErr))
	}
	c.count("miss")
	return nil, false
}

func (c *CachedEmbedder) save(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := c.kv.SetWithTTL(ctx, key, vector.ToBytes(vec), c.ttl); err != nil {
		c.log.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedEmbedder) count(result string) {
	if c.lookup != nil {
		c.lookup.WithLabelValues(result).Inc()
	}
}
