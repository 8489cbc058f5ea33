package embcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/edurag/internal/db"
	"github.com/kailas-cloud/edurag/internal/domain"
)

// providerStub returns vec for every input and counts calls per method.
type providerStub struct {
	vec     []float32
	tokens  int
	err     error
	short   bool
	embeds  int
	images  int
	batches [][]string
}

func (p *providerStub) result() (domain.EmbeddingResult, error) {
	if p.err != nil {
		return domain.EmbeddingResult{}, p.err
	}
	return domain.EmbeddingResult{Embedding: p.vec, PromptTokens: p.tokens, TotalTokens: p.tokens}, nil
}

func (p *providerStub) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	p.embeds++
	return p.result()
}

func (p *providerStub) EmbedImage(context.Context, string) (domain.EmbeddingResult, error) {
	p.images++
	return p.result()
}

func (p *providerStub) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	p.batches = append(p.batches, texts)
	if p.err != nil {
		return domain.BatchEmbeddingResult{}, p.err
	}
	n := len(texts)
	if p.short {
		n--
	}
	res := domain.BatchEmbeddingResult{Embeddings: make([][]float32, n)}
	for i := range res.Embeddings {
		res.Embeddings[i] = p.vec
	}
	res.PromptTokens = p.tokens * len(texts)
	res.TotalTokens = p.tokens * len(texts)
	return res, nil
}

// plainText implements only Embed.
type plainText struct{ calls int }

func (p *plainText) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	p.calls++
	return domain.EmbeddingResult{Embedding: []float32{1}, TotalTokens: 2}, nil
}

// kvStub is an in-memory store; the fn fields override it per test.
type kvStub struct {
	mu    sync.Mutex
	data  map[string][]byte
	ttls  map[string]time.Duration
	getFn func(key string) ([]byte, error)
	setFn func(key string) error
}

func (s *kvStub) Get(_ context.Context, key string) ([]byte, error) {
	if s.getFn != nil {
		return s.getFn(key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (s *kvStub) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s.setFn != nil {
		return s.setFn(key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

func newCache(t *testing.T, inner domain.Embedder) (*CachedEmbedder, *kvStub, *prometheus.CounterVec) {
	t.Helper()
	kv := &kvStub{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_emb_cache_total"}, []string{"result"})
	return New(inner, kv, "edurag:", 24*time.Hour, lookups, nil), kv, lookups
}
