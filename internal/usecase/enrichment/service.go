// Package enrichment supplies secondary external references when course grounding is weak.
package enrichment

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/edurag/internal/domain"
	"github.com/kailas-cloud/edurag/internal/metrics"
)

// Enricher looks a topic up in an external source, summary first, then search.
// It never fails: every error degrades to an empty result.
type Enricher struct {
	source      Source
	cache       Cache
	searchLimit int
	logger      *zap.Logger
}

// New creates an enricher. A nil source disables enrichment.
func New(source Source, cache Cache, searchLimit int, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if searchLimit <= 0 {
		searchLimit = 2
	}
	return &Enricher{source: source, cache: cache, searchLimit: min(searchLimit, 5), logger: logger}
}

// Enrich returns up to searchLimit references for topic.
func (e *Enricher) Enrich(ctx context.Context, topic string) []domain.ExternalReference {
	topic = strings.TrimSpace(topic)
	if topic == "" || e.source == nil {
		return nil
	}

	if refs := e.summary(ctx, topic); len(refs) > 0 {
		return refs
	}
	return e.search(ctx, topic)
}

func (e *Enricher) summary(ctx context.Context, topic string) []domain.ExternalReference {
	key := "summary:" + normalize(topic)
	return e.cached(ctx, key, "summary", func() ([]domain.ExternalReference, error) {
		ref, err := e.source.Summary(ctx, topic)
		if err != nil || ref == nil || strings.TrimSpace(ref.Extract) == "" {
			return nil, err
		}
		return []domain.ExternalReference{*ref}, nil
	})
}

func (e *Enricher) search(ctx context.Context, topic string) []domain.ExternalReference {
	key := fmt.Sprintf("search:%s:%d", normalize(topic), e.searchLimit)
	return e.cached(ctx, key, "search", func() ([]domain.ExternalReference, error) {
		refs, err := e.source.Search(ctx, topic, e.searchLimit)
		if err != nil {
			return nil, err
		}
		if len(refs) > e.searchLimit {
			refs = refs[:e.searchLimit]
		}
		return refs, nil
	})
}

// cached serves key from the cache or fetches it. Failures are cached as empty.
func (e *Enricher) cached(
	ctx context.Context, key, endpoint string, fetch func() ([]domain.ExternalReference, error),
) []domain.ExternalReference {
	if e.cache != nil {
		if refs, ok := e.cache.Get(ctx, key); ok {
			metrics.EnrichmentCacheTotal.WithLabelValues("hit").Inc()
			return refs
		}
		metrics.EnrichmentCacheTotal.WithLabelValues("miss").Inc()
	}

	refs, err := fetch()
	switch {
	case err != nil:
		metrics.EnrichmentFetchTotal.WithLabelValues(endpoint, "error").Inc()
		e.logger.Warn("External knowledge fetch failed",
			zap.String("endpoint", endpoint), zap.String("key", key), zap.Error(err))
		refs = nil
	case len(refs) == 0:
		metrics.EnrichmentFetchTotal.WithLabelValues(endpoint, "empty").Inc()
	default:
		metrics.EnrichmentFetchTotal.WithLabelValues(endpoint, "ok").Inc()
	}

	if e.cache != nil {
		e.cache.Set(ctx, key, refs)
	}
	return refs
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
