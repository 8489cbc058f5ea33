package enrichment

import (
	"context"

	"github.com/kailas-cloud/edurag/internal/domain"
)

// Source is an external knowledge provider (transport/wikipedia).
type Source interface {
	// Summary returns the page summary for a title, or nil when the page has no usable extract.
	Summary(ctx context.Context, title string) (*domain.ExternalReference, error)
	// Search returns up to limit pages matching query.
	Search(ctx context.Context, query string, limit int) ([]domain.ExternalReference, error)
}

// Cache stores lookup results by normalized key. An empty cached slice is a hit.
// Implementations are best-effort and never fail the caller.
type Cache interface {
	Get(ctx context.Context, key string) ([]domain.ExternalReference, bool)
	Set(ctx context.Context, key string, refs []domain.ExternalReference)
	Evict(ctx context.Context, key string)
}
