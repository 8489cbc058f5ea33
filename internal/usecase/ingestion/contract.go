package ingestion

import (
	"context"

	"github.com/kailas-cloud/edurag/internal/domain"
	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
)

// Store is the vector store surface used by ingestion.
type Store interface {
	Insert(ctx context.Context, chunks []domchunk.Chunk) (int, error)
	DeleteByContentID(ctx context.Context, namespace, contentID string) (int, error)
}

// Embedder vectorizes chunk text. Implementations may also satisfy
// domain.BatchEmbedder and domain.ImageEmbedder.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
