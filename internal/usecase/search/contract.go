package search

import (
	"context"

	"github.com/kailas-cloud/edurag/internal/domain"
	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
)

// Store defines the vector store contract for image search.
type Store interface {
	Search(ctx context.Context, query []float32, namespace string, topK int) ([]domchunk.Retrieved, error)
	SearchByUser(ctx context.Context, query []float32, userID string, topK int) ([]domchunk.Retrieved, error)
}

// Embedder vectorizes text into the shared text/image embedding space.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
