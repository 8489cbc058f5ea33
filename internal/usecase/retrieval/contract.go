package retrieval

import (
	"context"

	"github.com/kailas-cloud/edurag/internal/domain"
	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
)

// Store is the vector store surface used by retrieval.
type Store interface {
	Search(ctx context.Context, query []float32, namespace string, topK int) ([]domchunk.Retrieved, error)
	FindByCourse(ctx context.Context, courseID string) ([]domchunk.Retrieved, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
