package answer

import (
	"context"

	"github.com/kailas-cloud/edurag/internal/domain"
	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
	"github.com/kailas-cloud/edurag/internal/usecase/retrieval"
)

// Retriever selects course chunks for a question.
type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) ([]domchunk.Retrieved, error)
}

// UserStore searches a user's chunks across namespaces.
type UserStore interface {
	SearchByUser(ctx context.Context, query []float32, userID string, topK int) ([]domchunk.Retrieved, error)
}

// Embedder vectorizes the question for user-scoped search.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
