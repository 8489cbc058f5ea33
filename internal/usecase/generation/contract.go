package generation

import (
	"context"

	"github.com/kailas-cloud/edurag/internal/domain"
	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
	"github.com/kailas-cloud/edurag/internal/domain/material"
	"github.com/kailas-cloud/edurag/internal/usecase/retrieval"
)

// Retriever selects grounding chunks for a topic and classifies an empty selection.
type Retriever interface {
	Select(ctx context.Context, req retrieval.Request) (retrieval.Outcome, error)
}

// Enricher supplies external references. It never fails.
type Enricher interface {
	Enrich(ctx context.Context, topic string) []domain.ExternalReference
}

// Embedder vectorizes the generated output for re-indexing.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// MaterialRepository persists generated materials.
type MaterialRepository interface {
	Insert(ctx context.Context, m *material.Material) error
}

// ChunkIndexer writes chunks to the vector store.
type ChunkIndexer interface {
	Insert(ctx context.Context, chunks []domchunk.Chunk) (int, error)
}
