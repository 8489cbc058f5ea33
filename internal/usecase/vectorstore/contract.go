package vectorstore

import (
	"context"

	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
)

// Repository is the chunk persistence contract (implemented by repository/chunk).
type Repository interface {
	Insert(ctx context.Context, chunks []domchunk.Chunk) (int, error)
	Nearest(ctx context.Context, namespace string, vec []float32, k int) ([]domchunk.Retrieved, error)
	ScanNamespace(ctx context.Context, namespace string, limit int) ([]domchunk.Chunk, error)
	FindByCourse(ctx context.Context, courseID string, limit int) ([]domchunk.Chunk, error)
	FindByUser(ctx context.Context, userID string, limit int) ([]domchunk.Chunk, error)
	DeleteByContentID(ctx context.Context, namespace, contentID string) (int, error)
}

// Lookup is one stage of a namespace similarity search.
// Both stages return the same Retrieved shape, ordered by similarity descending.
type Lookup interface {
	Lookup(ctx context.Context, namespace string, query []float32, topK int) ([]domchunk.Retrieved, error)
	// Path names the stage for logs and metrics.
	Path() string
}
