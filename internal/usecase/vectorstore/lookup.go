package vectorstore

import (
	"cmp"
	"context"
	"slices"

	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
	"github.com/kailas-cloud/edurag/internal/domain/vector"
)

// Lookup paths.
const (
	PathPrimary          = "primary"
	PathScan             = "scan"
	PathMetadataFallback = "metadata_fallback"
	PathUserScan         = "user_scan"
)

// PrimaryLookup ranks on the server through the vector index.
type PrimaryLookup struct {
	repo Repository
}

// NewPrimaryLookup creates the index-backed stage.
func NewPrimaryLookup(repo Repository) *PrimaryLookup {
	return &PrimaryLookup{repo: repo}
}

// Lookup runs a KNN query restricted to namespace.
func (l *PrimaryLookup) Lookup(
	ctx context.Context, namespace string, query []float32, topK int,
) ([]domchunk.Retrieved, error) {
	return l.repo.Nearest(ctx, namespace, query, topK)
}

// Path implements Lookup.
func (l *PrimaryLookup) Path() string { return PathPrimary }

// FallbackLookup reads a bounded slice of the namespace and ranks it in process.
type FallbackLookup struct {
	repo  Repository
	limit int
}

// NewFallbackLookup creates the scan stage reading at most limit chunks.
func NewFallbackLookup(repo Repository, limit int) *FallbackLookup {
	return &FallbackLookup{repo: repo, limit: limit}
}

// Lookup scans the namespace and ranks by cosine similarity.
func (l *FallbackLookup) Lookup(
	ctx context.Context, namespace string, query []float32, topK int,
) ([]domchunk.Retrieved, error) {
	chunks, err := l.repo.ScanNamespace(ctx, namespace, l.limit)
	if err != nil {
		return nil, err
	}
	return Rank(query, chunks, topK), nil
}

// Path implements Lookup.
func (l *FallbackLookup) Path() string { return PathScan }

// Rank scores chunks against query, skips zero-norm pairs, sorts descending and keeps topK.
// topK <= 0 keeps everything.
func Rank(query []float32, chunks []domchunk.Chunk, topK int) []domchunk.Retrieved {
	out := make([]domchunk.Retrieved, 0, len(chunks))
	for _, c := range chunks {
		sim, ok := vector.Cosine(query, c.Embedding())
		if !ok {
			continue
		}
		out = append(out, domchunk.Retrieved{Chunk: c, Similarity: domchunk.Score(sim)})
	}

	slices.SortStableFunc(out, func(a, b domchunk.Retrieved) int {
		return cmp.Compare(b.SimilarityOrZero(), a.SimilarityOrZero())
	})

	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}
