package chunk

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/edurag/internal/db"
)

// HNSWConfig tunes the vector index graph.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// buildIndex describes the chunk index. The namespace tag is case sensitive
// because it holds course and user ids verbatim; the rest are plain filters.
func buildIndex(keys Keys, dim int, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	return db.NewIndex(keys.Index()).
		Prefix(keys.ChunkPrefix()).
		ExactTag(fieldNamespace).
		Tag(fieldCourseID, fieldContentID, fieldUserID, fieldType, fieldKind).
		Vector(db.VectorField{
			Name:           fieldVector,
			Alias:          "vector",
			Dim:            dim,
			Distance:       db.DistanceCosine,
			Algorithm:      db.VectorHNSW,
			M:              hnsw.M,
			EFConstruction: hnsw.EFConstruct,
		}).
		Build()
}

// EnsureIndex creates the chunk index when missing. Returns true if created.
func (r *Repo) EnsureIndex(ctx context.Context) (bool, error) {
	name := r.keys.Index()
	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", name, err)
	}
	if exists {
		return false, nil
	}
	return r.create(ctx)
}

// RebuildIndex drops and recreates the chunk index with the current dimensions
// and HNSW settings. Stored chunks are kept and re-indexed by the server.
func (r *Repo) RebuildIndex(ctx context.Context) error {
	name := r.keys.Index()
	if err := r.store.DropIndex(ctx, name); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", name, err)
	}
	if _, err := r.create(ctx); err != nil {
		return err
	}
	r.logger.Info("Chunk index rebuilt")
	return nil
}

func (r *Repo) create(ctx context.Context) (bool, error) {
	def, err := buildIndex(r.keys, r.dim, r.hnsw)
	if err != nil {
		return false, fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return false, nil
		}
		return false, fmt.Errorf("create index %s: %w", def.Name, err)
	}
	return true, nil
}
