package material

import (
	"context"

	dommat "github.com/kailas-cloud/edurag/internal/domain/material"
)

// Repository defines persistence for generated materials.
type Repository interface {
	Get(ctx context.Context, id string) (dommat.Material, error)
	ListByCourse(ctx context.Context, courseID string, limit int) ([]dommat.Material, error)
	Delete(ctx context.Context, id string) error
}

// ChunkDeleter removes indexed chunks of a content item.
type ChunkDeleter interface {
	DeleteByContentID(ctx context.Context, namespace, contentID string) (int, error)
}
