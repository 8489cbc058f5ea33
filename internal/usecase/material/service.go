// Package material reads and deletes generated materials.
package material

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/edurag/internal/domain"
	dommat "github.com/kailas-cloud/edurag/internal/domain/material"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Service handles material listing and removal.
type Service struct {
	repo   Repository
	chunks ChunkDeleter
	logger *zap.Logger
}

// New creates a material service. chunks may be nil when outputs are not indexed.
func New(repo Repository, chunks ChunkDeleter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, chunks: chunks, logger: logger}
}

// Get returns a material by ID.
func (s *Service) Get(ctx context.Context, id string) (dommat.Material, error) {
	if strings.TrimSpace(id) == "" {
		return dommat.Material{}, fmt.Errorf("%w: material id is required", domain.ErrInvalidInput)
	}
	return s.repo.Get(ctx, id)
}

// List returns the newest materials of a course. limit is clamped to [1, 200], default 50.
func (s *Service) List(ctx context.Context, courseID string, limit int) ([]dommat.Material, error) {
	if strings.TrimSpace(courseID) == "" {
		return nil, fmt.Errorf("%w: course_id is required", domain.ErrInvalidInput)
	}
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}

	items, err := s.repo.ListByCourse(ctx, courseID, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []dommat.Material{}
	}
	return items, nil
}

// Delete removes a material and then the chunk indexed from its output.
// A failed chunk cleanup is logged; the material stays deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	m, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if s.chunks == nil {
		return nil
	}
	n, err := s.chunks.DeleteByContentID(ctx, m.CourseID, m.ID)
	if err != nil {
		s.logger.Warn("Failed to delete indexed material output",
			zap.String("material_id", m.ID), zap.String("course_id", m.CourseID), zap.Error(err))
		return nil
	}
	s.logger.Debug("Material deleted", zap.String("material_id", m.ID), zap.Int("chunks", n))
	return nil
}
