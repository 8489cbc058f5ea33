// Package vectorstore is the chunk store used by retrieval, ingestion and generation.
package vectorstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/edurag/internal/domain"
	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
	"github.com/kailas-cloud/edurag/internal/domain/vector"
	"github.com/kailas-cloud/edurag/internal/metrics"
)

// Config holds store limits.
type Config struct {
	Dimensions int
	// ScanLimit bounds rows read by scan paths.
	ScanLimit int
}

// Service searches and mutates course chunks.
type Service struct {
	repo      Repository
	primary   Lookup
	fallback  Lookup
	dim       int
	scanLimit int
	logger    *zap.Logger
}

// New creates a store. primary may be nil to always use the fallback stage.
func New(repo Repository, primary, fallback Lookup, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fallback == nil {
		fallback = NewFallbackLookup(repo, cfg.ScanLimit)
	}
	return &Service{
		repo:      repo,
		primary:   primary,
		fallback:  fallback,
		dim:       cfg.Dimensions,
		scanLimit: cfg.ScanLimit,
		logger:    logger,
	}
}

// Dimensions returns the configured embedding dimension.
func (s *Service) Dimensions() int { return s.dim }

// Insert coerces embeddings to the configured dimension and writes chunks in batches.
// The count covers chunks written before a failure.
func (s *Service) Insert(ctx context.Context, chunks []domchunk.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	prepared := make([]domchunk.Chunk, len(chunks))
	for i, c := range chunks {
		prepared[i] = c.WithEmbedding(s.coerce(c.Embedding(), "insert", c.ID()))
	}

	n, err := s.repo.Insert(ctx, prepared)
	if err != nil {
		return n, fmt.Errorf("%w: insert: %w", domain.ErrVectorStore, err)
	}
	return n, nil
}

// Search returns the topK most similar chunks of namespace.
// A primary stage failure is logged and the fallback stage answers instead.
func (s *Service) Search(
	ctx context.Context, query []float32, namespace string, topK int,
) ([]domchunk.Retrieved, error) {
	query = s.coerce(query, "search", namespace)

	if s.primary != nil {
		res, err := s.primary.Lookup(ctx, namespace, query, topK)
		if err == nil {
			metrics.RetrievalLookupsTotal.WithLabelValues(s.primary.Path(), "ok").Inc()
			return res, nil
		}
		metrics.RetrievalLookupsTotal.WithLabelValues(s.primary.Path(), "error").Inc()
		s.logger.Warn("Primary lookup failed, falling back to scan",
			zap.String("namespace", namespace), zap.Error(err))
	}

	res, err := s.fallback.Lookup(ctx, namespace, query, topK)
	if err != nil {
		metrics.RetrievalLookupsTotal.WithLabelValues(s.fallback.Path(), "error").Inc()
		return nil, fmt.Errorf("%w: search %s: %w", domain.ErrVectorStore, namespace, err)
	}
	metrics.RetrievalLookupsTotal.WithLabelValues(s.fallback.Path(), "ok").Inc()
	return res, nil
}

// SearchByUser ranks the chunks tagged with userID across all namespaces. Always a scan.
func (s *Service) SearchByUser(
	ctx context.Context, query []float32, userID string, topK int,
) ([]domchunk.Retrieved, error) {
	query = s.coerce(query, "search_by_user", userID)

	chunks, err := s.repo.FindByUser(ctx, userID, s.scanLimit)
	if err != nil {
		metrics.RetrievalLookupsTotal.WithLabelValues(PathUserScan, "error").Inc()
		return nil, fmt.Errorf("%w: search by user: %w", domain.ErrVectorStore, err)
	}
	metrics.RetrievalLookupsTotal.WithLabelValues(PathUserScan, "ok").Inc()
	return Rank(query, chunks, topK), nil
}

// FindByCourse reads chunks by metadata course_id regardless of namespace.
// Results carry no similarity.
func (s *Service) FindByCourse(ctx context.Context, courseID string) ([]domchunk.Retrieved, error) {
	chunks, err := s.repo.FindByCourse(ctx, courseID, s.scanLimit)
	if err != nil {
		metrics.RetrievalLookupsTotal.WithLabelValues(PathMetadataFallback, "error").Inc()
		return nil, fmt.Errorf("%w: find by course: %w", domain.ErrVectorStore, err)
	}
	metrics.RetrievalLookupsTotal.WithLabelValues(PathMetadataFallback, "ok").Inc()

	out := make([]domchunk.Retrieved, len(chunks))
	for i, c := range chunks {
		out[i] = domchunk.Retrieved{Chunk: c}
	}
	return out, nil
}

// DeleteByContentID removes the chunks of one content item within namespace.
func (s *Service) DeleteByContentID(ctx context.Context, namespace, contentID string) (int, error) {
	n, err := s.repo.DeleteByContentID(ctx, namespace, contentID)
	if err != nil {
		return 0, fmt.Errorf("%w: delete: %w", domain.ErrVectorStore, err)
	}
	return n, nil
}

func (s *Service) coerce(v []float32, op, subject string) []float32 {
	if s.dim <= 0 {
		return v
	}
	out, changed := vector.Coerce(v, s.dim)
	if changed {
		s.logger.Warn("Embedding dimension mismatch, coerced",
			zap.String("op", op), zap.String("subject", subject),
			zap.Int("got", len(v)), zap.Int("expected", s.dim))
	}
	return out
}
