// Package search finds course images matching a text query.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/edurag/internal/domain"
	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
)

// Image is one image hit.
type Image struct {
	ChunkID    string
	URL        string
	Similarity float64
	Content    string
	Metadata   domchunk.Metadata
}

// Config holds image search defaults.
type Config struct {
	OverfetchFactor int
	DefaultTopK     int
}

// Service handles text-to-image search.
type Service struct {
	store     Store
	embed     Embedder
	overfetch int
	topK      int
}

// New creates an image search service.
func New(store Store, embed Embedder, cfg Config) *Service {
	if cfg.OverfetchFactor < 1 {
		cfg.OverfetchFactor = 5
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 12
	}
	return &Service{store: store, embed: embed, overfetch: cfg.OverfetchFactor, topK: cfg.DefaultTopK}
}

// SearchImages returns up to topK image chunks of a course scoring at least minSimilarity.
func (s *Service) SearchImages(
	ctx context.Context, courseID, query string, topK int, minSimilarity float64,
) ([]Image, error) {
	if courseID == "" {
		return nil, fmt.Errorf("%w: course_id is required", domain.ErrInvalidInput)
	}
	vec, topK, err := s.prepare(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	raw, err := s.store.Search(ctx, vec, courseID, max(topK*s.overfetch, topK))
	if err != nil {
		return nil, fmt.Errorf("search images %s: %w", courseID, err)
	}
	return filterImages(raw, topK, minSimilarity), nil
}

// SearchImagesForUser searches the images tagged with userID across courses.
func (s *Service) SearchImagesForUser(
	ctx context.Context, userID, query string, topK int, minSimilarity float64,
) ([]Image, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
	}
	vec, topK, err := s.prepare(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	raw, err := s.store.SearchByUser(ctx, vec, userID, max(topK*s.overfetch, topK))
	if err != nil {
		return nil, fmt.Errorf("search images for user %s: %w", userID, err)
	}
	return filterImages(raw, topK, minSimilarity), nil
}

func (s *Service) prepare(ctx context.Context, query string, topK int) ([]float32, int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, 0, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = s.topK
	}
	res, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, 0, domain.WrapEmbeddingError("embed query", err)
	}
	return res.Embedding, topK, nil
}

// filterImages keeps image hits above the threshold, preserving rank order.
func filterImages(raw []domchunk.Retrieved, topK int, minSimilarity float64) []Image {
	out := make([]Image, 0, topK)
	for _, r := range raw {
		if !r.Chunk.IsImage() {
			continue
		}
		sim := r.SimilarityOrZero()
		if sim < minSimilarity {
			continue
		}
		url := r.Chunk.FileURL()
		if url == "" {
			url = r.Chunk.Metadata().FileURL
		}
		out = append(out, Image{
			ChunkID:    r.Chunk.ID(),
			URL:        url,
			Similarity: sim,
			Content:    r.Chunk.Content(),
			Metadata:   r.Chunk.Metadata(),
		})
		if len(out) == topK {
			break
		}
	}
	return out
}
