// Package ingestion turns extracted course text and images into indexed chunks.
package ingestion

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/edurag/internal/domain"
	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
	"github.com/kailas-cloud/edurag/internal/domain/material"
	"github.com/kailas-cloud/edurag/internal/domain/vector"
	"github.com/kailas-cloud/edurag/internal/metrics"
)

// Content types accepted for course content.
var contentTypes = []string{"slide", "pdf", "code", "note", "image"}

// IngestRequest carries extracted text plus its descriptive metadata.
type IngestRequest struct {
	CourseID    string
	ContentID   string
	Text        string
	Category    string
	ContentType string
	Week        *int
	Topic       string
	Language    string
	Title       string
	FileURL     string
	CreatedBy   string
	Source      string
	UserID      string
}

// ImageRequest describes one course image.
type ImageRequest struct {
	CourseID  string
	ContentID string
	ImageURL  string
	Category  string
	Week      *int
	Topic     string
	Title     string
	CreatedBy string
	UserID    string
}

// IngestResult reports what was indexed.
type IngestResult struct {
	ContentID string `json:"content_id"`
	Chunks    int    `json:"chunks"`
}

// Service indexes course content.
type Service struct {
	store   Store
	embed   Embedder
	chunker *Chunker
	dim     int
	newID   func() string
	logger  *zap.Logger
}

// New creates an ingestion service producing dim-sized embeddings.
func New(store Store, embed Embedder, chunker *Chunker, dim int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if chunker == nil {
		chunker = NewChunker()
	}
	return &Service{store: store, embed: embed, chunker: chunker, dim: dim, newID: uuid.NewString, logger: logger}
}

// IngestText chunks, embeds and stores req.Text under the course namespace.
// Chunks whose embedding fails get a zero vector instead of failing the batch.
func (s *Service) IngestText(ctx context.Context, req IngestRequest) (IngestResult, error) {
	category, err := material.ParseCategory(req.Category)
	if err != nil {
		return IngestResult{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if !slices.Contains(contentTypes, req.ContentType) {
		return IngestResult{}, fmt.Errorf("%w: content_type must be one of %s, got %q",
			domain.ErrInvalidInput, strings.Join(contentTypes, ", "), req.ContentType)
	}
	if req.CourseID == "" {
		return IngestResult{}, fmt.Errorf("%w: course_id is required", domain.ErrInvalidInput)
	}

	contentID := req.ContentID
	if contentID == "" {
		contentID = s.newID()
	}

	parts := s.chunker.Split(req.Text)
	if len(parts) == 0 {
		return IngestResult{ContentID: contentID}, nil
	}

	embeddings := s.embedTexts(ctx, parts)

	source := req.Source
	if source == "" {
		source = req.ContentType
	}
	title := req.Title
	if title == "" {
		title = req.Topic
	}

	chunks := make([]domchunk.Chunk, 0, len(parts))
	for i, part := range parts {
		c, err := domchunk.New(domchunk.Params{
			ID:        s.newID(),
			Namespace: req.CourseID,
			Content:   part,
			Embedding: embeddings[i],
			Type:      domchunk.TypeFile,
			Source:    source,
			FileURL:   req.FileURL,
			Metadata: domchunk.Metadata{
				CourseID:    req.CourseID,
				ContentID:   contentID,
				Category:    string(category),
				Week:        req.Week,
				Topic:       req.Topic,
				Title:       title,
				Language:    req.Language,
				ContentType: req.ContentType,
				ChunkIndex:  domchunk.IntPtr(i),
				TotalChunks: domchunk.IntPtr(len(parts)),
				FileURL:     req.FileURL,
				CreatedBy:   req.CreatedBy,
				UserID:      req.UserID,
			},
		})
		if err != nil {
			return IngestResult{}, fmt.Errorf("%w: chunk %d: %w", domain.ErrInvalidInput, i, err)
		}
		chunks = append(chunks, c)
	}

	n, err := s.store.Insert(ctx, chunks)
	if err != nil {
		return IngestResult{ContentID: contentID, Chunks: n}, fmt.Errorf("insert chunks: %w", err)
	}

	s.logger.Info("Content ingested",
		zap.String("course_id", req.CourseID),
		zap.String("content_id", contentID),
		zap.Int("chunks", n))
	return IngestResult{ContentID: contentID, Chunks: n}, nil
}

// IngestImage stores one image chunk with an empty content.
func (s *Service) IngestImage(ctx context.Context, req ImageRequest) (IngestResult, error) {
	if req.CourseID == "" || req.ImageURL == "" {
		return IngestResult{}, fmt.Errorf("%w: course_id and image_url are required", domain.ErrInvalidInput)
	}
	category := ""
	if req.Category != "" {
		c, err := material.ParseCategory(req.Category)
		if err != nil {
			return IngestResult{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
		category = string(c)
	}

	contentID := req.ContentID
	if contentID == "" {
		contentID = s.newID()
	}

	c, err := domchunk.New(domchunk.Params{
		ID:        s.newID(),
		Namespace: req.CourseID,
		Embedding: s.embedImage(ctx, req.ImageURL),
		Type:      domchunk.TypeImage,
		Source:    "image",
		FileURL:   req.ImageURL,
		Metadata: domchunk.Metadata{
			CourseID:    req.CourseID,
			ContentID:   contentID,
			Category:    category,
			Week:        req.Week,
			Topic:       req.Topic,
			Title:       req.Title,
			ContentType: "image",
			FileURL:     req.ImageURL,
			CreatedBy:   req.CreatedBy,
			UserID:      req.UserID,
		},
	})
	if err != nil {
		return IngestResult{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	n, err := s.store.Insert(ctx, []domchunk.Chunk{c})
	if err != nil {
		return IngestResult{ContentID: contentID}, fmt.Errorf("insert image chunk: %w", err)
	}
	return IngestResult{ContentID: contentID, Chunks: n}, nil
}

// DeleteContent removes every chunk of one content item.
func (s *Service) DeleteContent(ctx context.Context, courseID, contentID string) (int, error) {
	if courseID == "" || contentID == "" {
		return 0, fmt.Errorf("%w: course_id and content_id are required", domain.ErrInvalidInput)
	}
	n, err := s.store.DeleteByContentID(ctx, courseID, contentID)
	if err != nil {
		return 0, fmt.Errorf("delete content %s: %w", contentID, err)
	}
	return n, nil
}

// embedTexts returns one dim-sized vector per text. A batch call is tried first;
// on its failure each text is embedded alone and failures become zero vectors.
func (s *Service) embedTexts(ctx context.Context, texts []string) [][]float32 {
	if be, ok := s.embed.(domain.BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err == nil && len(res.Embeddings) == len(texts) {
			out := make([][]float32, len(texts))
			for i, v := range res.Embeddings {
				out[i] = s.coerce(v, "text")
			}
			return out
		}
		s.logger.Warn("Batch embedding failed, embedding chunks one by one",
			zap.Int("texts", len(texts)), zap.Error(err))
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		res, err := s.embed.Embed(ctx, t)
		if err != nil {
			s.logger.Warn("Embedding provider error, substituting zero vector",
				zap.Int("chunk_index", i), zap.Error(err))
			metrics.EmbeddingFallbacksTotal.WithLabelValues("text").Inc()
			out[i] = vector.Zero(s.dim)
			continue
		}
		out[i] = s.coerce(res.Embedding, "text")
	}
	return out
}

func (s *Service) embedImage(ctx context.Context, url string) []float32 {
	ie, ok := s.embed.(domain.ImageEmbedder)
	if !ok {
		s.logger.Warn("Embedder has no image support, substituting zero vector", zap.String("url", url))
		metrics.EmbeddingFallbacksTotal.WithLabelValues("image").Inc()
		return vector.Zero(s.dim)
	}
	res, err := ie.EmbedImage(ctx, url)
	if err != nil {
		s.logger.Warn("Image embedding failed, substituting zero vector",
			zap.String("url", url), zap.Error(err))
		metrics.EmbeddingFallbacksTotal.WithLabelValues("image").Inc()
		return vector.Zero(s.dim)
	}
	return s.coerce(res.Embedding, "image")
}

func (s *Service) coerce(v []float32, modality string) []float32 {
	if len(v) == 0 {
		metrics.EmbeddingFallbacksTotal.WithLabelValues(modality).Inc()
		return vector.Zero(s.dim)
	}
	out, changed := vector.Coerce(v, s.dim)
	if changed {
		s.logger.Warn("Embedding dimension mismatch, coerced",
			zap.String("modality", modality), zap.Int("got", len(v)), zap.Int("expected", s.dim))
	}
	return out
}
