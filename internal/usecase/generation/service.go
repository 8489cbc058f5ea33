// Package generation produces course materials grounded in retrieved excerpts and external references.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/edurag/internal/domain"
	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
	"github.com/kailas-cloud/edurag/internal/domain/material"
	"github.com/kailas-cloud/edurag/internal/metrics"
	"github.com/kailas-cloud/edurag/internal/usecase/grounding"
	"github.com/kailas-cloud/edurag/internal/usecase/retrieval"
)

// Sampling holds model parameters for one category.
type Sampling struct {
	Temperature float32
	MaxTokens   int
}

// Config holds orchestration tuning.
type Config struct {
	TopK     int
	Policy   grounding.Policy
	Sampling map[material.Category]Sampling
}

// DefaultSampling is theory 0.2/1200 and lab 0.25/1400.
var DefaultSampling = map[material.Category]Sampling{
	material.CategoryTheory: {Temperature: 0.2, MaxTokens: 1200},
	material.CategoryLab:    {Temperature: 0.25, MaxTokens: 1400},
}

// Request describes one generation.
type Request struct {
	CourseID  string
	Topic     string
	Category  material.Category
	Filters   domchunk.Filters
	Depth     string
	CreatedBy string
}

// Service is the generation orchestrator.
type Service struct {
	retriever Retriever
	enricher  Enricher
	model     domain.Completer
	materials MaterialRepository
	embed     Embedder
	index     ChunkIndexer
	cfg       Config
	newID     func() string
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a generation orchestrator. enricher, embed and index may be nil.
func New(
	retriever Retriever,
	enricher Enricher,
	model domain.Completer,
	materials MaterialRepository,
	embed Embedder,
	index ChunkIndexer,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Policy == (grounding.Policy{}) {
		cfg.Policy = grounding.DefaultPolicy
	}
	if cfg.Sampling == nil {
		cfg.Sampling = DefaultSampling
	}
	return &Service{
		retriever: retriever,
		enricher:  enricher,
		model:     model,
		materials: materials,
		embed:     embed,
		index:     index,
		cfg:       cfg,
		newID:     uuid.NewString,
		now:       time.Now,
		logger:    logger,
	}
}

// Generate retrieves, optionally enriches, prompts the model and persists the material.
// It fails with a *domain.InsufficientGroundingError when neither course excerpts nor
// external references are available.
func (s *Service) Generate(ctx context.Context, req Request) (material.Material, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return material.Material{}, fmt.Errorf("%w: topic is required", domain.ErrInvalidInput)
	}
	if req.CourseID == "" {
		return material.Material{}, fmt.Errorf("%w: course_id is required", domain.ErrInvalidInput)
	}

	filters := req.Filters
	filters.Category = string(req.Category)

	selected, err := s.retriever.Select(ctx, retrieval.Request{
		Namespace: req.CourseID,
		CourseID:  req.CourseID,
		Query:     topic,
		Filters:   filters,
		TopK:      s.cfg.TopK,
	})
	chunks, reason := selected.Chunks, selected.Reason
	if err != nil {
		r, ok := domain.GroundingReasonOf(err)
		if !ok {
			return material.Material{}, fmt.Errorf("retrieve: %w", err)
		}
		chunks, reason = nil, r
	}
	if reason == "" {
		reason = domain.ReasonEmptyCourse
	}

	score := grounding.Score(chunks)

	var refs []domain.ExternalReference
	if s.enricher != nil && s.cfg.Policy.NeedsEnrichment(len(chunks), score) {
		refs = s.enricher.Enrich(ctx, topic)
	}

	if len(chunks) == 0 && len(refs) == 0 {
		metrics.GenerationsTotal.WithLabelValues("none", "insufficient_grounding").Inc()
		return material.Material{}, domain.NewInsufficientGrounding(reason)
	}

	p := buildPrompt(promptInput{
		CourseID: req.CourseID,
		Topic:    topic,
		Category: req.Category,
		Language: req.Filters.Language,
		Depth:    req.Depth,
		Chunks:   chunks,
		Refs:     refs,
	})

	sampling := s.cfg.Sampling[req.Category]
	completion, err := s.model.Complete(ctx, domain.CompletionRequest{
		SystemPrompt: p.System,
		UserPrompt:   p.User,
		Temperature:  sampling.Temperature,
		MaxTokens:    sampling.MaxTokens,
	})
	if err != nil {
		metrics.GenerationsTotal.WithLabelValues(string(p.Mode), "model_error").Inc()
		if errors.Is(err, domain.ErrLLMUnavailable) {
			return material.Material{}, fmt.Errorf("generate: %w", err)
		}
		return material.Material{}, fmt.Errorf("%w: generate: %w", domain.ErrLLMUnavailable, err)
	}
	domain.UsageFromContext(ctx).AddCompletionTokens(completion.PromptTokens + completion.CompletionTokens)

	m := material.Material{
		ID:             s.newID(),
		CourseID:       req.CourseID,
		Category:       req.Category,
		Topic:          topic,
		Prompt:         p.User,
		Output:         strings.TrimSpace(completion.Text),
		Mode:           p.Mode,
		GroundingScore: score,
		Sources:        p.Sources,
		CreatedBy:      req.CreatedBy,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.materials.Insert(ctx, &m); err != nil {
		metrics.GenerationsTotal.WithLabelValues(string(p.Mode), "persist_error").Inc()
		return material.Material{}, fmt.Errorf("persist material: %w", err)
	}

	metrics.GenerationsTotal.WithLabelValues(string(p.Mode), "ok").Inc()
	if score != nil {
		metrics.GroundingScore.Observe(*score)
	}

	s.indexOutput(ctx, m, req.Filters.Language)
	return m, nil
}

// indexOutput stores the generated text as a chunk tagged generated_<category>.
// Failures are logged only.
func (s *Service) indexOutput(ctx context.Context, m material.Material, language string) {
	if s.embed == nil || s.index == nil || m.Output == "" {
		return
	}

	emb, err := s.embed.Embed(ctx, m.Output)
	if err != nil {
		s.logger.Warn("Generated output not indexed: embedding failed",
			zap.String("material_id", m.ID), zap.Error(err))
		return
	}

	c, err := domchunk.New(domchunk.Params{
		ID:        s.newID(),
		Namespace: m.CourseID,
		Content:   m.Output,
		Embedding: emb.Embedding,
		Type:      domchunk.TypeText,
		Source:    domchunk.SourceGeneratedMaterial,
		Metadata: domchunk.Metadata{
			CourseID:  m.CourseID,
			ContentID: m.ID,
			Category:  string(m.Category),
			Topic:     m.Topic,
			Language:  language,
			Kind:      domchunk.GeneratedKind(string(m.Category)),
			CreatedBy: m.CreatedBy,
		},
	})
	if err != nil {
		s.logger.Warn("Generated output not indexed", zap.String("material_id", m.ID), zap.Error(err))
		return
	}

	if _, err := s.index.Insert(ctx, []domchunk.Chunk{c}); err != nil {
		s.logger.Warn("Generated output not indexed: store write failed",
			zap.String("material_id", m.ID), zap.Error(err))
	}
}
