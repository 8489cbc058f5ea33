// Package retrieval selects the course chunks that ground an answer or a generated material.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/edurag/internal/domain"
	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
	"github.com/kailas-cloud/edurag/internal/metrics"
)

// Config holds retrieval tuning.
type Config struct {
	OverfetchFactor int
	RerankChars     int
	DefaultTopK     int
}

// Request describes one retrieval.
type Request struct {
	Namespace string
	// CourseID keys the metadata fallback lookup. Defaults to Namespace.
	CourseID         string
	Query            string
	Filters          domchunk.Filters
	TopK             int
	IncludeGenerated bool
}

// Service is the context retriever.
type Service struct {
	store     Store
	embed     Embedder
	overfetch int
	chars     int
	topK      int
	logger    *zap.Logger
}

// New creates a context retriever.
func New(store Store, embed Embedder, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OverfetchFactor < 1 {
		cfg.OverfetchFactor = 4
	}
	if cfg.RerankChars <= 0 {
		cfg.RerankChars = 800
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	return &Service{
		store:     store,
		embed:     embed,
		overfetch: cfg.OverfetchFactor,
		chars:     cfg.RerankChars,
		topK:      cfg.DefaultTopK,
		logger:    logger,
	}
}

// Outcome is a completed retrieval. Reason is set only when Chunks is empty.
type Outcome struct {
	Chunks []domchunk.Retrieved
	Reason domain.GroundingReason
}

// Retrieve returns up to TopK grounding chunks ranked by similarity then keyword overlap.
// It fails with a *domain.NoGroundingError when the query has keywords, no week or topic
// filter was given, and no returned chunk mentions any keyword.
func (s *Service) Retrieve(ctx context.Context, req Request) ([]domchunk.Retrieved, error) {
	out, err := s.Select(ctx, req)
	if err != nil {
		return nil, err
	}
	return out.Chunks, nil
}

// Select is Retrieve that also classifies an empty result: empty_course when neither
// the namespace nor the fallback held any text, filtered_out otherwise.
func (s *Service) Select(ctx context.Context, req Request) (Outcome, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = s.topK
	}
	courseID := req.CourseID
	if courseID == "" {
		courseID = req.Namespace
	}

	emb, err := s.embed.Embed(ctx, req.Query)
	if err != nil {
		return Outcome{}, domain.WrapEmbeddingError("embed query", err)
	}

	fetched, err := s.store.Search(ctx, emb.Embedding, req.Namespace, max(topK*s.overfetch, topK))
	if err != nil {
		return Outcome{}, fmt.Errorf("search %s: %w", req.Namespace, err)
	}
	metrics.RetrievalCandidates.WithLabelValues("fetched").Observe(float64(len(fetched)))
	seen := countText(fetched)

	candidates := s.filter(fetched, req)
	if len(candidates) == 0 {
		recovered, raw := s.fallback(ctx, courseID, req)
		seen += raw
		candidates = recovered
	}
	metrics.RetrievalCandidates.WithLabelValues("filtered").Observe(float64(len(candidates)))

	kws := keywords(req.Query)
	ranked := rerank(candidates, kws, s.chars)
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	best := 0
	out := make([]domchunk.Retrieved, len(ranked))
	for i, sc := range ranked {
		out[i] = sc.r
		best = max(best, sc.overlap)
	}

	emptyReason := domain.ReasonFilteredOut
	if seen == 0 {
		emptyReason = domain.ReasonEmptyCourse
	}

	if len(kws) > 0 && !req.Filters.Narrowed() && best == 0 {
		reason := domain.ReasonNoOverlap
		if len(out) == 0 {
			reason = emptyReason
		}
		metrics.RetrievalRefusalsTotal.WithLabelValues(string(reason)).Inc()
		s.logger.Info("Retrieval refused",
			zap.String("namespace", req.Namespace),
			zap.String("reason", string(reason)),
			zap.Int("candidates", len(out)))
		return Outcome{}, domain.NewNoGrounding(reason)
	}

	metrics.RetrievalCandidates.WithLabelValues("returned").Observe(float64(len(out)))
	if len(out) == 0 {
		return Outcome{Reason: emptyReason}, nil
	}
	return Outcome{Chunks: out}, nil
}

// countText counts the non-image rows. Image entries alone do not make a course non-empty.
func countText(rows []domchunk.Retrieved) int {
	n := 0
	for _, r := range rows {
		if !r.Chunk.IsImage() {
			n++
		}
	}
	return n
}

// filter drops images, generated content unless requested, and filter mismatches.
func (s *Service) filter(in []domchunk.Retrieved, req Request) []domchunk.Retrieved {
	out := make([]domchunk.Retrieved, 0, len(in))
	for _, r := range in {
		c := r.Chunk
		if c.IsImage() {
			continue
		}
		if !req.IncludeGenerated && c.IsGenerated() {
			continue
		}
		if !req.Filters.Match(c.Metadata()) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// fallback looks chunks up by metadata course_id outside the namespace.
// Failures are logged and yield nothing. raw counts the text rows before filtering.
func (s *Service) fallback(ctx context.Context, courseID string, req Request) (recovered []domchunk.Retrieved, raw int) {
	rows, err := s.store.FindByCourse(ctx, courseID)
	if err != nil {
		s.logger.Warn("Metadata fallback lookup failed",
			zap.String("course_id", courseID), zap.Error(err))
		return nil, 0
	}
	recovered = s.filter(rows, req)
	if len(recovered) > 0 {
		s.logger.Info("Metadata fallback recovered chunks",
			zap.String("course_id", courseID), zap.Int("count", len(recovered)))
	}
	return recovered, countText(rows)
}
