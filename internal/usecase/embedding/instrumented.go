// Package embedding wraps the embedding provider with budget enforcement and request usage accounting.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/edurag/internal/domain"
	"github.com/kailas-cloud/edurag/internal/metrics"
)

// DefaultMaxAPIBatchSize caps the inputs sent to the provider per request.
const DefaultMaxAPIBatchSize = 256

// BudgetChecker is satisfied by *BudgetTracker.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// InstrumentedEmbedder gates provider calls on the token budget and charges
// consumed tokens to the budget and to the request's usage collector.
// Provider-level request metrics live in transport/openai.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	budget   BudgetChecker
	log      *zap.Logger
}

// NewInstrumentedEmbedder wraps inner. A nil budget means no limits.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	budget BudgetChecker, logger *zap.Logger,
) *InstrumentedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		budget:   budget,
		log:      logger.With(zap.String("provider", provider), zap.String("model", model)),
	}
}

// Embed vectorizes a query or chunk text.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return p.single(ctx, "text", func() (domain.EmbeddingResult, error) {
		return p.inner.Embed(ctx, text)
	})
}

// EmbedImage vectorizes an image URL into the text space.
func (p *InstrumentedEmbedder) EmbedImage(ctx context.Context, url string) (domain.EmbeddingResult, error) {
	ie, ok := p.inner.(domain.ImageEmbedder)
	if !ok {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: image embedding not supported", domain.ErrEmbeddingProviderError)
	}
	return p.single(ctx, "image", func() (domain.EmbeddingResult, error) {
		return ie.EmbedImage(ctx, url)
	})
}

func (p *InstrumentedEmbedder) single(
	ctx context.Context, modality string, call func() (domain.EmbeddingResult, error),
) (domain.EmbeddingResult, error) {
	if err := p.admit(ctx); err != nil {
		p.log.Warn("Embedding refused by budget", zap.String("modality", modality), zap.Error(err))
		return domain.EmbeddingResult{}, err
	}

	began := time.Now()
	res, err := call()
	if err != nil {
		p.log.Error("Embedding call failed",
			zap.String("modality", modality), zap.Duration("took", time.Since(began)), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("embed %s: %w", modality, err)
	}

	p.charge(ctx, res.TotalTokens)
	p.log.Debug("Embedded",
		zap.String("modality", modality),
		zap.Duration("took", time.Since(began)),
		zap.Int("dim", len(res.Embedding)),
		zap.Int("tokens", res.TotalTokens),
	)
	return res, nil
}

// BatchEmbed vectorizes chunk texts in provider-sized slices. The budget is
// consulted before the first slice and again before each following one.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	var out domain.BatchEmbeddingResult
	if len(texts) == 0 {
		return out, nil
	}

	began := time.Now()
	for lo := 0; lo < len(texts); lo += DefaultMaxAPIBatchSize {
		if err := p.admit(ctx); err != nil {
			p.log.Warn("Batch embedding refused by budget",
				zap.Int("done", lo), zap.Int("total", len(texts)), zap.Error(err))
			return domain.BatchEmbeddingResult{}, err
		}

		part := texts[lo:min(lo+DefaultMaxAPIBatchSize, len(texts))]
		res, err := domain.EmbedAll(ctx, p.inner, part)
		if err != nil {
			p.log.Error("Batch embedding call failed",
				zap.Int("offset", lo), zap.Int("size", len(part)), zap.Error(err))
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed at %d: %w", lo, err)
		}
		p.charge(ctx, res.TotalTokens)

		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}

	p.log.Debug("Batch embedded",
		zap.Int("texts", len(texts)), zap.Int("tokens", out.TotalTokens), zap.Duration("took", time.Since(began)))
	return out, nil
}

// HealthCheck probes the provider when it supports it.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	hc, ok := p.inner.(domain.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding health check: %w", err)
	}
	return nil
}

func (p *InstrumentedEmbedder) admit(ctx context.Context) error {
	if p.budget == nil {
		return nil
	}
	if err := p.budget.Check(ctx); err != nil {
		return fmt.Errorf("budget check: %w", err)
	}
	return nil
}

func (p *InstrumentedEmbedder) charge(ctx context.Context, tokens int) {
	domain.UsageFromContext(ctx).AddEmbeddingTokens(tokens)
	if p.budget == nil || tokens <= 0 {
		return
	}
	p.budget.Record(int64(tokens))
	g := metrics.EmbeddingBudgetTokensRemaining
	g.WithLabelValues(p.provider, "daily").Set(float64(p.budget.RemainingDaily()))
	g.WithLabelValues(p.provider, "monthly").Set(float64(p.budget.RemainingMonthly()))
}
