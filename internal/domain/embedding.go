package domain

import (
	"context"
	"errors"
	"fmt"
)

// Embedder turns a text into a vector. Decorators (cache, budget, instruction)
// wrap it and may additionally implement the optional interfaces below.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// ImageEmbedder embeds an image URL into the text vector space.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, url string) (EmbeddingResult, error)
}

// BatchEmbedder embeds many texts per provider request.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker is implemented by embedders that can probe their provider.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult is one vector plus the tokens billed for it.
// Cache hits report zero tokens.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult holds vectors in input order plus aggregate tokens.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// EmbedAll uses e's batch endpoint when it has one and BatchFallback otherwise.
func EmbedAll(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	if be, ok := e.(BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts) //nolint:wrapcheck // callers add context
	}
	return BatchFallback(ctx, e, texts)
}

// BatchFallback embeds texts sequentially and stops at the first failure.
func BatchFallback(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	out := BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for i, t := range texts {
		r, err := e.Embed(ctx, t)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("embed text %d of %d: %w", i+1, len(texts), err)
		}
		out.Embeddings = append(out.Embeddings, r.Embedding)
		out.PromptTokens += r.PromptTokens
		out.TotalTokens += r.TotalTokens
	}
	return out, nil
}

// InstructionEmbedder prefixes every text with a task instruction such as
// "search_query: " for instruction-tuned models. Image URLs are not prefixed.
type InstructionEmbedder struct {
	inner  Embedder
	prefix string
}

// NewInstructionEmbedder wraps inner with the given instruction prefix.
func NewInstructionEmbedder(inner Embedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, prefix: instruction}
}

func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	r, err := e.inner.Embed(ctx, e.prefix+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("instruction embed: %w", err)
	}
	return r, nil
}

func (e *InstructionEmbedder) EmbedImage(ctx context.Context, url string) (EmbeddingResult, error) {
	if ie, ok := e.inner.(ImageEmbedder); ok {
		return ie.EmbedImage(ctx, url) //nolint:wrapcheck // transparent decorator
	}
	return EmbeddingResult{}, fmt.Errorf("%w: image embedding not supported", ErrEmbeddingProviderError)
}

func (e *InstructionEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	prefixed := make([]string, 0, len(texts))
	for _, t := range texts {
		prefixed = append(prefixed, e.prefix+t)
	}
	r, err := EmbedAll(ctx, e.inner, prefixed)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("instruction batch embed: %w", err)
	}
	return r, nil
}

func (e *InstructionEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// WrapEmbeddingError marks err as a provider failure. Errors that already carry
// ErrEmbeddingProviderError or ErrEmbeddingQuotaExceeded keep their identity.
func WrapEmbeddingError(op string, err error) error {
	if errors.Is(err, ErrEmbeddingProviderError) || errors.Is(err, ErrEmbeddingQuotaExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrEmbeddingProviderError, op, err)
}
