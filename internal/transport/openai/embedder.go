// Package openai adapts OpenAI-compatible APIs to the embedding and generation contracts.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/edurag/internal/domain"
	"github.com/kailas-cloud/edurag/internal/metrics"
)

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	ImageModel string // defaults to Model
	Dimensions int
	User       string
	Provider   string
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Embedder calls the /embeddings endpoint. Image URLs are sent as plain input
// to ImageModel, which must share the text model's vector space.
type Embedder struct {
	api        *openai.Client
	textModel  openai.EmbeddingModel
	imageModel openai.EmbeddingModel
	dims       int
	user       string
	provider   string
	logger     *zap.Logger
}

// NewEmbedder builds an Embedder from cfg.
func NewEmbedder(cfg *Config) *Embedder {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	e := &Embedder{
		api:        openai.NewClientWithConfig(oc),
		textModel:  openai.EmbeddingModel(cfg.Model),
		imageModel: openai.EmbeddingModel(cfg.ImageModel),
		dims:       cfg.Dimensions,
		user:       cfg.User,
		provider:   cfg.Provider,
		logger:     cfg.Logger,
	}
	if e.imageModel == "" {
		e.imageModel = e.textModel
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Embed vectorizes one text.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return e.one(ctx, e.textModel, text)
}

// EmbedImage vectorizes the image at url.
func (e *Embedder) EmbedImage(ctx context.Context, url string) (domain.EmbeddingResult, error) {
	if url == "" {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: image url is empty", domain.ErrEmbeddingProviderError)
	}
	return e.one(ctx, e.imageModel, url)
}

// BatchEmbed sends all texts in one request; vectors come back in input order.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	return e.create(ctx, e.textModel, texts)
}

// HealthCheck lists models, which costs no tokens.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (e *Embedder) one(ctx context.Context, model openai.EmbeddingModel, input string) (domain.EmbeddingResult, error) {
	res, err := e.create(ctx, model, []string{input})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

func (e *Embedder) create(
	ctx context.Context, model openai.EmbeddingModel, input []string,
) (domain.BatchEmbeddingResult, error) {
	req := openai.EmbeddingRequest{
		Input:          input,
		Model:          model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
		Dimensions:     max(e.dims, 0),
	}

	began := time.Now()
	resp, err := e.api.CreateEmbeddings(ctx, req)
	took := time.Since(began)
	if err != nil {
		e.countFailure(model, "api_error")
		return domain.BatchEmbeddingResult{}, wrapAPIError("embedding", err, domain.ErrEmbeddingProviderError)
	}
	if got := len(resp.Data); got != len(input) {
		e.countFailure(model, "count_mismatch")
		e.logger.Warn("Embedding response size mismatch",
			zap.String("model", string(model)), zap.Int("sent", len(input)), zap.Int("got", got))
		return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: sent %d inputs, got %d vectors",
			domain.ErrEmbeddingProviderError, len(input), got)
	}

	slices.SortFunc(resp.Data, func(a, b openai.Embedding) int { return a.Index - b.Index })
	vecs := make([][]float32, len(resp.Data))
	for i := range resp.Data {
		vecs[i] = resp.Data[i].Embedding
	}

	e.countSuccess(model, len(input), took, resp.Usage)
	return domain.BatchEmbeddingResult{
		Embeddings:   vecs,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

func (e *Embedder) countSuccess(model openai.EmbeddingModel, inputs int, took time.Duration, u openai.Usage) {
	m := string(model)
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, m, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, m).Observe(took.Seconds())
	metrics.EmbeddingBatchSize.WithLabelValues(e.provider).Observe(float64(inputs))
	if u.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, m, "prompt").Add(float64(u.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, m, "total").Add(float64(u.TotalTokens))
	}
}

func (e *Embedder) countFailure(model openai.EmbeddingModel, reason string) {
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(model), "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(model), reason).Inc()
}
