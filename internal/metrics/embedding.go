package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Embedding provider, budget and cache collectors.
// Provider-level series are recorded in transport/openai; budget in usecase/embedding.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edurag",
		Subsystem: "embedding",
		Name:      "requests_total",
		Help:      "Embedding provider calls by outcome",
	}, []string{"provider", "model", "status"})

	EmbeddingRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "edurag",
		Subsystem: "embedding",
		Name:      "request_duration_seconds",
		Help:      "Embedding provider call latency",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"provider", "model"})

	// EmbeddingBatchSize is the number of inputs per provider call (1 for queries, up to the API batch limit on ingestion).
	EmbeddingBatchSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "edurag",
		Subsystem: "embedding",
		Name:      "batch_size",
		Help:      "Inputs sent per embedding provider call",
		Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
	}, []string{"provider"})

	EmbeddingTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edurag",
		Subsystem: "embedding",
		Name:      "tokens_total",
		Help:      "Embedding tokens reported by the provider",
	}, []string{"provider", "model", "type"})

	EmbeddingErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edurag",
		Subsystem: "embedding",
		Name:      "errors_total",
		Help:      "Failed embedding provider calls by cause",
	}, []string{"provider", "model", "error_type"})

	EmbeddingBudgetTokensRemaining = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "edurag",
		Subsystem: "embedding",
		Name:      "budget_tokens_remaining",
		Help:      "Tokens left in the daily or monthly embedding budget (-1 when unlimited)",
	}, []string{"provider", "period"})

	// EmbeddingCacheTotal has result "hit" or "miss".
	EmbeddingCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edurag",
		Subsystem: "embedding",
		Name:      "cache_total",
		Help:      "Query embedding cache lookups",
	}, []string{"result"})

	EmbeddingFallbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edurag",
		Subsystem: "embedding",
		Name:      "zero_vector_fallbacks_total",
		Help:      "Chunks indexed with a zero vector after a provider failure",
	}, []string{"modality"})
)

var registerEmbedding sync.Once

// RegisterEmbeddingMetrics registers the embedding collectors on the default registry. Safe to call repeatedly.
func RegisterEmbeddingMetrics() {
	registerEmbedding.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingBatchSize,
			EmbeddingTokensTotal,
			EmbeddingErrorsTotal,
			EmbeddingBudgetTokensRemaining,
			EmbeddingCacheTotal,
			EmbeddingFallbacksTotal,
		)
	})
}
