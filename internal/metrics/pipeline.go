package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Retrieval, enrichment and generation metrics.
var (
	// RetrievalLookupsTotal counts vector store lookups by path ("primary", "scan", "metadata_fallback", "user_scan").
	RetrievalLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edurag",
			Name:      "retrieval_lookups_total",
			Help:      "Vector store lookups by path and outcome",
		},
		[]string{"path", "outcome"},
	)

	RetrievalRefusalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edurag",
			Name:      "retrieval_refusals_total",
			Help:      "Retrievals refused for lack of grounding, by reason",
		},
		[]string{"reason"},
	)

	RetrievalCandidates = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "edurag",
			Name:      "retrieval_candidates",
			Help:      "Candidates surviving each retrieval stage",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50, 100},
		},
		[]string{"stage"},
	)

	EnrichmentCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edurag",
			Name:      "enrichment_cache_total",
			Help:      "External reference cache hits and misses",
		},
		[]string{"result"},
	)

	EnrichmentFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edurag",
			Name:      "enrichment_fetch_total",
			Help:      "External knowledge fetches by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edurag",
			Name:      "generations_total",
			Help:      "Material generations by prompt mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	GroundingScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "edurag",
			Name:      "grounding_score",
			Help:      "Course grounding score of generated materials",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.55, 0.6, 0.7, 0.8, 0.9, 1},
		},
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edurag",
			Name:      "llm_requests_total",
			Help:      "Generation model requests",
		},
		[]string{"model", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "edurag",
			Name:      "llm_request_duration_seconds",
			Help:      "Generation model request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"model"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edurag",
			Name:      "llm_tokens_total",
			Help:      "Generation model tokens consumed",
		},
		[]string{"model", "type"},
	)
)

var registerPipeline sync.Once

// RegisterPipelineMetrics registers retrieval, enrichment and generation metrics. Safe to call repeatedly.
func RegisterPipelineMetrics() {
	registerPipeline.Do(func() {
		prometheus.MustRegister(
			RetrievalLookupsTotal,
			RetrievalRefusalsTotal,
			RetrievalCandidates,
			EnrichmentCacheTotal,
			EnrichmentFetchTotal,
			GenerationsTotal,
			GroundingScore,
			LLMRequestsTotal,
			LLMRequestDuration,
			LLMTokensTotal,
		)
	})
}
