// Package grounding reduces retrieved chunks to a single confidence score.
package grounding

import (
	"math"

	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
)

// Score averages the similarities of chunks, clamped to [0,1].
// Chunks without a usable similarity are left out of the average entirely.
// Returns nil when no chunk has one.
func Score(chunks []domchunk.Retrieved) *float64 {
	sims := make([]*float64, len(chunks))
	for i, c := range chunks {
		sims[i] = c.Similarity
	}
	return ScoreSimilarities(sims)
}

// ScoreSimilarities is Score over raw similarity values; nil, NaN and infinite values are skipped.
func ScoreSimilarities(sims []*float64) *float64 {
	var sum float64
	n := 0
	for _, p := range sims {
		if p == nil {
			continue
		}
		s := *p
		if math.IsNaN(s) || math.IsInf(s, 0) {
			continue
		}
		sum += s
		n++
	}
	if n == 0 {
		return nil
	}
	avg := math.Max(0, math.Min(1, sum/float64(n)))
	return &avg
}

// Policy decides when course grounding is too weak to stand alone.
type Policy struct {
	MinChunks int
	MinScore  float64
}

// DefaultPolicy is 3 chunks and a 0.55 score.
var DefaultPolicy = Policy{MinChunks: 3, MinScore: 0.55}

// NeedsEnrichment reports whether external references should supplement count chunks scoring score.
func (p Policy) NeedsEnrichment(count int, score *float64) bool {
	return count < p.MinChunks || score == nil || *score < p.MinScore
}
