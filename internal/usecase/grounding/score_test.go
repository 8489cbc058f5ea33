package grounding

import (
	"math"
	"testing"

	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
)

func sims(vals ...*float64) []domchunk.Retrieved {
	out := make([]domchunk.Retrieved, len(vals))
	for i, v := range vals {
		out[i] = domchunk.Retrieved{Similarity: v}
	}
	return out
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		in   []domchunk.Retrieved
		want *float64
	}{
		{"empty", nil, nil},
		{"all missing", sims(nil, nil), nil},
		{"nulls excluded", sims(domchunk.Score(0.8), nil), domchunk.Score(0.8)},
		{"mean", sims(domchunk.Score(0.6), domchunk.Score(0.8)), domchunk.Score(0.7)},
		{"clamped low", sims(domchunk.Score(-0.4), domchunk.Score(-0.2)), domchunk.Score(0)},
		{"clamped high", sims(domchunk.Score(1.2)), domchunk.Score(1)},
		{"nan skipped", sims(domchunk.Score(math.NaN()), domchunk.Score(0.5)), domchunk.Score(0.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.in)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("expected nil, got %f", *got)
			case tt.want != nil && got == nil:
				t.Errorf("expected %f, got nil", *tt.want)
			case tt.want != nil && math.Abs(*got-*tt.want) > 1e-9:
				t.Errorf("expected %f, got %f", *tt.want, *got)
			}
		})
	}
}

func TestNeedsEnrichment(t *testing.T) {
	p := DefaultPolicy
	if !p.NeedsEnrichment(2, domchunk.Score(0.9)) {
		t.Error("two chunks at 0.9 must trigger enrichment")
	}
	if !p.NeedsEnrichment(5, domchunk.Score(0.54)) {
		t.Error("score below 0.55 must trigger enrichment")
	}
	if !p.NeedsEnrichment(5, nil) {
		t.Error("undefined score must trigger enrichment")
	}
	if p.NeedsEnrichment(3, domchunk.Score(0.55)) {
		t.Error("3 chunks at 0.55 are sufficient")
	}
}

func TestScoreSimilarities(t *testing.T) {
	a, b := 0.4, 0.8
	got := ScoreSimilarities([]*float64{&a, nil, &b})
	if got == nil || math.Abs(*got-0.6) > 1e-9 {
		t.Fatalf("expected 0.6, got %v", got)
	}
	if ScoreSimilarities(nil) != nil {
		t.Error("expected nil for no similarities")
	}
}
