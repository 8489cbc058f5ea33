package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	got    []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = append(s.got, text)
	return s.result, s.err
}

type stubImageEmbedder struct {
	stubEmbedder
	gotURL string
}

func (s *stubImageEmbedder) EmbedImage(_ context.Context, url string) (EmbeddingResult, error) {
	s.gotURL = url
	return s.result, s.err
}

func TestInstructionEmbedder_PrependsInstruction(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	emb := NewInstructionEmbedder(inner, "search_query: ")

	result, err := emb.Embed(context.Background(), "avl rotation")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got[0] != "search_query: avl rotation" {
		t.Errorf("expected prepended text, got %q", inner.got[0])
	}
	if len(result.Embedding) != 3 {
		t.Errorf("expected 3-element vector, got %d", len(result.Embedding))
	}
}

func TestInstructionEmbedder_WrapsProviderError(t *testing.T) {
	inner := &stubEmbedder{err: ErrEmbeddingProviderError}
	emb := NewInstructionEmbedder(inner, "q: ")

	_, err := emb.Embed(context.Background(), "hello")
	if !errors.Is(err, ErrEmbeddingProviderError) {
		t.Errorf("expected wrapped provider error, got %v", err)
	}
}

func TestInstructionEmbedder_ImagePassThrough(t *testing.T) {
	inner := &stubImageEmbedder{stubEmbedder: stubEmbedder{result: EmbeddingResult{Embedding: []float32{1}}}}
	emb := NewInstructionEmbedder(inner, "q: ")

	if _, err := emb.EmbedImage(context.Background(), "https://cdn.example.com/tree.png"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.gotURL != "https://cdn.example.com/tree.png" {
		t.Errorf("expected url untouched, got %q", inner.gotURL)
	}
}

func TestInstructionEmbedder_ImageUnsupported(t *testing.T) {
	emb := NewInstructionEmbedder(&stubEmbedder{}, "q: ")

	_, err := emb.EmbedImage(context.Background(), "https://cdn.example.com/tree.png")
	if !errors.Is(err, ErrEmbeddingProviderError) {
		t.Errorf("expected provider error, got %v", err)
	}
}

func TestInstructionEmbedder_BatchFallsBackToSingle(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.5}, PromptTokens: 3, TotalTokens: 3}}
	emb := NewInstructionEmbedder(inner, "d: ")

	res, err := emb.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 || res.TotalTokens != 6 {
		t.Errorf("expected 2 embeddings and 6 tokens, got %d / %d", len(res.Embeddings), res.TotalTokens)
	}
	if inner.got[1] != "d: b" {
		t.Errorf("expected prefixed second text, got %q", inner.got[1])
	}
}

func TestBatchFallback_StopsOnError(t *testing.T) {
	innerErr := errors.New("fail")
	_, err := BatchFallback(context.Background(), &stubEmbedder{err: innerErr}, []string{"a"})
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestGroundingReasonOf(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   GroundingReason
		wantOK bool
	}{
		{"no grounding", NewNoGrounding(ReasonFilteredOut), ReasonFilteredOut, true},
		{"insufficient", NewInsufficientGrounding(ReasonEmptyCourse), ReasonEmptyCourse, true},
		{"other", errors.New("boom"), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := GroundingReasonOf(tt.err)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("got (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}

	if !errors.Is(NewNoGrounding(ReasonNoOverlap), ErrNoGroundingFound) {
		t.Error("NoGroundingError must unwrap to ErrNoGroundingFound")
	}
	if !errors.Is(NewInsufficientGrounding(ReasonNoOverlap), ErrInsufficientGrounding) {
		t.Error("InsufficientGroundingError must unwrap to ErrInsufficientGrounding")
	}
}

func TestWrapEmbeddingError(t *testing.T) {
	err := WrapEmbeddingError("embed query", errors.New("timeout"))
	if !errors.Is(err, ErrEmbeddingProviderError) {
		t.Errorf("expected ErrEmbeddingProviderError, got %v", err)
	}

	err = WrapEmbeddingError("embed query", ErrEmbeddingQuotaExceeded)
	if !errors.Is(err, ErrEmbeddingQuotaExceeded) || errors.Is(err, ErrEmbeddingProviderError) {
		t.Errorf("quota error must keep its identity, got %v", err)
	}
}
