// Package answer answers questions from course or personal material.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/edurag/internal/domain"
	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
	"github.com/kailas-cloud/edurag/internal/usecase/grounding"
	"github.com/kailas-cloud/edurag/internal/usecase/retrieval"
)

// IDontKnow is returned when no material grounds the question.
const IDontKnow = "I don't know based on the provided information."

// Config holds answering parameters.
type Config struct {
	Temperature     float32
	MaxTokens       int
	DefaultTopK     int
	OverfetchFactor int
}

// Source is one chunk an answer was built from.
type Source struct {
	ChunkID    string
	Content    string
	Metadata   domchunk.Metadata
	Type       domchunk.Type
	Source     string
	FileURL    string
	Similarity *float64
}

// Answer is a grounded model reply.
type Answer struct {
	Answer         string
	Sources        []Source
	GroundingScore *float64
	// Reason is set when the fixed "don't know" answer was returned after a refusal.
	Reason domain.GroundingReason
}

// Service answers questions with retrieval-augmented generation.
type Service struct {
	retriever Retriever
	users     UserStore
	embed     Embedder
	model     domain.Completer
	cfg       Config
	logger    *zap.Logger
}

// New creates an answering service.
func New(retriever Retriever, users UserStore, embed Embedder, model domain.Completer, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 800
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	if cfg.OverfetchFactor < 1 {
		cfg.OverfetchFactor = 4
	}
	return &Service{retriever: retriever, users: users, embed: embed, model: model, cfg: cfg, logger: logger}
}

// AskCourse answers from one course's material.
func (s *Service) AskCourse(
	ctx context.Context, courseID, question string, filters domchunk.Filters, topK int,
) (Answer, error) {
	question = strings.TrimSpace(question)
	if courseID == "" || question == "" {
		return Answer{}, fmt.Errorf("%w: course_id and question are required", domain.ErrInvalidInput)
	}

	chunks, err := s.retriever.Retrieve(ctx, retrieval.Request{
		Namespace: courseID,
		CourseID:  courseID,
		Query:     question,
		Filters:   filters,
		TopK:      topK,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoGroundingFound) {
			reason, _ := domain.GroundingReasonOf(err)
			return Answer{Answer: IDontKnow, Sources: []Source{}, Reason: reason}, nil
		}
		return Answer{}, fmt.Errorf("retrieve: %w", err)
	}
	return s.answer(ctx, question, chunks)
}

// AskUser answers from every chunk tagged with userID, across courses.
// Images and generated materials never ground a personal answer.
func (s *Service) AskUser(
	ctx context.Context, userID, question string, filters domchunk.Filters, topK int,
) (Answer, error) {
	question = strings.TrimSpace(question)
	if userID == "" || question == "" {
		return Answer{}, fmt.Errorf("%w: user_id and question are required", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}

	emb, err := s.embed.Embed(ctx, question)
	if err != nil {
		return Answer{}, domain.WrapEmbeddingError("embed question", err)
	}
	hits, err := s.users.SearchByUser(ctx, emb.Embedding, userID, max(topK*s.cfg.OverfetchFactor, topK))
	if err != nil {
		return Answer{}, fmt.Errorf("search user %s: %w", userID, err)
	}

	chunks := make([]domchunk.Retrieved, 0, topK)
	for _, h := range hits {
		c := h.Chunk
		if c.IsImage() || c.IsGenerated() || !filters.Match(c.Metadata()) {
			continue
		}
		chunks = append(chunks, h)
		if len(chunks) == topK {
			break
		}
	}
	return s.answer(ctx, question, chunks)
}

func (s *Service) answer(ctx context.Context, question string, chunks []domchunk.Retrieved) (Answer, error) {
	if len(chunks) == 0 {
		return Answer{Answer: IDontKnow, Sources: []Source{}}, nil
	}

	completion, err := s.model.Complete(ctx, domain.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildPrompt(question, chunks),
		Temperature:  s.cfg.Temperature,
		MaxTokens:    s.cfg.MaxTokens,
	})
	if err != nil {
		if errors.Is(err, domain.ErrLLMUnavailable) {
			return Answer{}, fmt.Errorf("answer: %w", err)
		}
		return Answer{}, fmt.Errorf("%w: answer: %w", domain.ErrLLMUnavailable, err)
	}
	domain.UsageFromContext(ctx).AddCompletionTokens(completion.PromptTokens + completion.CompletionTokens)

	sources := make([]Source, len(chunks))
	for i, r := range chunks {
		c := r.Chunk
		sources[i] = Source{
			ChunkID:    c.ID(),
			Content:    c.Content(),
			Metadata:   c.Metadata(),
			Type:       c.Type(),
			Source:     c.Source(),
			FileURL:    c.FileURL(),
			Similarity: r.Similarity,
		}
	}
	return Answer{
		Answer:         strings.TrimSpace(completion.Text),
		Sources:        sources,
		GroundingScore: grounding.Score(chunks),
	}, nil
}

const systemPrompt = "You are a helpful assistant that answers questions based only on the provided context."

func buildPrompt(question string, chunks []domchunk.Retrieved) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, r := range chunks {
		fmt.Fprintf(&b, "[S%d - type: %s, source: %s]\n%s\n\n",
			i+1, r.Chunk.Type(), r.Chunk.Source(), strings.TrimSpace(r.Chunk.Content()))
	}
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	b.WriteString("Answer using ONLY the context above and cite the excerpts you use as [S#]. ")
	fmt.Fprintf(&b, "If the context does not contain the answer, reply exactly: %q\n", IDontKnow)
	return b.String()
}
