// Package validation asks the generation model to review a stored material.
package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/edurag/internal/domain"
	dommat "github.com/kailas-cloud/edurag/internal/domain/material"
)

const (
	systemPrompt = "You review AI-generated university CS course material. " +
		"Return ONLY a JSON object with the requested keys."
	maxTokens = 400
)

// Service validates generated materials.
type Service struct {
	repo   MaterialRepository
	model  domain.Completer
	logger *zap.Logger
	now    func() time.Time
}

// New creates a validation service.
func New(repo MaterialRepository, model domain.Completer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, model: model, logger: logger, now: time.Now}
}

// verdict is the JSON object the model is asked for.
type verdict struct {
	SyntaxOK     *bool  `json:"syntax_ok"`
	GroundingOK  *bool  `json:"grounding_ok"`
	TestsPassed  *bool  `json:"tests_passed"`
	FinalVerdict string `json:"final_verdict"`
	Notes        string `json:"notes"`
}

// Validate reviews a material and persists the report with it.
// Model output that is not a usable JSON verdict yields needs_review.
func (s *Service) Validate(ctx context.Context, materialID string) (dommat.ValidationReport, error) {
	if strings.TrimSpace(materialID) == "" {
		return dommat.ValidationReport{}, fmt.Errorf("%w: material id is required", domain.ErrInvalidInput)
	}

	m, err := s.repo.Get(ctx, materialID)
	if err != nil {
		return dommat.ValidationReport{}, err
	}

	out, err := s.model.Complete(ctx, domain.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildPrompt(m),
		Temperature:  0,
		MaxTokens:    maxTokens,
		JSONOutput:   true,
	})
	if err != nil {
		return dommat.ValidationReport{}, fmt.Errorf("%w: validate material: %w", domain.ErrLLMUnavailable, err)
	}
	domain.UsageFromContext(ctx).AddCompletionTokens(out.PromptTokens + out.CompletionTokens)

	report, ok := parseVerdict(out.Text)
	if !ok {
		s.logger.Warn("Unparseable validation verdict",
			zap.String("material_id", materialID), zap.Int("output_len", len(out.Text)))
	}
	report.ValidatedAt = s.now().UTC()

	if err := s.repo.SaveValidation(ctx, materialID, report); err != nil {
		return dommat.ValidationReport{}, fmt.Errorf("save validation: %w", err)
	}
	return report, nil
}

func buildPrompt(m dommat.Material) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Category: %s\nTopic: %s\n", m.Category, m.Topic)
	if m.GroundingScore != nil {
		fmt.Fprintf(&b, "Retrieval grounding score (0..1): %.3f\n", *m.GroundingScore)
	} else {
		b.WriteString("Retrieval grounding score: none (no course excerpts were used)\n")
	}
	fmt.Fprintf(&b, "Generation mode: %s\n\n", m.Mode)
	b.WriteString("Assess:\n" +
		"1) syntax_ok: code and formulas contain no obvious errors\n" +
		"2) grounding_ok: the content agrees with the cited course sources and standard textbook knowledge\n" +
		"3) tests_passed: whether code would pass simple natural test cases (null when not applicable)\n\n")
	fmt.Fprintf(&b, "Return a JSON object with keys syntax_ok (bool), grounding_ok (bool), "+
		"tests_passed (bool or null), final_verdict (%q, %q or %q), notes (short string).\n\n",
		dommat.VerdictApproved, dommat.VerdictRejected, dommat.VerdictNeedsReview)
	b.WriteString("Material:\n")
	b.WriteString(m.Output)
	return b.String()
}

// parseVerdict decodes the model's JSON. ok is false when the output is not a usable verdict.
func parseVerdict(text string) (dommat.ValidationReport, bool) {
	var v verdict
	if err := json.Unmarshal([]byte(stripFence(text)), &v); err != nil || v.SyntaxOK == nil || v.GroundingOK == nil {
		return dommat.ValidationReport{
			FinalVerdict: dommat.VerdictNeedsReview,
			Notes:        "model returned an unparseable verdict",
		}, false
	}

	report := dommat.ValidationReport{
		SyntaxOK:     *v.SyntaxOK,
		GroundingOK:  *v.GroundingOK,
		TestsPassed:  v.TestsPassed,
		FinalVerdict: strings.ToLower(strings.TrimSpace(v.FinalVerdict)),
		Notes:        strings.TrimSpace(v.Notes),
	}
	switch report.FinalVerdict {
	case dommat.VerdictApproved, dommat.VerdictRejected, dommat.VerdictNeedsReview:
	default:
		report.FinalVerdict = dommat.VerdictNeedsReview
	}
	// A failed check never yields approval.
	if report.FinalVerdict == dommat.VerdictApproved && (!report.SyntaxOK || !report.GroundingOK) {
		report.FinalVerdict = dommat.VerdictNeedsReview
	}
	return report, true
}

// stripFence removes a ```json fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
