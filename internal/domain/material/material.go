package material

import (
	"fmt"
	"strings"
	"time"
)

// Category is the kind of course material.
type Category string

const (
	// CategoryTheory is lecture-style explanatory material.
	CategoryTheory Category = "theory"
	// CategoryLab is hands-on, code-oriented material.
	CategoryLab Category = "lab"
)

// ParseCategory validates a category (case-insensitive).
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryTheory:
		return CategoryTheory, nil
	case CategoryLab:
		return CategoryLab, nil
	default:
		return "", fmt.Errorf("category must be %q or %q, got %q", CategoryTheory, CategoryLab, s)
	}
}

// Mode is the prompt-construction mode chosen from the available sources.
type Mode string

const (
	// ModeBlended uses course excerpts as primary and external references as secondary.
	ModeBlended Mode = "course_and_external"
	// ModeCourseOnly cites course excerpts only.
	ModeCourseOnly Mode = "course_only"
	// ModeExternalOnly cites external references only.
	ModeExternalOnly Mode = "external_only"
)

// SourceKind distinguishes course excerpts from external references.
type SourceKind string

const (
	// SourceCourse is a retrieved course chunk, labeled S#.
	SourceCourse SourceKind = "course"
	// SourceExternal is an external reference, labeled E#.
	SourceExternal SourceKind = "external"
)

// Source is one labeled piece of context the model was allowed to cite.
type Source struct {
	Label      string     `json:"label"`
	Kind       SourceKind `json:"kind"`
	Title      string     `json:"title,omitempty"`
	URL        string     `json:"url,omitempty"`
	ContentID  string     `json:"content_id,omitempty"`
	ChunkID    string     `json:"chunk_id,omitempty"`
	Similarity *float64   `json:"similarity,omitempty"`
	Excerpt    string     `json:"excerpt,omitempty"`
}

// Material is a generated, persisted piece of course material.
type Material struct {
	ID             string
	CourseID       string
	Category       Category
	Topic          string
	Prompt         string
	Output         string
	Mode           Mode
	GroundingScore *float64
	Sources        []Source
	CreatedBy      string
	CreatedAt      time.Time
	Validation     *ValidationReport
}

// Verdicts of a validation report.
const (
	VerdictApproved    = "approved"
	VerdictRejected    = "rejected"
	VerdictNeedsReview = "needs_review"
)

// ValidationReport is the model-judged quality check of a material.
type ValidationReport struct {
	SyntaxOK     bool      `json:"syntax_ok"`
	GroundingOK  bool      `json:"grounding_ok"`
	TestsPassed  *bool     `json:"tests_passed,omitempty"`
	FinalVerdict string    `json:"final_verdict"`
	Notes        string    `json:"notes,omitempty"`
	ValidatedAt  time.Time `json:"validated_at"`
}
