package edurag

import "time"

// Material categories.
const (
	CategoryTheory = "theory"
	CategoryLab    = "lab"
)

// Filters narrow course retrieval by chunk metadata. Zero fields are ignored.
type Filters struct {
	Category string `json:"category,omitempty"`
	Topic    string `json:"topic,omitempty"`
	Week     *int   `json:"week,omitempty"`
	Language string `json:"language,omitempty"`
}

// Chunk is one retrieved course chunk.
type Chunk struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	Type       string         `json:"type"`
	Source     string         `json:"source,omitempty"`
	FileURL    string         `json:"file_url,omitempty"`
	Similarity *float64       `json:"similarity"`
}

// RetrieveRequest asks for grounding context.
type RetrieveRequest struct {
	Query            string   `json:"query"`
	TopK             int      `json:"top_k,omitempty"`
	Filters          *Filters `json:"filters,omitempty"`
	IncludeGenerated bool     `json:"include_generated,omitempty"`
}

// RetrieveResult is the ranked context and its grounding score (nil when no chunk has a similarity).
type RetrieveResult struct {
	Chunks         []Chunk  `json:"chunks"`
	GroundingScore *float64 `json:"grounding_score"`
}

// GenerateRequest asks for a new theory or lab material.
type GenerateRequest struct {
	Topic     string   `json:"topic"`
	Category  string   `json:"category"`
	Depth     string   `json:"depth,omitempty"`
	Filters   *Filters `json:"filters,omitempty"`
	CreatedBy string   `json:"created_by,omitempty"`
}

// Source is a labeled excerpt or reference the material cites (S# course, E# external).
type Source struct {
	Label      string   `json:"label"`
	Kind       string   `json:"kind"`
	Title      string   `json:"title,omitempty"`
	URL        string   `json:"url,omitempty"`
	ContentID  string   `json:"content_id,omitempty"`
	ChunkID    string   `json:"chunk_id,omitempty"`
	Similarity *float64 `json:"similarity,omitempty"`
	Excerpt    string   `json:"excerpt,omitempty"`
}

// ValidationReport is the model-judged review of a material.
type ValidationReport struct {
	SyntaxOK     bool      `json:"syntax_ok"`
	GroundingOK  bool      `json:"grounding_ok"`
	TestsPassed  *bool     `json:"tests_passed,omitempty"`
	FinalVerdict string    `json:"final_verdict"`
	Notes        string    `json:"notes,omitempty"`
	ValidatedAt  time.Time `json:"validated_at"`
}

// Material is a generated, persisted material.
type Material struct {
	ID             string            `json:"id"`
	CourseID       string            `json:"course_id"`
	Category       string            `json:"category"`
	Topic          string            `json:"topic"`
	Output         string            `json:"output"`
	Mode           string            `json:"mode"`
	GroundingScore *float64          `json:"grounding_score"`
	Sources        []Source          `json:"sources"`
	CreatedBy      string            `json:"created_by,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	Validation     *ValidationReport `json:"validation,omitempty"`
}

// AskRequest is a question about course or personal content.
type AskRequest struct {
	Question string   `json:"question"`
	TopK     int      `json:"top_k,omitempty"`
	Filters  *Filters `json:"filters,omitempty"`
}

// AnswerSource is a chunk an answer was built from.
type AnswerSource struct {
	ChunkID    string         `json:"chunk_id"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	Type       string         `json:"type"`
	Source     string         `json:"source,omitempty"`
	FileURL    string         `json:"file_url,omitempty"`
	Similarity *float64       `json:"similarity"`
}

// Answer is a grounded reply. Reason is set when the fixed "don't know" answer was returned.
type Answer struct {
	Answer         string         `json:"answer"`
	Sources        []AnswerSource `json:"sources"`
	GroundingScore *float64       `json:"grounding_score"`
	Reason         string         `json:"reason,omitempty"`
}

// Image is one image search hit.
type Image struct {
	ChunkID    string         `json:"chunk_id"`
	URL        string         `json:"url"`
	Similarity float64        `json:"similarity"`
	Metadata   map[string]any `json:"metadata"`
}

// IngestTextRequest indexes extracted course text.
type IngestTextRequest struct {
	ContentID   string `json:"content_id,omitempty"`
	Text        string `json:"text"`
	Category    string `json:"category"`
	ContentType string `json:"content_type"`
	Week        *int   `json:"week,omitempty"`
	Topic       string `json:"topic,omitempty"`
	Language    string `json:"language,omitempty"`
	Title       string `json:"title,omitempty"`
	FileURL     string `json:"file_url,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
	Source      string `json:"source,omitempty"`
	UserID      string `json:"user_id,omitempty"`
}

// IngestImageRequest indexes one course image.
type IngestImageRequest struct {
	ContentID string `json:"content_id,omitempty"`
	ImageURL  string `json:"image_url"`
	Category  string `json:"category"`
	Week      *int   `json:"week,omitempty"`
	Topic     string `json:"topic,omitempty"`
	Title     string `json:"title,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// IngestResult reports what was indexed.
type IngestResult struct {
	ContentID string `json:"content_id"`
	Chunks    int    `json:"chunks"`
}

// GroundingScore is the score of a caller-supplied similarity list.
type GroundingScore struct {
	Score           *float64 `json:"score"`
	ChunkCount      int      `json:"chunk_count"`
	NeedsEnrichment bool     `json:"needs_enrichment"`
}

// UsageReport is embedding token usage for one budget period. TokensLimit 0 means unlimited.
type UsageReport struct {
	Period      string    `json:"period"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	TokensUsed  int64     `json:"tokens_used"`
	TokensLimit int64     `json:"tokens_limit"`
	Remaining   int64     `json:"tokens_remaining"`
	Exhausted   bool      `json:"exhausted"`
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status  string            `json:"status"` // "ok", "degraded", "error"
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}
