package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
	dommat "github.com/kailas-cloud/edurag/internal/domain/material"
	answeruc "github.com/kailas-cloud/edurag/internal/usecase/answer"
	searchuc "github.com/kailas-cloud/edurag/internal/usecase/search"
)

const maxBodyBytes = 4 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names in validation errors.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// --- Requests ---

type filtersDTO struct {
	Category string `json:"category,omitempty" validate:"omitempty,oneof=theory lab"`
	Topic    string `json:"topic,omitempty" validate:"max=200"`
	Week     *int   `json:"week,omitempty" validate:"omitempty,min=1,max=60"`
	Language string `json:"language,omitempty" validate:"max=50"`
}

func (f *filtersDTO) toDomain() domchunk.Filters {
	if f == nil {
		return domchunk.Filters{}
	}
	return domchunk.Filters{Category: f.Category, Topic: f.Topic, Week: f.Week, Language: f.Language}
}

type retrieveRequest struct {
	Query            string      `json:"query" validate:"required,max=2000"`
	TopK             int         `json:"top_k,omitempty" validate:"omitempty,min=1,max=50"`
	Filters          *filtersDTO `json:"filters,omitempty"`
	IncludeGenerated bool        `json:"include_generated,omitempty"`
}

type generateRequest struct {
	Topic     string      `json:"topic" validate:"required,max=300"`
	Category  string      `json:"category" validate:"required,oneof=theory lab"`
	Depth     string      `json:"depth,omitempty" validate:"max=50"`
	Filters   *filtersDTO `json:"filters,omitempty"`
	CreatedBy string      `json:"created_by,omitempty" validate:"max=100"`
}

type groundingScoreRequest struct {
	Chunks []struct {
		Similarity *float64 `json:"similarity"`
	} `json:"chunks" validate:"max=1000"`
}

type askRequest struct {
	Question string      `json:"question" validate:"required,max=2000"`
	TopK     int         `json:"top_k,omitempty" validate:"omitempty,min=1,max=50"`
	Filters  *filtersDTO `json:"filters,omitempty"`
}

type ingestTextRequest struct {
	ContentID   string `json:"content_id,omitempty" validate:"max=100"`
	Text        string `json:"text" validate:"required"`
	Category    string `json:"category" validate:"required,oneof=theory lab"`
	ContentType string `json:"content_type" validate:"required,oneof=slide pdf code note image"`
	Week        *int   `json:"week,omitempty" validate:"omitempty,min=1,max=60"`
	Topic       string `json:"topic,omitempty" validate:"max=200"`
	Language    string `json:"language,omitempty" validate:"max=50"`
	Title       string `json:"title,omitempty" validate:"max=300"`
	FileURL     string `json:"file_url,omitempty" validate:"omitempty,url"`
	CreatedBy   string `json:"created_by,omitempty" validate:"max=100"`
	Source      string `json:"source,omitempty" validate:"max=50"`
	UserID      string `json:"user_id,omitempty" validate:"max=100"`
}

type ingestImageRequest struct {
	ContentID string `json:"content_id,omitempty" validate:"max=100"`
	ImageURL  string `json:"image_url" validate:"required,url"`
	Category  string `json:"category" validate:"required,oneof=theory lab"`
	Week      *int   `json:"week,omitempty" validate:"omitempty,min=1,max=60"`
	Topic     string `json:"topic,omitempty" validate:"max=200"`
	Title     string `json:"title,omitempty" validate:"max=300"`
	CreatedBy string `json:"created_by,omitempty" validate:"max=100"`
	UserID    string `json:"user_id,omitempty" validate:"max=100"`
}

// requestError is a malformed or invalid request body.
type requestError struct {
	code    ErrorCode
	message string
	fields  map[string]string
}

func (e *requestError) Error() string { return e.message }

// decodeBody decodes a JSON body into dst and validates it.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &requestError{code: CodeBadRequest, message: "request body is required"}
		}
		return &requestError{code: CodeBadRequest, message: "invalid request body: " + err.Error()}
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &requestError{code: CodeValidationFailed, message: err.Error()}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe.Namespace())] = fieldMessage(fe)
	}
	return &requestError{code: CodeValidationFailed, message: "request validation failed", fields: fields}
}

// fieldPath drops the root struct name: "askRequest.filters.week" -> "filters.week".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "url":
		return name + " must be a valid URL"
	default:
		return fmt.Sprintf("%s failed on '%s'", name, fe.Tag())
	}
}

// --- Responses ---

type chunkResponse struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Metadata   domchunk.Metadata `json:"metadata"`
	Type       string            `json:"type"`
	Source     string            `json:"source,omitempty"`
	FileURL    string            `json:"file_url,omitempty"`
	Similarity *float64          `json:"similarity"`
}

type retrieveResponse struct {
	Chunks         []chunkResponse `json:"chunks"`
	GroundingScore *float64        `json:"grounding_score"`
}

type materialResponse struct {
	ID             string                   `json:"id"`
	CourseID       string                   `json:"course_id"`
	Category       string                   `json:"category"`
	Topic          string                   `json:"topic"`
	Output         string                   `json:"output"`
	Mode           string                   `json:"mode"`
	GroundingScore *float64                 `json:"grounding_score"`
	Sources        []dommat.Source          `json:"sources"`
	CreatedBy      string                   `json:"created_by,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
	Validation     *dommat.ValidationReport `json:"validation,omitempty"`
}

type materialListResponse struct {
	Items []materialResponse `json:"items"`
}

type groundingScoreResponse struct {
	Score           *float64 `json:"score"`
	ChunkCount      int      `json:"chunk_count"`
	NeedsEnrichment bool     `json:"needs_enrichment"`
}

type answerSourceResponse struct {
	ChunkID    string            `json:"chunk_id"`
	Content    string            `json:"content"`
	Metadata   domchunk.Metadata `json:"metadata"`
	Type       string            `json:"type"`
	Source     string            `json:"source,omitempty"`
	FileURL    string            `json:"file_url,omitempty"`
	Similarity *float64          `json:"similarity"`
}

type answerResponse struct {
	Answer         string                 `json:"answer"`
	Sources        []answerSourceResponse `json:"sources"`
	GroundingScore *float64               `json:"grounding_score"`
	Reason         string                 `json:"reason,omitempty"`
}

type imageResponse struct {
	ChunkID    string            `json:"chunk_id"`
	URL        string            `json:"url"`
	Similarity float64           `json:"similarity"`
	Metadata   domchunk.Metadata `json:"metadata"`
}

type imageSearchResponse struct {
	Items []imageResponse `json:"items"`
}

type deleteContentResponse struct {
	Deleted int `json:"deleted"`
}

type healthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func chunksToResponse(in []domchunk.Retrieved) []chunkResponse {
	out := make([]chunkResponse, len(in))
	for i, r := range in {
		c := r.Chunk
		out[i] = chunkResponse{
			ID:         c.ID(),
			Content:    c.Content(),
			Metadata:   c.Metadata(),
			Type:       string(c.Type()),
			Source:     c.Source(),
			FileURL:    c.FileURL(),
			Similarity: r.Similarity,
		}
	}
	return out
}

func materialToResponse(m dommat.Material) materialResponse {
	sources := m.Sources
	if sources == nil {
		sources = []dommat.Source{}
	}
	return materialResponse{
		ID:             m.ID,
		CourseID:       m.CourseID,
		Category:       string(m.Category),
		Topic:          m.Topic,
		Output:         m.Output,
		Mode:           string(m.Mode),
		GroundingScore: m.GroundingScore,
		Sources:        sources,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt.UTC(),
		Validation:     m.Validation,
	}
}

func answerToResponse(a answeruc.Answer) answerResponse {
	sources := make([]answerSourceResponse, len(a.Sources))
	for i, s := range a.Sources {
		sources[i] = answerSourceResponse{
			ChunkID:    s.ChunkID,
			Content:    s.Content,
			Metadata:   s.Metadata,
			Type:       string(s.Type),
			Source:     s.Source,
			FileURL:    s.FileURL,
			Similarity: s.Similarity,
		}
	}
	return answerResponse{
		Answer:         a.Answer,
		Sources:        sources,
		GroundingScore: a.GroundingScore,
		Reason:         string(a.Reason),
	}
}

func imagesToResponse(in []searchuc.Image) imageSearchResponse {
	items := make([]imageResponse, len(in))
	for i, img := range in {
		items[i] = imageResponse{ChunkID: img.ChunkID, URL: img.URL, Similarity: img.Similarity, Metadata: img.Metadata}
	}
	return imageSearchResponse{Items: items}
}
