package edurag

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by *APIError. Use errors.Is() to check.
var (
	ErrNotFound              = errors.New("edurag: not found")
	ErrInvalidRequest        = errors.New("edurag: invalid request")
	ErrUnauthorized          = errors.New("edurag: unauthorized")
	ErrNoGrounding           = errors.New("edurag: no grounding course material")
	ErrInsufficientGrounding = errors.New("edurag: insufficient grounding")
	ErrQuotaExceeded         = errors.New("edurag: embedding quota exceeded")
	ErrUnavailable           = errors.New("edurag: dependency unavailable")
)

// Refusal reasons reported on grounding errors.
const (
	ReasonEmptyCourse = "empty_course"
	ReasonFilteredOut = "filtered_out"
	ReasonNoOverlap   = "no_overlap"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int               `json:"-"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Reason     string            `json:"reason,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("edurag: %d %s (%s): %s", e.StatusCode, e.Code, e.Reason, e.Message)
	}
	return fmt.Sprintf("edurag: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Is maps the error code to a sentinel.
func (e *APIError) Is(target error) bool {
	switch e.Code {
	case "not_found":
		return target == ErrNotFound
	case "bad_request", "validation_failed":
		return target == ErrInvalidRequest
	case "unauthorized":
		return target == ErrUnauthorized
	case "no_course_materials", "no_matching_material":
		return target == ErrNoGrounding
	case "insufficient_grounding":
		return target == ErrInsufficientGrounding
	case "quota_exceeded":
		return target == ErrQuotaExceeded
	case "provider_unavailable", "store_unavailable":
		return target == ErrUnavailable
	default:
		return false
	}
}
