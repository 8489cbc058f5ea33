package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput signals a malformed request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure or malformed provider output.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrLLMUnavailable signals a generation model failure.
	ErrLLMUnavailable = errors.New("generation model unavailable")
	// ErrVectorStore signals a persistence or query failure of the chunk store.
	ErrVectorStore = errors.New("vector store error")

	// ErrNoGroundingFound signals that retrieval found no textually corroborated course material.
	ErrNoGroundingFound = errors.New("no grounding found")
	// ErrInsufficientGrounding signals that neither course nor external grounding is available.
	ErrInsufficientGrounding = errors.New("insufficient grounding")
)

// GroundingReason tells the caller which remediation path applies.
type GroundingReason string

const (
	// ReasonEmptyCourse means the course has no indexed material at all.
	ReasonEmptyCourse GroundingReason = "empty_course"
	// ReasonFilteredOut means material exists but nothing matched the filters.
	ReasonFilteredOut GroundingReason = "filtered_out"
	// ReasonNoOverlap means candidates share no keywords with the query.
	ReasonNoOverlap GroundingReason = "no_overlap"
)

// Message returns a user-facing explanation of the reason.
func (r GroundingReason) Message() string {
	switch r {
	case ReasonEmptyCourse:
		return "no course materials exist for this course yet"
	case ReasonFilteredOut:
		return "nothing matched your filters"
	case ReasonNoOverlap:
		return "no course material mentions the requested topic"
	default:
		return "no matching course material"
	}
}

// NoGroundingError wraps ErrNoGroundingFound with the refusal reason.
type NoGroundingError struct {
	Reason GroundingReason
}

func (e *NoGroundingError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNoGroundingFound.Error(), e.Reason.Message())
}

func (e *NoGroundingError) Unwrap() error { return ErrNoGroundingFound }

// NewNoGrounding creates a retrieval refusal error.
func NewNoGrounding(reason GroundingReason) error {
	return &NoGroundingError{Reason: reason}
}

// InsufficientGroundingError wraps ErrInsufficientGrounding with the retrieval reason behind it.
type InsufficientGroundingError struct {
	Reason GroundingReason
}

func (e *InsufficientGroundingError) Error() string {
	return fmt.Sprintf("%s: %s; provide more material or change topic",
		ErrInsufficientGrounding.Error(), e.Reason.Message())
}

func (e *InsufficientGroundingError) Unwrap() error { return ErrInsufficientGrounding }

// NewInsufficientGrounding creates a terminal generation refusal.
func NewInsufficientGrounding(reason GroundingReason) error {
	return &InsufficientGroundingError{Reason: reason}
}

// GroundingReasonOf extracts the reason from either refusal error. ok is false for other errors.
func GroundingReasonOf(err error) (GroundingReason, bool) {
	var ng *NoGroundingError
	if errors.As(err, &ng) {
		return ng.Reason, true
	}
	var ig *InsufficientGroundingError
	if errors.As(err, &ig) {
		return ig.Reason, true
	}
	return "", false
}
