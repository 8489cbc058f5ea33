package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/edurag/internal/domain"
)

// ErrorCode is the machine-readable error code of an API error response.
type ErrorCode string

// API error codes.
const (
	CodeBadRequest            ErrorCode = "bad_request"
	CodeValidationFailed      ErrorCode = "validation_failed"
	CodeUnauthorized          ErrorCode = "unauthorized"
	CodeNotFound              ErrorCode = "not_found"
	CodeNoCourseMaterials     ErrorCode = "no_course_materials"
	CodeNoMatchingMaterial    ErrorCode = "no_matching_material"
	CodeInsufficientGrounding ErrorCode = "insufficient_grounding"
	CodeProviderUnavailable   ErrorCode = "provider_unavailable"
	CodeStoreUnavailable      ErrorCode = "store_unavailable"
	CodeQuotaExceeded         ErrorCode = "quota_exceeded"
	CodeInternalError         ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode         `json:"code"`
	Message string            `json:"message"`
	Reason  string            `json:"reason,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		noGroundingHandler,
		insufficientGroundingHandler,
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusTooManyRequests, CodeQuotaExceeded),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusServiceUnavailable, CodeProviderUnavailable),
		sentinelHandler(domain.ErrLLMUnavailable, http.StatusServiceUnavailable, CodeProviderUnavailable),
		sentinelHandler(domain.ErrVectorStore, http.StatusServiceUnavailable, CodeStoreUnavailable),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
	}
}

// noGroundingHandler maps a retrieval refusal: an empty course is 404, anything else 422.
func noGroundingHandler(w http.ResponseWriter, err error, msg string) bool {
	var ng *domain.NoGroundingError
	if !errors.As(err, &ng) {
		return false
	}
	status, code := http.StatusUnprocessableEntity, CodeNoMatchingMaterial
	if ng.Reason == domain.ReasonEmptyCourse {
		status, code = http.StatusNotFound, CodeNoCourseMaterials
	}
	writeJSON(w, status, ErrorResponse{Code: code, Message: msg, Reason: string(ng.Reason)})
	return true
}

func insufficientGroundingHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrInsufficientGrounding) {
		return false
	}
	reason, _ := domain.GroundingReasonOf(err)
	writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Code: CodeInsufficientGrounding, Message: msg, Reason: string(reason),
	})
	return true
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// safeDomainMessage returns a client-safe message. Refusals and input errors carry
// their own text; infrastructure errors expose only the sentinel.
func safeDomainMessage(err error) string {
	var ng *domain.NoGroundingError
	if errors.As(err, &ng) {
		return ng.Error()
	}
	var ig *domain.InsufficientGroundingError
	if errors.As(err, &ig) {
		return ig.Error()
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		return err.Error()
	}

	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingProviderError,
		domain.ErrLLMUnavailable,
		domain.ErrVectorStore,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.requestLogger(r)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
