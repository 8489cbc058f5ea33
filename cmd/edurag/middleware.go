package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/edurag/internal/domain"
	logpkg "github.com/kailas-cloud/edurag/internal/logger"
	chiTransport "github.com/kailas-cloud/edurag/internal/transport/chi"
)

var internalErrorBody = chiTransport.ErrorResponse{
	Code:    chiTransport.CodeInternalError,
	Message: "internal error",
}

// jsonRecoverer turns a handler panic into a 500 with the API error body.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				logpkg.FromContextOr(r.Context(), logger).Error("Handler panicked",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Stack("stack"),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(internalErrorBody)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware attaches a request-scoped logger, echoes the request id
// and writes one "http_request" line when the handler returns.
// It expects chi's RequestID middleware earlier in the chain.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			began := time.Now()
			id := chiMiddleware.GetReqID(r.Context())
			if id != "" {
				w.Header().Set("X-Request-ID", id)
			}
			log := logger.With(zap.String("request_id", id))

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(logpkg.ContextWithLogger(r.Context(), log)))

			log.Info("http_request", append([]zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(began)),
				zap.String("remote", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int64("request_bytes", r.ContentLength),
				zap.Int("response_bytes", ww.BytesWritten()),
			}, usageFields(ww.Header())...)...)
		})
	}
}

// usageFields copies the provider token headers a handler set, if any.
func usageFields(h http.Header) []zap.Field {
	var out []zap.Field
	for header, field := range map[string]string{
		chiTransport.HeaderEmbeddingTokens:  "embedding_tokens",
		chiTransport.HeaderCompletionTokens: "completion_tokens",
	} {
		if v := h.Get(header); v != "" {
			out = append(out, zap.String(field, v))
		}
	}
	return out
}

func embeddingHealth(ctx context.Context, e domain.Embedder) error {
	hc, ok := e.(domain.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding health check: %w", err)
	}
	return nil
}
