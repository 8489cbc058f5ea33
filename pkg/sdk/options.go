package edurag

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultTimeout bounds a request on the default HTTP client. Material
// generation waits on the chat model, so it is generous.
const DefaultTimeout = 2 * time.Minute

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	logger     *slog.Logger
	registry   prometheus.Registerer
}

// WithAPIKey sends key as a Bearer token.
func WithAPIKey(key string) Option {
	return func(c *clientConfig) { c.apiKey = key }
}

// WithHTTPClient uses hc for all requests; WithTimeout then has no effect.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = hc }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.timeout = d }
}

// WithUserAgent overrides the "edurag-go" User-Agent.
func WithUserAgent(ua string) Option {
	return func(c *clientConfig) { c.userAgent = ua }
}

// WithLogger logs each call: refusals at info, failures at warn, the rest at debug.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

// WithPrometheus registers edurag_sdk_requests_total and
// edurag_sdk_request_duration_seconds on reg.
func WithPrometheus(reg prometheus.Registerer) Option {
	return func(c *clientConfig) { c.registry = reg }
}
