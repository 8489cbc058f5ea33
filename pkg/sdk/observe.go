package edurag

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels on edurag_sdk_requests_total.
const (
	outcomeOK          = "ok"
	outcomeRefused     = "refused" // grounding refusal, a normal answer for tutoring flows
	outcomeClientError = "client_error"
	outcomeServerError = "server_error"
	outcomeTransport   = "transport_error"
)

type sdkMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edurag",
		Subsystem: "sdk",
		Name:      "requests_total",
		Help:      "edurag API calls made by the SDK, by operation and outcome.",
	}, []string{"operation", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "edurag",
		Subsystem: "sdk",
		Name:      "request_duration_seconds",
		Help:      "edurag API call latency seen by the SDK.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"operation"})

	var err error
	if requests, err = register(reg, requests); err != nil {
		return nil, err
	}
	if latency, err = register(reg, latency); err != nil {
		return nil, err
	}
	return &sdkMetrics{requests: requests, latency: latency}, nil
}

// register adds c to reg, returning the already registered collector when two
// clients share a registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, fmt.Errorf("edurag: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("edurag: metric registered with a different type %T", are.ExistingCollector)
	}
	return existing, nil
}

// observer records every API call. Both sinks are optional.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	elapsed := time.Since(start)
	outcome := classify(err)

	if o.metrics != nil {
		o.metrics.requests.WithLabelValues(op, outcome).Inc()
		o.metrics.latency.WithLabelValues(op).Observe(elapsed.Seconds())
	}
	if o.logger == nil {
		return
	}

	switch outcome {
	case outcomeOK:
		o.logger.Debug("edurag call", "op", op, "duration", elapsed)
	case outcomeRefused:
		reason, _ := IsRefusal(err)
		o.logger.Info("edurag refused for lack of grounding", "op", op, "reason", reason, "duration", elapsed)
	default:
		o.logger.Warn("edurag call failed", "op", op, "outcome", outcome, "duration", elapsed, "error", err)
	}
}

func classify(err error) string {
	if err == nil {
		return outcomeOK
	}
	if _, refused := IsRefusal(err); refused {
		return outcomeRefused
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return outcomeTransport
	}
	if apiErr.StatusCode >= 500 {
		return outcomeServerError
	}
	return outcomeClientError
}
