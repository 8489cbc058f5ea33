package health

import "context"

// Pinger is the vector store probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker probes an optional dependency.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc lets a closure act as a Checker.
type CheckerFunc func(ctx context.Context) error

// HealthCheck implements Checker.
func (f CheckerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// pingerCheck adapts the vector store so every probe shares one shape.
type pingerCheck struct{ Pinger }

func (p pingerCheck) HealthCheck(ctx context.Context) error { return p.Ping(ctx) }
