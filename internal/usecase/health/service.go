// Package health aggregates dependency probes for the readiness endpoint.
package health

import (
	"context"
	"sync"
)

// Status is the overall readiness verdict.
type Status string

// Only a vector store failure makes the service Unhealthy.
const (
	Healthy   Status = "ok"
	Degraded  Status = "degraded"
	Unhealthy Status = "error"
)

// CheckResult is the verdict for one component.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Component names as they appear in the readiness body.
const (
	ComponentVectorStore = "vector_store"
	ComponentMaterials   = "materials_db"
	ComponentEmbedding   = "embedding"
)

// Report maps each probed component to its result.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type probe struct {
	name     string
	check    Checker
	critical bool
}

// Service runs the probes.
type Service struct {
	probes []probe
}

// New registers the vector store and whichever optional probes are non-nil.
func New(vectors Pinger, materials, embedding Checker) *Service {
	s := &Service{probes: []probe{{name: ComponentVectorStore, check: pingerCheck{vectors}, critical: true}}}
	for name, c := range map[string]Checker{ComponentMaterials: materials, ComponentEmbedding: embedding} {
		if c != nil {
			s.probes = append(s.probes, probe{name: name, check: c})
		}
	}
	return s
}

// Check runs all probes concurrently and waits for every one of them.
func (s *Service) Check(ctx context.Context) Report {
	failed := make([]bool, len(s.probes))
	var wg sync.WaitGroup
	for i, p := range s.probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			failed[i] = p.check.HealthCheck(ctx) != nil
		}()
	}
	wg.Wait()

	r := Report{Status: Healthy, Checks: make(map[string]CheckResult, len(s.probes))}
	for i, p := range s.probes {
		if !failed[i] {
			r.Checks[p.name] = CheckOK
			continue
		}
		r.Checks[p.name] = CheckError
		switch {
		case p.critical:
			r.Status = Unhealthy
		case r.Status == Healthy:
			r.Status = Degraded
		}
	}
	return r
}
