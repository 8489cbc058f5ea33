package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func up(context.Context) error { return nil }

func down(context.Context) error { return errors.New("connection refused") }

func TestCheck(t *testing.T) {
	tests := []struct {
		name      string
		vectors   pingFunc
		materials Checker
		embedding Checker
		want      Status
		checks    map[string]CheckResult
	}{
		{
			name:      "all up",
			vectors:   up,
			materials: CheckerFunc(up),
			embedding: CheckerFunc(up),
			want:      Healthy,
			checks: map[string]CheckResult{
				ComponentVectorStore: CheckOK, ComponentMaterials: CheckOK, ComponentEmbedding: CheckOK,
			},
		},
		{
			name:      "vector store down",
			vectors:   down,
			materials: CheckerFunc(up),
			embedding: CheckerFunc(up),
			want:      Unhealthy,
			checks: map[string]CheckResult{
				ComponentVectorStore: CheckError, ComponentMaterials: CheckOK, ComponentEmbedding: CheckOK,
			},
		},
		{
			name:      "materials db down",
			vectors:   up,
			materials: CheckerFunc(down),
			embedding: CheckerFunc(up),
			want:      Degraded,
			checks: map[string]CheckResult{
				ComponentVectorStore: CheckOK, ComponentMaterials: CheckError, ComponentEmbedding: CheckOK,
			},
		},
		{
			name:      "embedding down, no materials db configured",
			vectors:   up,
			embedding: CheckerFunc(down),
			want:      Degraded,
			checks:    map[string]CheckResult{ComponentVectorStore: CheckOK, ComponentEmbedding: CheckError},
		},
		{
			name:      "store and materials down",
			vectors:   down,
			materials: CheckerFunc(down),
			want:      Unhealthy,
			checks:    map[string]CheckResult{ComponentVectorStore: CheckError, ComponentMaterials: CheckError},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.vectors, tt.materials, tt.embedding).Check(context.Background())
			assert.Equal(t, tt.want, r.Status)
			assert.Equal(t, tt.checks, r.Checks)
		})
	}
}
