package validation

import (
	"context"

	dommat "github.com/kailas-cloud/edurag/internal/domain/material"
)

// MaterialRepository loads materials and stores their reports.
type MaterialRepository interface {
	Get(ctx context.Context, id string) (dommat.Material, error)
	SaveValidation(ctx context.Context, id string, report dommat.ValidationReport) error
}
