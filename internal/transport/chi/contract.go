package chi

import (
	"context"

	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
	dommat "github.com/kailas-cloud/edurag/internal/domain/material"
	answeruc "github.com/kailas-cloud/edurag/internal/usecase/answer"
	generationuc "github.com/kailas-cloud/edurag/internal/usecase/generation"
	healthuc "github.com/kailas-cloud/edurag/internal/usecase/health"
	ingestionuc "github.com/kailas-cloud/edurag/internal/usecase/ingestion"
	retrievaluc "github.com/kailas-cloud/edurag/internal/usecase/retrieval"
	searchuc "github.com/kailas-cloud/edurag/internal/usecase/search"
	usageuc "github.com/kailas-cloud/edurag/internal/usecase/usage"
)

// Retriever answers retrieve_context.
type Retriever interface {
	Retrieve(ctx context.Context, req retrievaluc.Request) ([]domchunk.Retrieved, error)
}

// Generator produces grounded course material.
type Generator interface {
	Generate(ctx context.Context, req generationuc.Request) (dommat.Material, error)
}

// Materials reads and deletes stored materials.
type Materials interface {
	Get(ctx context.Context, id string) (dommat.Material, error)
	List(ctx context.Context, courseID string, limit int) ([]dommat.Material, error)
	Delete(ctx context.Context, id string) error
}

// Validator reviews a stored material.
type Validator interface {
	Validate(ctx context.Context, materialID string) (dommat.ValidationReport, error)
}

// Answerer answers questions from course or user documents.
type Answerer interface {
	AskCourse(ctx context.Context, courseID, question string, filters domchunk.Filters, topK int) (answeruc.Answer, error)
	AskUser(ctx context.Context, userID, question string, filters domchunk.Filters, topK int) (answeruc.Answer, error)
}

// ImageSearcher finds course images for a text query.
type ImageSearcher interface {
	SearchImages(ctx context.Context, courseID, query string, topK int, minSimilarity float64) ([]searchuc.Image, error)
}

// Ingester indexes extracted course content.
type Ingester interface {
	IngestText(ctx context.Context, req ingestionuc.IngestRequest) (ingestionuc.IngestResult, error)
	IngestImage(ctx context.Context, req ingestionuc.ImageRequest) (ingestionuc.IngestResult, error)
	DeleteContent(ctx context.Context, courseID, contentID string) (int, error)
}

// HealthChecker reports dependency readiness.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// UsageReporter reports embedding token usage against the budget.
type UsageReporter interface {
	Report(ctx context.Context, period usageuc.Period) (usageuc.Report, error)
}
