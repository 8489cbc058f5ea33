package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/edurag/internal/domain"
	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
	dommat "github.com/kailas-cloud/edurag/internal/domain/material"
	answeruc "github.com/kailas-cloud/edurag/internal/usecase/answer"
	generationuc "github.com/kailas-cloud/edurag/internal/usecase/generation"
	"github.com/kailas-cloud/edurag/internal/usecase/grounding"
	healthuc "github.com/kailas-cloud/edurag/internal/usecase/health"
	ingestionuc "github.com/kailas-cloud/edurag/internal/usecase/ingestion"
	retrievaluc "github.com/kailas-cloud/edurag/internal/usecase/retrieval"
	searchuc "github.com/kailas-cloud/edurag/internal/usecase/search"
	usageuc "github.com/kailas-cloud/edurag/internal/usecase/usage"
)

// --- Fakes ---

type fakeServices struct {
	retrieveFn  func(ctx context.Context, req retrievaluc.Request) ([]domchunk.Retrieved, error)
	generateFn  func(ctx context.Context, req generationuc.Request) (dommat.Material, error)
	getFn       func(ctx context.Context, id string) (dommat.Material, error)
	listFn      func(ctx context.Context, courseID string, limit int) ([]dommat.Material, error)
	deleteFn    func(ctx context.Context, id string) error
	validateFn  func(ctx context.Context, id string) (dommat.ValidationReport, error)
	askCourseFn func(ctx context.Context, courseID, q string, f domchunk.Filters, topK int) (answeruc.Answer, error)
	askUserFn   func(ctx context.Context, userID, q string, f domchunk.Filters, topK int) (answeruc.Answer, error)
	imagesFn    func(ctx context.Context, courseID, q string, topK int, minSim float64) ([]searchuc.Image, error)
	ingestFn    func(ctx context.Context, req ingestionuc.IngestRequest) (ingestionuc.IngestResult, error)
	imageFn     func(ctx context.Context, req ingestionuc.ImageRequest) (ingestionuc.IngestResult, error)
	deleteCFn   func(ctx context.Context, courseID, contentID string) (int, error)
	report      healthuc.Report
	usageFn     func(ctx context.Context, period usageuc.Period) (usageuc.Report, error)
}

func (f *fakeServices) Retrieve(ctx context.Context, req retrievaluc.Request) ([]domchunk.Retrieved, error) {
	return f.retrieveFn(ctx, req)
}

func (f *fakeServices) Generate(ctx context.Context, req generationuc.Request) (dommat.Material, error) {
	return f.generateFn(ctx, req)
}

func (f *fakeServices) Get(ctx context.Context, id string) (dommat.Material, error) { return f.getFn(ctx, id) }

func (f *fakeServices) List(ctx context.Context, courseID string, limit int) ([]dommat.Material, error) {
	return f.listFn(ctx, courseID, limit)
}

func (f *fakeServices) Delete(ctx context.Context, id string) error { return f.deleteFn(ctx, id) }

func (f *fakeServices) Validate(ctx context.Context, id string) (dommat.ValidationReport, error) {
	return f.validateFn(ctx, id)
}

func (f *fakeServices) AskCourse(
	ctx context.Context, courseID, q string, filters domchunk.Filters, topK int,
) (answeruc.Answer, error) {
	return f.askCourseFn(ctx, courseID, q, filters, topK)
}

func (f *fakeServices) AskUser(
	ctx context.Context, userID, q string, filters domchunk.Filters, topK int,
) (answeruc.Answer, error) {
	return f.askUserFn(ctx, userID, q, filters, topK)
}

func (f *fakeServices) SearchImages(
	ctx context.Context, courseID, q string, topK int, minSim float64,
) ([]searchuc.Image, error) {
	return f.imagesFn(ctx, courseID, q, topK, minSim)
}

func (f *fakeServices) IngestText(ctx context.Context, req ingestionuc.IngestRequest) (ingestionuc.IngestResult, error) {
	return f.ingestFn(ctx, req)
}

func (f *fakeServices) IngestImage(ctx context.Context, req ingestionuc.ImageRequest) (ingestionuc.IngestResult, error) {
	return f.imageFn(ctx, req)
}

func (f *fakeServices) DeleteContent(ctx context.Context, courseID, contentID string) (int, error) {
	return f.deleteCFn(ctx, courseID, contentID)
}

func (f *fakeServices) Check(_ context.Context) healthuc.Report { return f.report }

func (f *fakeServices) Report(ctx context.Context, period usageuc.Period) (usageuc.Report, error) {
	return f.usageFn(ctx, period)
}

func newTestRouter(f *fakeServices) http.Handler {
	srv := NewServer(Services{
		Retriever: f, Generator: f, Materials: f, Validator: f,
		Answerer: f, Images: f, Ingester: f, Health: f, Usage: f,
	}, Config{Policy: grounding.DefaultPolicy, DefaultMinSimilarity: 0.25, Version: "test"}, nil)
	r := chi.NewRouter()
	srv.Register(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&e))
	return e
}

func retrieved(id, content string, sim float64) domchunk.Retrieved {
	return domchunk.Retrieved{
		Chunk: domchunk.Reconstruct(domchunk.Params{
			ID: id, Namespace: "c1", Content: content, Embedding: []float32{1}, Type: domchunk.TypeFile,
			Metadata: domchunk.Metadata{CourseID: "c1", Topic: "Graphs", Week: domchunk.IntPtr(3)},
		}),
		Similarity: domchunk.Score(sim),
	}
}

// --- Retrieve ---

func TestRetrieveContext(t *testing.T) {
	var got retrievaluc.Request
	f := &fakeServices{retrieveFn: func(ctx context.Context, req retrievaluc.Request) ([]domchunk.Retrieved, error) {
		got = req
		domain.UsageFromContext(ctx).AddEmbeddingTokens(7)
		return []domchunk.Retrieved{retrieved("a", "BFS uses a queue", 0.8), retrieved("b", "DFS", 0.6)}, nil
	}}

	rr := do(t, newTestRouter(f), "POST", "/v1/courses/c1/retrieve",
		`{"query":"graph traversal","top_k":3,"filters":{"week":3,"category":"theory"}}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "c1", got.Namespace)
	assert.Equal(t, "c1", got.CourseID)
	assert.Equal(t, 3, got.TopK)
	require.NotNil(t, got.Filters.Week)
	assert.Equal(t, 3, *got.Filters.Week)
	assert.Equal(t, "theory", got.Filters.Category)
	assert.Equal(t, "7", rr.Header().Get(HeaderEmbeddingTokens))

	var resp struct {
		Chunks []struct {
			ID         string         `json:"id"`
			Metadata   map[string]any `json:"metadata"`
			Similarity *float64       `json:"similarity"`
		} `json:"chunks"`
		GroundingScore *float64 `json:"grounding_score"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Chunks, 2)
	assert.Equal(t, "a", resp.Chunks[0].ID)
	assert.Equal(t, "Graphs", resp.Chunks[0].Metadata["topic"])
	require.NotNil(t, resp.GroundingScore)
	assert.InDelta(t, 0.7, *resp.GroundingScore, 1e-9)
}

func TestRetrieveContext_ValidationErrors(t *testing.T) {
	h := newTestRouter(&fakeServices{})

	rr := do(t, h, "POST", "/v1/courses/c1/retrieve", `{"top_k":3}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	e := decodeError(t, rr)
	assert.Equal(t, CodeValidationFailed, e.Code)
	assert.Contains(t, e.Fields, "query")

	rr = do(t, h, "POST", "/v1/courses/c1/retrieve", `{"query":"x","filters":{"week":0,"category":"exam"}}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	e = decodeError(t, rr)
	assert.Contains(t, e.Fields, "filters.category")

	rr = do(t, h, "POST", "/v1/courses/c1/retrieve", `{"query":"x","unknown":1}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, CodeBadRequest, decodeError(t, rr).Code)

	rr = do(t, h, "POST", "/v1/courses/c1/retrieve", ``)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRetrieveContext_Refusals(t *testing.T) {
	tests := []struct {
		reason domain.GroundingReason
		status int
		code   ErrorCode
	}{
		{domain.ReasonEmptyCourse, http.StatusNotFound, CodeNoCourseMaterials},
		{domain.ReasonFilteredOut, http.StatusUnprocessableEntity, CodeNoMatchingMaterial},
		{domain.ReasonNoOverlap, http.StatusUnprocessableEntity, CodeNoMatchingMaterial},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			f := &fakeServices{retrieveFn: func(context.Context, retrievaluc.Request) ([]domchunk.Retrieved, error) {
				return nil, domain.NewNoGrounding(tt.reason)
			}}
			rr := do(t, newTestRouter(f), "POST", "/v1/courses/c1/retrieve", `{"query":"quantum"}`)
			require.Equal(t, tt.status, rr.Code)
			e := decodeError(t, rr)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, string(tt.reason), e.Reason)
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
	}{
		{"vector store", fmt.Errorf("%w: knn: boom", domain.ErrVectorStore), http.StatusServiceUnavailable, CodeStoreUnavailable},
		{"embedding", domain.WrapEmbeddingError("embed query", errors.New("timeout")),
			http.StatusServiceUnavailable, CodeProviderUnavailable},
		{"quota", fmt.Errorf("embed: %w", domain.ErrEmbeddingQuotaExceeded), http.StatusTooManyRequests, CodeQuotaExceeded},
		{"invalid", fmt.Errorf("%w: query is required", domain.ErrInvalidInput), http.StatusBadRequest, CodeValidationFailed},
		{"unknown", errors.New("kaboom"), http.StatusInternalServerError, CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeServices{retrieveFn: func(context.Context, retrievaluc.Request) ([]domchunk.Retrieved, error) {
				return nil, tt.err
			}}
			rr := do(t, newTestRouter(f), "POST", "/v1/courses/c1/retrieve", `{"query":"graphs"}`)
			require.Equal(t, tt.status, rr.Code)
			e := decodeError(t, rr)
			assert.Equal(t, tt.code, e.Code)
			assert.NotContains(t, e.Message, "kaboom")
			assert.NotContains(t, e.Message, "boom")
		})
	}
}

// --- Materials ---

func sampleMaterial() dommat.Material {
	score := 0.8
	return dommat.Material{
		ID: "m1", CourseID: "c1", Category: dommat.CategoryTheory, Topic: "Graphs", Output: "text",
		Mode: dommat.ModeCourseOnly, GroundingScore: &score,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestGenerateMaterial(t *testing.T) {
	var got generationuc.Request
	f := &fakeServices{generateFn: func(ctx context.Context, req generationuc.Request) (dommat.Material, error) {
		got = req
		domain.UsageFromContext(ctx).AddCompletionTokens(120)
		return sampleMaterial(), nil
	}}

	rr := do(t, newTestRouter(f), "POST", "/v1/courses/c1/materials",
		`{"topic":"Graphs","category":"theory","depth":"intro","filters":{"week":2}}`)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "/v1/materials/m1", rr.Header().Get("Location"))
	assert.Equal(t, "120", rr.Header().Get(HeaderCompletionTokens))
	assert.Equal(t, dommat.CategoryTheory, got.Category)
	assert.Equal(t, "intro", got.Depth)
	require.NotNil(t, got.Filters.Week)

	var resp materialResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "m1", resp.ID)
	assert.Equal(t, "course_only", resp.Mode)
	assert.NotNil(t, resp.Sources)
}

func TestGenerateMaterial_Errors(t *testing.T) {
	f := &fakeServices{generateFn: func(context.Context, generationuc.Request) (dommat.Material, error) {
		return dommat.Material{}, domain.NewInsufficientGrounding(domain.ReasonEmptyCourse)
	}}
	rr := do(t, newTestRouter(f), "POST", "/v1/courses/c1/materials", `{"topic":"Graphs","category":"lab"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	e := decodeError(t, rr)
	assert.Equal(t, CodeInsufficientGrounding, e.Code)
	assert.Equal(t, "empty_course", e.Reason)

	f.generateFn = func(context.Context, generationuc.Request) (dommat.Material, error) {
		return dommat.Material{}, fmt.Errorf("%w: generate: 503", domain.ErrLLMUnavailable)
	}
	rr = do(t, newTestRouter(f), "POST", "/v1/courses/c1/materials", `{"topic":"Graphs","category":"lab"}`)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, CodeProviderUnavailable, decodeError(t, rr).Code)

	rr = do(t, newTestRouter(f), "POST", "/v1/courses/c1/materials", `{"topic":"Graphs","category":"essay"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeError(t, rr).Fields, "category")
}

func TestListMaterials(t *testing.T) {
	var gotLimit int
	f := &fakeServices{listFn: func(_ context.Context, courseID string, limit int) ([]dommat.Material, error) {
		gotLimit = limit
		return []dommat.Material{sampleMaterial()}, nil
	}}
	h := newTestRouter(f)

	rr := do(t, h, "GET", "/v1/courses/c1/materials?limit=10", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 10, gotLimit)
	var resp materialListResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Len(t, resp.Items, 1)

	rr = do(t, h, "GET", "/v1/courses/c1/materials", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, gotLimit)

	rr = do(t, h, "GET", "/v1/courses/c1/materials?limit=ten", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, CodeBadRequest, decodeError(t, rr).Code)
}

func TestGetDeleteValidateMaterial(t *testing.T) {
	deleted := ""
	f := &fakeServices{
		getFn: func(_ context.Context, id string) (dommat.Material, error) {
			if id != "m1" {
				return dommat.Material{}, fmt.Errorf("material %s: %w", id, domain.ErrNotFound)
			}
			return sampleMaterial(), nil
		},
		deleteFn: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
		validateFn: func(context.Context, string) (dommat.ValidationReport, error) {
			return dommat.ValidationReport{SyntaxOK: true, GroundingOK: true, FinalVerdict: dommat.VerdictApproved}, nil
		},
	}
	h := newTestRouter(f)

	rr := do(t, h, "GET", "/v1/materials/m1", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, "GET", "/v1/materials/zzz", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, CodeNotFound, decodeError(t, rr).Code)

	rr = do(t, h, "DELETE", "/v1/materials/m1", "")
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "m1", deleted)

	rr = do(t, h, "POST", "/v1/materials/m1/validate", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var report dommat.ValidationReport
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&report))
	assert.Equal(t, dommat.VerdictApproved, report.FinalVerdict)
}

// --- Grounding score ---

func TestGroundingScore(t *testing.T) {
	h := newTestRouter(&fakeServices{})

	rr := do(t, h, "POST", "/v1/grounding/score",
		`{"chunks":[{"similarity":0.9},{"similarity":0.7},{"similarity":null},{"similarity":0.8}]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp groundingScoreResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.NotNil(t, resp.Score)
	assert.InDelta(t, 0.8, *resp.Score, 1e-9)
	assert.Equal(t, 4, resp.ChunkCount)
	assert.False(t, resp.NeedsEnrichment)

	rr = do(t, h, "POST", "/v1/grounding/score", `{"chunks":[]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	resp = groundingScoreResponse{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Nil(t, resp.Score)
	assert.True(t, resp.NeedsEnrichment)
}

// --- Ask ---

func TestAskCourse(t *testing.T) {
	f := &fakeServices{askCourseFn: func(_ context.Context, courseID, q string, filters domchunk.Filters, topK int) (answeruc.Answer, error) {
		assert.Equal(t, "c1", courseID)
		assert.Equal(t, "Graphs", filters.Topic)
		return answeruc.Answer{Answer: answeruc.IDontKnow, Sources: []answeruc.Source{}, Reason: domain.ReasonNoOverlap}, nil
	}}

	rr := do(t, newTestRouter(f), "POST", "/v1/courses/c1/ask", `{"question":"what is BFS?","filters":{"topic":"Graphs"}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp answerResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, answeruc.IDontKnow, resp.Answer)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, "no_overlap", resp.Reason)
}

func TestAskUser(t *testing.T) {
	var gotFilters domchunk.Filters
	f := &fakeServices{askUserFn: func(_ context.Context, userID, q string, filters domchunk.Filters, topK int) (answeruc.Answer, error) {
		assert.Equal(t, "u1", userID)
		gotFilters = filters
		return answeruc.Answer{Answer: "BFS explores level by level [S1]."}, nil
	}}
	h := newTestRouter(f)

	rr := do(t, h, "POST", "/v1/users/u1/ask", `{"question":"what is BFS?","top_k":4}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, gotFilters.IsEmpty())

	rr = do(t, h, "POST", "/v1/users/u1/ask", `{"question":"x","filters":{"topic":"Graphs","week":3}}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Graphs", gotFilters.Topic)
	require.NotNil(t, gotFilters.Week)
	assert.Equal(t, 3, *gotFilters.Week)
}

// --- Images ---

func TestSearchImages(t *testing.T) {
	var gotTopK int
	var gotMin float64
	f := &fakeServices{imagesFn: func(_ context.Context, courseID, q string, topK int, minSim float64) ([]searchuc.Image, error) {
		assert.Equal(t, "binary tree", q)
		gotTopK, gotMin = topK, minSim
		return []searchuc.Image{{ChunkID: "img1", URL: "https://files/1.png", Similarity: 0.7}}, nil
	}}
	h := newTestRouter(f)

	rr := do(t, h, "GET", "/v1/courses/c1/images/search?q=binary+tree&top_k=6&min_similarity=0.4", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 6, gotTopK)
	assert.InDelta(t, 0.4, gotMin, 1e-9)
	var resp imageSearchResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "https://files/1.png", resp.Items[0].URL)

	rr = do(t, h, "GET", "/v1/courses/c1/images/search?q=binary+tree", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, gotTopK)
	assert.InDelta(t, 0.25, gotMin, 1e-9)

	rr = do(t, h, "GET", "/v1/courses/c1/images/search", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

// --- Ingestion ---

func TestIngestText(t *testing.T) {
	var got ingestionuc.IngestRequest
	f := &fakeServices{ingestFn: func(_ context.Context, req ingestionuc.IngestRequest) (ingestionuc.IngestResult, error) {
		got = req
		return ingestionuc.IngestResult{ContentID: "doc1", Chunks: 3}, nil
	}}
	h := newTestRouter(f)

	rr := do(t, h, "POST", "/v1/courses/c1/contents",
		`{"content_id":"doc1","text":"lecture text","category":"theory","content_type":"slide","week":4,"topic":"Graphs"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "c1", got.CourseID)
	assert.Equal(t, "slide", got.ContentType)
	require.NotNil(t, got.Week)
	assert.Equal(t, 4, *got.Week)

	rr = do(t, h, "POST", "/v1/courses/c1/contents", `{"text":"x","category":"theory","content_type":"video"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeError(t, rr).Fields, "content_type")
}

func TestIngestImage(t *testing.T) {
	f := &fakeServices{imageFn: func(_ context.Context, req ingestionuc.ImageRequest) (ingestionuc.IngestResult, error) {
		assert.Equal(t, "https://files/tree.png", req.ImageURL)
		return ingestionuc.IngestResult{ContentID: "img", Chunks: 1}, nil
	}}
	h := newTestRouter(f)

	rr := do(t, h, "POST", "/v1/courses/c1/images", `{"image_url":"https://files/tree.png","category":"lab"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, h, "POST", "/v1/courses/c1/images", `{"image_url":"not a url","category":"lab"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeError(t, rr).Fields, "image_url")
}

func TestDeleteContent(t *testing.T) {
	f := &fakeServices{deleteCFn: func(_ context.Context, courseID, contentID string) (int, error) {
		assert.Equal(t, "c1", courseID)
		assert.Equal(t, "doc1", contentID)
		return 5, nil
	}}

	rr := do(t, newTestRouter(f), "DELETE", "/v1/courses/c1/contents/doc1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp deleteContentResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 5, resp.Deleted)
}

// --- Health ---

func TestHealthAndReady(t *testing.T) {
	f := &fakeServices{report: healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{healthuc.ComponentVectorStore: healthuc.CheckOK, healthuc.ComponentEmbedding: healthuc.CheckError},
	}}
	h := newTestRouter(f)

	rr := do(t, h, "GET", "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, "GET", "/health/ready", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp healthResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "error", resp.Checks["embedding"])

	f.report = healthuc.Report{Status: healthuc.Unhealthy, Checks: map[string]healthuc.CheckResult{}}
	rr = do(t, h, "GET", "/health/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

// --- Usage ---

func TestGetUsage(t *testing.T) {
	var got usageuc.Period
	f := &fakeServices{usageFn: func(_ context.Context, period usageuc.Period) (usageuc.Report, error) {
		got = period
		return usageuc.Report{Period: period, TokensUsed: 42, TokensLimit: 1000, Remaining: 958}, nil
	}}
	h := newTestRouter(f)

	rr := do(t, h, "GET", "/v1/usage", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, usageuc.PeriodDay, got)

	rr = do(t, h, "GET", "/v1/usage?period=month", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, usageuc.PeriodMonth, got)
	var report usageuc.Report
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&report))
	assert.Equal(t, int64(42), report.TokensUsed)

	rr = do(t, h, "GET", "/v1/usage?period=year", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, CodeValidationFailed, decodeError(t, rr).Code)
}
