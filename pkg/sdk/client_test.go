package edurag

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	query  string
	auth   string
	body   map[string]any
}

// newTestClient serves every request with handler and records it.
func newTestClient(t *testing.T, status int, response string, opts ...Option) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method, rec.path, rec.query = r.Method, r.URL.Path, r.URL.RawQuery
		rec.auth = r.Header.Get("Authorization")
		rec.body = nil
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			require.NoError(t, json.Unmarshal(data, &rec.body))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, opts...)
	require.NoError(t, err)
	return c, rec
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New("localhost:8080")
	require.Error(t, err)
	_, err = New("")
	require.Error(t, err)
}

func TestRetrieve(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK,
		`{"chunks":[{"id":"a","content":"BFS","metadata":{"week":3},"type":"file","similarity":0.8}],"grounding_score":0.8}`,
		WithAPIKey("secret"))

	week := 3
	res, err := c.Retrieve(context.Background(), "algo 101", RetrieveRequest{
		Query: "graph traversal", TopK: 4, Filters: &Filters{Week: &week},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/v1/courses/algo 101/retrieve", rec.path)
	assert.Equal(t, "Bearer secret", rec.auth)
	assert.Equal(t, "graph traversal", rec.body["query"])
	assert.Equal(t, map[string]any{"week": float64(3)}, rec.body["filters"])

	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "a", res.Chunks[0].ID)
	require.NotNil(t, res.GroundingScore)
	assert.InDelta(t, 0.8, *res.GroundingScore, 1e-9)
}

func TestAskUser_SendsFilters(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"answer":"Dijkstra relaxes edges [S1].","sources":[]}`)

	res, err := c.AskUser(context.Background(), "u1", AskRequest{
		Question: "shortest paths", Filters: &Filters{Topic: "Graphs"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/users/u1/ask", rec.path)
	assert.Equal(t, "shortest paths", rec.body["question"])
	assert.Equal(t, map[string]any{"topic": "Graphs"}, rec.body["filters"])
	assert.Equal(t, "Dijkstra relaxes edges [S1].", res.Answer)
}

func TestErrors_MapToSentinels(t *testing.T) {
	tests := []struct {
		status   int
		body     string
		sentinel error
		reason   string
	}{
		{404, `{"code":"no_course_materials","message":"course has no materials","reason":"empty_course"}`,
			ErrNoGrounding, ReasonEmptyCourse},
		{422, `{"code":"no_matching_material","message":"m","reason":"no_overlap"}`, ErrNoGrounding, ReasonNoOverlap},
		{422, `{"code":"insufficient_grounding","message":"m","reason":"filtered_out"}`,
			ErrInsufficientGrounding, ReasonFilteredOut},
		{404, `{"code":"not_found","message":"not found"}`, ErrNotFound, ""},
		{400, `{"code":"validation_failed","message":"m","fields":{"query":"query is required"}}`, ErrInvalidRequest, ""},
		{401, `{"code":"unauthorized","message":"invalid api key"}`, ErrUnauthorized, ""},
		{429, `{"code":"quota_exceeded","message":"m"}`, ErrQuotaExceeded, ""},
		{503, `{"code":"store_unavailable","message":"m"}`, ErrUnavailable, ""},
		{502, `<html>bad gateway</html>`, nil, ""},
	}
	for _, tt := range tests {
		c, _ := newTestClient(t, tt.status, tt.body)
		_, err := c.Retrieve(context.Background(), "c1", RetrieveRequest{Query: "q"})
		require.Error(t, err)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, tt.status, apiErr.StatusCode)
		if tt.sentinel != nil {
			assert.ErrorIs(t, err, tt.sentinel, tt.body)
		}

		reason, refused := IsRefusal(err)
		assert.Equal(t, tt.reason != "", refused, tt.body)
		assert.Equal(t, tt.reason, reason)
	}
}

func TestErrors_FallbackBody(t *testing.T) {
	c, _ := newTestClient(t, http.StatusServiceUnavailable, ``)
	_, err := c.Material(context.Background(), "m1")
	require.ErrorIs(t, err, ErrUnavailable)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Service Unavailable", apiErr.Message)
}

func TestMaterials(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"items":[{"id":"m1","category":"lab","sources":[]}]}`)

	items, err := c.Materials(context.Background(), "c1", 10)
	require.NoError(t, err)
	assert.Equal(t, "/v1/courses/c1/materials", rec.path)
	assert.Equal(t, "limit=10", rec.query)
	require.Len(t, items, 1)
	assert.Equal(t, CategoryLab, items[0].Category)
}

func TestDeleteMaterial_NoContent(t *testing.T) {
	c, rec := newTestClient(t, http.StatusNoContent, ``)
	require.NoError(t, c.DeleteMaterial(context.Background(), "m1"))
	assert.Equal(t, http.MethodDelete, rec.method)
	assert.Equal(t, "/v1/materials/m1", rec.path)
}

func TestSearchImages_Query(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"items":[{"chunk_id":"i1","url":"https://f/1.png","similarity":0.5}]}`)

	min := 0.3
	items, err := c.SearchImages(context.Background(), "c1", "binary tree", 6, &min)
	require.NoError(t, err)
	assert.Equal(t, "/v1/courses/c1/images/search", rec.path)
	assert.Equal(t, "min_similarity=0.3&q=binary+tree&top_k=6", rec.query)
	require.Len(t, items, 1)
	assert.Equal(t, "https://f/1.png", items[0].URL)
}

func TestScoreGrounding(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"score":0.7,"chunk_count":2,"needs_enrichment":true}`)

	a, b := 0.9, 0.5
	s, err := c.ScoreGrounding(context.Background(), []*float64{&a, nil, &b})
	require.NoError(t, err)
	assert.True(t, s.NeedsEnrichment)
	chunks, ok := rec.body["chunks"].([]any)
	require.True(t, ok)
	assert.Len(t, chunks, 3)
	assert.Nil(t, chunks[1].(map[string]any)["similarity"])
}

func TestReady_Unhealthy(t *testing.T) {
	c, rec := newTestClient(t, http.StatusServiceUnavailable, `{"status":"error","checks":{"vector_store":"error"}}`)

	h, err := c.Ready(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/health/ready", rec.path)
	assert.Equal(t, "error", h.Status)
	assert.Equal(t, "error", h.Checks["vector_store"])
}

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, _ := newTestClient(t, http.StatusNotFound, `{"code":"not_found","message":"nope"}`, WithPrometheus(reg))

	_, err := c.Material(context.Background(), "missing")
	require.True(t, errors.Is(err, ErrNotFound))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
	assert.Equal(t, 1, testutil.CollectAndCount(c.obs.metrics.requests, "edurag_sdk_requests_total"))
	assert.InDelta(t, 1, testutil.ToFloat64(c.obs.metrics.requests.WithLabelValues("get_material", "client_error")), 0)

	// A second client on the same registry shares the collectors.
	c2, err := New("http://localhost:1", WithPrometheus(reg))
	require.NoError(t, err)
	assert.Same(t, c.obs.metrics.requests, c2.obs.metrics.requests)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, outcomeOK, classify(nil))
	assert.Equal(t, outcomeRefused, classify(&APIError{StatusCode: 422, Code: "insufficient_grounding"}))
	assert.Equal(t, outcomeClientError, classify(&APIError{StatusCode: 400, Code: "validation_failed"}))
	assert.Equal(t, outcomeServerError, classify(&APIError{StatusCode: 503, Code: "store_unavailable"}))
	assert.Equal(t, outcomeTransport, classify(errors.New("dial tcp: connection refused")))
}
