package wikipedia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/", UserAgent: "edurag-test", RatePerSec: 1000, Burst: 10})
}

func TestSummary(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/page/summary/Binary_search", r.URL.Path)
		assert.Equal(t, "edurag-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"title":"Binary search","extract":" Halves the interval. ",
			"content_urls":{"desktop":{"page":"https://en.wikipedia.org/wiki/Binary_search"}}}`))
	})

	ref, err := c.Summary(context.Background(), "Binary search")
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, "Binary search", ref.Title)
	assert.Equal(t, "Halves the interval.", ref.Extract)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Binary_search", ref.URL)
	assert.Equal(t, SourceName, ref.Source)
}

func TestSummary_EmptyExtract(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"title":"X","extract":"  "}`))
	})

	ref, err := c.Summary(context.Background(), "X")
	require.NoError(t, err)
	assert.Nil(t, ref)
}

func TestSummary_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	ref, err := c.Summary(context.Background(), "Nope")
	require.NoError(t, err)
	assert.Nil(t, ref)
}

func TestSummary_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Summary(context.Background(), "Graphs")
	assert.Error(t, err)
}

func TestSummary_BlankTitle(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	})

	ref, err := c.Summary(context.Background(), "  ")
	require.NoError(t, err)
	assert.Nil(t, ref)
}

func TestSearch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/page/search", r.URL.Path)
		assert.Equal(t, "dijkstra algorithm", r.URL.Query().Get("q"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"pages":[
			{"key":"Dijkstra's_algorithm","title":"Dijkstra's algorithm","extract":"Shortest paths."},
			{"key":"Empty","title":"Empty","extract":""},
			{"key":"","title":"No key","extract":"Still useful."},
			{"key":"Extra","title":"Extra","extract":"Past the limit."}
		]}`))
	})

	refs, err := c.Search(context.Background(), "dijkstra algorithm", 2)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Dijkstra's_algorithm", refs[0].URL)
	assert.Equal(t, "No key", refs[1].Title)
	assert.Empty(t, refs[1].URL)
}

func TestSearch_LimitClamped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"pages":[]}`))
	})

	refs, err := c.Search(context.Background(), "graphs", 50)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestSearch_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := c.Search(context.Background(), "graphs", 2)
	assert.Error(t, err)
}

func TestRateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"pages":[]}`))
	}))
	defer srv.Close()
	c := New(Config{BaseURL: srv.URL, RatePerSec: 0.001, Burst: 1})

	_, err := c.Search(context.Background(), "first", 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Search(ctx, "second", 1)
	assert.Error(t, err)
}
