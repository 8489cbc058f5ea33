package chunk

import (
	"context"
	"testing"

	"github.com/kailas-cloud/edurag/internal/db"
	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetMultiFn    func(ctx context.Context, items []db.HashSetItem) error
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	delFn          func(ctx context.Context, keys ...string) (int, error)
	scanFn         func(ctx context.Context, pattern string, limit int) ([]string, error)
	createIndexFn  func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn  func(ctx context.Context, name string) (bool, error)
	dropIndexFn    func(ctx context.Context, name string) error
	searchKNNFn    func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchListFn   func(
		ctx context.Context, index, query string, offset, limit int, fields []string,
	) (*db.SearchResult, error)
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return make([]map[string]string, len(keys)), nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) (int, error) {
	if m.delFn != nil {
		return m.delFn(ctx, keys...)
	}
	return len(keys), nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string, limit int) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern, limit)
	}
	return nil, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchList(
	ctx context.Context, index, query string, offset, limit int, fields []string,
) (*db.SearchResult, error) {
	if m.searchListFn != nil {
		return m.searchListFn(ctx, index, query, offset, limit, fields)
	}
	return &db.SearchResult{}, nil
}

const testDim = 3

func newTestRepo(s store) *Repo {
	return New(s, Config{KeyPrefix: "edurag:", Dimensions: testDim, BatchSize: 100}, nil)
}

func mustChunk(t *testing.T, id, namespace string, meta domchunk.Metadata) domchunk.Chunk {
	t.Helper()
	c, err := domchunk.New(domchunk.Params{
		ID:        id,
		Namespace: namespace,
		Content:   "content of " + id,
		Embedding: []float32{1, 0, 0},
		Metadata:  meta,
		Type:      domchunk.TypeFile,
		Source:    "pdf",
	})
	if err != nil {
		t.Fatalf("build chunk: %v", err)
	}
	return c
}

// hashOf returns the stored form of a chunk.
func hashOf(t *testing.T, c domchunk.Chunk) map[string]string {
	t.Helper()
	fields, err := encode(c)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return fields
}
