package material

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/edurag/internal/domain"
	dommat "github.com/kailas-cloud/edurag/internal/domain/material"
)

// --- Mocks ---

type mockRepo struct {
	items     map[string]dommat.Material
	listLimit int
	listErr   error
	deleteErr error
	deleted   []string
}

func (m *mockRepo) Get(_ context.Context, id string) (dommat.Material, error) {
	it, ok := m.items[id]
	if !ok {
		return dommat.Material{}, domain.ErrNotFound
	}
	return it, nil
}

func (m *mockRepo) ListByCourse(_ context.Context, courseID string, limit int) ([]dommat.Material, error) {
	m.listLimit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []dommat.Material
	for _, it := range m.items {
		if it.CourseID == courseID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type mockChunks struct {
	err       error
	namespace string
	contentID string
}

func (m *mockChunks) DeleteByContentID(_ context.Context, ns, contentID string) (int, error) {
	m.namespace, m.contentID = ns, contentID
	return 1, m.err
}

func newRepo() *mockRepo {
	return &mockRepo{items: map[string]dommat.Material{
		"m1": {ID: "m1", CourseID: "c1", Topic: "Graphs"},
		"m2": {ID: "m2", CourseID: "c2", Topic: "Heaps"},
	}}
}

// --- Tests ---

func TestGet(t *testing.T) {
	svc := New(newRepo(), nil, nil)

	m, err := svc.Get(context.Background(), "m1")
	if err != nil || m.Topic != "Graphs" {
		t.Fatalf("unexpected result %+v, %v", m, err)
	}
	if _, err := svc.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Get(context.Background(), ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestList_Limits(t *testing.T) {
	repo := newRepo()
	svc := New(repo, nil, nil)

	items, err := svc.List(context.Background(), "c1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || repo.listLimit != defaultListLimit {
		t.Errorf("unexpected list %d items, limit %d", len(items), repo.listLimit)
	}

	_, _ = svc.List(context.Background(), "c1", 10_000)
	if repo.listLimit != maxListLimit {
		t.Errorf("expected clamp to %d, got %d", maxListLimit, repo.listLimit)
	}
}

func TestList_EmptyIsNonNil(t *testing.T) {
	items, err := New(newRepo(), nil, nil).List(context.Background(), "unknown", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", items)
	}
}

func TestList_Errors(t *testing.T) {
	if _, err := New(newRepo(), nil, nil).List(context.Background(), " ", 5); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	repo := newRepo()
	repo.listErr = errors.New("pg down")
	if _, err := New(repo, nil, nil).List(context.Background(), "c1", 5); err == nil {
		t.Error("expected error")
	}
}

func TestDelete_CascadesToChunks(t *testing.T) {
	repo := newRepo()
	chunks := &mockChunks{}

	if err := New(repo, chunks, nil).Delete(context.Background(), "m1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "m1" {
		t.Errorf("expected m1 deleted, got %v", repo.deleted)
	}
	if chunks.namespace != "c1" || chunks.contentID != "m1" {
		t.Errorf("unexpected cascade %s/%s", chunks.namespace, chunks.contentID)
	}
}

func TestDelete_ChunkFailureSwallowed(t *testing.T) {
	err := New(newRepo(), &mockChunks{err: domain.ErrVectorStore}, nil).Delete(context.Background(), "m1")
	if err != nil {
		t.Errorf("chunk cleanup failure must not fail the delete: %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	chunks := &mockChunks{}
	err := New(newRepo(), chunks, nil).Delete(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if chunks.contentID != "" {
		t.Error("chunks must not be touched for a missing material")
	}
}

func TestDelete_RepoError(t *testing.T) {
	repo := newRepo()
	repo.deleteErr = errors.New("pg down")
	chunks := &mockChunks{}
	if err := New(repo, chunks, nil).Delete(context.Background(), "m1"); err == nil {
		t.Error("expected error")
	}
	if chunks.contentID != "" {
		t.Error("chunks must not be deleted when the material delete fails")
	}
}
