package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/edurag/internal/db"
)

func testIndex(t *testing.T) *db.IndexDefinition {
	t.Helper()
	def, err := db.NewIndex("edurag:chunks").
		Prefix("edurag:chunk:").
		ExactTag("namespace").
		Vector(db.VectorField{Name: "__vector", Alias: "vector", Dim: 4}).
		Build()
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	return def
}

func TestCreateIndex(t *testing.T) {
	s, c := newMockStore(t)
	def := testIndex(t)

	var sent []string
	c.EXPECT().Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.CREATE" })).
		DoAndReturn(func(_ context.Context, cmd rueidis.Completed) rueidis.RedisResult {
			sent = cmd.Commands()
			return mock.Result(mock.RedisString("OK"))
		})

	if err := s.CreateIndex(context.Background(), def); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := append([]string{"FT.CREATE"}, def.Args()...)
	if len(sent) != len(want) {
		t.Fatalf("sent %v, want %v", sent, want)
	}
	for i := range want {
		if sent[i] != want[i] {
			t.Fatalf("arg %d = %q, want %q", i, sent[i], want[i])
		}
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), gomock.Any()).Return(mock.Result(mock.RedisError("Index already exists")))

	if err := s.CreateIndex(context.Background(), testIndex(t)); !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}
}

func TestCreateIndex_InvalidDefinition(t *testing.T) {
	s := &Store{}
	if err := s.CreateIndex(context.Background(), &db.IndexDefinition{Name: "idx"}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestIndexExists(t *testing.T) {
	tests := []struct {
		name    string
		result  rueidis.RedisResult
		want    bool
		wantErr bool
	}{
		{"present", mock.Result(mock.RedisArray(mock.RedisString("index_name"), mock.RedisString("idx"))), true, false},
		{"absent", mock.Result(mock.RedisError("Unknown Index name")), false, false},
		{"absent valkey", mock.Result(mock.RedisError("idx: no such index")), false, false},
		{"failure", mock.ErrorResult(context.DeadlineExceeded), false, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, c := newMockStore(t)
			c.EXPECT().Do(gomock.Any(), mock.Match("FT.INFO", "idx")).Return(tc.result)

			got, err := s.IndexExists(context.Background(), "idx")
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDropIndex(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().Do(gomock.Any(), mock.Match("FT.DROPINDEX", "edurag:chunks")).Return(mock.Result(mock.RedisString("OK")))
	if err := s.DropIndex(context.Background(), "edurag:chunks"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.EXPECT().Do(gomock.Any(), mock.Match("FT.DROPINDEX", "gone")).Return(mock.Result(mock.RedisError("Unknown Index name")))
	if err := s.DropIndex(context.Background(), "gone"); !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}
