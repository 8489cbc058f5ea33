package redis

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/edurag/internal/db"
)

// CreateIndex runs FT.CREATE. An existing index yields db.ErrIndexExists.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("index definition: %w", err)
	}
	cmd := s.client.B().Arbitrary("FT.CREATE").Args(def.Args()...).Build()
	err := s.client.Do(ctx, cmd).Error()
	if serverErr(err, "already exists") {
		return db.ErrIndexExists
	}
	return db.Wrap("FT.CREATE", def.Name, err)
}

// IndexExists probes with FT.INFO.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	err := s.client.Do(ctx, s.client.B().Arbitrary("FT.INFO").Args(name).Build()).Error()
	switch {
	case err == nil:
		return true, nil
	case serverErr(err, "unknown index name", "no such index"):
		return false, nil
	default:
		return false, db.Wrap("FT.INFO", name, err)
	}
}

// DropIndex runs FT.DROPINDEX without DD, so chunk hashes survive and are
// picked up again by the next FT.CREATE over the same prefix.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	err := s.client.Do(ctx, s.client.B().Arbitrary("FT.DROPINDEX").Args(name).Build()).Error()
	if serverErr(err, "unknown index name", "no such index") {
		return db.ErrIndexNotFound
	}
	return db.Wrap("FT.DROPINDEX", name, err)
}
