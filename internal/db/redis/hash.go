package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/edurag/internal/db"
)

// scanCount is the SCAN COUNT hint per round-trip.
const scanCount = 100

// HSetMulti pipelines one HSET per item. Items are independent: a failure
// leaves the earlier hashes written.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}
	cmds := make([]rueidis.Completed, 0, len(items))
	for _, it := range items {
		hset := s.client.B().Hset().Key(it.Key).FieldValue()
		for f, v := range it.Fields {
			hset = hset.FieldValue(f, v)
		}
		cmds = append(cmds, hset.Build())
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return db.Wrap("HSET", items[i].Key, err)
		}
	}
	return nil
}

// HGetAllMulti pipelines HGETALL for keys. Keys removed since they were listed
// come back as empty maps.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make([]rueidis.Completed, 0, len(keys))
	for _, k := range keys {
		cmds = append(cmds, s.client.B().Hgetall().Key(k).Build())
	}

	out := make([]map[string]string, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, db.Wrap("HGETALL", keys[i], err)
		}
		out[i] = m
	}
	return out, nil
}

// Del removes keys and returns how many existed.
func (s *Store) Del(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Do(ctx, s.client.B().Del().Key(keys...).Build()).AsInt64()
	if err != nil {
		return 0, db.Wrap("DEL", "", err)
	}
	return int(n), nil
}

// Scan walks the keyspace for pattern and stops once limit keys are collected (limit <= 0: all).
func (s *Store) Scan(ctx context.Context, pattern string, limit int) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		cmd := s.client.B().Scan().Cursor(cursor).Match(pattern).Count(scanCount).Build()
		page, err := s.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, db.Wrap("SCAN", pattern, err)
		}
		keys = append(keys, page.Elements...)
		if limit > 0 && len(keys) >= limit {
			return keys[:limit], nil
		}
		if page.Cursor == 0 {
			return keys, nil
		}
		cursor = page.Cursor
	}
}
