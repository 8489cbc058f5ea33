package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/edurag/internal/db"
)

// Get returns db.ErrKeyNotFound when key is absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).AsBytes()
	if rueidis.IsRedisNil(err) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, db.Wrap("GET", key, err)
	}
	return data, nil
}

// SetWithTTL writes value; ttl <= 0 stores it without expiry.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	set := s.client.B().Set().Key(key).Value(rueidis.BinaryString(value))
	var cmd rueidis.Completed
	if ttl > 0 {
		cmd = set.Ex(ttl).Build()
	} else {
		cmd = set.Build()
	}
	return db.Wrap("SET", key, s.client.Do(ctx, cmd).Error())
}

// IncrWithTTL pipelines INCRBY and EXPIRE NX, so a bucket keeps the expiry of its first write.
func (s *Store) IncrWithTTL(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	b := s.client.B()
	res := s.client.DoMulti(ctx,
		b.Incrby().Key(key).Increment(delta).Build(),
		b.Expire().Key(key).Seconds(int64(ttl/time.Second)).Nx().Build(),
	)
	total, err := res[0].AsInt64()
	if err != nil {
		return 0, db.Wrap("INCRBY", key, err)
	}
	if err := res[1].Error(); err != nil {
		return total, db.Wrap("EXPIRE", key, err)
	}
	return total, nil
}
