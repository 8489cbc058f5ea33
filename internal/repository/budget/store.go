// Package budget persists embedding token counters per provider and period.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/edurag/internal/db"
)

// Period names accepted by Add and Used.
const (
	PeriodDaily   = "daily"
	PeriodMonthly = "monthly"
)

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrWithTTL(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
}

type bucketing struct {
	layout string
	ttl    time.Duration
}

// Store keeps one integer counter per bucket at
// {prefix}budget:{provider}:{period}:{YYYY-MM-DD | YYYY-MM}.
// The TTL is set on a bucket's first write only, so it outlives its period.
type Store struct {
	kv      store
	ns      string
	periods map[string]bucketing
}

// New creates a Store. Sensible TTLs are 48h for days and 62 days for months.
func New(s store, keyPrefix, provider string, dailyTTL, monthTTL time.Duration) *Store {
	return &Store{
		kv: s,
		ns: keyPrefix + "budget:" + provider + ":",
		periods: map[string]bucketing{
			PeriodDaily:   {layout: "2006-01-02", ttl: dailyTTL},
			PeriodMonthly: {layout: "2006-01", ttl: monthTTL},
		},
	}
}

// Add increments the bucket of period that contains at.
func (s *Store) Add(ctx context.Context, period string, at time.Time, tokens int64) error {
	key, b, err := s.bucket(period, at)
	if err != nil {
		return err
	}
	if _, err := s.kv.IncrWithTTL(ctx, key, tokens, b.ttl); err != nil {
		return fmt.Errorf("add %d tokens to %s: %w", tokens, key, err)
	}
	return nil
}

// Used reads the bucket of period that contains at. A bucket never written reads as 0.
func (s *Store) Used(ctx context.Context, period string, at time.Time) (int64, error) {
	key, _, err := s.bucket(period, at)
	if err != nil {
		return 0, err
	}
	raw, err := s.kv.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("counter %s is not an integer: %w", key, err)
	}
	return n, nil
}

func (s *Store) bucket(period string, at time.Time) (string, bucketing, error) {
	b, ok := s.periods[period]
	if !ok {
		return "", bucketing{}, fmt.Errorf("unknown budget period %q", period)
	}
	return s.ns + period + ":" + at.UTC().Format(b.layout), b, nil
}
