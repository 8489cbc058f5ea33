package enrichment

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/edurag/internal/domain"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func ref(title string) domain.ExternalReference {
	return domain.ExternalReference{Title: title, Extract: title + " extract", Source: "wikipedia"}
}

func TestMemoryCache_TTL(t *testing.T) {
	clock := newClock()
	c := NewMemoryCache(time.Hour, 10, clock.Now)
	ctx := context.Background()

	c.Set(ctx, "k", []domain.ExternalReference{ref("AVL tree")})
	if refs, ok := c.Get(ctx, "k"); !ok || len(refs) != 1 {
		t.Fatalf("expected live entry, got %v %v", refs, ok)
	}

	clock.Advance(59 * time.Minute)
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Error("entry expired early")
	}

	clock.Advance(time.Minute)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("entry must expire at the TTL boundary")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry must be removed on read, len=%d", c.Len())
	}
}

func TestMemoryCache_EmptyIsHit(t *testing.T) {
	c := NewMemoryCache(time.Hour, 10, newClock().Now)
	c.Set(context.Background(), "miss", nil)

	refs, ok := c.Get(context.Background(), "miss")
	if !ok {
		t.Fatal("a cached empty result must be a hit")
	}
	if len(refs) != 0 {
		t.Errorf("expected empty refs, got %v", refs)
	}
}

func TestMemoryCache_CapacityBound(t *testing.T) {
	c := NewMemoryCache(time.Hour, 3, newClock().Now)
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		c.Set(ctx, k, []domain.ExternalReference{ref(k)})
		if c.Len() > 3 {
			t.Fatalf("capacity exceeded after %s: %d", k, c.Len())
		}
	}
	if _, ok := c.Get(ctx, "e"); !ok {
		t.Error("latest entry must survive eviction")
	}

	c.Set(ctx, "e", []domain.ExternalReference{ref("e2")})
	if c.Len() != 3 {
		t.Errorf("overwriting a key must not evict, len=%d", c.Len())
	}
}

func TestMemoryCache_Evict(t *testing.T) {
	c := NewMemoryCache(time.Hour, 3, newClock().Now)
	ctx := context.Background()
	c.Set(ctx, "k", []domain.ExternalReference{ref("x")})
	c.Evict(ctx, "k")
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("evicted entry still present")
	}
}

func TestMemoryCache_ReturnsCopy(t *testing.T) {
	c := NewMemoryCache(time.Hour, 3, newClock().Now)
	ctx := context.Background()
	c.Set(ctx, "k", []domain.ExternalReference{ref("x")})

	refs, _ := c.Get(ctx, "k")
	refs[0].Title = "mutated"

	again, _ := c.Get(ctx, "k")
	if again[0].Title != "x" {
		t.Error("cache entry mutated through returned slice")
	}
}
