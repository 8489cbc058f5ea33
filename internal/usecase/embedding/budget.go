package embedding

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/edurag/internal/domain"
)

// BudgetAction is what happens to a request once a token window is spent.
type BudgetAction string

const (
	// BudgetActionWarn logs and lets the request through.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject fails the request with domain.ErrEmbeddingQuotaExceeded.
	BudgetActionReject BudgetAction = "reject"
)

// Period names double as redis bucket prefixes.
const (
	periodDaily   = "daily"
	periodMonthly = "monthly"
)

// BudgetStore persists token counters per period bucket. Add is additive.
type BudgetStore interface {
	Add(ctx context.Context, period string, at time.Time, tokens int64) error
	Used(ctx context.Context, period string, at time.Time) (int64, error)
}

const persistTimeout = 2 * time.Second

// window is one rolling token allowance (a UTC day or a UTC month).
type window struct {
	period string
	limit  int64
	used   int64
	start  time.Time
	floor  func(time.Time) time.Time
}

func (w *window) roll(now time.Time) {
	if s := w.floor(now); s.After(w.start) {
		w.start = s
		w.used = 0
	}
}

func (w *window) spent() bool { return w.limit > 0 && w.used >= w.limit }

func (w *window) left() int64 {
	if w.limit == 0 {
		return -1
	}
	return max(w.limit-w.used, 0)
}

// BudgetTracker enforces daily and monthly token ceilings for one provider.
// Check never leaves the process; Record updates memory and then writes behind to the store.
type BudgetTracker struct {
	provider string
	action   BudgetAction
	logger   *zap.Logger

	mu    sync.Mutex
	day   window
	month window
	now   func() time.Time
	store BudgetStore
}

// NewBudgetTracker creates a tracker. A zero limit disables that window.
func NewBudgetTracker(
	provider string, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger,
) *BudgetTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &BudgetTracker{
		provider: provider,
		action:   action,
		logger:   logger,
		day:      window{period: periodDaily, limit: dailyLimit, floor: startOfDay},
		month:    window{period: periodMonthly, limit: monthlyLimit, floor: startOfMonth},
		now:      time.Now,
	}
	b.anchor()
	return b
}

// WithClock swaps the time source.
func (b *BudgetTracker) WithClock(now func() time.Time) *BudgetTracker {
	b.mu.Lock()
	b.now = now
	b.anchor()
	b.mu.Unlock()
	return b
}

func (b *BudgetTracker) anchor() {
	now := b.now().UTC()
	b.day.start = b.day.floor(now)
	b.month.start = b.month.floor(now)
}

// WithStore attaches persistence and seeds the counters from the current buckets.
// Read failures leave the counters at zero.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	now := b.now().UTC()
	for _, w := range []*window{&b.day, &b.month} {
		used, err := store.Used(ctx, w.period, now)
		if err != nil {
			b.logger.Warn("Budget counter unavailable, starting from zero",
				zap.String("provider", b.provider), zap.String("period", w.period), zap.Error(err))
			continue
		}
		w.used = used
	}
	b.logger.Info("Embedding budget restored",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.day.used),
		zap.Int64("monthly_used", b.month.used),
	)
	return b
}

// Check reports whether another provider call is allowed.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()

	if !b.day.spent() && !b.month.spent() {
		return nil
	}
	if b.action == BudgetActionReject {
		return domain.ErrEmbeddingQuotaExceeded
	}
	b.logger.Warn("Embedding budget exhausted, continuing in warn mode",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.day.used),
		zap.Int64("daily_limit", b.day.limit),
		zap.Int64("monthly_used", b.month.used),
		zap.Int64("monthly_limit", b.month.limit),
	)
	return nil
}

// Record adds consumed tokens to both windows.
func (b *BudgetTracker) Record(tokens int64) {
	b.mu.Lock()
	b.rollLocked()
	b.day.used += tokens
	b.month.used += tokens
	store, at := b.store, b.now().UTC()
	b.mu.Unlock()

	if store == nil {
		return
	}
	// detached from the request: the tokens are already spent
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	for _, period := range []string{periodDaily, periodMonthly} {
		if err := store.Add(ctx, period, at, tokens); err != nil {
			b.logger.Warn("Budget write-behind failed", zap.String("period", period), zap.Error(err))
		}
	}
}

// RemainingDaily returns tokens left today, or -1 without a daily limit.
func (b *BudgetTracker) RemainingDaily() int64 { return b.read(func() int64 { return b.day.left() }) }

// RemainingMonthly returns tokens left this month, or -1 without a monthly limit.
func (b *BudgetTracker) RemainingMonthly() int64 {
	return b.read(func() int64 { return b.month.left() })
}

// DailyUsed returns tokens consumed in the current UTC day.
func (b *BudgetTracker) DailyUsed() int64 { return b.read(func() int64 { return b.day.used }) }

// MonthlyUsed returns tokens consumed in the current UTC month.
func (b *BudgetTracker) MonthlyUsed() int64 { return b.read(func() int64 { return b.month.used }) }

// DailyLimit is 0 when unlimited.
func (b *BudgetTracker) DailyLimit() int64 { return b.day.limit }

// MonthlyLimit is 0 when unlimited.
func (b *BudgetTracker) MonthlyLimit() int64 { return b.month.limit }

func (b *BudgetTracker) read(f func() int64) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()
	return f()
}

func (b *BudgetTracker) rollLocked() {
	now := b.now().UTC()
	b.day.roll(now)
	b.month.roll(now)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
