// Package usage reports embedding token consumption against the configured budget.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/edurag/internal/domain"
)

// Period is the aggregation granularity.
type Period string

// Aggregation periods.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod validates a requested period. Empty defaults to day.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "":
		return PeriodDay, nil
	case PeriodDay, PeriodMonth:
		return Period(s), nil
	default:
		return "", fmt.Errorf("%w: period must be day or month, got %q", domain.ErrInvalidInput, s)
	}
}

// Report is embedding token usage for one budget period. Limit 0 means unlimited.
type Report struct {
	Period      Period    `json:"period"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	TokensUsed  int64     `json:"tokens_used"`
	TokensLimit int64     `json:"tokens_limit"`
	Remaining   int64     `json:"tokens_remaining"`
	Exhausted   bool      `json:"exhausted"`
}

// Service handles usage reporting.
type Service struct {
	br  BudgetReader
	now func() time.Time
}

// New creates a Service. br can be nil (unlimited mode).
func New(br BudgetReader) *Service {
	return &Service{br: br, now: time.Now}
}

// Report builds the usage report for period.
func (s *Service) Report(_ context.Context, period Period) (Report, error) {
	now := s.now().UTC()
	r := Report{Period: period}

	switch period {
	case PeriodDay:
		r.PeriodStart = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		r.PeriodEnd = r.PeriodStart.Add(24 * time.Hour)
		if s.br != nil {
			r.TokensLimit, r.TokensUsed, r.Remaining = s.br.DailyLimit(), s.br.DailyUsed(), s.br.RemainingDaily()
		}
	case PeriodMonth:
		r.PeriodStart = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		r.PeriodEnd = r.PeriodStart.AddDate(0, 1, 0)
		if s.br != nil {
			r.TokensLimit, r.TokensUsed, r.Remaining = s.br.MonthlyLimit(), s.br.MonthlyUsed(), s.br.RemainingMonthly()
		}
	default:
		return Report{}, fmt.Errorf("%w: unknown period %q", domain.ErrInvalidInput, period)
	}

	r.Exhausted = r.TokensLimit > 0 && r.Remaining <= 0
	return r, nil
}
