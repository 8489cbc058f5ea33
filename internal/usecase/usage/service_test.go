package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/edurag/internal/domain"
)

// --- Mock ---

type mockBudgetReader struct {
	dailyLimit       int64
	monthlyLimit     int64
	dailyUsed        int64
	monthlyUsed      int64
	remainingDaily   int64
	remainingMonthly int64
}

func (m *mockBudgetReader) DailyLimit() int64       { return m.dailyLimit }
func (m *mockBudgetReader) MonthlyLimit() int64     { return m.monthlyLimit }
func (m *mockBudgetReader) DailyUsed() int64        { return m.dailyUsed }
func (m *mockBudgetReader) MonthlyUsed() int64      { return m.monthlyUsed }
func (m *mockBudgetReader) RemainingDaily() int64   { return m.remainingDaily }
func (m *mockBudgetReader) RemainingMonthly() int64 { return m.remainingMonthly }

func fixedClock(svc *Service) *Service {
	svc.now = func() time.Time { return time.Date(2026, 3, 15, 13, 45, 0, 0, time.UTC) }
	return svc
}

// --- Tests ---

func TestReport_Day(t *testing.T) {
	br := &mockBudgetReader{dailyLimit: 10000, dailyUsed: 3000, remainingDaily: 7000, monthlyLimit: 100000}
	r, err := fixedClock(New(br)).Report(context.Background(), PeriodDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !r.PeriodStart.Equal(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("period start = %v", r.PeriodStart)
	}
	if !r.PeriodEnd.Equal(time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("period end = %v", r.PeriodEnd)
	}
	if r.TokensLimit != 10000 || r.TokensUsed != 3000 || r.Remaining != 7000 {
		t.Errorf("unexpected counters: %+v", r)
	}
	if r.Exhausted {
		t.Error("expected not exhausted")
	}
}

func TestReport_MonthExhausted(t *testing.T) {
	br := &mockBudgetReader{monthlyLimit: 5000, monthlyUsed: 5200, remainingMonthly: 0}
	r, err := fixedClock(New(br)).Report(context.Background(), PeriodMonth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !r.PeriodStart.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("period start = %v", r.PeriodStart)
	}
	if !r.PeriodEnd.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("period end = %v", r.PeriodEnd)
	}
	if !r.Exhausted {
		t.Error("expected exhausted")
	}
}

func TestReport_Unlimited(t *testing.T) {
	r, err := fixedClock(New(nil)).Report(context.Background(), PeriodDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.TokensLimit != 0 || r.Exhausted {
		t.Errorf("expected unlimited report, got %+v", r)
	}
}

func TestReport_UnknownPeriod(t *testing.T) {
	_, err := New(nil).Report(context.Background(), Period("year"))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    Period
		wantErr bool
	}{
		{"", PeriodDay, false},
		{"day", PeriodDay, false},
		{"month", PeriodMonth, false},
		{"total", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePeriod(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePeriod(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParsePeriod(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
