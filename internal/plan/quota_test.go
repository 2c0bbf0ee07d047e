package plan

import (
	"context"
	"errors"
	"testing"
	"time"

	"clipper/internal/services"
)

type stubUsage struct {
	counts map[time.Time]int
	flat   int
}

func (s *stubUsage) CountClipsCreatedSince(_ context.Context, _ string, since time.Time) (int, error) {
	if s.counts != nil {
		if count, ok := s.counts[since]; ok {
			return count, nil
		}
	}
	return s.flat, nil
}

func newTestGate(plans []Limits, usage UsageCounter) *Gate {
	gate := NewGate(NewCatalog(plans), usage)
	gate.now = func() time.Time {
		return time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	}
	return gate
}

func TestGateRejectsWhenDailyLimitReached(t *testing.T) {
	gate := newTestGate([]Limits{
		{Code: "free", MaxResolution: Res720p, DailyClipLimit: 3, MonthlyClipLimit: 30},
	}, &stubUsage{flat: 3})

	err := gate.CheckAndReserve(context.Background(), "owner-1", "free", 1)
	var quotaErr *QuotaError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("expected QuotaError, got %v", err)
	}
	if quotaErr.Scope != ScopeDaily {
		t.Fatalf("expected daily scope, got %s", quotaErr.Scope)
	}
	if quotaErr.Code() != "DAILY_LIMIT_EXCEEDED" {
		t.Fatalf("unexpected code %s", quotaErr.Code())
	}
	if !errors.Is(err, services.ErrQuota) {
		t.Fatal("quota error should match services.ErrQuota")
	}
}

func TestGateRejectsWhenMonthlyLimitReached(t *testing.T) {
	dayStart := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	gate := newTestGate([]Limits{
		{Code: "pro", MaxResolution: Res1080p, DailyClipLimit: 50, MonthlyClipLimit: 10},
	}, &stubUsage{counts: map[time.Time]int{dayStart: 0, monthStart: 10}})

	err := gate.CheckAndReserve(context.Background(), "owner-1", "pro", 1)
	var quotaErr *QuotaError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("expected QuotaError, got %v", err)
	}
	if quotaErr.Scope != ScopeMonthly {
		t.Fatalf("expected monthly scope, got %s", quotaErr.Scope)
	}
}

func TestGateUnlimitedPlanNeverRejected(t *testing.T) {
	gate := newTestGate([]Limits{
		{Code: "studio", MaxResolution: Res4K, DailyClipLimit: Unlimited, MonthlyClipLimit: Unlimited},
	}, &stubUsage{flat: 1_000_000})

	if err := gate.CheckAndReserve(context.Background(), "owner-1", "studio", 500); err != nil {
		t.Fatalf("unlimited plan should pass: %v", err)
	}
}

func TestGateAllowsUpToLimit(t *testing.T) {
	gate := newTestGate([]Limits{
		{Code: "free", MaxResolution: Res720p, DailyClipLimit: 5, MonthlyClipLimit: Unlimited},
	}, &stubUsage{flat: 2})

	if err := gate.CheckAndReserve(context.Background(), "owner-1", "free", 3); err != nil {
		t.Fatalf("request exactly at limit should pass: %v", err)
	}
	if err := gate.CheckAndReserve(context.Background(), "owner-1", "free", 4); err == nil {
		t.Fatal("request over limit should fail")
	}
}

func TestGateRejectsUnknownPlan(t *testing.T) {
	gate := newTestGate(nil, &stubUsage{})
	err := gate.CheckAndReserve(context.Background(), "owner-1", "platinum", 1)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestGateRejectsEmptyRequest(t *testing.T) {
	gate := newTestGate([]Limits{{Code: "free", DailyClipLimit: 5, MonthlyClipLimit: 5}}, &stubUsage{})
	if err := gate.CheckAndReserve(context.Background(), "owner-1", "free", 0); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
