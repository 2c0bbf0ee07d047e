package plan

import (
	"context"
	"fmt"
	"time"

	"clipper/internal/services"
)

// QuotaScope identifies which quota window was exhausted.
type QuotaScope string

const (
	ScopeDaily   QuotaScope = "daily"
	ScopeMonthly QuotaScope = "monthly"
)

// QuotaError is the user-visible rejection produced when a submission would
// exceed a plan's clip quota. It is never retried automatically.
type QuotaError struct {
	Scope     QuotaScope
	PlanCode  string
	Limit     int
	Used      int
	Requested int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s clip limit reached for plan %s (%d used of %d, %d requested); upgrade to continue",
		e.Scope, e.PlanCode, e.Used, e.Limit, e.Requested)
}

func (e *QuotaError) Unwrap() error { return services.ErrQuota }

// Code returns the wire error code for the exhausted scope.
func (e *QuotaError) Code() string {
	if e.Scope == ScopeMonthly {
		return "MONTHLY_LIMIT_EXCEEDED"
	}
	return "DAILY_LIMIT_EXCEEDED"
}

// UsageCounter reports how many clips an owner has created since a cutoff.
// The queue store implements this over the clips table.
type UsageCounter interface {
	CountClipsCreatedSince(ctx context.Context, ownerID string, since time.Time) (int, error)
}

// Gate checks plan clip quotas before a job is accepted.
//
// The check is read-only; the matching counter write is the job row inserted
// at submission time. There is no transactional lock between the two, so
// concurrent submissions can race past the limit by a small margin. That
// best-effort window is a known property of the design, not a bug to paper
// over here.
type Gate struct {
	catalog *Catalog
	usage   UsageCounter
	now     func() time.Time
}

// NewGate constructs a quota gate over the given catalog and usage counter.
func NewGate(catalog *Catalog, usage UsageCounter) *Gate {
	return &Gate{catalog: catalog, usage: usage, now: time.Now}
}

// CheckAndReserve verifies that accepting requestedClips more clips keeps the
// owner within the plan's daily and monthly quotas. A nil return means the
// submission may proceed.
func (g *Gate) CheckAndReserve(ctx context.Context, ownerID, planCode string, requestedClips int) error {
	limits, err := g.catalog.Lookup(planCode)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "quota", "lookup plan", "", err)
	}
	if requestedClips <= 0 {
		return services.Wrap(services.ErrValidation, "quota", "check request", "at least one clip segment is required", nil)
	}

	now := g.now().UTC()

	if limits.DailyClipLimit != Unlimited {
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		used, err := g.usage.CountClipsCreatedSince(ctx, ownerID, dayStart)
		if err != nil {
			return fmt.Errorf("count daily clips: %w", err)
		}
		if used+requestedClips > limits.DailyClipLimit {
			return &QuotaError{Scope: ScopeDaily, PlanCode: limits.Code, Limit: limits.DailyClipLimit, Used: used, Requested: requestedClips}
		}
	}

	if limits.MonthlyClipLimit != Unlimited {
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		used, err := g.usage.CountClipsCreatedSince(ctx, ownerID, monthStart)
		if err != nil {
			return fmt.Errorf("count monthly clips: %w", err)
		}
		if used+requestedClips > limits.MonthlyClipLimit {
			return &QuotaError{Scope: ScopeMonthly, PlanCode: limits.Code, Limit: limits.MonthlyClipLimit, Used: used, Requested: requestedClips}
		}
	}

	return nil
}

// Limits exposes the catalog lookup for callers that already passed the gate.
func (g *Gate) Limits(planCode string) (Limits, error) {
	return g.catalog.Lookup(planCode)
}
