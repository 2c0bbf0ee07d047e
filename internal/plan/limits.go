// Package plan defines subscription-plan quality ceilings and quotas, and the
// gate that enforces clip quotas before a job is accepted.
package plan

import (
	"fmt"
	"strings"
)

// Unlimited disables a clip quota when used as a limit value.
const Unlimited = -1

// Limits captures the quota and quality ceilings tied to a subscription tier.
type Limits struct {
	Code             string
	MaxResolution    Resolution
	WatermarkForced  bool
	DailyClipLimit   int
	MonthlyClipLimit int
	Priority         int
}

// Catalog resolves plan codes to their limits.
type Catalog struct {
	plans map[string]Limits
}

// DefaultCatalog returns the built-in free/pro/studio tiers.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Limits{
		{Code: "free", MaxResolution: Res720p, WatermarkForced: true, DailyClipLimit: 5, MonthlyClipLimit: 30, Priority: 0},
		{Code: "pro", MaxResolution: Res1080p, WatermarkForced: false, DailyClipLimit: 50, MonthlyClipLimit: 500, Priority: 1},
		{Code: "studio", MaxResolution: Res4K, WatermarkForced: false, DailyClipLimit: Unlimited, MonthlyClipLimit: Unlimited, Priority: 2},
	})
}

// NewCatalog builds a catalog from explicit plan definitions.
func NewCatalog(plans []Limits) *Catalog {
	catalog := &Catalog{plans: make(map[string]Limits, len(plans))}
	for _, p := range plans {
		code := strings.ToLower(strings.TrimSpace(p.Code))
		if code == "" {
			continue
		}
		p.Code = code
		catalog.plans[code] = p
	}
	return catalog
}

// Lookup resolves a plan code to its limits.
func (c *Catalog) Lookup(code string) (Limits, error) {
	normalized := strings.ToLower(strings.TrimSpace(code))
	limits, ok := c.plans[normalized]
	if !ok {
		return Limits{}, fmt.Errorf("unknown plan %q", code)
	}
	return limits, nil
}

// Codes returns the known plan codes.
func (c *Catalog) Codes() []string {
	codes := make([]string, 0, len(c.plans))
	for code := range c.plans {
		codes = append(codes, code)
	}
	return codes
}
