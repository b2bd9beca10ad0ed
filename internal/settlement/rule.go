// Package settlement computes per-project, per-period profit and tiered
// commission, and resolves which commission schedule applies to a period.
package settlement

import (
	"fmt"
	"sort"

	"github.com/lijunhao/projfin/internal/models"
)

// DefaultRuleVersion identifies the built-in fallback schedule.
const DefaultRuleVersion = "default-v1"

func ptr(v float64) *float64 { return &v }

// DefaultRanges is the built-in commission schedule used when no stored
// rule qualifies: (-inf,10%)→0%, [10%,20%)→5%, [20%,30%)→8%, [30%,inf)→12%.
func DefaultRanges() []models.CommissionRange {
	return []models.CommissionRange{
		{Min: nil, Max: ptr(0.10), Rate: 0},
		{Min: ptr(0.10), Max: ptr(0.20), Rate: 0.05},
		{Min: ptr(0.20), Max: ptr(0.30), Rate: 0.08},
		{Min: ptr(0.30), Max: nil, Rate: 0.12},
	}
}

func defaultRule() models.CommissionRule {
	return models.CommissionRule{
		Version:       DefaultRuleVersion,
		EffectiveFrom: "1970-01",
		Ranges:        DefaultRanges(),
	}
}

// ResolveRule picks the active commission schedule for a period: disabled
// rules and rules effective after the period are excluded (a rule without
// effectiveFrom is always eligible); among survivors the greatest
// effectiveFrom wins. ISO YYYY-MM strings order correctly lexicographically.
func ResolveRule(rules []models.CommissionRule, period string) models.CommissionRule {
	candidates := []models.CommissionRule{}
	for _, rule := range rules {
		if rule.Status == "disabled" {
			continue
		}
		if rule.EffectiveFrom != "" && rule.EffectiveFrom > period {
			continue
		}
		candidates = append(candidates, rule)
	}
	if len(candidates) == 0 {
		return defaultRule()
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].EffectiveFrom > candidates[j].EffectiveFrom
	})
	return candidates[0]
}

// RateFor looks up the commission rate for a profit rate. Ranges are
// half-open [min, max) and scanned in authored order, first match wins.
// The resolver does not validate coverage or overlap: misauthored range
// lists resolve to whatever matches first, and a rate of 0 when nothing
// matches.
func RateFor(ranges []models.CommissionRange, profitRate float64) float64 {
	for _, r := range ranges {
		aboveMin := r.Min == nil || profitRate >= *r.Min
		belowMax := r.Max == nil || profitRate < *r.Max
		if aboveMin && belowMax {
			return r.Rate
		}
	}
	return 0
}

// ValidateRanges checks that a schedule's ranges ascend contiguously and
// tile the profit-rate axis. Rule-authoring callers may use it at save
// time; resolution never does.
func ValidateRanges(ranges []models.CommissionRange) error {
	if len(ranges) == 0 {
		return fmt.Errorf("ranges must not be empty")
	}
	if ranges[0].Min != nil {
		return fmt.Errorf("first range must be unbounded below")
	}
	if ranges[len(ranges)-1].Max != nil {
		return fmt.Errorf("last range must be unbounded above")
	}
	for i := 0; i < len(ranges)-1; i++ {
		if ranges[i].Max == nil || ranges[i+1].Min == nil {
			return fmt.Errorf("interior range %d must be bounded", i+1)
		}
		if *ranges[i].Max != *ranges[i+1].Min {
			return fmt.Errorf("range %d max %.4f does not meet range %d min %.4f",
				i+1, *ranges[i].Max, i+2, *ranges[i+1].Min)
		}
	}
	for i, r := range ranges {
		if r.Rate < 0 {
			return fmt.Errorf("range %d rate must not be negative", i+1)
		}
	}
	return nil
}
