// Package money holds the monetary helpers shared by the settlement and
// claim engines. Every monetary value is rounded to 2 decimals the moment
// it enters the system, never only at output, so repeated recomputation
// cannot drift.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round2 rounds a monetary amount to 2 decimal places (half away from zero).
// NaN and infinities pass through unchanged so malformed batch-row input can
// be detected by the caller instead of panicking inside decimal.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Ratio divides numerator by denominator, returning 0 when the denominator
// is 0 so profit-rate computation never faults on zero revenue.
func Ratio(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// Sum2 adds amounts and rounds the result to 2 decimals.
func Sum2(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	f, _ := total.Round(2).Float64()
	return f
}
