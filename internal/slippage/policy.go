// Package slippage maps a trade's price impact to a recommended slippage
// tolerance. All values are basis points.
package slippage

import (
	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

// MaxBps caps every recommendation.
const MaxBps = models.MaxToleranceBps

// bucket applies when impact is strictly above `above`. The result is
// max(floor, ceil(impact * mult)); a zero mult means floor only.
type bucket struct {
	above decimal.Decimal
	floor uint32
	mult  decimal.Decimal
}

func (b bucket) apply(impact decimal.Decimal) uint32 {
	v := b.floor
	if !b.mult.IsZero() {
		if scaled := ceilBps(impact.Mul(b.mult)); scaled > v {
			v = scaled
		}
	}
	return v
}

var standard = []bucket{
	{above: decimal.NewFromInt(1000), floor: 1500, mult: decimal.RequireFromString("1.5")},
	{above: decimal.NewFromInt(500), floor: 1000, mult: decimal.RequireFromString("1.3")},
	{above: decimal.NewFromInt(200), floor: 500, mult: decimal.RequireFromString("1.2")},
	{above: decimal.NewFromInt(100), floor: 300},
	{above: decimal.NewFromInt(50), floor: 100},
}

const standardMinimum uint32 = 50

var aggressive = []bucket{
	{above: decimal.NewFromInt(1000), floor: 2000, mult: decimal.NewFromInt(2)},
	{above: decimal.NewFromInt(500), floor: 1500, mult: decimal.RequireFromString("1.8")},
	{above: decimal.NewFromInt(200), floor: 1000, mult: decimal.RequireFromString("1.5")},
}

var aggressiveGrowth = decimal.RequireFromString("2.5")

// Recommend returns the tolerance suggested for a trade with the given
// impact. Bucket boundaries are upper-inclusive: an impact of exactly 100
// lands in the (50, 100] bucket.
func Recommend(impactBps decimal.Decimal) uint32 {
	for _, b := range standard {
		if impactBps.GreaterThan(b.above) {
			return clamp(b.apply(impactBps))
		}
	}
	return standardMinimum
}

// IsAdequate reports whether current covers the recommendation.
func IsAdequate(currentBps uint32, impactBps decimal.Decimal) bool {
	return currentBps >= Recommend(impactBps)
}

// RecommendAggressive is used after a slippage failure. It never returns
// less than current.
func RecommendAggressive(currentBps uint32, impactBps decimal.Decimal) uint32 {
	v := uint32(0)
	matched := false
	for _, b := range aggressive {
		if impactBps.GreaterThan(b.above) {
			v = b.apply(impactBps)
			matched = true
			break
		}
	}
	if !matched {
		v = ceilBps(decimal.NewFromInt(int64(currentBps)).Mul(aggressiveGrowth))
	}
	v = clamp(v)
	if v < currentBps {
		v = currentBps
	}
	return v
}

// Advice bundles the policy outputs for display.
type Advice struct {
	CurrentBps     uint32          `json:"current_bps"`
	RecommendedBps uint32          `json:"recommended_bps"`
	ImpactBps      decimal.Decimal `json:"impact_bps"`
	Adequate       bool            `json:"adequate"`
}

func Assess(currentBps uint32, impactBps decimal.Decimal) Advice {
	rec := Recommend(impactBps)
	return Advice{
		CurrentBps:     currentBps,
		RecommendedBps: rec,
		ImpactBps:      impactBps,
		Adequate:       currentBps >= rec,
	}
}

func ceilBps(d decimal.Decimal) uint32 {
	c := d.Ceil()
	if c.IsNegative() {
		return 0
	}
	if c.GreaterThan(decimal.NewFromInt(int64(MaxBps))) {
		return MaxBps
	}
	return uint32(c.IntPart())
}

func clamp(v uint32) uint32 {
	if v > MaxBps {
		return MaxBps
	}
	return v
}
