package domain

import "math"

// Signal ceilings applied before weighting.
const (
	usageCeiling    = 10.0
	velocityScale   = 10.0
	alertSignal     = 10.0
	targetBufferPct = 1.2
	unknownBlend    = 0.5
)

// DemandWeights weight the four demand signals. They sum to 1.0 by convention.
type DemandWeights struct {
	DeckUsage         float64 `yaml:"deck_usage" json:"deck_usage"`
	QueuedUsage       float64 `yaml:"queued_usage" json:"queued_usage"`
	SalesVelocity     float64 `yaml:"sales_velocity" json:"sales_velocity"`
	LowInventoryAlert float64 `yaml:"low_inventory_alert" json:"low_inventory_alert"`
}

// DemandRate combines usage, velocity and alert signals.
//
// Formula:
//
//	rate = wD×min(deck,10) + wQ×min(queued,10) + wS×min(velocity×10,10) + wA×(alert ? 10 : 0)
func DemandRate(m CardMetrics, w DemandWeights) float64 {
	alert := 0.0
	if m.LowInventoryAlert {
		alert = alertSignal
	}
	return w.DeckUsage*math.Min(float64(m.DeckUsage), usageCeiling) +
		w.QueuedUsage*math.Min(float64(m.QueuedUsage), usageCeiling) +
		w.SalesVelocity*math.Min(m.SalesVelocity*velocityScale, usageCeiling) +
		w.LowInventoryAlert*alert
}

// Liquidity blends normalized sales velocity (50%), format breadth (30%) and
// price stability (20%, as 1 - stability). Unknown inputs count as 0.5.
// Result in [0, 1].
func Liquidity(m CardMetrics) float64 {
	velocity := math.Min(m.SalesVelocity*velocityScale, usageCeiling) / usageCeiling
	if velocity < 0 {
		velocity = 0
	}
	breadth := unknownBlend
	if m.FormatBreadth != nil {
		breadth = *m.FormatBreadth
	}
	stability := unknownBlend
	if m.PriceStability != nil {
		stability = 1 - *m.PriceStability
	}
	return clamp01(0.5*velocity + 0.3*breadth + 0.2*stability)
}

// Substitutability measures how much other members of a card's group absorb
// its demand. groupSize counts the card itself; otherInventory holds the
// stock of every other member. Singletons and ungrouped cards return 1.0.
//
// Formula:
//
//	base  = max(0.3, 1 - 0.2×(n-1))
//	bonus = min(0.4, Σ min(4, inv_other) × 0.05)
func Substitutability(groupSize int, otherInventory []int) float64 {
	if groupSize <= 1 {
		return 1.0
	}
	base := math.Max(0.3, 1-0.2*float64(groupSize-1))
	capacity := 0
	for _, inv := range otherInventory {
		if inv > 0 {
			capacity += min(4, inv)
		}
	}
	bonus := math.Min(0.4, float64(capacity)*0.05)
	return clamp01(base + bonus)
}

// MarginSafety is the discount of the market median under the anchor price,
// clamped to [0, 1]. Zero when the anchor price is not positive.
func MarginSafety(anchorPrice, marketMedian float64) float64 {
	if anchorPrice <= 0 {
		return 0
	}
	return clamp01((anchorPrice - marketMedian) / anchorPrice)
}

// IPSScore is the inventory priority score.
//
// Formula:
//
//	IPS = rate × liquidity × substitutability / (inventory+1) × margin × seasonality
func IPSScore(rate, liquidity, substitutability float64, inventory int, margin, seasonality float64) float64 {
	if inventory < 0 {
		inventory = 0
	}
	return rate * liquidity * substitutability / float64(inventory+1) * margin * seasonality
}

// TargetInventory is the stock needed to cover horizonDays of demand with a
// 20% buffer, never less than one.
func TargetInventory(rate float64, horizonDays int) int {
	t := int(math.Ceil(rate * (float64(horizonDays) / 30) * targetBufferPct))
	if t < 1 {
		return 1
	}
	return t
}

// Deficit is how many units are missing to reach the target.
func Deficit(target, inventory int) int {
	if d := target - inventory; d > 0 {
		return d
	}
	return 0
}

// CostRatio is marginal cost over anchor price. With no usable anchor the
// marginal cost itself is the ratio, so the cheapest absolute offer wins.
func CostRatio(marginal, anchorPrice float64) float64 {
	if anchorPrice <= 0 {
		return marginal
	}
	return marginal / anchorPrice
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
