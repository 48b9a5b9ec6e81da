// Package ips scores cards by inventory priority and builds the hot list of
// cards worth buying speculatively.
package ips

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/cardplanner/internal/domain"
)

// Config tunes scoring and tiering.
type Config struct {
	Weights         domain.DemandWeights `yaml:"weights"`
	TierAThreshold  float64              `yaml:"tier_a_threshold"`
	TierBThreshold  float64              `yaml:"tier_b_threshold"`
	MinMarginSafety float64              `yaml:"min_margin_safety"`
	MinLiquidity    float64              `yaml:"min_liquidity"`
	HorizonDays     int                  `yaml:"horizon_days"`
	Workers         int                  `yaml:"workers"` // 0 = NumCPU
}

// DefaultConfig returns the standard weights and thresholds.
func DefaultConfig() Config {
	return Config{
		Weights: domain.DemandWeights{
			DeckUsage:         0.35,
			QueuedUsage:       0.25,
			SalesVelocity:     0.25,
			LowInventoryAlert: 0.15,
		},
		TierAThreshold:  0.5,
		TierBThreshold:  0.1,
		MinMarginSafety: 0,
		MinLiquidity:    0.2,
		HorizonDays:     30,
	}
}

// GroupIndex resolves substitution groups and the stock of their members.
type GroupIndex struct {
	byID      map[string]domain.SubstitutionGroup
	byCard    map[string]domain.SubstitutionGroup
	inventory map[string]int
}

// NewGroupIndex indexes groups by id and by member card.
func NewGroupIndex(groups []domain.SubstitutionGroup, inventory map[string]int) *GroupIndex {
	idx := &GroupIndex{
		byID:      make(map[string]domain.SubstitutionGroup, len(groups)),
		byCard:    make(map[string]domain.SubstitutionGroup),
		inventory: inventory,
	}
	for _, g := range groups {
		idx.byID[g.GroupID] = g
		for _, c := range g.Cards {
			if _, taken := idx.byCard[c]; !taken {
				idx.byCard[c] = g
			}
		}
	}
	return idx
}

// GroupOf returns the group of a card, preferring the card's declared group id.
func (g *GroupIndex) GroupOf(card domain.CardMetrics) (domain.SubstitutionGroup, bool) {
	if g == nil {
		return domain.SubstitutionGroup{}, false
	}
	if card.SubstitutionGroupID != "" {
		if grp, ok := g.byID[card.SubstitutionGroupID]; ok {
			return grp, true
		}
	}
	grp, ok := g.byCard[card.CardID]
	return grp, ok
}

// members returns the group size counting the card, and the stock of every
// other member.
func (g *GroupIndex) members(grp domain.SubstitutionGroup, cardID string) (int, []int) {
	size := 1
	var others []int
	seen := map[string]bool{cardID: true}
	for _, c := range grp.Cards {
		if seen[c] {
			continue
		}
		seen[c] = true
		size++
		others = append(others, g.inventory[c])
	}
	return size, others
}

// InventoryFromMetrics overlays each card's CurrentInventory onto base.
func InventoryFromMetrics(cards []domain.CardMetrics, base map[string]int) map[string]int {
	inv := make(map[string]int, len(base)+len(cards))
	for k, v := range base {
		inv[k] = v
	}
	for _, c := range cards {
		if _, ok := inv[c.CardID]; !ok {
			inv[c.CardID] = c.CurrentInventory
		}
	}
	return inv
}

// CalculateCardIPS scores one card.
func CalculateCardIPS(card domain.CardMetrics, groups *GroupIndex, cfg Config, seasonalityFactor float64) domain.IPSResult {
	rate := domain.DemandRate(card, cfg.Weights)
	liquidity := domain.Liquidity(card)

	substitutability := 1.0
	if grp, ok := groups.GroupOf(card); ok {
		size, others := groups.members(grp, card.CardID)
		substitutability = domain.Substitutability(size, others)
	}

	margin := domain.MarginSafety(card.AnchorPrice, card.MarketMedianPrice)
	score := domain.IPSScore(rate, liquidity, substitutability, card.CurrentInventory, margin, seasonalityFactor)

	target := domain.TargetInventory(rate, cfg.HorizonDays)
	deficit := domain.Deficit(target, card.CurrentInventory)

	return domain.IPSResult{
		CardID:           card.CardID,
		Name:             card.Name,
		IPS:              score,
		Tier:             classify(score, liquidity, margin, cfg),
		CurrentInventory: card.CurrentInventory,
		TargetInventory:  target,
		Deficit:          deficit,
		Components: domain.IPSComponents{
			DemandRate:        rate,
			Liquidity:         liquidity,
			Substitutability:  substitutability,
			MarginSafety:      margin,
			SeasonalityFactor: seasonalityFactor,
		},
		Reasons: reasons(card, target, deficit, margin, seasonalityFactor),
	}
}

// classify assigns the tier. Thin margins or illiquid cards are always C.
func classify(score, liquidity, margin float64, cfg Config) domain.Tier {
	switch {
	case margin <= cfg.MinMarginSafety || liquidity < cfg.MinLiquidity:
		return domain.TierC
	case score >= cfg.TierAThreshold:
		return domain.TierA
	case score >= cfg.TierBThreshold:
		return domain.TierB
	default:
		return domain.TierC
	}
}

// reasons lists the signals behind a score in a fixed order: usage, sales
// velocity, alert, deficit, margin, then seasonality.
func reasons(card domain.CardMetrics, target, deficit int, margin, factor float64) []string {
	var out []string
	if card.DeckUsage > 0 {
		out = append(out, fmt.Sprintf("Used in %d deck(s)", card.DeckUsage))
	}
	if card.QueuedUsage > 0 {
		out = append(out, fmt.Sprintf("Queued in %d deck(s)", card.QueuedUsage))
	}
	if card.SalesVelocity > 0 {
		out = append(out, fmt.Sprintf("Sales velocity %.2f/day", card.SalesVelocity))
	}
	if card.LowInventoryAlert {
		out = append(out, "Low inventory alert")
	}
	if deficit > 0 {
		out = append(out, fmt.Sprintf("Deficit of %d (target %d, have %d)", deficit, target, card.CurrentInventory))
	}
	if margin > 0 {
		out = append(out, fmt.Sprintf("Margin safety %.0f%% below anchor", margin*100))
	} else {
		out = append(out, "No margin below anchor price")
	}
	if math.Abs(factor-1.0) > 1e-9 {
		out = append(out, fmt.Sprintf("Seasonality multiplier x%.2f", factor))
	}
	return out
}
