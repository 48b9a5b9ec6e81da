package optimizer

import (
	"math"

	"github.com/alejandrodnm/cardplanner/internal/domain"
)

// sellerTotalAfter returns what a seller's basket would cost after adding
// amount of cards, and the change in overall spend.
func (s *state) sellerTotalAfter(o domain.Offer, amount float64) (total, delta float64) {
	if b, ok := s.baskets[o.SellerID]; ok {
		total = b.TotalAfter(b.CardSubtotal + amount)
		return total, total - b.TotalCost
	}
	total = amount + o.Shipping.CostFor(amount)
	return total, total
}

// sellerCapAllows checks the per-seller cap against a prospective basket total.
func (p *pipeline) sellerCapAllows(sellerTotal float64) bool {
	if p.budget == nil || p.budget.MaxPerSeller <= 0 {
		return true
	}
	return sellerTotal <= p.budget.MaxPerSeller+epsilon
}

// demandUnitAllowed gates one demand unit before selection. STRICT blocks
// anything that would push overall spend past the effective budget; both
// modes honour the per-seller cap.
func (p *pipeline) demandUnitAllowed(s *state, o domain.Offer) bool {
	if p.budget == nil {
		return true
	}
	sellerTotal, delta := s.sellerTotalAfter(o, o.Price)
	if !p.sellerCapAllows(sellerTotal) {
		return false
	}
	if p.budget.IsStrict() && s.totalSpend()+delta > p.budget.EffectiveBudget()+epsilon {
		return false
	}
	return true
}

// affordableUnits returns how many units at price fit under limit given
// what is already committed.
func affordableUnits(limit, committed, price float64) int {
	if price <= 0 {
		return math.MaxInt32
	}
	room := limit - committed
	if room < -epsilon {
		return 0
	}
	return int(math.Floor(room/price + epsilon))
}
