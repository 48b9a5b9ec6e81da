package optimizer

import (
	"sort"

	"github.com/alejandrodnm/cardplanner/internal/domain"
)

// preferDiscount scales the marginal cost of a PREFER seller.
const preferDiscount = 0.9

type greedyCandidate struct {
	idx      int
	seller   string
	market   string
	marginal float64
	ratio    float64
}

// greedyAllocate assigns demand one unit at a time to the offer with the
// lowest cost ratio. Whatever cannot be placed is recorded as unmet.
func (p *pipeline) greedyAllocate(in *state) *state {
	s := in.clone()

	remaining := make(map[string]int, len(p.demands))
	for _, d := range p.demands {
		remaining[d.CardID] = d.Quantity
	}

	for _, d := range p.demandOrder(s) {
		for u := 0; u < d.Quantity; u++ {
			idx, ok := p.pickOffer(s, d.CardID, remaining)
			if !ok {
				s.unmet[d.CardID] += d.Quantity - u
				break
			}
			s.allocate(idx, 1, false, domain.ReasonDeckDemand)
			remaining[d.CardID]--
		}
		remaining[d.CardID] = 0
	}
	return s
}

// demandOrder sorts demand by anchor price descending, then by the number of
// distinct sellers ascending, keeping input order on ties.
func (p *pipeline) demandOrder(s *state) []domain.Demand {
	sellers := make(map[string]int, len(p.demands))
	for _, d := range p.demands {
		seen := make(map[string]bool)
		for _, i := range p.byCard[d.CardID] {
			if s.offers[i].Available() {
				seen[s.offers[i].SellerID] = true
			}
		}
		sellers[d.CardID] = len(seen)
	}

	order := append([]domain.Demand(nil), p.demands...)
	sort.SliceStable(order, func(i, j int) bool {
		ai, aj := p.anchor(order[i].CardID), p.anchor(order[j].CardID)
		if ai != aj {
			return ai > aj
		}
		return sellers[order[i].CardID] < sellers[order[j].CardID]
	})
	return order
}

// pickOffer ranks the eligible offers for one unit of a card.
func (p *pipeline) pickOffer(s *state, card string, remaining map[string]int) (int, bool) {
	anchor := p.anchor(card)

	var cands []greedyCandidate
	for _, i := range p.byCard[card] {
		o := s.offers[i]
		if !o.Available() || !p.priceAllowed(o.Price) {
			continue
		}
		if !p.underDemandCeiling(card, o.Price) {
			continue
		}
		if !p.demandUnitAllowed(s, o) {
			continue
		}
		marginal := o.Price + p.shippingMarginal(s, o, remaining) +
			p.opts.RatingLambda*(1-o.Rating())*o.Price
		if p.prefer[card][o.SellerID] {
			marginal *= preferDiscount
		}
		cands = append(cands, greedyCandidate{
			idx:      i,
			seller:   o.SellerID,
			market:   o.Marketplace,
			marginal: marginal,
			ratio:    domain.CostRatio(marginal, anchor),
		})
	}
	if len(cands) == 0 {
		return 0, false
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.ratio != b.ratio {
			return a.ratio < b.ratio
		}
		if a.marginal != b.marginal {
			return a.marginal < b.marginal
		}
		if a.seller != b.seller {
			return a.seller < b.seller
		}
		return a.market < b.market
	})
	return cands[0].idx, true
}

// shippingMarginal is the shipping a unit would add. It is zero when the
// seller is already in the plan, or when everything still needed that the
// seller could supply would reach its free-shipping threshold. Later phases
// may buy less from the seller than this estimate assumes.
func (p *pipeline) shippingMarginal(s *state, o domain.Offer, remaining map[string]int) float64 {
	if _, ok := s.baskets[o.SellerID]; ok {
		return 0
	}
	if o.Shipping.Base <= 0 {
		return 0
	}
	if o.Shipping.FreeAt != nil && p.potentialRevenue(s, o.SellerID, remaining) >= *o.Shipping.FreeAt-epsilon {
		return 0
	}
	return o.Shipping.Base
}

// potentialRevenue sums what a seller could sell against outstanding demand.
func (p *pipeline) potentialRevenue(s *state, seller string, remaining map[string]int) float64 {
	total := 0.0
	for _, i := range p.bySeller[seller] {
		o := s.offers[i]
		need := remaining[o.CardID]
		if need <= 0 || !o.Available() {
			continue
		}
		total += float64(min(need, o.QuantityAvailable)) * o.Price
	}
	return total
}
