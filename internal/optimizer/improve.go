package optimizer

import "github.com/alejandrodnm/cardplanner/internal/domain"

type move struct {
	card    string
	from    string
	toOffer int
	saving  float64
}

// improve runs bounded first-improvement hill climbing: each pass applies
// the first single-unit move between sellers that lowers the overall total,
// then rescans from the top. It stops when a pass finds nothing or the pass
// limit is reached.
func (p *pipeline) improve(in *state) *state {
	s := in.clone()
	for pass := 0; pass < p.opts.MaxImprovementPasses; pass++ {
		m, ok := p.firstImprovement(s)
		if !ok {
			break
		}
		p.applyMove(s, m)
		s.moves++
	}
	s.dropEmpty()
	return s
}

// firstImprovement scans baskets and cards in sorted order for a move that
// saves more than improvementThreshold.
func (p *pipeline) firstImprovement(s *state) (move, bool) {
	for _, seller := range s.sellerIDs() {
		src := s.baskets[seller]
		for _, card := range src.CardIDs() {
			srcAfter := 0.0
			if src.Units() > 1 {
				srcAfter = src.TotalAfter(src.CardSubtotal - src.UnitPrice(card))
			}

			for _, i := range p.byCard[card] {
				o := s.offers[i]
				if o.SellerID == seller || !o.Available() || !p.priceAllowed(o.Price) {
					continue
				}
				if !p.underDemandCeiling(card, o.Price) {
					continue
				}
				dstTotal, dstDelta := s.sellerTotalAfter(o, o.Price)
				if !p.sellerCapAllows(dstTotal) {
					continue
				}
				delta := (srcAfter - src.TotalCost) + dstDelta
				if delta < -improvementThreshold {
					return move{card: card, from: seller, toOffer: i, saving: -delta}, true
				}
			}
		}
	}
	return move{}, false
}

// applyMove shifts one unit, restoring stock on the source seller's offer
// and consuming it on the destination's. The destination inherits the
// card's reasons and gains LOCAL_IMPROVEMENT.
func (p *pipeline) applyMove(s *state, m move) {
	src := s.baskets[m.from]
	reasons := append([]string(nil), src.Reasons[m.card]...)

	speculative := false
	if spec := s.specUnits[m.from][m.card]; spec > 0 && spec >= src.Items[m.card] {
		speculative = true
	}

	src.RemoveUnit(m.card)
	if idxs := p.bySellerCard[sellerCardKey(m.from, m.card)]; len(idxs) > 0 {
		s.offers[idxs[0]].QuantityAvailable++
	}
	if speculative {
		s.addSpec(m.from, m.card, -1)
	}
	if src.IsEmpty() {
		delete(s.baskets, m.from)
		delete(s.specUnits, m.from)
	}

	dst := s.offers[m.toOffer]
	s.allocate(m.toOffer, 1, speculative)
	b := s.baskets[dst.SellerID]
	if len(b.Reasons[m.card]) == 0 {
		for _, r := range reasons {
			b.AddReason(m.card, r)
		}
	}
	b.AddReason(m.card, domain.ReasonLocalImprovement)

	p.opts.Logger.Debug("optimizer: local improvement move",
		"card", m.card,
		"from", m.from,
		"to", dst.SellerID,
		"saving", m.saving,
	)
}
