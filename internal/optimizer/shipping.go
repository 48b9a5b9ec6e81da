package optimizer

import (
	"math"
	"sort"

	"github.com/alejandrodnm/cardplanner/internal/domain"
)

// Filler priorities, lower is better.
const (
	priorityUnmet       = 1.0
	prioritySubstitute  = 1.5
	prioritySmartFiller = 1.8
	priorityHotList     = 2.0
	priorityGrace       = 3.0
	priorityShipOnly    = 5.0

	// unknownAnchorRatio ranks fillers without an anchor price behind
	// known-good value.
	unknownAnchorRatio = 1.1
	// maxSpeculativeRatio rejects speculative fillers above retail.
	maxSpeculativeRatio = 1.0
)

type filler struct {
	idx      int
	card     string
	price    float64
	priority float64
	ratio    float64

	// pool names the allowance this candidate draws from; candidates that
	// share a pool share its unit limit. Empty means bounded only by stock.
	pool     string
	maxUnits int
	subFor   string
}

func (f filler) speculative() bool {
	return f.priority != priorityUnmet && f.priority != prioritySubstitute
}

type fill struct {
	filler
	units int
}

// optimizeShipping tries to push each basket that still pays shipping over
// its free-shipping threshold, committing only when that lowers or keeps the
// basket total.
func (p *pipeline) optimizeShipping(in *state) *state {
	s := in.clone()
	for _, seller := range s.sellerIDs() {
		b := s.baskets[seller]
		if !b.ShortOfFreeShipping() {
			continue
		}
		p.fillBasket(s, b, p.fillerCandidates(s, seller))
	}
	return s
}

// fillerCandidates lists the seller's offers usable as filler, tagged with
// priority and cost ratio, sorted by ratio, priority, price and card.
func (p *pipeline) fillerCandidates(s *state, seller string) []filler {
	hot := make(map[string]int)
	for _, r := range p.hotList {
		deficit := r.Deficit
		if inv, ok := p.inventory[r.CardID]; ok {
			deficit = r.TargetInventory - inv
		}
		if left := deficit - s.plannedUnits(r.CardID); left > 0 {
			hot[r.CardID] = left
		}
	}

	var out []filler
	for _, i := range p.bySeller[seller] {
		o := s.offers[i]
		if !o.Available() || !p.priceAllowed(o.Price) {
			continue
		}
		card := o.CardID
		ratio := unknownAnchorRatio
		if a := p.anchor(card); a > 0 {
			ratio = o.Price / a
		}
		base := filler{idx: i, card: card, price: o.Price, ratio: ratio}
		add := func(priority float64, pool string, maxUnits int, subFor string) {
			f := base
			f.priority, f.pool, f.maxUnits, f.subFor = priority, pool, maxUnits, subFor
			if f.speculative() && f.ratio > maxSpeculativeRatio+epsilon {
				return
			}
			out = append(out, f)
		}

		if n := s.unmet[card]; n > 0 {
			add(priorityUnmet, "unmet:"+card, n, "")
		}
		for _, mate := range p.groupMates(card) {
			if n := s.unmet[mate]; n > 0 {
				add(prioritySubstitute, "unmet:"+mate, n, mate)
			}
		}
		if p.inActiveGroup(card) {
			add(prioritySmartFiller, "", 0, "")
		}
		if n := hot[card]; n > 0 {
			add(priorityHotList, "hot:"+card, n, "")
		}
		if p.opts.GraceQuantity > 0 && (p.demanded[card] || p.inActiveGroup(card)) {
			add(priorityGrace, "grace:"+card, p.opts.GraceQuantity, "")
		}
		if units, ok := p.shipOnly[card]; ok {
			if units > 0 {
				add(priorityShipOnly, "ship:"+card, units, "")
			} else {
				add(priorityShipOnly, "", 0, "")
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ratio != b.ratio {
			return a.ratio < b.ratio
		}
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		if a.price != b.price {
			return a.price < b.price
		}
		return a.card < b.card
	})
	return out
}

// fillBasket accumulates fillers until the basket reaches its threshold and
// commits them only if the new total is no worse than the current one.
func (p *pipeline) fillBasket(s *state, b *domain.SellerBasket, cands []filler) {
	if len(cands) == 0 || b.Shipping.FreeAt == nil {
		return
	}
	threshold := *b.Shipping.FreeAt
	running := b.CardSubtotal
	spendElsewhere := s.totalSpend() - b.TotalCost
	specCommitted := s.speculativeSpend()
	specAdded := 0.0

	used := make(map[int]int)
	cardAdded := make(map[string]float64)
	poolLeft := make(map[string]int)
	var picks []fill

	for _, c := range cands {
		if running >= threshold-epsilon {
			break
		}
		if c.price <= 0 {
			continue
		}
		units := s.offers[c.idx].QuantityAvailable - used[c.idx]
		if c.pool != "" {
			left, ok := poolLeft[c.pool]
			if !ok {
				left = c.maxUnits
				poolLeft[c.pool] = left
			}
			units = min(units, left)
		}
		needed := int(math.Ceil((threshold-running)/c.price - epsilon))
		units = min(units, needed)
		cardSpend := s.cardSpend(c.card) + cardAdded[c.card]
		units = min(units, p.fillCapUnits(c, running, spendElsewhere, specCommitted+specAdded, cardSpend))
		if units <= 0 {
			continue
		}

		picks = append(picks, fill{filler: c, units: units})
		used[c.idx] += units
		cardAdded[c.card] += float64(units) * c.price
		if c.pool != "" {
			poolLeft[c.pool] -= units
		}
		running += float64(units) * c.price
		if c.speculative() {
			specAdded += float64(units) * c.price
		}
	}

	if running < threshold-epsilon {
		return
	}
	// Shipping is waived once the threshold is met, so the new total is the
	// subtotal alone.
	if running > b.TotalCost+epsilon {
		return
	}

	for _, f := range picks {
		reasons := []string{domain.ReasonShippingOptimization}
		if f.subFor != "" {
			reasons = append(reasons, domain.ReasonSubstitutionFor(f.subFor))
		}
		s.allocate(f.idx, f.units, f.speculative(), reasons...)
		switch f.priority {
		case priorityUnmet:
			s.unmet[f.card] -= f.units
		case prioritySubstitute:
			s.unmet[f.subFor] -= f.units
		}
	}
}

// fillCapUnits bounds a filler by the per-card, per-seller, total and
// speculative caps. cardSpend is what the plan already spends on the card
// across every basket. Speculative fillers always respect the true total
// budget; demand fillers respect the effective budget in STRICT mode only.
func (p *pipeline) fillCapUnits(c filler, running, spendElsewhere, specSpend, cardSpend float64) int {
	if p.budget == nil {
		return math.MaxInt32
	}
	units := math.MaxInt32
	if p.budget.MaxPerCard > 0 {
		units = min(units, affordableUnits(p.budget.MaxPerCard, cardSpend, c.price))
	}
	if p.budget.MaxPerSeller > 0 {
		units = min(units, affordableUnits(p.budget.MaxPerSeller, running, c.price))
	}

	switch {
	case c.speculative():
		units = min(units, affordableUnits(p.budget.MaxTotalSpend, spendElsewhere+running, c.price))
		if p.budget.MaxSpeculativeSpend > 0 {
			units = min(units, affordableUnits(p.budget.MaxSpeculativeSpend, specSpend, c.price))
		}
	case p.budget.IsStrict():
		units = min(units, affordableUnits(p.budget.EffectiveBudget(), spendElsewhere+running, c.price))
	}
	return units
}
