package optimizer

import "github.com/alejandrodnm/cardplanner/internal/domain"

// fallbackSource buys whatever is still unmet from the anchor retailer at
// its anchor price. The retailer has unlimited stock and its own shipping
// rule. STRICT budgets truncate each card to the units that still fit;
// shipping is re-evaluated once after every unit is added.
func (p *pipeline) fallbackSource(in *state) *state {
	s := in.clone()
	if s.unmetUnits() == 0 {
		return s
	}

	id := p.fallbackID
	b := domain.NewSellerBasket(id, p.opts.FallbackMarketplace, p.opts.FallbackShipping)
	spendElsewhere := s.totalSpend()
	strict := p.budget != nil && p.budget.IsStrict()

	added := 0
	for _, card := range s.unmetOrder {
		qty := s.unmet[card]
		price := p.anchor(card)
		if qty <= 0 || price <= 0 {
			continue
		}

		units := qty
		if strict {
			units = 0
			for k := qty; k >= 1; k-- {
				if spendElsewhere+b.TotalAfter(b.CardSubtotal+float64(k)*price) <= p.budget.MaxTotalSpend+epsilon {
					units = k
					break
				}
			}
		}
		if units == 0 {
			continue
		}

		b.AddItemDeferred(card, units, price, domain.ReasonFallback)
		s.unmet[card] -= units
		added += units
	}

	b.Recompute()
	if added > 0 {
		s.baskets[id] = b
	}
	return s
}
