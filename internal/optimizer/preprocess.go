package optimizer

import "github.com/alejandrodnm/cardplanner/internal/domain"

// Prepared is the merged demand handed to allocation.
type Prepared struct {
	Demands  []domain.Demand
	MaxPrice map[string]float64
}

// Preprocess merges duplicate demand rows (summing quantities, keeping the
// first explicit max price), adds FORCE directive quantities, drops
// SHIP_ONLY cards from primary demand and derives a max price from the
// anchor price of every card that has none. Order follows first appearance.
func Preprocess(demands []domain.Demand, directives []domain.ManualDirective, anchors map[string]float64) Prepared {
	var order []string
	qty := make(map[string]int)
	explicit := make(map[string]float64)

	touch := func(card string) {
		if _, ok := qty[card]; !ok {
			qty[card] = 0
			order = append(order, card)
		}
	}

	for _, d := range demands {
		if d.CardID == "" {
			continue
		}
		touch(d.CardID)
		if d.Quantity > 0 {
			qty[d.CardID] += d.Quantity
		}
		if _, ok := explicit[d.CardID]; !ok && d.MaxPrice != nil {
			explicit[d.CardID] = *d.MaxPrice
		}
	}

	shipOnly := make(map[string]bool)
	for _, dir := range directives {
		switch dir.Mode {
		case domain.DirectiveForce:
			touch(dir.CardID)
			qty[dir.CardID] += dir.Units()
		case domain.DirectiveShipOnly:
			shipOnly[dir.CardID] = true
		}
	}

	out := Prepared{MaxPrice: make(map[string]float64)}
	for _, card := range order {
		if shipOnly[card] || qty[card] <= 0 {
			continue
		}
		d := domain.Demand{CardID: card, Quantity: qty[card]}
		if mp, ok := explicit[card]; ok {
			out.MaxPrice[card] = mp
		} else if a, ok := anchors[card]; ok && a > 0 {
			out.MaxPrice[card] = a
		}
		if mp, ok := out.MaxPrice[card]; ok {
			v := mp
			d.MaxPrice = &v
		}
		out.Demands = append(out.Demands, d)
	}
	return out
}
