package optimizer

import (
	"sort"

	"github.com/alejandrodnm/cardplanner/internal/domain"
)

// epsilon absorbs float drift in money comparisons.
const epsilon = 1e-9

// improvementThreshold is the minimum saving for a local improvement move.
const improvementThreshold = 1e-9

// state is the private, per-phase view of a run. Phases clone it on entry.
type state struct {
	baskets map[string]*domain.SellerBasket
	offers  []domain.Offer

	// unmet holds outstanding demand units per card; unmetOrder keeps the
	// merged demand order for reporting.
	unmet      map[string]int
	unmetOrder []string

	// specUnits counts units bought speculatively per seller and card.
	specUnits map[string]map[string]int

	moves int
}

func newState(offers []domain.Offer, demands []domain.Demand) *state {
	s := &state{
		baskets:   make(map[string]*domain.SellerBasket),
		offers:    append([]domain.Offer(nil), offers...),
		unmet:     make(map[string]int),
		specUnits: make(map[string]map[string]int),
	}
	for _, d := range demands {
		s.unmetOrder = append(s.unmetOrder, d.CardID)
	}
	return s
}

func (s *state) clone() *state {
	c := &state{
		baskets:    make(map[string]*domain.SellerBasket, len(s.baskets)),
		offers:     append([]domain.Offer(nil), s.offers...),
		unmet:      make(map[string]int, len(s.unmet)),
		unmetOrder: append([]string(nil), s.unmetOrder...),
		specUnits:  make(map[string]map[string]int, len(s.specUnits)),
		moves:      s.moves,
	}
	for k, b := range s.baskets {
		c.baskets[k] = b.Clone()
	}
	for k, v := range s.unmet {
		c.unmet[k] = v
	}
	for seller, cards := range s.specUnits {
		m := make(map[string]int, len(cards))
		for card, n := range cards {
			m[card] = n
		}
		c.specUnits[seller] = m
	}
	return c
}

// sellerIDs returns the sellers with a basket, sorted.
func (s *state) sellerIDs() []string {
	ids := make([]string, 0, len(s.baskets))
	for id := range s.baskets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// totalSpend is the sum of every basket total, shipping included. Sellers
// are summed in sorted order so float rounding is reproducible.
func (s *state) totalSpend() float64 {
	total := 0.0
	for _, id := range s.sellerIDs() {
		total += s.baskets[id].TotalCost
	}
	return total
}

// speculativeSpend values speculative units at their basket line price.
func (s *state) speculativeSpend() float64 {
	total := 0.0
	for _, id := range s.sellerIDs() {
		b := s.baskets[id]
		cards := s.specUnits[id]
		for _, card := range b.CardIDs() {
			if n := cards[card]; n > 0 {
				total += float64(n) * b.UnitPrice(card)
			}
		}
	}
	return total
}

func (s *state) unmetUnits() int {
	n := 0
	for _, q := range s.unmet {
		n += q
	}
	return n
}

// plannedUnits counts units of a card across every basket.
func (s *state) plannedUnits(card string) int {
	n := 0
	for _, b := range s.baskets {
		n += b.Items[card]
	}
	return n
}

// cardSpend is the card subtotal spent on card across every basket.
func (s *state) cardSpend(card string) float64 {
	total := 0.0
	for _, seller := range s.sellerIDs() {
		b := s.baskets[seller]
		if n := b.Items[card]; n > 0 {
			total += float64(n) * b.UnitPrice(card)
		}
	}
	return total
}

// basketFor returns the seller's basket, creating it from the offer's
// shipping rule on first use.
func (s *state) basketFor(o domain.Offer) *domain.SellerBasket {
	b, ok := s.baskets[o.SellerID]
	if !ok {
		b = domain.NewSellerBasket(o.SellerID, o.Marketplace, o.Shipping)
		s.baskets[o.SellerID] = b
	}
	return b
}

// allocate charges qty units of an offer to its seller's basket.
func (s *state) allocate(idx, qty int, speculative bool, reasons ...string) {
	o := &s.offers[idx]
	if qty > o.QuantityAvailable {
		qty = o.QuantityAvailable
	}
	if qty <= 0 {
		return
	}
	o.QuantityAvailable -= qty
	b := s.basketFor(*o)
	first := ""
	if len(reasons) > 0 {
		first = reasons[0]
	}
	b.AddItem(o.CardID, qty, o.Price, first)
	for _, r := range reasons[min(1, len(reasons)):] {
		b.AddReason(o.CardID, r)
	}
	if speculative {
		s.addSpec(o.SellerID, o.CardID, qty)
	}
}

func (s *state) addSpec(seller, card string, n int) {
	if s.specUnits[seller] == nil {
		s.specUnits[seller] = make(map[string]int)
	}
	s.specUnits[seller][card] += n
	if s.specUnits[seller][card] <= 0 {
		delete(s.specUnits[seller], card)
	}
}

// dropEmpty removes baskets without units.
func (s *state) dropEmpty() {
	for id, b := range s.baskets {
		if b.IsEmpty() {
			delete(s.baskets, id)
			delete(s.specUnits, id)
		}
	}
}
