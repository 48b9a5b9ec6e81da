package domain

import "sort"

// Reason tags recorded per card in a basket.
const (
	ReasonDeckDemand           = "DECK_DEMAND"
	ReasonShippingOptimization = "SHIPPING_OPTIMIZATION"
	ReasonLocalImprovement     = "LOCAL_IMPROVEMENT"
	ReasonFallback             = "CK_FALLBACK"
	reasonSubstitutionPrefix   = "SUBSTITUTION_FOR_"
)

// ReasonSubstitutionFor tags a card bought in place of an unmet demand card.
func ReasonSubstitutionFor(cardID string) string {
	return reasonSubstitutionPrefix + cardID
}

// SellerBasket accumulates everything bought from one seller in a run.
//
// Invariants after every mutation:
//
//	TotalCost    = CardSubtotal + ShippingCost
//	ShippingCost = 0 iff FreeShippingTriggered or Shipping.Base == 0
type SellerBasket struct {
	SellerID              string
	Marketplace           string
	Shipping              Shipping
	Items                 map[string]int
	CardSubtotal          float64
	ShippingCost          float64
	FreeShippingTriggered bool
	TotalCost             float64
	Reasons               map[string][]string

	// lineTotals tracks spend per card so units can be removed at their
	// average purchase price.
	lineTotals map[string]float64
}

// NewSellerBasket returns an empty basket for a seller.
func NewSellerBasket(sellerID, marketplace string, shipping Shipping) *SellerBasket {
	b := &SellerBasket{
		SellerID:    sellerID,
		Marketplace: marketplace,
		Shipping:    shipping,
		Items:       make(map[string]int),
		Reasons:     make(map[string][]string),
		lineTotals:  make(map[string]float64),
	}
	b.Recompute()
	return b
}

// AddItem adds qty units at unitPrice, tags the card with reason (when not
// empty) and re-evaluates shipping.
func (b *SellerBasket) AddItem(cardID string, qty int, unitPrice float64, reason string) {
	b.addLine(cardID, qty, unitPrice, reason)
	b.Recompute()
}

// AddItemDeferred adds units without re-evaluating shipping. Callers must
// call Recompute once the batch is complete.
func (b *SellerBasket) AddItemDeferred(cardID string, qty int, unitPrice float64, reason string) {
	b.addLine(cardID, qty, unitPrice, reason)
}

func (b *SellerBasket) addLine(cardID string, qty int, unitPrice float64, reason string) {
	if qty <= 0 {
		return
	}
	b.Items[cardID] += qty
	b.lineTotals[cardID] += float64(qty) * unitPrice
	b.CardSubtotal += float64(qty) * unitPrice
	if reason != "" {
		b.AddReason(cardID, reason)
	}
}

// RemoveUnit removes one unit of a card at its average price and returns that
// price. Removing the last unit drops the card and its reasons.
func (b *SellerBasket) RemoveUnit(cardID string) float64 {
	qty := b.Items[cardID]
	if qty <= 0 {
		return 0
	}
	unit := b.lineTotals[cardID] / float64(qty)
	if qty == 1 {
		delete(b.Items, cardID)
		delete(b.lineTotals, cardID)
		delete(b.Reasons, cardID)
	} else {
		b.Items[cardID] = qty - 1
		b.lineTotals[cardID] -= unit
	}
	b.CardSubtotal -= unit
	if len(b.Items) == 0 {
		b.CardSubtotal = 0
	}
	b.Recompute()
	return unit
}

// AddReason appends a tag to the card's reason list, skipping an immediate
// repeat of the last tag.
func (b *SellerBasket) AddReason(cardID, reason string) {
	rs := b.Reasons[cardID]
	if n := len(rs); n > 0 && rs[n-1] == reason {
		return
	}
	b.Reasons[cardID] = append(rs, reason)
}

// UnitPrice returns the average price paid per unit of a card.
func (b *SellerBasket) UnitPrice(cardID string) float64 {
	qty := b.Items[cardID]
	if qty <= 0 {
		return 0
	}
	return b.lineTotals[cardID] / float64(qty)
}

// Recompute re-evaluates free shipping and the total.
func (b *SellerBasket) Recompute() {
	b.FreeShippingTriggered = b.Shipping.IsFree(b.CardSubtotal)
	b.ShippingCost = b.Shipping.CostFor(b.CardSubtotal)
	b.TotalCost = b.CardSubtotal + b.ShippingCost
}

// TotalAfter returns what the basket would cost with a different card subtotal.
func (b *SellerBasket) TotalAfter(subtotal float64) float64 {
	return subtotal + b.Shipping.CostFor(subtotal)
}

// ShortOfFreeShipping reports whether the basket pays shipping that a larger
// subtotal could waive.
func (b *SellerBasket) ShortOfFreeShipping() bool {
	return b.Shipping.FreeAt != nil && !b.FreeShippingTriggered && b.ShippingCost > 0
}

// IsEmpty reports whether the basket holds no units.
func (b *SellerBasket) IsEmpty() bool {
	for _, q := range b.Items {
		if q > 0 {
			return false
		}
	}
	return true
}

// Units returns the number of units in the basket.
func (b *SellerBasket) Units() int {
	n := 0
	for _, q := range b.Items {
		n += q
	}
	return n
}

// CardIDs returns the held card ids in sorted order.
func (b *SellerBasket) CardIDs() []string {
	ids := make([]string, 0, len(b.Items))
	for id, q := range b.Items {
		if q > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy.
func (b *SellerBasket) Clone() *SellerBasket {
	c := *b
	c.Items = make(map[string]int, len(b.Items))
	for k, v := range b.Items {
		c.Items[k] = v
	}
	c.lineTotals = make(map[string]float64, len(b.lineTotals))
	for k, v := range b.lineTotals {
		c.lineTotals[k] = v
	}
	c.Reasons = make(map[string][]string, len(b.Reasons))
	for k, v := range b.Reasons {
		c.Reasons[k] = append([]string(nil), v...)
	}
	if b.Shipping.FreeAt != nil {
		v := *b.Shipping.FreeAt
		c.Shipping.FreeAt = &v
	}
	return &c
}
