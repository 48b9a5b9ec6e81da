package marketplace

import "github.com/alejandrodnm/cardplanner/internal/domain"

// mapOffers converts listings into domain offers for one marketplace,
// dropping rows without ids or with a negative price and clamping
// quantities and ratings into range.
func mapOffers(marketplace string, raw []offerDTO) []domain.Offer {
	offers := make([]domain.Offer, 0, len(raw))
	for _, r := range raw {
		if r.SellerID == "" || r.CardID == "" || r.Price < 0 {
			continue
		}
		o := domain.Offer{
			Marketplace:       marketplace,
			SellerID:          r.SellerID,
			CardID:            r.CardID,
			Price:             r.Price,
			QuantityAvailable: max(r.Quantity, 0),
			Shipping:          domain.Shipping{Base: max(r.ShippingBase, 0)},
		}
		if r.FreeShippingAt != nil {
			v := *r.FreeShippingAt
			o.Shipping.FreeAt = &v
		}
		if r.SellerRating != nil {
			v := min(max(*r.SellerRating, 0), 1)
			o.SellerRating = &v
		}
		offers = append(offers, o)
	}
	return offers
}

// filterCards keeps offers for the requested cards only.
func filterCards(offers []domain.Offer, cardIDs []string) []domain.Offer {
	want := make(map[string]bool, len(cardIDs))
	for _, id := range cardIDs {
		want[id] = true
	}
	out := offers[:0:0]
	for _, o := range offers {
		if want[o.CardID] {
			out = append(out, o)
		}
	}
	return out
}
