package marketplace

// Wire DTOs of the marketplace offers API. Conversion to domain offers
// happens in mapping.go.

// offersRequest is the body of POST /offers.
type offersRequest struct {
	CardIDs []string `json:"card_ids"`
}

// offersResponse is the answer to POST /offers.
type offersResponse struct {
	Offers []offerDTO `json:"offers"`
}

// offerDTO is one listing. Shipping is per seller and repeated on every
// listing of that seller.
type offerDTO struct {
	SellerID       string   `json:"seller_id" yaml:"seller_id"`
	CardID         string   `json:"card_id" yaml:"card_id"`
	Price          float64  `json:"price" yaml:"price"`
	Quantity       int      `json:"quantity" yaml:"quantity"`
	ShippingBase   float64  `json:"shipping_base" yaml:"shipping_base"`
	FreeShippingAt *float64 `json:"free_shipping_at,omitempty" yaml:"free_shipping_at,omitempty"`
	SellerRating   *float64 `json:"seller_rating,omitempty" yaml:"seller_rating,omitempty"`
}
