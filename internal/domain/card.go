package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidDirective is returned when a manual directive fails validation.
// Directive errors abort a run before any allocation happens.
var ErrInvalidDirective = errors.New("invalid directive")

// Demand is a request to acquire Quantity copies of a card.
type Demand struct {
	CardID   string   `json:"card_id" yaml:"card_id"`
	Quantity int      `json:"quantity" yaml:"quantity"`
	MaxPrice *float64 `json:"max_price,omitempty" yaml:"max_price,omitempty"`
}

// Shipping is a seller's shipping rule: a flat Base charge waived once the
// card subtotal reaches FreeAt. A nil FreeAt means shipping is never waived.
type Shipping struct {
	Base   float64  `json:"base" yaml:"base"`
	FreeAt *float64 `json:"free_at,omitempty" yaml:"free_at,omitempty"`
}

// IsFree reports whether a subtotal qualifies for free shipping.
func (s Shipping) IsFree(subtotal float64) bool {
	return s.FreeAt != nil && subtotal >= *s.FreeAt-moneyEpsilon
}

// CostFor returns the shipping charged for a given card subtotal.
func (s Shipping) CostFor(subtotal float64) float64 {
	if s.Base <= 0 || s.IsFree(subtotal) {
		return 0
	}
	return s.Base
}

// Offer is one seller listing for one card on one marketplace.
// QuantityAvailable is consumed during a run and never goes negative.
type Offer struct {
	Marketplace       string   `json:"marketplace" yaml:"marketplace"`
	SellerID          string   `json:"seller_id" yaml:"seller_id"`
	CardID            string   `json:"card_id" yaml:"card_id"`
	Price             float64  `json:"price" yaml:"price"`
	QuantityAvailable int      `json:"quantity_available" yaml:"quantity_available"`
	Shipping          Shipping `json:"shipping" yaml:"shipping"`
	SellerRating      *float64 `json:"seller_rating,omitempty" yaml:"seller_rating,omitempty"`
}

// Rating returns the seller rating, defaulting to 1.0 when unknown.
func (o Offer) Rating() float64 {
	if o.SellerRating == nil {
		return 1.0
	}
	return *o.SellerRating
}

// Available reports whether the offer can still be allocated.
func (o Offer) Available() bool {
	return o.QuantityAvailable > 0
}

// DirectiveMode is the kind of manual override a user applies to a card.
type DirectiveMode string

const (
	// DirectiveForce adds synthetic demand for the card.
	DirectiveForce DirectiveMode = "FORCE"
	// DirectivePrefer discounts the marginal cost of a preferred seller.
	DirectivePrefer DirectiveMode = "PREFER"
	// DirectiveShipOnly makes the card usable only as shipping filler.
	DirectiveShipOnly DirectiveMode = "SHIP_ONLY"
)

// ManualDirective is a user override applied on top of computed demand.
type ManualDirective struct {
	CardID   string        `json:"card_id" yaml:"card_id"`
	Quantity *int          `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	Mode     DirectiveMode `json:"mode" yaml:"mode"`
	SellerID string        `json:"seller_id,omitempty" yaml:"seller_id,omitempty"`
}

// Units returns the directive quantity, defaulting to 1.
func (d ManualDirective) Units() int {
	if d.Quantity == nil {
		return 1
	}
	return *d.Quantity
}

// Validate checks the directive mode, card id and quantity.
func (d ManualDirective) Validate() error {
	if d.CardID == "" {
		return fmt.Errorf("%w: missing card id", ErrInvalidDirective)
	}
	switch d.Mode {
	case DirectiveForce, DirectivePrefer, DirectiveShipOnly:
	default:
		return fmt.Errorf("%w: card %s: unknown mode %q", ErrInvalidDirective, d.CardID, d.Mode)
	}
	if d.Quantity != nil && *d.Quantity <= 0 {
		return fmt.Errorf("%w: card %s: quantity must be positive, got %d", ErrInvalidDirective, d.CardID, *d.Quantity)
	}
	return nil
}

// ValidateDirectives validates every directive and returns the first failure.
func ValidateDirectives(directives []ManualDirective) error {
	for i, d := range directives {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("directive %d: %w", i, err)
		}
	}
	return nil
}

// SubstitutionGroup is a set of interchangeable cards.
// A card belongs to at most one group.
type SubstitutionGroup struct {
	GroupID string   `json:"group_id" yaml:"group_id"`
	Cards   []string `json:"cards" yaml:"cards"`
}

// Contains reports whether the card is a member of the group.
func (g SubstitutionGroup) Contains(cardID string) bool {
	for _, c := range g.Cards {
		if c == cardID {
			return true
		}
	}
	return false
}
