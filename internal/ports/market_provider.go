package ports

import (
	"context"

	"github.com/alejandrodnm/cardplanner/internal/domain"
)

// MarketSource fetches seller offers from one marketplace.
type MarketSource interface {
	// Name identifies the marketplace in logs, metrics and offers.
	Name() string

	// FetchOffers returns every listing the marketplace has for the given
	// card ids. Cards without listings are simply absent.
	FetchOffers(ctx context.Context, cardIDs []string) ([]domain.Offer, error)
}

// OfferProvider supplies the offer pool for a planning run.
// The aggregator implements it on top of several MarketSources.
type OfferProvider interface {
	FetchOffers(ctx context.Context, cardIDs []string) ([]domain.Offer, error)
}
