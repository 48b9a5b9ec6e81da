package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/cardplanner/internal/domain"
)

// OfferCache stores fetched offer pools keyed by the requested card set.
type OfferCache interface {
	// Get returns the cached offers and true on a hit. Expired entries miss.
	Get(ctx context.Context, key string) ([]domain.Offer, bool, error)

	// Set stores offers for ttl.
	Set(ctx context.Context, key string, offers []domain.Offer, ttl time.Duration) error
}
