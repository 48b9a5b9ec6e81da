package marketplace

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/alejandrodnm/cardplanner/internal/domain"
	"github.com/alejandrodnm/cardplanner/internal/ports"
)

const (
	// DefaultCacheTTL is how long a fetched offer pool is reused.
	DefaultCacheTTL = 15 * time.Minute

	defaultParallelism = 4
)

// Recorder receives fetch and cache events. The metrics package implements it.
type Recorder interface {
	SourceFetched(source string, took time.Duration, offers int, err error)
	CacheLookup(hit bool)
}

type nopRecorder struct{}

func (nopRecorder) SourceFetched(string, time.Duration, int, error) {}
func (nopRecorder) CacheLookup(bool)                                {}

// Aggregator fans a fetch out to every marketplace in parallel, merges and
// de-duplicates the results and caches them by requested card set.
// It implements ports.OfferProvider.
type Aggregator struct {
	sources  []ports.MarketSource
	limiters map[string]*rate.Limiter
	cache    ports.OfferCache
	ttl      time.Duration
	parallel int
	recorder Recorder
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithCache enables caching for ttl (DefaultCacheTTL when ttl <= 0).
func WithCache(c ports.OfferCache, ttl time.Duration) Option {
	return func(a *Aggregator) {
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		a.cache, a.ttl = c, ttl
	}
}

// WithParallelism bounds how many sources are fetched at once.
func WithParallelism(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.parallel = n
		}
	}
}

// WithSourceRate limits calls to one source to perSec fetches per second.
func WithSourceRate(source string, perSec float64) Option {
	return func(a *Aggregator) {
		if perSec > 0 {
			a.limiters[source] = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

// WithRecorder reports fetch and cache events.
func WithRecorder(r Recorder) Option {
	return func(a *Aggregator) {
		if r != nil {
			a.recorder = r
		}
	}
}

// NewAggregator creates an aggregator over sources.
func NewAggregator(sources []ports.MarketSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		sources:  sources,
		limiters: make(map[string]*rate.Limiter),
		parallel: defaultParallelism,
		recorder: nopRecorder{},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// FetchOffers returns the merged offer pool for cardIDs. A failing source is
// logged and skipped; the fetch fails only when every source fails.
func (a *Aggregator) FetchOffers(ctx context.Context, cardIDs []string) ([]domain.Offer, error) {
	ids := normalizeIDs(cardIDs)
	if len(ids) == 0 {
		return []domain.Offer{}, nil
	}
	key := CacheKey(ids)

	if a.cache != nil {
		offers, ok, err := a.cache.Get(ctx, key)
		switch {
		case err != nil:
			slog.Warn("marketplace: cache read failed", "err", err)
		case ok:
			a.recorder.CacheLookup(true)
			slog.Debug("marketplace: cache hit", "cards", len(ids), "offers", len(offers))
			return offers, nil
		default:
			a.recorder.CacheLookup(false)
		}
	}

	results := make([][]domain.Offer, len(a.sources))
	errs := make([]error, len(a.sources))

	var g errgroup.Group
	g.SetLimit(a.parallel)
	for i, src := range a.sources {
		g.Go(func() error {
			results[i], errs[i] = a.fetchSource(ctx, src, ids)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("marketplace.Aggregator.FetchOffers: %w", err)
	}

	var merged []domain.Offer
	failed := 0
	for i, src := range a.sources {
		if errs[i] != nil {
			failed++
			slog.Warn("marketplace: source failed, skipping", "source", src.Name(), "err", errs[i])
			continue
		}
		for _, o := range results[i] {
			if o.Marketplace == "" {
				o.Marketplace = src.Name()
			}
			merged = append(merged, o)
		}
	}
	if len(a.sources) > 0 && failed == len(a.sources) {
		return nil, fmt.Errorf("marketplace.Aggregator.FetchOffers: all %d sources failed: %w",
			failed, errors.Join(errs...))
	}

	offers := Dedup(merged)
	slog.Info("marketplace: offers aggregated",
		"sources", len(a.sources),
		"failed", failed,
		"cards", len(ids),
		"offers", len(offers),
	)

	if a.cache != nil {
		if err := a.cache.Set(ctx, key, offers, a.ttl); err != nil {
			slog.Warn("marketplace: cache write failed", "err", err)
		}
	}
	return offers, nil
}

func (a *Aggregator) fetchSource(ctx context.Context, src ports.MarketSource, ids []string) ([]domain.Offer, error) {
	if l := a.limiters[src.Name()]; l != nil {
		if err := l.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}
	start := time.Now()
	offers, err := src.FetchOffers(ctx, ids)
	a.recorder.SourceFetched(src.Name(), time.Since(start), len(offers), err)
	return offers, err
}

// Dedup keeps one offer per (marketplace, seller, card): the cheapest, then
// the better rated. The result is sorted by card, marketplace and seller.
func Dedup(offers []domain.Offer) []domain.Offer {
	type key struct{ market, seller, card string }
	best := make(map[key]domain.Offer, len(offers))
	for _, o := range offers {
		k := key{o.Marketplace, o.SellerID, o.CardID}
		cur, ok := best[k]
		if !ok || o.Price < cur.Price || (o.Price == cur.Price && o.Rating() > cur.Rating()) {
			best[k] = o
		}
	}

	out := make([]domain.Offer, 0, len(best))
	for _, o := range best {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.CardID != b.CardID {
			return a.CardID < b.CardID
		}
		if a.Marketplace != b.Marketplace {
			return a.Marketplace < b.Marketplace
		}
		return a.SellerID < b.SellerID
	})
	return out
}

// CacheKey hashes a normalized card id set.
func CacheKey(ids []string) string {
	sum := sha256.Sum256([]byte(strings.Join(normalizeIDs(ids), "\n")))
	return hex.EncodeToString(sum[:])
}

// normalizeIDs returns the sorted set of non-empty ids.
func normalizeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
