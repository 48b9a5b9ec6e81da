package marketplace_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/cardplanner/internal/adapters/marketplace"
	"github.com/alejandrodnm/cardplanner/internal/domain"
	"github.com/alejandrodnm/cardplanner/internal/ports"
)

// fakeSource is a hand-written MarketSource.
type fakeSource struct {
	name   string
	offers []domain.Offer
	err    error

	mu    sync.Mutex
	calls int
	asked []string
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchOffers(_ context.Context, ids []string) ([]domain.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.asked = ids
	if f.err != nil {
		return nil, f.err
	}
	return f.offers, nil
}

type countingRecorder struct {
	mu      sync.Mutex
	fetches map[string]int
	failed  int
	hits    int
	misses  int
}

func (r *countingRecorder) SourceFetched(source string, _ time.Duration, _ int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetches == nil {
		r.fetches = make(map[string]int)
	}
	r.fetches[source]++
	if err != nil {
		r.failed++
	}
}

func (r *countingRecorder) CacheLookup(hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func rated(o domain.Offer, r float64) domain.Offer {
	o.SellerRating = &r
	return o
}

func TestAggregator_MergesAndDedups(t *testing.T) {
	tcg := &fakeSource{name: "tcg", offers: []domain.Offer{
		{SellerID: "grim", CardID: "sol-ring", Price: 2, QuantityAvailable: 1},
		{SellerID: "grim", CardID: "sol-ring", Price: 1.5, QuantityAvailable: 3},
		rated(domain.Offer{SellerID: "ace", CardID: "sol-ring", Price: 1.5, QuantityAvailable: 1}, 0.5),
		rated(domain.Offer{SellerID: "ace", CardID: "sol-ring", Price: 1.5, QuantityAvailable: 2}, 0.9),
	}}
	cm := &fakeSource{name: "cm", offers: []domain.Offer{
		{Marketplace: "cm", SellerID: "grim", CardID: "sol-ring", Price: 1.1, QuantityAvailable: 1},
		{SellerID: "eu", CardID: "arcane-signet", Price: 0.4, QuantityAvailable: 8},
	}}

	agg := marketplace.NewAggregator([]ports.MarketSource{tcg, cm})
	offers, err := agg.FetchOffers(context.Background(), []string{"sol-ring", "arcane-signet", "sol-ring", ""})
	require.NoError(t, err)

	assert.Equal(t, []string{"arcane-signet", "sol-ring"}, tcg.asked, "ids are de-duplicated and sorted")
	require.Len(t, offers, 4)

	assert.Equal(t, "arcane-signet", offers[0].CardID)
	assert.Equal(t, "cm", offers[0].Marketplace)

	assert.Equal(t, "cm", offers[1].Marketplace)
	assert.Equal(t, "grim", offers[1].SellerID)

	assert.Equal(t, "tcg", offers[2].Marketplace)
	assert.Equal(t, "ace", offers[2].SellerID)
	assert.Equal(t, 2, offers[2].QuantityAvailable, "equal price keeps the better rated listing")

	assert.Equal(t, "grim", offers[3].SellerID)
	assert.InDelta(t, 1.5, offers[3].Price, 0.0001, "cheapest listing wins")
}

func TestAggregator_SkipsFailingSource(t *testing.T) {
	ok := &fakeSource{name: "tcg", offers: []domain.Offer{{SellerID: "grim", CardID: "sol-ring", Price: 1, QuantityAvailable: 1}}}
	bad := &fakeSource{name: "cm", err: errors.New("connection reset")}
	rec := &countingRecorder{}

	agg := marketplace.NewAggregator([]ports.MarketSource{ok, bad}, marketplace.WithRecorder(rec))
	offers, err := agg.FetchOffers(context.Background(), []string{"sol-ring"})

	require.NoError(t, err)
	assert.Len(t, offers, 1)
	assert.Equal(t, map[string]int{"tcg": 1, "cm": 1}, rec.fetches)
	assert.Equal(t, 1, rec.failed)
}

func TestAggregator_AllSourcesFail(t *testing.T) {
	boom := errors.New("boom")
	agg := marketplace.NewAggregator([]ports.MarketSource{
		&fakeSource{name: "tcg", err: boom},
		&fakeSource{name: "cm", err: errors.New("timeout")},
	})

	_, err := agg.FetchOffers(context.Background(), []string{"sol-ring"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "all 2 sources failed")
}

func TestAggregator_CachesBySortedCardSet(t *testing.T) {
	src := &fakeSource{name: "tcg", offers: []domain.Offer{{SellerID: "grim", CardID: "a", Price: 1, QuantityAvailable: 1}}}
	rec := &countingRecorder{}
	agg := marketplace.NewAggregator([]ports.MarketSource{src},
		marketplace.WithCache(marketplace.NewMemoryCache(), 0),
		marketplace.WithRecorder(rec),
	)

	first, err := agg.FetchOffers(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	second, err := agg.FetchOffers(context.Background(), []string{"b", "a", "a"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.misses)

	_, err = agg.FetchOffers(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls, "a different card set misses")
}

func TestCacheKey_OrderInsensitive(t *testing.T) {
	assert.Equal(t, marketplace.CacheKey([]string{"b", "a"}), marketplace.CacheKey([]string{"a", "b", "a"}))
	assert.NotEqual(t, marketplace.CacheKey([]string{"a"}), marketplace.CacheKey([]string{"a", "b"}))
}

func TestMemoryCache_Expires(t *testing.T) {
	c := marketplace.NewMemoryCache()
	ctx := context.Background()
	offers := []domain.Offer{{SellerID: "s", CardID: "c", Price: 1}}

	require.NoError(t, c.Set(ctx, "k", offers, time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", offers, time.Minute))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, offers, got)
}

func TestRedisCache_RoundTrip(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	c, err := marketplace.NewRedisCacheFromURL(ctx, url)
	require.NoError(t, err)
	defer c.Close()

	key := marketplace.CacheKey([]string{"redis-test-" + time.Now().Format(time.RFC3339Nano)})
	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	offers := []domain.Offer{{Marketplace: "tcg", SellerID: "s", CardID: "c", Price: 2.5, QuantityAvailable: 3}}
	require.NoError(t, c.Set(ctx, key, offers, time.Minute))
	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, offers, got)
}

func TestFileSource_FiltersRequestedCards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
offers:
  - seller_id: grim
    card_id: sol-ring
    price: 1.25
    quantity: 2
    shipping_base: 3
    free_shipping_at: 20
  - seller_id: grim
    card_id: mana-crypt
    price: 150
    quantity: 1
`), 0o644))

	offers, err := marketplace.NewFileSource("local", path).FetchOffers(context.Background(), []string{"sol-ring"})
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "local", offers[0].Marketplace)
	assert.Equal(t, 2, offers[0].QuantityAvailable)
	require.NotNil(t, offers[0].Shipping.FreeAt)
	assert.InDelta(t, 20.0, *offers[0].Shipping.FreeAt, 0.0001)
}

func TestFileSource_MissingFile(t *testing.T) {
	_, err := marketplace.NewFileSource("local", "/nonexistent/offers.json").FetchOffers(context.Background(), []string{"a"})
	assert.Error(t, err)
}
