package marketplace

// http_source.go fetches offers from a marketplace's JSON API.
//
// Card ids are split into batches and every batch is requested from its own
// goroutine. The client's rate limiter paces the goroutines, so no explicit
// semaphore is needed.

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/alejandrodnm/cardplanner/internal/domain"
)

const (
	offersPath = "/offers"
	batchSize  = 50 // max card ids per request
)

// HTTPSource is a MarketSource backed by a marketplace HTTP API.
type HTTPSource struct {
	name   string
	base   string
	client *Client
}

// NewHTTPSource creates a source named name that posts to base + /offers.
func NewHTTPSource(name, base string, client *Client) *HTTPSource {
	return &HTTPSource{
		name:   name,
		base:   strings.TrimRight(base, "/"),
		client: client,
	}
}

// Name returns the marketplace name.
func (s *HTTPSource) Name() string { return s.name }

// FetchOffers requests every batch concurrently and merges the results.
// Any failed batch fails the whole fetch.
func (s *HTTPSource) FetchOffers(ctx context.Context, cardIDs []string) ([]domain.Offer, error) {
	if len(cardIDs) == 0 {
		return []domain.Offer{}, nil
	}

	batches := splitBatches(cardIDs, batchSize)

	type batchResult struct {
		offers []domain.Offer
		err    error
		idx    int
	}

	resultCh := make(chan batchResult, len(batches))
	var wg sync.WaitGroup

	for i, batch := range batches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			offers, err := s.fetchBatch(ctx, batch)
			resultCh <- batchResult{offers: offers, err: err, idx: i}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	byBatch := make([][]domain.Offer, len(batches))
	var firstErr error
	for r := range resultCh {
		if r.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("marketplace.FetchOffers: %s batch %d: %w", s.name, r.idx, r.err)
			}
			continue
		}
		byBatch[r.idx] = r.offers
	}
	if firstErr != nil {
		return nil, firstErr
	}

	var all []domain.Offer
	for _, offers := range byBatch {
		all = append(all, offers...)
	}
	slog.Debug("marketplace: offers fetched",
		"marketplace", s.name,
		"cards", len(cardIDs),
		"offers", len(all),
	)
	return all, nil
}

// splitBatches divides ids into slices of at most size.
func splitBatches(ids []string, size int) [][]string {
	if size <= 0 {
		size = batchSize
	}
	batches := make([][]string, 0, (len(ids)+size-1)/size)
	for i := 0; i < len(ids); i += size {
		end := min(i+size, len(ids))
		batches = append(batches, ids[i:end])
	}
	return batches
}

func (s *HTTPSource) fetchBatch(ctx context.Context, cardIDs []string) ([]domain.Offer, error) {
	var resp offersResponse
	if err := s.client.postJSON(ctx, s.base+offersPath, offersRequest{CardIDs: cardIDs}, &resp); err != nil {
		return nil, fmt.Errorf("POST %s: %w", offersPath, err)
	}
	return filterCards(mapOffers(s.name, resp.Offers), cardIDs), nil
}
