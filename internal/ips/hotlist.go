package ips

// hotlist.go: worker pool for scoring large card collections.
//
// Results are written by index, not gathered from a channel, so the order
// before sorting always matches the input and the stable sort keeps ties in
// input order.

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"github.com/alejandrodnm/cardplanner/internal/domain"
)

// FactorFunc returns the seasonality multiplier of a card. A nil FactorFunc
// means 1.0 for every card.
type FactorFunc func(card domain.CardMetrics) float64

// GenerateHotList scores every card concurrently and returns the results
// sorted by IPS descending.
func GenerateHotList(
	ctx context.Context,
	cards []domain.CardMetrics,
	groups *GroupIndex,
	cfg Config,
	factor FactorFunc,
) ([]domain.IPSResult, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(cards) {
		workers = len(cards)
	}

	results := make([]domain.IPSResult, len(cards))
	workCh := make(chan int, len(cards))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workCh {
				if ctx.Err() != nil {
					continue
				}
				card := cards[idx]
				f := 1.0
				if factor != nil {
					f = factor(card)
				}
				results[idx] = CalculateCardIPS(card, groups, cfg, f)
			}
		}()
	}

	for i := range cards {
		workCh <- i
	}
	close(workCh)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].IPS > results[j].IPS
	})

	slog.Debug("ips: hot list scored",
		"cards", len(cards),
		"workers", workers,
	)
	return results, nil
}

// Eligible keeps results with a positive score, enough liquidity and a margin
// above the minimum.
func Eligible(results []domain.IPSResult, cfg Config) []domain.IPSResult {
	var out []domain.IPSResult
	for _, r := range results {
		if r.IPS > 0 && r.Components.Liquidity >= cfg.MinLiquidity && r.Components.MarginSafety > cfg.MinMarginSafety {
			out = append(out, r)
		}
	}
	return out
}

// ShippingFillerCandidates keeps eligible tier A and B results.
func ShippingFillerCandidates(results []domain.IPSResult, cfg Config) []domain.IPSResult {
	var out []domain.IPSResult
	for _, r := range Eligible(results, cfg) {
		if r.Tier == domain.TierA || r.Tier == domain.TierB {
			out = append(out, r)
		}
	}
	return out
}

// DemandCandidates keeps every result with a positive deficit.
func DemandCandidates(results []domain.IPSResult) []domain.IPSResult {
	var out []domain.IPSResult
	for _, r := range results {
		if r.Deficit > 0 {
			out = append(out, r)
		}
	}
	return out
}

// CountByTier counts results per tier.
func CountByTier(results []domain.IPSResult) map[domain.Tier]int {
	out := map[domain.Tier]int{domain.TierA: 0, domain.TierB: 0, domain.TierC: 0}
	for _, r := range results {
		out[r.Tier]++
	}
	return out
}
