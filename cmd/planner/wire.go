package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/cardplanner/config"
	"github.com/alejandrodnm/cardplanner/internal/adapters/marketplace"
	"github.com/alejandrodnm/cardplanner/internal/adapters/storage"
	"github.com/alejandrodnm/cardplanner/internal/application/planner"
	"github.com/alejandrodnm/cardplanner/internal/metrics"
	"github.com/alejandrodnm/cardplanner/internal/ports"
	"github.com/alejandrodnm/cardplanner/internal/seasonality"
)

// deps are the collaborators built from config.
type deps struct {
	offers  ports.OfferProvider
	ledger  ports.RunLedger
	seasons *seasonality.Service
	closers []func() error
}

func wire(ctx context.Context, cfg *config.Config, m *metrics.Metrics, skipLedger bool) (*deps, error) {
	d := &deps{seasons: seasonality.NewService(cfg.Seasonality.Path)}

	if len(cfg.Marketplace.Sources) > 0 {
		agg, err := d.aggregator(ctx, cfg, m)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.offers = agg
	}

	if !skipLedger {
		ledger, err := openLedger(ctx, cfg.Storage)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.ledger = ledger
		d.closers = append(d.closers, ledger.Close)
	}
	return d, nil
}

func (d *deps) aggregator(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*marketplace.Aggregator, error) {
	opts := []marketplace.Option{
		marketplace.WithParallelism(cfg.Marketplace.Parallelism),
		marketplace.WithRecorder(m),
	}

	sources := make([]ports.MarketSource, 0, len(cfg.Marketplace.Sources))
	for _, sc := range cfg.Marketplace.Sources {
		switch sc.Kind {
		case "file":
			sources = append(sources, marketplace.NewFileSource(sc.Name, sc.Path))
		default:
			client := marketplace.NewClient(sc.RatePerSec, sc.Timeout())
			sources = append(sources, marketplace.NewHTTPSource(sc.Name, sc.BaseURL, client))
			opts = append(opts, marketplace.WithSourceRate(sc.Name, sc.RatePerSec))
		}
	}

	switch cfg.Cache.Driver {
	case "redis":
		rc, err := marketplace.NewRedisCacheFromURL(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("wire: redis cache: %w", err)
		}
		d.closers = append(d.closers, rc.Close)
		opts = append(opts, marketplace.WithCache(rc, cfg.Marketplace.CacheTTL()))
	case "memory":
		opts = append(opts, marketplace.WithCache(marketplace.NewMemoryCache(), cfg.Marketplace.CacheTTL()))
	}

	return marketplace.NewAggregator(sources, opts...), nil
}

func openLedger(ctx context.Context, sc config.StorageConfig) (ports.RunLedger, error) {
	switch sc.Driver {
	case "postgres":
		l, err := storage.NewPostgresLedger(ctx, sc.DSN)
		if err != nil {
			return nil, fmt.Errorf("wire: %w", err)
		}
		return l, nil
	default:
		l, err := storage.NewSQLiteLedger(sc.DSN)
		if err != nil {
			return nil, fmt.Errorf("wire: %w", err)
		}
		return l, nil
	}
}

// Options turns the collaborators into planner options.
func (d *deps) Options(m *metrics.Metrics) []planner.Option {
	opts := []planner.Option{
		planner.WithSeasonality(d.seasons),
		planner.WithRecorder(m),
	}
	if d.offers != nil {
		opts = append(opts, planner.WithOfferProvider(d.offers))
	}
	if d.ledger != nil {
		opts = append(opts, planner.WithLedger(d.ledger))
	}
	return opts
}

// Close releases every opened resource in reverse order.
func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			slog.Warn("close failed", "err", err)
		}
	}
	d.closers = nil
}
