// Package planner wires the scoring and optimization core to its
// collaborators: offers come in through ports.OfferProvider, plans go out
// through ports.Notifier and are recorded in a ports.RunLedger.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/cardplanner/internal/domain"
	"github.com/alejandrodnm/cardplanner/internal/ips"
	"github.com/alejandrodnm/cardplanner/internal/optimizer"
	"github.com/alejandrodnm/cardplanner/internal/ports"
	"github.com/alejandrodnm/cardplanner/internal/seasonality"
)

var (
	// ErrNoLedger is returned by ledger operations when no ledger is configured.
	ErrNoLedger = errors.New("no run ledger configured")
	// ErrInvalidPrice rejects negative realized prices.
	ErrInvalidPrice = errors.New("invalid realized price")
)

// Config holds the planner settings.
type Config struct {
	Optimizer optimizer.Options
	IPS       ips.Config
	DryRun    bool // skip the ledger; plans are tagged dry_run

	// DefaultBudget applies to snapshots that carry no budget.
	DefaultBudget *domain.BudgetConfig
}

// Recorder receives planning events. The metrics package implements it.
type Recorder interface {
	PlanCompleted(plan *domain.PurchasePlan, took time.Duration)
	PlanFailed(mode domain.PlanMode)
	HotListGenerated(results []domain.IPSResult)
	ItemPurchased()
}

type nopRecorder struct{}

func (nopRecorder) PlanCompleted(*domain.PurchasePlan, time.Duration) {}
func (nopRecorder) PlanFailed(domain.PlanMode)                         {}
func (nopRecorder) HotListGenerated([]domain.IPSResult)                {}
func (nopRecorder) ItemPurchased()                                     {}

// Result is what one planning run produces.
type Result struct {
	Plan    *domain.PurchasePlan `json:"plan"`
	HotList []domain.IPSResult   `json:"hot_list"`
}

// Planner is the application orchestrator.
type Planner struct {
	cfg       Config
	offers    ports.OfferProvider
	ledger    ports.RunLedger
	notifiers []ports.Notifier
	seasons   *seasonality.Service
	recorder  Recorder
	now       func() time.Time
}

// Option configures a Planner.
type Option func(*Planner)

// WithOfferProvider fetches offers for snapshots that carry none.
func WithOfferProvider(p ports.OfferProvider) Option {
	return func(pl *Planner) { pl.offers = p }
}

// WithLedger records every non dry-run plan.
func WithLedger(l ports.RunLedger) Option {
	return func(pl *Planner) { pl.ledger = l }
}

// WithNotifiers sends every plan to each notifier in order.
func WithNotifiers(n ...ports.Notifier) Option {
	return func(pl *Planner) { pl.notifiers = append(pl.notifiers, n...) }
}

// WithSeasonality applies calendar multipliers to the hot list.
func WithSeasonality(s *seasonality.Service) Option {
	return func(pl *Planner) { pl.seasons = s }
}

// WithRecorder reports planning events.
func WithRecorder(r Recorder) Option {
	return func(pl *Planner) {
		if r != nil {
			pl.recorder = r
		}
	}
}

// New creates a Planner with every collaborator injected.
func New(cfg Config, opts ...Option) *Planner {
	p := &Planner{
		cfg:      cfg,
		seasons:  seasonality.NewService(""),
		recorder: nopRecorder{},
		now:      time.Now,
	}
	if cfg.Optimizer.Now != nil {
		p.now = cfg.Optimizer.Now
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Planner) mode() domain.PlanMode {
	if p.cfg.DryRun {
		return domain.PlanModeDryRun
	}
	return domain.PlanModeLive
}

// Plan runs snapshot → offers → hot list → optimizer → ledger → notifiers.
// Ledger and notifier failures are logged; the plan is still returned.
func (p *Planner) Plan(ctx context.Context, snap domain.Snapshot) (*Result, error) {
	start := time.Now()
	mode := p.mode()

	res, err := p.plan(ctx, snap, mode)
	if err != nil {
		p.recorder.PlanFailed(mode)
		return nil, err
	}

	if p.ledger != nil && !p.cfg.DryRun {
		if err := p.record(ctx, res.Plan); err != nil {
			slog.Warn("planner: ledger error", "run_id", res.Plan.Meta.RunID, "err", err)
		}
	}

	for _, n := range p.notifiers {
		if err := n.Notify(ctx, res.Plan); err != nil {
			slog.Warn("planner: notifier error", "err", err)
		}
	}

	took := time.Since(start)
	p.recorder.PlanCompleted(res.Plan, took)
	slog.Info("planner: run complete",
		"run_id", res.Plan.Meta.RunID,
		"mode", mode,
		"baskets", res.Plan.Summary.BasketCount,
		"units", res.Plan.Summary.UnitCount,
		"total", fmt.Sprintf("$%.2f", res.Plan.Summary.OverallTotal),
		"unmet_units", res.Plan.UnmetUnits(),
		"hot_list", len(res.HotList),
		"duration", took.Round(time.Millisecond),
	)
	return res, nil
}

func (p *Planner) plan(ctx context.Context, snap domain.Snapshot, mode domain.PlanMode) (*Result, error) {
	if err := domain.ValidateDirectives(snap.Directives); err != nil {
		return nil, fmt.Errorf("planner.Plan: %w", err)
	}

	offers, err := p.fetchOffers(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("planner.Plan: %w", err)
	}

	hot, err := p.HotList(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("planner.Plan: %w", err)
	}

	budget := snap.Budget
	if budget == nil {
		budget = p.cfg.DefaultBudget
	}

	opts := p.cfg.Optimizer
	opts.Mode = mode
	plan, err := optimizer.New(opts).Optimize(optimizer.Input{
		Demands:      snap.Demands,
		Offers:       offers,
		Directives:   snap.Directives,
		HotList:      ips.ShippingFillerCandidates(hot, p.cfg.IPS),
		Groups:       snap.Groups,
		AnchorPrices: snap.AnchorPrices,
		Inventory:    ips.InventoryFromMetrics(snap.Cards, snap.Inventory),
		Budget:       budget,
	})
	if err != nil {
		return nil, fmt.Errorf("planner.Plan: %w", err)
	}
	return &Result{Plan: plan, HotList: hot}, nil
}

// fetchOffers uses the snapshot's offers when it has any, otherwise asks the
// provider for every card the run may touch.
func (p *Planner) fetchOffers(ctx context.Context, snap domain.Snapshot) ([]domain.Offer, error) {
	if len(snap.Offers) > 0 || p.offers == nil {
		return snap.Offers, nil
	}
	ids := snap.CardIDs()
	if len(ids) == 0 {
		return nil, nil
	}
	offers, err := p.offers.FetchOffers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch offers: %w", err)
	}
	slog.Debug("planner: offers fetched", "cards", len(ids), "offers", len(offers))
	return offers, nil
}

// HotList scores every card in the snapshot, applying the seasonality
// multiplier for the snapshot date. A calendar that fails to load is logged
// and treated as neutral.
func (p *Planner) HotList(ctx context.Context, snap domain.Snapshot) ([]domain.IPSResult, error) {
	if len(snap.Cards) == 0 {
		return nil, nil
	}
	date := snap.AsOf
	if date.IsZero() {
		date = p.now()
	}

	var factor ips.FactorFunc
	if cal, err := p.seasons.Config(); err != nil {
		slog.Warn("planner: seasonality unavailable, using neutral factor", "err", err)
	} else {
		factor = func(card domain.CardMetrics) float64 {
			return seasonality.Factor(seasonality.CardFromMetrics(card), date, cal)
		}
	}

	inv := ips.InventoryFromMetrics(snap.Cards, snap.Inventory)
	hot, err := ips.GenerateHotList(ctx, snap.Cards, ips.NewGroupIndex(snap.Groups, inv), p.cfg.IPS, factor)
	if err != nil {
		return nil, fmt.Errorf("planner.HotList: %w", err)
	}
	p.recorder.HotListGenerated(hot)
	return hot, nil
}

// record writes the run header, its lines and the completion in order.
func (p *Planner) record(ctx context.Context, plan *domain.PurchasePlan) error {
	run := domain.RunRecord{
		RunID:     plan.Meta.RunID,
		StartedAt: plan.Meta.GeneratedAt,
		Status:    domain.RunStarted,
		Mode:      plan.Meta.Mode,
	}
	if plan.Budget != nil {
		run.BudgetMax = plan.Budget.MaxTotalSpend
	}
	if err := p.ledger.StartRun(ctx, run); err != nil {
		return err
	}
	if err := p.ledger.LogItems(ctx, run.RunID, domain.RunItemsFromPlan(*plan)); err != nil {
		return err
	}
	return p.ledger.CompleteRun(ctx, run.RunID, p.now(), plan.Summary.OverallTotal, plan.UnmetUnits())
}

// MarkPurchased records the realized unit price of a planned line.
func (p *Planner) MarkPurchased(ctx context.Context, runID, sellerID, cardID string, realizedPrice float64) error {
	if p.ledger == nil {
		return ErrNoLedger
	}
	if realizedPrice < 0 {
		return fmt.Errorf("planner.MarkPurchased: %w: %.2f", ErrInvalidPrice, realizedPrice)
	}
	if err := p.ledger.MarkItemPurchased(ctx, runID, sellerID, cardID, realizedPrice, p.now()); err != nil {
		return fmt.Errorf("planner.MarkPurchased: %w", err)
	}
	p.recorder.ItemPurchased()
	slog.Info("planner: item purchased", "run_id", runID, "seller", sellerID, "card", cardID, "price", realizedPrice)
	return nil
}

// Run returns the recorded run with predicted and realized totals.
func (p *Planner) Run(ctx context.Context, runID string) (domain.RunReport, error) {
	if p.ledger == nil {
		return domain.RunReport{}, ErrNoLedger
	}
	rep, err := p.ledger.GetRun(ctx, runID)
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("planner.Run: %w", err)
	}
	return rep, nil
}
