// Package optimizer turns demand, offers and a budget into a purchase plan.
//
// The pipeline is strictly linear:
//
//	Preprocess → Greedy Allocate → Shipping Optimize → Local Improve → Fallback Source → Finalize
//
// Every stage receives a copy of the previous stage's state and returns a new
// one, so a stage never mutates what an earlier stage produced and callers'
// inputs are never touched.
package optimizer

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alejandrodnm/cardplanner/internal/domain"
	"github.com/google/uuid"
)

// Options tune the pipeline.
type Options struct {
	RatingLambda         float64         `yaml:"rating_lambda"`
	MaxImprovementPasses int             `yaml:"max_improvement_passes"`
	GraceQuantity        int             `yaml:"grace_quantity"`
	FallbackSellerID     string          `yaml:"fallback_seller_id"`
	FallbackMarketplace  string          `yaml:"fallback_marketplace"`
	FallbackShipping     domain.Shipping `yaml:"fallback_shipping"`
	Mode                 domain.PlanMode `yaml:"-"`

	Now    func() time.Time `yaml:"-"`
	RunID  func() string    `yaml:"-"`
	Logger *slog.Logger     `yaml:"-"`
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	freeAt := 50.0
	return Options{
		RatingLambda:         0.1,
		MaxImprovementPasses: 10,
		GraceQuantity:        0,
		FallbackSellerID:     "cardkingdom",
		FallbackMarketplace:  "cardkingdom",
		FallbackShipping:     domain.Shipping{Base: 5.99, FreeAt: &freeAt},
		Mode:                 domain.PlanModeLive,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RatingLambda < 0 {
		o.RatingLambda = d.RatingLambda
	}
	if o.MaxImprovementPasses <= 0 {
		o.MaxImprovementPasses = d.MaxImprovementPasses
	}
	if o.FallbackSellerID == "" {
		o.FallbackSellerID = d.FallbackSellerID
	}
	if o.FallbackMarketplace == "" {
		o.FallbackMarketplace = o.FallbackSellerID
	}
	if o.Mode == "" {
		o.Mode = d.Mode
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.RunID == nil {
		o.RunID = func() string { return uuid.NewString() }
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Input is one run's snapshot. The optimizer copies everything it mutates.
type Input struct {
	Demands      []domain.Demand
	Offers       []domain.Offer
	Directives   []domain.ManualDirective
	HotList      []domain.IPSResult
	Groups       []domain.SubstitutionGroup
	AnchorPrices map[string]float64
	Inventory    map[string]int
	Budget       *domain.BudgetConfig
}

// Optimizer runs the purchase pipeline. It is safe for concurrent use; each
// call works on private copies.
type Optimizer struct {
	opts Options
}

// New creates an Optimizer. A zero pass limit, fallback seller, mode, clock,
// run id or logger falls back to DefaultOptions. RatingLambda, GraceQuantity
// and FallbackShipping are used as given, so callers wanting the standard
// tuning start from DefaultOptions.
func New(opts Options) *Optimizer {
	return &Optimizer{opts: opts.withDefaults()}
}

// Optimize runs every phase and returns the plan. The only error is an
// invalid directive; everything else (unmet demand, budget overage) is
// reported in the plan.
func (o *Optimizer) Optimize(in Input) (*domain.PurchasePlan, error) {
	if err := domain.ValidateDirectives(in.Directives); err != nil {
		return nil, fmt.Errorf("optimizer.Optimize: %w", err)
	}

	prep := Preprocess(in.Demands, in.Directives, in.AnchorPrices)
	p := newPipeline(o.opts, in, prep)
	log := o.opts.Logger

	s0 := newState(in.Offers, prep.Demands)

	s1 := p.greedyAllocate(s0)
	log.Debug("optimizer: greedy allocation done", "baskets", len(s1.baskets), "unmet_units", s1.unmetUnits())

	s2 := p.optimizeShipping(s1)
	log.Debug("optimizer: shipping optimization done", "baskets", len(s2.baskets), "total", s2.totalSpend())

	s3 := p.improve(s2)
	log.Debug("optimizer: local improvement done", "moves", s3.moves, "total", s3.totalSpend())

	s4 := p.fallbackSource(s3)
	log.Debug("optimizer: fallback sourcing done", "unmet_units", s4.unmetUnits())

	plan := p.finalize(s4)
	log.Debug("optimizer: plan ready",
		"run_id", plan.Meta.RunID,
		"baskets", plan.Summary.BasketCount,
		"total", plan.Summary.OverallTotal,
	)
	return plan, nil
}

// pipeline holds the read-only context shared by every phase.
type pipeline struct {
	opts      Options
	budget    *domain.BudgetConfig
	anchors   map[string]float64
	maxPrice  map[string]float64
	demands   []domain.Demand
	demanded  map[string]bool
	prefer    map[string]map[string]bool // card → preferred sellers
	shipOnly  map[string]int             // card → units, 0 = unbounded
	groupOf   map[string]string          // card → group id
	groups    map[string][]string        // group id → cards
	active    map[string]bool            // group id → has a demanded card
	hotList   []domain.IPSResult
	inventory map[string]int

	offers       []domain.Offer
	byCard       map[string][]int // sorted by seller id
	bySeller     map[string][]int
	bySellerCard map[string][]int
	sellers      []string
	fallbackID   string
}

func newPipeline(opts Options, in Input, prep Prepared) *pipeline {
	p := &pipeline{
		opts:         opts,
		budget:       in.Budget,
		anchors:      in.AnchorPrices,
		maxPrice:     prep.MaxPrice,
		demands:      prep.Demands,
		demanded:     make(map[string]bool),
		prefer:       make(map[string]map[string]bool),
		shipOnly:     make(map[string]int),
		groupOf:      make(map[string]string),
		groups:       make(map[string][]string),
		active:       make(map[string]bool),
		hotList:      in.HotList,
		inventory:    in.Inventory,
		offers:       in.Offers,
		byCard:       make(map[string][]int),
		bySeller:     make(map[string][]int),
		bySellerCard: make(map[string][]int),
	}
	if p.anchors == nil {
		p.anchors = map[string]float64{}
	}
	for _, d := range prep.Demands {
		p.demanded[d.CardID] = true
	}
	for _, d := range in.Directives {
		switch d.Mode {
		case domain.DirectivePrefer:
			if d.SellerID == "" {
				continue
			}
			if p.prefer[d.CardID] == nil {
				p.prefer[d.CardID] = make(map[string]bool)
			}
			p.prefer[d.CardID][d.SellerID] = true
		case domain.DirectiveShipOnly:
			units := 0
			if d.Quantity != nil {
				units = *d.Quantity
			}
			p.shipOnly[d.CardID] = units
		}
	}
	for _, g := range in.Groups {
		for _, c := range g.Cards {
			if _, taken := p.groupOf[c]; taken {
				continue
			}
			p.groupOf[c] = g.GroupID
			p.groups[g.GroupID] = append(p.groups[g.GroupID], c)
			if p.demanded[c] {
				p.active[g.GroupID] = true
			}
		}
	}

	for i, off := range in.Offers {
		p.byCard[off.CardID] = append(p.byCard[off.CardID], i)
		if _, seen := p.bySeller[off.SellerID]; !seen {
			p.sellers = append(p.sellers, off.SellerID)
		}
		p.bySeller[off.SellerID] = append(p.bySeller[off.SellerID], i)
		key := sellerCardKey(off.SellerID, off.CardID)
		p.bySellerCard[key] = append(p.bySellerCard[key], i)
	}
	for _, idxs := range p.byCard {
		sort.SliceStable(idxs, func(a, b int) bool {
			oa, ob := in.Offers[idxs[a]], in.Offers[idxs[b]]
			if oa.SellerID != ob.SellerID {
				return oa.SellerID < ob.SellerID
			}
			return oa.Marketplace < ob.Marketplace
		})
	}
	sort.Strings(p.sellers)

	// The fallback retailer keeps its own basket and shipping rule even when
	// a marketplace seller shares its id.
	p.fallbackID = opts.FallbackSellerID
	for {
		if _, taken := p.bySeller[p.fallbackID]; !taken {
			break
		}
		p.fallbackID += "-fallback"
	}
	if p.fallbackID != opts.FallbackSellerID {
		opts.Logger.Warn("optimizer: fallback seller id taken by a marketplace seller",
			"seller_id", opts.FallbackSellerID,
			"fallback_id", p.fallbackID,
		)
	}
	return p
}

func sellerCardKey(seller, card string) string {
	return seller + "\x00" + card
}

// anchor returns the anchor retail price of a card, 0 when unknown.
func (p *pipeline) anchor(card string) float64 {
	return p.anchors[card]
}

// groupMates returns the other members of a card's substitution group.
func (p *pipeline) groupMates(card string) []string {
	gid, ok := p.groupOf[card]
	if !ok {
		return nil
	}
	var out []string
	for _, c := range p.groups[gid] {
		if c != card {
			out = append(out, c)
		}
	}
	return out
}

// inActiveGroup reports whether a card's group contains demanded cards.
func (p *pipeline) inActiveGroup(card string) bool {
	gid, ok := p.groupOf[card]
	return ok && p.active[gid]
}

// maxPerCard returns the per-unit price ceiling, 0 when uncapped.
func (p *pipeline) maxPerCard() float64 {
	if p.budget == nil {
		return 0
	}
	return p.budget.MaxPerCard
}

// underDemandCeiling applies the demand's max price, explicit or derived
// from the anchor, to one unit of card.
func (p *pipeline) underDemandCeiling(card string, price float64) bool {
	limit, ok := p.maxPrice[card]
	return !ok || price <= limit+epsilon
}

// priceAllowed applies the hard per-card price cap.
func (p *pipeline) priceAllowed(price float64) bool {
	limit := p.maxPerCard()
	return limit <= 0 || price <= limit+epsilon
}
