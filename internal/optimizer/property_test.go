package optimizer

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/alejandrodnm/cardplanner/internal/domain"
	"pgregory.net/rapid"
)

func cents(t *rapid.T, lo, hi int, label string) float64 {
	return float64(rapid.IntRange(lo, hi).Draw(t, label)) / 100
}

// genInput draws a small market: a few cards, a few sellers with their own
// shipping rules, random demand, an optional substitution group, an optional
// hot list and a budget.
func genInput(t *rapid.T) Input {
	nCards := rapid.IntRange(1, 5).Draw(t, "cards")
	nSellers := rapid.IntRange(1, 4).Draw(t, "sellers")

	cards := make([]string, nCards)
	anchors := make(map[string]float64)
	for i := range cards {
		cards[i] = fmt.Sprintf("c%d", i)
		if rapid.Bool().Draw(t, fmt.Sprintf("anchor-%d", i)) {
			anchors[cards[i]] = cents(t, 100, 3000, fmt.Sprintf("anchorPrice-%d", i))
		}
	}

	var offers []domain.Offer
	for s := 0; s < nSellers; s++ {
		seller := fmt.Sprintf("s%d", s)
		shipping := domain.Shipping{Base: cents(t, 0, 600, "shipBase-"+seller)}
		if rapid.Bool().Draw(t, "hasFreeAt-"+seller) {
			v := cents(t, 500, 6000, "freeAt-"+seller)
			shipping.FreeAt = &v
		}
		for _, c := range cards {
			if !rapid.Bool().Draw(t, "lists-"+seller+c) {
				continue
			}
			o := domain.Offer{
				Marketplace:       "tcg",
				SellerID:          seller,
				CardID:            c,
				Price:             cents(t, 25, 2500, "price-"+seller+c),
				QuantityAvailable: rapid.IntRange(0, 5).Draw(t, "qty-"+seller+c),
				Shipping:          shipping,
			}
			if rapid.Bool().Draw(t, "rated-"+seller+c) {
				r := float64(rapid.IntRange(0, 10).Draw(t, "rating-"+seller+c)) / 10
				o.SellerRating = &r
			}
			offers = append(offers, o)
		}
	}

	var demands []domain.Demand
	for i, c := range cards {
		if q := rapid.IntRange(0, 4).Draw(t, fmt.Sprintf("demand-%d", i)); q > 0 {
			demands = append(demands, domain.Demand{CardID: c, Quantity: q})
		}
	}

	var groups []domain.SubstitutionGroup
	if nCards >= 2 && rapid.Bool().Draw(t, "group") {
		groups = append(groups, domain.SubstitutionGroup{GroupID: "g", Cards: cards[:2]})
	}

	var hot []domain.IPSResult
	for i, c := range cards {
		if rapid.Bool().Draw(t, fmt.Sprintf("hot-%d", i)) {
			d := rapid.IntRange(1, 3).Draw(t, fmt.Sprintf("deficit-%d", i))
			hot = append(hot, domain.IPSResult{CardID: c, Tier: domain.TierA, TargetInventory: d, Deficit: d})
		}
	}

	budget := &domain.BudgetConfig{
		MaxTotalSpend:        float64(rapid.IntRange(5, 150).Draw(t, "maxTotal")),
		Mode:                 rapid.SampledFrom([]domain.BudgetMode{domain.BudgetStrict, domain.BudgetSoft}).Draw(t, "mode"),
		ReserveBudgetPercent: float64(rapid.IntRange(0, 30).Draw(t, "reserve")),
	}
	if rapid.Bool().Draw(t, "perSeller") {
		budget.MaxPerSeller = float64(rapid.IntRange(5, 60).Draw(t, "maxPerSeller"))
	}
	if rapid.Bool().Draw(t, "speculative") {
		budget.MaxSpeculativeSpend = float64(rapid.IntRange(1, 20).Draw(t, "maxSpec"))
	}

	return Input{
		Demands:      demands,
		Offers:       offers,
		HotList:      hot,
		Groups:       groups,
		AnchorPrices: anchors,
		Budget:       budget,
	}
}

// phases runs the pipeline stage by stage and returns every intermediate
// state, starting with the initial one.
func phases(in Input) (*pipeline, []*state) {
	opts := testOptions().withDefaults()
	prep := Preprocess(in.Demands, in.Directives, in.AnchorPrices)
	p := newPipeline(opts, in, prep)
	s0 := newState(in.Offers, prep.Demands)
	s1 := p.greedyAllocate(s0)
	s2 := p.optimizeShipping(s1)
	s3 := p.improve(s2)
	s4 := p.fallbackSource(s3)
	return p, []*state{s0, s1, s2, s3, s4}
}

func TestProperty_ConservationAndNonNegativity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := genInput(t)
		p, states := phases(in)

		stock := make(map[string]int)
		for _, o := range in.Offers {
			if o.QuantityAvailable > 0 {
				stock[o.CardID] += o.QuantityAvailable
			}
		}

		for phase, s := range states {
			left := make(map[string]int)
			for _, o := range s.offers {
				if o.QuantityAvailable < 0 {
					t.Fatalf("phase %d: negative stock for %s at %s", phase, o.CardID, o.SellerID)
				}
				left[o.CardID] += o.QuantityAvailable
			}

			bought := make(map[string]int)
			for id, b := range s.baskets {
				if math.Abs(b.CardSubtotal+b.ShippingCost-b.TotalCost) > 1e-9 {
					t.Fatalf("phase %d: basket %s total %.4f != %.4f + %.4f",
						phase, id, b.TotalCost, b.CardSubtotal, b.ShippingCost)
				}
				if (b.ShippingCost == 0) != (b.FreeShippingTriggered || b.Shipping.Base == 0) {
					t.Fatalf("phase %d: basket %s shipping %.2f inconsistent with free=%v",
						phase, id, b.ShippingCost, b.FreeShippingTriggered)
				}
				for card, q := range b.Items {
					if q <= 0 {
						t.Fatalf("phase %d: basket %s holds %d of %s", phase, id, q, card)
					}
					if id != p.fallbackID {
						bought[card] += q
					}
				}
			}

			for card, total := range stock {
				if bought[card]+left[card] != total {
					t.Fatalf("phase %d: card %s bought %d + left %d != stock %d",
						phase, card, bought[card], left[card], total)
				}
			}
			for card, n := range s.unmet {
				if n < 0 {
					t.Fatalf("phase %d: negative unmet %d for %s", phase, n, card)
				}
			}
		}
	})
}

func TestProperty_LaterPhasesNeverRaiseSpend(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		_, states := phases(genInput(t))
		s1, s2, s3 := states[1], states[2], states[3]

		if s2.totalSpend() > s1.totalSpend()+1e-6 {
			t.Fatalf("shipping optimization raised spend: %.4f -> %.4f", s1.totalSpend(), s2.totalSpend())
		}
		if s3.totalSpend() > s2.totalSpend()+1e-6 {
			t.Fatalf("local improvement raised spend: %.4f -> %.4f", s2.totalSpend(), s3.totalSpend())
		}
	})
}

func TestProperty_StrictContainment(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := genInput(t)
		in.Budget.Mode = domain.BudgetStrict

		plan, err := New(testOptions()).Optimize(in)
		if err != nil {
			t.Fatalf("optimize: %v", err)
		}
		if plan.Summary.OverallTotal > in.Budget.MaxTotalSpend {
			t.Fatalf("spent %.2f of %.2f in STRICT mode", plan.Summary.OverallTotal, in.Budget.MaxTotalSpend)
		}
		if plan.Budget.HardBudgetExceeded {
			t.Fatalf("hard budget flag set with total %.2f", plan.Summary.OverallTotal)
		}
		for _, b := range plan.Baskets {
			if in.Budget.MaxPerSeller > 0 && b.SellerID != "cardkingdom" && b.TotalCost > in.Budget.MaxPerSeller+0.005 {
				t.Fatalf("seller %s total %.2f over cap %.2f", b.SellerID, b.TotalCost, in.Budget.MaxPerSeller)
			}
		}
	})
}

func TestProperty_SoftOverageIsReported(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := genInput(t)
		in.Budget.Mode = domain.BudgetSoft

		plan, err := New(testOptions()).Optimize(in)
		if err != nil {
			t.Fatalf("optimize: %v", err)
		}
		if plan.Summary.OverallTotal <= in.Budget.MaxTotalSpend {
			return
		}
		found := false
		for _, w := range plan.Budget.Warnings {
			if strings.HasPrefix(w, "Soft Budget Limit Exceeded") {
				found = true
			}
		}
		if !found {
			t.Fatalf("overage %.2f > %.2f without soft warning: %v",
				plan.Summary.OverallTotal, in.Budget.MaxTotalSpend, plan.Budget.Warnings)
		}
		if plan.Budget.HardBudgetExceeded {
			t.Fatalf("hard budget flag set in SOFT mode")
		}
	})
}

func TestProperty_Deterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := genInput(t)

		a, errA := New(testOptions()).Optimize(in)
		b, errB := New(testOptions()).Optimize(in)
		if errA != nil || errB != nil {
			t.Fatalf("optimize: %v %v", errA, errB)
		}
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("plans differ:\n%+v\n%+v", *a, *b)
		}
	})
}
