package optimizer

import (
	"fmt"

	"github.com/alejandrodnm/cardplanner/internal/domain"
)

// Utilization warning levels, highest first.
var utilizationLevels = []float64{95, 90, 80}

// finalize converts the basket state into a plan sorted by seller id and
// builds the budget report.
func (p *pipeline) finalize(s *state) *domain.PurchasePlan {
	plan := &domain.PurchasePlan{
		Meta: domain.PlanMeta{
			RunID:       p.opts.RunID(),
			GeneratedAt: p.opts.Now().UTC(),
			Mode:        p.opts.Mode,
		},
		Baskets: []domain.PlanBasket{},
		Unmet:   []domain.Demand{},
	}

	var totals, cards, shipping []float64
	limit := p.budget.CostRatioLimit()
	for _, seller := range s.sellerIDs() {
		b := s.baskets[seller]
		if b.IsEmpty() {
			continue
		}
		pb := p.planBasket(b, limit)
		plan.Baskets = append(plan.Baskets, pb)
		plan.Summary.UnitCount += pb.Units()
		totals = append(totals, b.TotalCost)
		cards = append(cards, b.CardSubtotal)
		shipping = append(shipping, b.ShippingCost)
	}
	plan.Summary.BasketCount = len(plan.Baskets)
	plan.Summary.OverallTotal = domain.SumMoney(totals...)
	plan.Summary.CardTotal = domain.SumMoney(cards...)
	plan.Summary.ShippingTotal = domain.SumMoney(shipping...)

	for _, d := range p.demands {
		if n := s.unmet[d.CardID]; n > 0 {
			u := domain.Demand{CardID: d.CardID, Quantity: n}
			if d.MaxPrice != nil {
				v := *d.MaxPrice
				u.MaxPrice = &v
			}
			plan.Unmet = append(plan.Unmet, u)
		}
	}

	if p.budget != nil {
		plan.Budget = p.budgetReport(s, plan.Summary)
	}
	return plan
}

func (p *pipeline) planBasket(b *domain.SellerBasket, costRatioLimit float64) domain.PlanBasket {
	pb := domain.PlanBasket{
		SellerID:              b.SellerID,
		Marketplace:           b.Marketplace,
		CardSubtotal:          domain.RoundMoney(b.CardSubtotal),
		ShippingCost:          domain.RoundMoney(b.ShippingCost),
		FreeShippingTriggered: b.FreeShippingTriggered,
		TotalCost:             domain.RoundMoney(b.TotalCost),
	}

	retail := 0.0
	retailKnown := true
	for _, card := range b.CardIDs() {
		qty := b.Items[card]
		unit := b.UnitPrice(card)
		item := domain.PlanItem{
			CardID:    card,
			Quantity:  qty,
			UnitPrice: domain.RoundMoney(unit),
			LineTotal: domain.RoundMoney(unit * float64(qty)),
			Reasons:   append([]string{}, b.Reasons[card]...),
		}
		if a := p.anchor(card); a > 0 {
			v := a
			item.AnchorPrice = &v
			retail += a * float64(qty)
		} else {
			retailKnown = false
		}
		pb.Items = append(pb.Items, item)
	}

	if retailKnown && retail > 0 {
		r := domain.RoundMoney(retail)
		ratio := domain.Round4(b.TotalCost / retail)
		profitable := ratio <= costRatioLimit+epsilon
		pb.RetailTotal = &r
		pb.CostRatio = &ratio
		pb.IsProfitable = &profitable
	}
	return pb
}

// budgetReport summarizes spend against the budget with graduated warnings.
func (p *pipeline) budgetReport(s *state, sum domain.PlanSummary) *domain.BudgetResult {
	cfg := p.budget
	spec := domain.RoundMoney(s.speculativeSpend())
	r := &domain.BudgetResult{
		MaxTotalSpend:    cfg.MaxTotalSpend,
		Mode:             cfg.Mode,
		TotalSpend:       sum.OverallTotal,
		SpeculativeSpend: spec,
		DemandSpend:      domain.RoundMoney(sum.CardTotal - spec),
		ShippingSpend:    sum.ShippingTotal,
		ReservedBudget:   domain.RoundMoney(cfg.ReservedBudget()),
		Warnings:         []string{},
	}
	if r.Mode == "" {
		r.Mode = domain.BudgetStrict
	}
	if cfg.MaxTotalSpend > 0 {
		r.BudgetUtilization = domain.RoundMoney(sum.OverallTotal / cfg.MaxTotalSpend * 100)
	}

	for _, level := range utilizationLevels {
		if r.BudgetUtilization >= level {
			r.Warnings = append(r.Warnings,
				fmt.Sprintf("Budget utilization at %.1f%% (above %.0f%%)", r.BudgetUtilization, level))
			break
		}
	}

	if sum.OverallTotal > cfg.MaxTotalSpend+epsilon {
		over := domain.RoundMoney(sum.OverallTotal - cfg.MaxTotalSpend)
		if cfg.IsStrict() {
			r.HardBudgetExceeded = true
			r.Warnings = append(r.Warnings,
				fmt.Sprintf("HARD BUDGET EXCEEDED: spent $%.2f of $%.2f (over by $%.2f)", sum.OverallTotal, cfg.MaxTotalSpend, over))
		} else {
			r.Warnings = append(r.Warnings,
				fmt.Sprintf("Soft Budget Limit Exceeded: spent $%.2f of $%.2f (over by $%.2f)", sum.OverallTotal, cfg.MaxTotalSpend, over))
		}
	}

	if cfg.MaxSpeculativeSpend > 0 && spec > cfg.MaxSpeculativeSpend+epsilon {
		r.Warnings = append(r.Warnings,
			fmt.Sprintf("Speculative spend $%.2f exceeds limit $%.2f", spec, cfg.MaxSpeculativeSpend))
	}
	return r
}
