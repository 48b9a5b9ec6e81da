package domain

import (
	"strings"
	"time"
)

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

const (
	RunStarted   RunStatus = "started"
	RunCompleted RunStatus = "completed"
)

// RunRecord is the ledger header of one planning run.
type RunRecord struct {
	RunID          string     `json:"run_id"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Status         RunStatus  `json:"status"`
	Mode           PlanMode   `json:"mode"`
	BudgetMax      float64    `json:"budget_max"`
	PredictedTotal float64    `json:"predicted_total"`
	UnmetUnits     int        `json:"unmet_units"`
}

// RunItem is one planned (and possibly purchased) card line.
type RunItem struct {
	RunID              string     `json:"run_id"`
	SellerID           string     `json:"seller_id"`
	Marketplace        string     `json:"marketplace"`
	CardID             string     `json:"card_id"`
	Quantity           int        `json:"quantity"`
	PredictedUnitPrice float64    `json:"predicted_unit_price"`
	Reasons            []string   `json:"reasons"`
	Purchased          bool       `json:"purchased"`
	RealizedUnitPrice  *float64   `json:"realized_unit_price,omitempty"`
	PurchasedAt        *time.Time `json:"purchased_at,omitempty"`
}

// PredictedTotal is the planned spend on the line.
func (i RunItem) PredictedTotal() float64 {
	return float64(i.Quantity) * i.PredictedUnitPrice
}

// RunReport compares predicted with realized spend for a run.
type RunReport struct {
	Run            RunRecord `json:"run"`
	Items          []RunItem `json:"items"`
	PredictedCards float64   `json:"predicted_cards"`
	RealizedCards  float64   `json:"realized_cards"`
	PurchasedItems int       `json:"purchased_items"`
}

// BuildRunReport totals predicted and realized card spend.
func BuildRunReport(run RunRecord, items []RunItem) RunReport {
	r := RunReport{Run: run, Items: items}
	for _, it := range items {
		r.PredictedCards += it.PredictedTotal()
		if it.Purchased {
			r.PurchasedItems++
			if it.RealizedUnitPrice != nil {
				r.RealizedCards += float64(it.Quantity) * *it.RealizedUnitPrice
			}
		}
	}
	r.PredictedCards = RoundMoney(r.PredictedCards)
	r.RealizedCards = RoundMoney(r.RealizedCards)
	return r
}

// RunItemsFromPlan flattens a plan into ledger lines.
func RunItemsFromPlan(plan PurchasePlan) []RunItem {
	var items []RunItem
	for _, b := range plan.Baskets {
		for _, it := range b.Items {
			items = append(items, RunItem{
				RunID:              plan.Meta.RunID,
				SellerID:           b.SellerID,
				Marketplace:        b.Marketplace,
				CardID:             it.CardID,
				Quantity:           it.Quantity,
				PredictedUnitPrice: it.UnitPrice,
				Reasons:            append([]string(nil), it.Reasons...),
			})
		}
	}
	return items
}

// JoinReasons encodes reasons for storage.
func JoinReasons(reasons []string) string {
	return strings.Join(reasons, ",")
}

// SplitReasons decodes reasons stored with JoinReasons.
func SplitReasons(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
