package domain

import "time"

// PlanMode describes how a plan is meant to be used.
type PlanMode string

const (
	PlanModeLive   PlanMode = "live"
	PlanModeDryRun PlanMode = "dry_run"
)

// PlanMeta identifies one optimizer run.
type PlanMeta struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Mode        PlanMode  `json:"mode"`
}

// PlanItem is one card line inside a basket.
type PlanItem struct {
	CardID      string   `json:"card_id"`
	Quantity    int      `json:"quantity"`
	UnitPrice   float64  `json:"unit_price"`
	LineTotal   float64  `json:"line_total"`
	AnchorPrice *float64 `json:"anchor_price,omitempty"`
	Reasons     []string `json:"reasons"`
}

// PlanBasket is the serializable view of a seller basket.
type PlanBasket struct {
	SellerID              string     `json:"seller_id"`
	Marketplace           string     `json:"marketplace"`
	Items                 []PlanItem `json:"items"`
	CardSubtotal          float64    `json:"card_subtotal"`
	ShippingCost          float64    `json:"shipping_cost"`
	FreeShippingTriggered bool       `json:"free_shipping_triggered"`
	TotalCost             float64    `json:"total_cost"`
	RetailTotal           *float64   `json:"retail_total,omitempty"`
	CostRatio             *float64   `json:"cost_ratio,omitempty"`
	IsProfitable          *bool      `json:"is_profitable,omitempty"`
}

// Units returns the number of units in the basket.
func (b PlanBasket) Units() int {
	n := 0
	for _, it := range b.Items {
		n += it.Quantity
	}
	return n
}

// PlanSummary aggregates every basket.
type PlanSummary struct {
	OverallTotal  float64 `json:"overall_total"`
	CardTotal     float64 `json:"card_total"`
	ShippingTotal float64 `json:"shipping_total"`
	BasketCount   int     `json:"basket_count"`
	UnitCount     int     `json:"unit_count"`
}

// PurchasePlan is the optimizer output: baskets sorted by seller id, demand
// that could not be sourced, and an optional budget report.
type PurchasePlan struct {
	Meta    PlanMeta      `json:"meta"`
	Baskets []PlanBasket  `json:"baskets"`
	Unmet   []Demand      `json:"unmet"`
	Summary PlanSummary   `json:"summary"`
	Budget  *BudgetResult `json:"budget,omitempty"`
}

// UnmetUnits returns the total number of units that could not be sourced.
func (p PurchasePlan) UnmetUnits() int {
	n := 0
	for _, d := range p.Unmet {
		n += d.Quantity
	}
	return n
}

// Basket returns the basket for a seller, if present.
func (p PurchasePlan) Basket(sellerID string) (PlanBasket, bool) {
	for _, b := range p.Baskets {
		if b.SellerID == sellerID {
			return b, true
		}
	}
	return PlanBasket{}, false
}
