package domain

// BudgetMode selects whether budget caps prevent purchases or only report them.
type BudgetMode string

const (
	// BudgetStrict blocks any purchase that would exceed a cap.
	BudgetStrict BudgetMode = "STRICT"
	// BudgetSoft lets demand exceed the total cap and records the overage.
	BudgetSoft BudgetMode = "SOFT"
)

// DefaultMaxCostRatio is the cost/retail ratio under which a basket counts
// as profitable.
const DefaultMaxCostRatio = 0.7

// BudgetConfig caps spend for one run. A zero cap means "no cap", except
// MaxTotalSpend which is always enforced when a config is supplied.
type BudgetConfig struct {
	MaxTotalSpend        float64    `json:"max_total_spend" yaml:"max_total_spend"`
	MaxPerSeller         float64    `json:"max_per_seller,omitempty" yaml:"max_per_seller,omitempty"`
	MaxPerCard           float64    `json:"max_per_card,omitempty" yaml:"max_per_card,omitempty"`
	MaxSpeculativeSpend  float64    `json:"max_speculative_spend,omitempty" yaml:"max_speculative_spend,omitempty"`
	ReserveBudgetPercent float64    `json:"reserve_budget_percent,omitempty" yaml:"reserve_budget_percent,omitempty"`
	MaxCostRatio         *float64   `json:"max_cost_ratio,omitempty" yaml:"max_cost_ratio,omitempty"`
	Mode                 BudgetMode `json:"budget_mode" yaml:"budget_mode"`
}

// IsStrict reports whether the config prevents overspend. An empty mode is
// treated as STRICT.
func (c BudgetConfig) IsStrict() bool {
	return c.Mode != BudgetSoft
}

// ReservedBudget is the slice of the total held back for fallback sourcing.
func (c BudgetConfig) ReservedBudget() float64 {
	if c.ReserveBudgetPercent <= 0 {
		return 0
	}
	return c.MaxTotalSpend * c.ReserveBudgetPercent / 100
}

// EffectiveBudget is the total available to primary demand.
func (c BudgetConfig) EffectiveBudget() float64 {
	return c.MaxTotalSpend - c.ReservedBudget()
}

// CostRatioLimit returns MaxCostRatio or the default.
func (c *BudgetConfig) CostRatioLimit() float64 {
	if c == nil || c.MaxCostRatio == nil {
		return DefaultMaxCostRatio
	}
	return *c.MaxCostRatio
}

// BudgetResult is the final budget report attached to a plan.
type BudgetResult struct {
	MaxTotalSpend      float64    `json:"max_total_spend"`
	Mode               BudgetMode `json:"budget_mode"`
	TotalSpend         float64    `json:"total_spend"`
	DemandSpend        float64    `json:"demand_spend"`
	SpeculativeSpend   float64    `json:"speculative_spend"`
	ShippingSpend      float64    `json:"shipping_spend"`
	ReservedBudget     float64    `json:"reserved_budget"`
	BudgetUtilization  float64    `json:"budget_utilization"`
	Warnings           []string   `json:"warnings"`
	HardBudgetExceeded bool       `json:"hard_budget_exceeded"`
}
