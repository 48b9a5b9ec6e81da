package domain

// Tier classifies how urgently a card should be stocked.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// CardMetrics are the inputs used to score a card for speculative purchase.
type CardMetrics struct {
	CardID              string   `json:"card_id" yaml:"card_id"`
	Name                string   `json:"name,omitempty" yaml:"name,omitempty"`
	DeckUsage           int      `json:"deck_usage" yaml:"deck_usage"`
	QueuedUsage         int      `json:"queued_usage" yaml:"queued_usage"`
	SalesVelocity       float64  `json:"sales_velocity" yaml:"sales_velocity"`
	LowInventoryAlert   bool     `json:"low_inventory_alert" yaml:"low_inventory_alert"`
	CurrentInventory    int      `json:"current_inventory" yaml:"current_inventory"`
	AnchorPrice         float64  `json:"anchor_price" yaml:"anchor_price"`
	MarketMedianPrice   float64  `json:"market_median_price" yaml:"market_median_price"`
	FormatBreadth       *float64 `json:"format_breadth,omitempty" yaml:"format_breadth,omitempty"`
	PriceStability      *float64 `json:"price_stability,omitempty" yaml:"price_stability,omitempty"`
	SubstitutionGroupID string   `json:"substitution_group_id,omitempty" yaml:"substitution_group_id,omitempty"`
	Tags                []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Formats             []string `json:"formats,omitempty" yaml:"formats,omitempty"`
}

// IPSComponents exposes each factor that went into an IPS score.
type IPSComponents struct {
	DemandRate        float64 `json:"demand_rate"`
	Liquidity         float64 `json:"liquidity"`
	Substitutability  float64 `json:"substitutability"`
	MarginSafety      float64 `json:"margin_safety"`
	SeasonalityFactor float64 `json:"seasonality_factor"`
}

// IPSResult is the inventory priority score of one card.
type IPSResult struct {
	CardID           string        `json:"card_id"`
	Name             string        `json:"name,omitempty"`
	IPS              float64       `json:"ips"`
	Tier             Tier          `json:"tier"`
	CurrentInventory int           `json:"current_inventory"`
	TargetInventory  int           `json:"target_inventory"`
	Deficit          int           `json:"deficit"`
	Components       IPSComponents `json:"components"`
	Reasons          []string      `json:"reasons"`
}
