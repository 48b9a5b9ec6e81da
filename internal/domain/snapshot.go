package domain

import "time"

// Snapshot is everything a caller supplies for one planning run.
type Snapshot struct {
	AsOf         time.Time           `json:"as_of" yaml:"as_of"`
	Demands      []Demand            `json:"demands" yaml:"demands"`
	Directives   []ManualDirective   `json:"directives,omitempty" yaml:"directives,omitempty"`
	Inventory    map[string]int      `json:"inventory,omitempty" yaml:"inventory,omitempty"`
	Cards        []CardMetrics       `json:"cards,omitempty" yaml:"cards,omitempty"`
	Groups       []SubstitutionGroup `json:"substitution_groups,omitempty" yaml:"substitution_groups,omitempty"`
	AnchorPrices map[string]float64  `json:"anchor_prices,omitempty" yaml:"anchor_prices,omitempty"`
	Budget       *BudgetConfig       `json:"budget,omitempty" yaml:"budget,omitempty"`
	Offers       []Offer             `json:"offers,omitempty" yaml:"offers,omitempty"`
}

// CardIDs returns every card the run may need offers for: demanded and
// directed cards, scored cards, and members of their substitution groups.
// Order follows first appearance.
func (s Snapshot) CardIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}
	for _, d := range s.Demands {
		add(d.CardID)
	}
	for _, d := range s.Directives {
		add(d.CardID)
	}
	for _, c := range s.Cards {
		add(c.CardID)
	}
	for _, g := range s.Groups {
		for _, c := range g.Cards {
			if seen[c] {
				for _, member := range g.Cards {
					add(member)
				}
				break
			}
		}
	}
	return ids
}
