package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestManualDirective_Validate(t *testing.T) {
	cases := []struct {
		name    string
		d       ManualDirective
		wantErr bool
	}{
		{"force default quantity", ManualDirective{CardID: "c1", Mode: DirectiveForce}, false},
		{"prefer with seller", ManualDirective{CardID: "c1", Mode: DirectivePrefer, SellerID: "s1"}, false},
		{"prefer without seller", ManualDirective{CardID: "c1", Mode: DirectivePrefer}, false},
		{"ship only", ManualDirective{CardID: "c1", Mode: DirectiveShipOnly, Quantity: intPtr(2)}, false},
		{"missing card", ManualDirective{Mode: DirectiveForce}, true},
		{"unknown mode", ManualDirective{CardID: "c1", Mode: "HOARD"}, true},
		{"zero quantity", ManualDirective{CardID: "c1", Mode: DirectiveForce, Quantity: intPtr(0)}, true},
		{"negative quantity", ManualDirective{CardID: "c1", Mode: DirectiveForce, Quantity: intPtr(-3)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.d.Validate()
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidDirective))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateDirectives_ReportsIndex(t *testing.T) {
	err := ValidateDirectives([]ManualDirective{
		{CardID: "ok", Mode: DirectiveForce},
		{CardID: "bad", Mode: "nope"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDirective)
	assert.Contains(t, err.Error(), "directive 1")
}

func TestManualDirective_Units(t *testing.T) {
	assert.Equal(t, 1, ManualDirective{}.Units())
	assert.Equal(t, 4, ManualDirective{Quantity: intPtr(4)}.Units())
}

func TestOffer_Rating(t *testing.T) {
	assert.Equal(t, 1.0, Offer{}.Rating())
	assert.Equal(t, 0.8, Offer{SellerRating: ptr(0.8)}.Rating())
}

func TestShipping_CostFor(t *testing.T) {
	s := Shipping{Base: 5, FreeAt: ptr(50)}
	assert.Equal(t, 5.0, s.CostFor(49.99))
	assert.Equal(t, 0.0, s.CostFor(50))
	assert.Equal(t, 5.0, Shipping{Base: 5}.CostFor(1000), "no threshold means always pay")
	assert.Equal(t, 0.0, Shipping{}.CostFor(1))
}

func TestBudgetConfig_Reserve(t *testing.T) {
	c := BudgetConfig{MaxTotalSpend: 200, ReserveBudgetPercent: 10}
	assert.Equal(t, 20.0, c.ReservedBudget())
	assert.Equal(t, 180.0, c.EffectiveBudget())
	assert.True(t, c.IsStrict())
	assert.False(t, BudgetConfig{Mode: BudgetSoft}.IsStrict())
	assert.Equal(t, DefaultMaxCostRatio, (*BudgetConfig)(nil).CostRatioLimit())
}

func TestSnapshot_CardIDsIncludesGroupMembers(t *testing.T) {
	s := Snapshot{
		Demands:    []Demand{{CardID: "bolt", Quantity: 2}},
		Directives: []ManualDirective{{CardID: "filler", Mode: DirectiveShipOnly}},
		Groups: []SubstitutionGroup{
			{GroupID: "burn", Cards: []string{"chain", "bolt"}},
			{GroupID: "other", Cards: []string{"x", "y"}},
		},
	}
	assert.Equal(t, []string{"bolt", "filler", "chain"}, s.CardIDs())
}

func TestBuildRunReport(t *testing.T) {
	realized := 4.5
	items := []RunItem{
		{CardID: "a", Quantity: 2, PredictedUnitPrice: 5, Purchased: true, RealizedUnitPrice: &realized},
		{CardID: "b", Quantity: 1, PredictedUnitPrice: 3},
	}
	r := BuildRunReport(RunRecord{RunID: "r1"}, items)
	assert.Equal(t, 13.0, r.PredictedCards)
	assert.Equal(t, 9.0, r.RealizedCards)
	assert.Equal(t, 1, r.PurchasedItems)
}
