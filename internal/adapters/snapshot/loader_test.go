package snapshot_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/cardplanner/internal/adapters/snapshot"
	"github.com/alejandrodnm/cardplanner/internal/domain"
)

const yamlSnapshot = `
as_of: 2025-11-01T12:00:00Z
demands:
  - card_id: sol-ring
    quantity: 4
  - card_id: arcane-signet
    quantity: 2
    max_price: 1.5
directives:
  - card_id: mana-crypt
    mode: FORCE
    quantity: 1
  - card_id: sol-ring
    mode: PREFER
    seller_id: s1
inventory:
  sol-ring: 1
cards:
  - card_id: sol-ring
    deck_usage: 12
    sales_velocity: 3
    current_inventory: 1
    anchor_price: 2.0
    market_median_price: 1.4
    tags: [commander]
substitution_groups:
  - group_id: rocks
    cards: [arcane-signet, mind-stone]
anchor_prices:
  sol-ring: 2.0
budget:
  max_total_spend: 100
  budget_mode: SOFT
  reserve_budget_percent: 10
offers:
  - marketplace: tcg
    seller_id: s1
    card_id: sol-ring
    price: 1.2
    quantity_available: 3
    shipping:
      base: 1.5
      free_at: 20
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_YAML(t *testing.T) {
	snap, err := snapshot.LoadFile(writeFile(t, "snap.yaml", yamlSnapshot))
	require.NoError(t, err)

	assert.Equal(t, 2025, snap.AsOf.Year())
	require.Len(t, snap.Demands, 2)
	require.NotNil(t, snap.Demands[1].MaxPrice)
	assert.InDelta(t, 1.5, *snap.Demands[1].MaxPrice, 1e-9)

	require.Len(t, snap.Directives, 2)
	assert.Equal(t, domain.DirectivePrefer, snap.Directives[1].Mode)
	assert.Equal(t, "s1", snap.Directives[1].SellerID)

	assert.Equal(t, 1, snap.Inventory["sol-ring"])
	require.Len(t, snap.Cards, 1)
	assert.Equal(t, []string{"commander"}, snap.Cards[0].Tags)
	assert.Equal(t, []string{"arcane-signet", "mind-stone"}, snap.Groups[0].Cards)

	require.NotNil(t, snap.Budget)
	assert.Equal(t, domain.BudgetSoft, snap.Budget.Mode)
	assert.InDelta(t, 10, snap.Budget.ReserveBudgetPercent, 1e-9)

	require.Len(t, snap.Offers, 1)
	require.NotNil(t, snap.Offers[0].Shipping.FreeAt)
	assert.InDelta(t, 20, *snap.Offers[0].Shipping.FreeAt, 1e-9)

	// groups pull in their members once one of them is needed
	assert.Equal(t, []string{"sol-ring", "arcane-signet", "mana-crypt", "mind-stone"}, snap.CardIDs())
}

func TestLoadFile_JSON(t *testing.T) {
	path := writeFile(t, "snap.json", `{
		"demands": [{"card_id": "sol-ring", "quantity": 1}],
		"budget": {"max_total_spend": 10, "budget_mode": "STRICT"}
	}`)

	snap, err := snapshot.LoadFile(path)
	require.NoError(t, err)
	require.Len(t, snap.Demands, 1)
	assert.True(t, snap.Budget.IsStrict())
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		name string
		data string
		ext  string
	}{
		{"unknown format", "demands: []", ".xml"},
		{"unknown yaml field", "demandz: []", ".yaml"},
		{"unknown json field", `{"demandz": []}`, ".json"},
		{"missing card id", "demands:\n  - quantity: 1", ".yaml"},
		{"negative quantity", "demands:\n  - card_id: x\n    quantity: -1", ".yaml"},
		{"negative budget", "budget:\n  max_total_spend: -5", ".yaml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := snapshot.Parse([]byte(tc.data), tc.ext)
			assert.Error(t, err)
		})
	}
}

func TestParse_InvalidDirective(t *testing.T) {
	_, err := snapshot.Parse([]byte("directives:\n  - card_id: x\n    mode: MAYBE"), ".yaml")
	assert.ErrorIs(t, err, domain.ErrInvalidDirective)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := snapshot.LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
