package notify_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/cardplanner/internal/adapters/notify"
	"github.com/alejandrodnm/cardplanner/internal/domain"
)

func fptr(v float64) *float64 { return &v }

func bptr(v bool) *bool { return &v }

func makePlan() *domain.PurchasePlan {
	return &domain.PurchasePlan{
		Meta: domain.PlanMeta{
			RunID:       "run-42",
			GeneratedAt: time.Date(2025, 11, 1, 9, 30, 0, 0, time.UTC),
			Mode:        domain.PlanModeDryRun,
		},
		Baskets: []domain.PlanBasket{
			{
				SellerID:    "s1",
				Marketplace: "tcg",
				Items: []domain.PlanItem{
					{CardID: "sol-ring", Quantity: 2, UnitPrice: 1.5, LineTotal: 3, Reasons: []string{domain.ReasonDeckDemand}},
				},
				CardSubtotal: 3,
				ShippingCost: 1,
				TotalCost:    4,
				RetailTotal:  fptr(6),
				CostRatio:    fptr(0.67),
				IsProfitable: bptr(true),
			},
			{
				SellerID:              "s2",
				Marketplace:           "tcg",
				Items:                 []domain.PlanItem{{CardID: "arcane-signet", Quantity: 1, UnitPrice: 24, LineTotal: 24}},
				CardSubtotal:          24,
				FreeShippingTriggered: true,
				TotalCost:             24,
			},
		},
		Unmet:   []domain.Demand{{CardID: "mana-crypt", Quantity: 1}},
		Summary: domain.PlanSummary{OverallTotal: 28, CardTotal: 27, ShippingTotal: 1, BasketCount: 2, UnitCount: 3},
		Budget: &domain.BudgetResult{
			MaxTotalSpend:     30,
			Mode:              domain.BudgetStrict,
			TotalSpend:        28,
			BudgetUtilization: 28.0 / 30,
			Warnings:          []string{"Budget utilization at 93.3% (above 90%)"},
		},
	}
}

// --- Notify ---

func TestConsole_Notify_Compact(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, n.Notify(context.Background(), makePlan()))

	out := buf.String()
	assert.Contains(t, out, "[09:30:00] run-42: 2 baskets, 3 units, $28.00")
	assert.Contains(t, out, "unmet:1")
	assert.Contains(t, out, "budget 93.3%")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestConsole_Notify_Table(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	require.NoError(t, n.Notify(context.Background(), makePlan()))

	out := buf.String()
	assert.Contains(t, out, "sol-ring")
	assert.Contains(t, out, "arcane-signet")
	assert.Contains(t, out, "DECK_DEMAND")
	assert.Contains(t, out, "free shipping")
	assert.Contains(t, out, "ratio 0.67 profitable")
	assert.Contains(t, out, "mana-crypt")
	assert.Contains(t, out, "BUDGET (STRICT)")
	assert.Contains(t, out, "! Budget utilization at 93.3% (above 90%)")
	assert.Contains(t, out, "TOTAL: $28.00")
}

func TestConsole_Notify_EmptyPlan(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	plan := &domain.PurchasePlan{Unmet: []domain.Demand{{CardID: "mana-crypt", Quantity: 2}}}
	require.NoError(t, n.Notify(context.Background(), plan))

	assert.Contains(t, buf.String(), "no baskets planned")
	assert.Contains(t, buf.String(), "mana-crypt")
}

func TestConsole_Notify_LongCardTruncated(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	plan := makePlan()
	plan.Baskets[0].Items[0].CardID = strings.Repeat("a", 50)
	require.NoError(t, n.Notify(context.Background(), plan))

	assert.Contains(t, buf.String(), "...")
}

// --- Reports ---

func TestConsole_PrintHotList(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	n.PrintHotList([]domain.IPSResult{
		{CardID: "sol-ring", Name: "Sol Ring", IPS: 0.812, Tier: domain.TierA, TargetInventory: 8, Deficit: 6,
			Components: domain.IPSComponents{SeasonalityFactor: 1.2}},
	})

	out := buf.String()
	assert.Contains(t, out, "Sol Ring")
	assert.Contains(t, out, "0.812")
	assert.Contains(t, out, "x1.20")
}

func TestConsole_PrintHotList_Empty(t *testing.T) {
	var buf bytes.Buffer
	notify.NewConsoleWriter(&buf, true).PrintHotList(nil)
	assert.Contains(t, buf.String(), "No cards in the hot list")
}

func TestConsole_PrintRunReport(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	realized := 1.25
	rep := domain.BuildRunReport(
		domain.RunRecord{RunID: "run-42", Status: domain.RunCompleted},
		[]domain.RunItem{
			{SellerID: "s1", CardID: "sol-ring", Quantity: 2, PredictedUnitPrice: 1.5, Purchased: true, RealizedUnitPrice: &realized},
			{SellerID: "s2", CardID: "arcane-signet", Quantity: 1, PredictedUnitPrice: 24},
		},
	)
	n.PrintRunReport(rep)

	out := buf.String()
	assert.Contains(t, out, "RUN run-42 (completed)")
	assert.Contains(t, out, "$1.25")
	assert.Contains(t, out, "Predicted cards: $27.00 | Realized: $2.50 over 1/2 lines")
}

// --- Chart ---

func TestRenderPlanChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, notify.RenderPlanChart(&buf, makePlan()))

	out := buf.String()
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "Purchase plan run-42")
	assert.Contains(t, out, "Shipping")
}

func TestChartWriter_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.html")
	w := notify.NewChartWriter(path)

	require.NoError(t, w.Notify(context.Background(), makePlan()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "s1")
}
