package notify

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/alejandrodnm/cardplanner/internal/domain"
)

// ChartWriter implements ports.Notifier by rendering an HTML bar chart of
// spend per basket.
type ChartWriter struct {
	path string
}

// NewChartWriter renders every notified plan to path, overwriting it.
func NewChartWriter(path string) *ChartWriter {
	return &ChartWriter{path: path}
}

// Notify writes the chart file.
func (w *ChartWriter) Notify(_ context.Context, plan *domain.PurchasePlan) error {
	if plan == nil {
		return nil
	}
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("notify.ChartWriter: create %q: %w", w.path, err)
	}
	defer f.Close()

	if err := RenderPlanChart(f, plan); err != nil {
		return fmt.Errorf("notify.ChartWriter: %w", err)
	}
	return nil
}

// RenderPlanChart draws card subtotal and shipping per seller as stacked
// bars, plus the retail value where known.
func RenderPlanChart(out io.Writer, plan *domain.PurchasePlan) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  "900px",
			Height: "500px",
			Theme:  "light",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Purchase plan " + plan.Meta.RunID,
			Subtitle: fmt.Sprintf("total $%.2f over %d baskets", plan.Summary.OverallTotal, plan.Summary.BasketCount),
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
		}),
		charts.WithColorsOpts(opts.Colors{"#5470C6", "#FAC858", "#91CC75"}),
	)

	sellers := make([]string, len(plan.Baskets))
	cards := make([]opts.BarData, len(plan.Baskets))
	shipping := make([]opts.BarData, len(plan.Baskets))
	retail := make([]opts.BarData, len(plan.Baskets))
	for i, b := range plan.Baskets {
		sellers[i] = b.SellerID
		cards[i] = opts.BarData{Value: b.CardSubtotal}
		shipping[i] = opts.BarData{Value: b.ShippingCost}
		if b.RetailTotal != nil {
			retail[i] = opts.BarData{Value: *b.RetailTotal}
		} else {
			retail[i] = opts.BarData{Value: 0}
		}
	}

	bar.SetXAxis(sellers).
		AddSeries("Cards", cards, charts.WithBarChartOpts(opts.BarChart{Stack: "cost"})).
		AddSeries("Shipping", shipping, charts.WithBarChartOpts(opts.BarChart{Stack: "cost"})).
		AddSeries("Retail", retail).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{
				Show: opts.Bool(false),
			}),
		)

	if err := bar.Render(out); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
