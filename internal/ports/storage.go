package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/cardplanner/internal/domain"
)

// RunLedger records each planning run with its predicted spend, and the
// realized spend as items are bought.
type RunLedger interface {
	// StartRun inserts the run header with status "started".
	StartRun(ctx context.Context, run domain.RunRecord) error

	// LogItems records the planned lines of a run.
	LogItems(ctx context.Context, runID string, items []domain.RunItem) error

	// CompleteRun closes the run with its predicted total and unmet units.
	CompleteRun(ctx context.Context, runID string, completedAt time.Time, predictedTotal float64, unmetUnits int) error

	// MarkItemPurchased records the realized unit price of a planned line.
	MarkItemPurchased(ctx context.Context, runID, sellerID, cardID string, realizedPrice float64, at time.Time) error

	// GetRun returns the run with its items and predicted vs realized totals.
	GetRun(ctx context.Context, runID string) (domain.RunReport, error)

	// Close releases the underlying connection.
	Close() error
}
