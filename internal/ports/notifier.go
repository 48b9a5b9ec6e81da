package ports

import (
	"context"

	"github.com/alejandrodnm/cardplanner/internal/domain"
)

// Notifier presents a finished plan to the user.
type Notifier interface {
	// Notify renders the plan. The console implementation prints one table
	// per basket followed by the budget report.
	Notify(ctx context.Context, plan *domain.PurchasePlan) error
}
