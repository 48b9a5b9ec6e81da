package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/cardplanner/internal/adapters/storage"
	"github.com/alejandrodnm/cardplanner/internal/domain"
	"github.com/alejandrodnm/cardplanner/internal/ports"
)

var startedAt = time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)

func makeRun(id string) domain.RunRecord {
	return domain.RunRecord{
		RunID:     id,
		StartedAt: startedAt,
		Mode:      domain.PlanModeLive,
		BudgetMax: 100,
	}
}

func makeItems(runID string) []domain.RunItem {
	return []domain.RunItem{
		{RunID: runID, SellerID: "s2", Marketplace: "tcg", CardID: "sol-ring", Quantity: 2, PredictedUnitPrice: 1.5,
			Reasons: []string{domain.ReasonDeckDemand}},
		{RunID: runID, SellerID: "s1", Marketplace: "tcg", CardID: "arcane-signet", Quantity: 1, PredictedUnitPrice: 0.75,
			Reasons: []string{domain.ReasonDeckDemand, domain.ReasonShippingOptimization}},
	}
}

// runLedgerContract exercises the behavior every ports.RunLedger must share.
func runLedgerContract(t *testing.T, newLedger func(t *testing.T) ports.RunLedger) {
	ctx := context.Background()

	t.Run("FullLifecycle", func(t *testing.T) {
		l := newLedger(t)
		runID := "run-lifecycle-" + uuid.NewString()

		require.NoError(t, l.StartRun(ctx, makeRun(runID)))
		require.NoError(t, l.LogItems(ctx, runID, makeItems(runID)))
		require.NoError(t, l.CompleteRun(ctx, runID, startedAt.Add(time.Minute), 3.75, 1))
		require.NoError(t, l.MarkItemPurchased(ctx, runID, "s2", "sol-ring", 1.25, startedAt.Add(time.Hour)))

		rep, err := l.GetRun(ctx, runID)
		require.NoError(t, err)

		assert.Equal(t, domain.RunCompleted, rep.Run.Status)
		require.NotNil(t, rep.Run.CompletedAt)
		assert.True(t, rep.Run.CompletedAt.Equal(startedAt.Add(time.Minute)))
		assert.True(t, rep.Run.StartedAt.Equal(startedAt))
		assert.InDelta(t, 3.75, rep.Run.PredictedTotal, 0.001)
		assert.InDelta(t, 100, rep.Run.BudgetMax, 0.001)
		assert.Equal(t, 1, rep.Run.UnmetUnits)

		require.Len(t, rep.Items, 2)
		// ordered by seller then card
		assert.Equal(t, "s1", rep.Items[0].SellerID)
		assert.Equal(t, []string{domain.ReasonDeckDemand, domain.ReasonShippingOptimization}, rep.Items[0].Reasons)
		assert.False(t, rep.Items[0].Purchased)
		assert.Nil(t, rep.Items[0].RealizedUnitPrice)

		sol := rep.Items[1]
		assert.Equal(t, "sol-ring", sol.CardID)
		assert.True(t, sol.Purchased)
		require.NotNil(t, sol.RealizedUnitPrice)
		assert.InDelta(t, 1.25, *sol.RealizedUnitPrice, 0.001)
		require.NotNil(t, sol.PurchasedAt)

		assert.InDelta(t, 3.75, rep.PredictedCards, 0.001)
		assert.InDelta(t, 2.5, rep.RealizedCards, 0.001)
		assert.Equal(t, 1, rep.PurchasedItems)
	})

	t.Run("LogItemsUpserts", func(t *testing.T) {
		l := newLedger(t)
		runID := "run-upsert-" + uuid.NewString()

		require.NoError(t, l.StartRun(ctx, makeRun(runID)))
		require.NoError(t, l.LogItems(ctx, runID, makeItems(runID)))

		update := []domain.RunItem{{RunID: runID, SellerID: "s2", Marketplace: "tcg", CardID: "sol-ring", Quantity: 3, PredictedUnitPrice: 1.4}}
		require.NoError(t, l.LogItems(ctx, runID, update))

		rep, err := l.GetRun(ctx, runID)
		require.NoError(t, err)
		require.Len(t, rep.Items, 2)
		assert.Equal(t, 3, rep.Items[1].Quantity)
		assert.InDelta(t, 1.4, rep.Items[1].PredictedUnitPrice, 0.001)
		assert.Empty(t, rep.Items[1].Reasons)
	})

	t.Run("EmptyItemsIsNoop", func(t *testing.T) {
		l := newLedger(t)
		assert.NoError(t, l.LogItems(ctx, "whatever", nil))
	})

	t.Run("UnknownRun", func(t *testing.T) {
		l := newLedger(t)

		missing := "missing-" + uuid.NewString()

		_, err := l.GetRun(ctx, missing)
		assert.ErrorIs(t, err, storage.ErrRunNotFound)

		err = l.LogItems(ctx, missing, makeItems(missing))
		assert.ErrorIs(t, err, storage.ErrRunNotFound)

		err = l.CompleteRun(ctx, missing, startedAt, 0, 0)
		assert.ErrorIs(t, err, storage.ErrRunNotFound)

		err = l.MarkItemPurchased(ctx, missing, "s1", "sol-ring", 1, startedAt)
		assert.ErrorIs(t, err, storage.ErrRunNotFound)
	})

	t.Run("UnknownItem", func(t *testing.T) {
		l := newLedger(t)
		runID := "run-item-" + uuid.NewString()
		require.NoError(t, l.StartRun(ctx, makeRun(runID)))

		err := l.MarkItemPurchased(ctx, runID, "s9", "sol-ring", 1, startedAt)
		assert.ErrorIs(t, err, storage.ErrItemNotFound)
	})

	t.Run("DuplicateRunRejected", func(t *testing.T) {
		l := newLedger(t)
		runID := "run-dup-" + uuid.NewString()
		require.NoError(t, l.StartRun(ctx, makeRun(runID)))
		assert.Error(t, l.StartRun(ctx, makeRun(runID)))
	})
}
