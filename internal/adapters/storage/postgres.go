package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/cardplanner/internal/domain"
)

// Money columns are NUMERIC so predicted and realized spend add up exactly.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id          TEXT PRIMARY KEY,
    started_at      TIMESTAMPTZ   NOT NULL,
    completed_at    TIMESTAMPTZ,
    status          TEXT          NOT NULL,
    mode            TEXT          NOT NULL,
    budget_max      NUMERIC(12,2) NOT NULL DEFAULT 0,
    predicted_total NUMERIC(12,2) NOT NULL DEFAULT 0,
    unmet_units     INTEGER       NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS run_items (
    id                   BIGSERIAL PRIMARY KEY,
    run_id               TEXT          NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    seller_id            TEXT          NOT NULL,
    marketplace          TEXT          NOT NULL,
    card_id              TEXT          NOT NULL,
    quantity             INTEGER       NOT NULL,
    predicted_unit_price NUMERIC(12,2) NOT NULL,
    reasons              TEXT          NOT NULL DEFAULT '',
    purchased            BOOLEAN       NOT NULL DEFAULT FALSE,
    realized_unit_price  NUMERIC(12,2),
    purchased_at         TIMESTAMPTZ,
    UNIQUE (run_id, seller_id, card_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_run_items_card ON run_items(card_id);
`

// PostgresLedger implements ports.RunLedger on PostgreSQL.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger connects to dsn and applies the schema.
func NewPostgresLedger(ctx context.Context, dsn string) (*PostgresLedger, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.NewPostgresLedger: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage.NewPostgresLedger: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage.NewPostgresLedger: apply schema: %w", err)
	}
	return &PostgresLedger{pool: pool}, nil
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func parseMoney(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}

// StartRun inserts the run header.
func (s *PostgresLedger) StartRun(ctx context.Context, run domain.RunRecord) error {
	status := run.Status
	if status == "" {
		status = domain.RunStarted
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (run_id, started_at, status, mode, budget_max, predicted_total, unmet_units)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7)`,
		run.RunID, run.StartedAt.UTC(), string(status), string(run.Mode),
		money(run.BudgetMax), money(run.PredictedTotal), run.UnmetUnits,
	)
	if err != nil {
		return fmt.Errorf("storage.StartRun: insert run: %w", err)
	}
	return nil
}

// LogItems upserts the planned lines of a run in one transaction.
func (s *PostgresLedger) LogItems(ctx context.Context, runID string, items []domain.RunItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage.LogItems: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM runs WHERE run_id = $1)`, runID).Scan(&exists); err != nil {
		return fmt.Errorf("storage.LogItems: check run: %w", err)
	}
	if !exists {
		return fmt.Errorf("storage.LogItems: %s: %w", runID, ErrRunNotFound)
	}

	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(`
			INSERT INTO run_items (run_id, seller_id, marketplace, card_id, quantity, predicted_unit_price, reasons)
			VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7)
			ON CONFLICT (run_id, seller_id, card_id) DO UPDATE SET
				marketplace          = EXCLUDED.marketplace,
				quantity             = EXCLUDED.quantity,
				predicted_unit_price = EXCLUDED.predicted_unit_price,
				reasons              = EXCLUDED.reasons`,
			runID, it.SellerID, it.Marketplace, it.CardID, it.Quantity,
			money(it.PredictedUnitPrice), domain.JoinReasons(it.Reasons),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("storage.LogItems: upsert: %w", err)
	}
	return tx.Commit(ctx)
}

// CompleteRun closes the run.
func (s *PostgresLedger) CompleteRun(ctx context.Context, runID string, completedAt time.Time, predictedTotal float64, unmetUnits int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET completed_at = $1, status = $2, predicted_total = $3::NUMERIC, unmet_units = $4
		 WHERE run_id = $5`,
		completedAt.UTC(), string(domain.RunCompleted), money(predictedTotal), unmetUnits, runID,
	)
	if err != nil {
		return fmt.Errorf("storage.CompleteRun: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage.CompleteRun: %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// MarkItemPurchased records the realized price of one line.
func (s *PostgresLedger) MarkItemPurchased(ctx context.Context, runID, sellerID, cardID string, realizedPrice float64, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE run_items SET purchased = TRUE, realized_unit_price = $1::NUMERIC, purchased_at = $2
		 WHERE run_id = $3 AND seller_id = $4 AND card_id = $5`,
		money(realizedPrice), at.UTC(), runID, sellerID, cardID,
	)
	if err != nil {
		return fmt.Errorf("storage.MarkItemPurchased: update: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := s.getRunRecord(ctx, runID); err != nil {
		return fmt.Errorf("storage.MarkItemPurchased: %w", err)
	}
	return fmt.Errorf("storage.MarkItemPurchased: %s/%s/%s: %w", runID, sellerID, cardID, ErrItemNotFound)
}

// GetRun returns the run with its items ordered by seller and card.
func (s *PostgresLedger) GetRun(ctx context.Context, runID string) (domain.RunReport, error) {
	run, err := s.getRunRecord(ctx, runID)
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("storage.GetRun: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT seller_id, marketplace, card_id, quantity, predicted_unit_price::TEXT, reasons,
		       purchased, realized_unit_price::TEXT, purchased_at
		FROM run_items WHERE run_id = $1
		ORDER BY seller_id, card_id`, runID)
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("storage.GetRun: query items: %w", err)
	}
	defer rows.Close()

	var items []domain.RunItem
	for rows.Next() {
		it := domain.RunItem{RunID: runID}
		var (
			predicted   string
			reasons     string
			realized    *string
			purchasedAt *time.Time
		)
		if err := rows.Scan(&it.SellerID, &it.Marketplace, &it.CardID, &it.Quantity,
			&predicted, &reasons, &it.Purchased, &realized, &purchasedAt); err != nil {
			return domain.RunReport{}, fmt.Errorf("storage.GetRun: scan item: %w", err)
		}
		it.PredictedUnitPrice = parseMoney(predicted)
		it.Reasons = domain.SplitReasons(reasons)
		if realized != nil {
			v := parseMoney(*realized)
			it.RealizedUnitPrice = &v
		}
		if purchasedAt != nil {
			t := purchasedAt.UTC()
			it.PurchasedAt = &t
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return domain.RunReport{}, fmt.Errorf("storage.GetRun: rows: %w", err)
	}
	return domain.BuildRunReport(run, items), nil
}

func (s *PostgresLedger) getRunRecord(ctx context.Context, runID string) (domain.RunRecord, error) {
	var (
		r                  domain.RunRecord
		status, mode       string
		budgetMax, predTot string
		completedAt        *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT run_id, started_at, completed_at, status, mode, budget_max::TEXT, predicted_total::TEXT, unmet_units
		FROM runs WHERE run_id = $1`, runID).
		Scan(&r.RunID, &r.StartedAt, &completedAt, &status, &mode, &budgetMax, &predTot, &r.UnmetUnits)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RunRecord{}, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("query run: %w", err)
	}
	r.StartedAt = r.StartedAt.UTC()
	r.Status = domain.RunStatus(status)
	r.Mode = domain.PlanMode(mode)
	r.BudgetMax = parseMoney(budgetMax)
	r.PredictedTotal = parseMoney(predTot)
	if completedAt != nil {
		t := completedAt.UTC()
		r.CompletedAt = &t
	}
	return r, nil
}

// Close closes the pool.
func (s *PostgresLedger) Close() error {
	s.pool.Close()
	return nil
}
