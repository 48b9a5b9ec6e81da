package storage

// sqlite.go: ledger local de runs.
//
// Estrategia:
//   - `runs`: una fila por run con el budget, el total previsto y las
//     unidades que quedaron sin cubrir.
//   - `run_items`: una fila por línea (seller, card) del plan. Marcar un item
//     como comprado guarda el precio real junto al previsto.
//
// El schema se versiona con golang-migrate (migrations/ embebido).

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/cardplanner/internal/domain"
)

// SQLiteLedger implementa ports.RunLedger sobre SQLite (Go puro, sin CGo).
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger abre (o crea) la base en path y aplica las migraciones.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteLedger: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer; además mantiene :memory: en una sola conexión
	db.SetMaxIdleConns(1)

	if err := migrateSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteLedger: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

// StartRun inserts the run header.
func (s *SQLiteLedger) StartRun(ctx context.Context, run domain.RunRecord) error {
	status := run.Status
	if status == "" {
		status = domain.RunStarted
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, status, mode, budget_max, predicted_total, unmet_units)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StartedAt.UTC(), string(status), string(run.Mode),
		run.BudgetMax, run.PredictedTotal, run.UnmetUnits,
	); err != nil {
		return fmt.Errorf("storage.StartRun: insert run: %w", err)
	}
	return nil
}

// LogItems upserts the planned lines of a run in one transaction.
func (s *SQLiteLedger) LogItems(ctx context.Context, runID string, items []domain.RunItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.LogItems: begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM runs WHERE run_id = ?`, runID).Scan(&exists); err != nil {
		return fmt.Errorf("storage.LogItems: check run: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("storage.LogItems: %s: %w", runID, ErrRunNotFound)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_items (run_id, seller_id, marketplace, card_id, quantity, predicted_unit_price, reasons)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seller_id, card_id) DO UPDATE SET
			marketplace          = excluded.marketplace,
			quantity             = excluded.quantity,
			predicted_unit_price = excluded.predicted_unit_price,
			reasons              = excluded.reasons`)
	if err != nil {
		return fmt.Errorf("storage.LogItems: prepare: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		if _, err := stmt.ExecContext(ctx,
			runID, it.SellerID, it.Marketplace, it.CardID, it.Quantity,
			it.PredictedUnitPrice, domain.JoinReasons(it.Reasons),
		); err != nil {
			return fmt.Errorf("storage.LogItems: upsert %s/%s: %w", it.SellerID, it.CardID, err)
		}
	}
	return tx.Commit()
}

// CompleteRun closes the run.
func (s *SQLiteLedger) CompleteRun(ctx context.Context, runID string, completedAt time.Time, predictedTotal float64, unmetUnits int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET completed_at = ?, status = ?, predicted_total = ?, unmet_units = ? WHERE run_id = ?`,
		completedAt.UTC(), string(domain.RunCompleted), predictedTotal, unmetUnits, runID,
	)
	if err != nil {
		return fmt.Errorf("storage.CompleteRun: update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.CompleteRun: %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// MarkItemPurchased records the realized price of one line.
func (s *SQLiteLedger) MarkItemPurchased(ctx context.Context, runID, sellerID, cardID string, realizedPrice float64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE run_items SET purchased = 1, realized_unit_price = ?, purchased_at = ?
		 WHERE run_id = ? AND seller_id = ? AND card_id = ?`,
		realizedPrice, at.UTC(), runID, sellerID, cardID,
	)
	if err != nil {
		return fmt.Errorf("storage.MarkItemPurchased: update: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := s.getRunRecord(ctx, runID); err != nil {
		return fmt.Errorf("storage.MarkItemPurchased: %w", err)
	}
	return fmt.Errorf("storage.MarkItemPurchased: %s/%s/%s: %w", runID, sellerID, cardID, ErrItemNotFound)
}

// GetRun returns the run with its items ordered by seller and card.
func (s *SQLiteLedger) GetRun(ctx context.Context, runID string) (domain.RunReport, error) {
	run, err := s.getRunRecord(ctx, runID)
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("storage.GetRun: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seller_id, marketplace, card_id, quantity, predicted_unit_price, reasons,
		       purchased, realized_unit_price, purchased_at
		FROM run_items WHERE run_id = ?
		ORDER BY seller_id, card_id`, runID)
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("storage.GetRun: query items: %w", err)
	}
	defer rows.Close()

	var items []domain.RunItem
	for rows.Next() {
		it := domain.RunItem{RunID: runID}
		var (
			reasons     string
			purchased   int
			realized    sql.NullFloat64
			purchasedAt sql.NullTime
		)
		if err := rows.Scan(&it.SellerID, &it.Marketplace, &it.CardID, &it.Quantity,
			&it.PredictedUnitPrice, &reasons, &purchased, &realized, &purchasedAt); err != nil {
			return domain.RunReport{}, fmt.Errorf("storage.GetRun: scan item: %w", err)
		}
		it.Reasons = domain.SplitReasons(reasons)
		it.Purchased = purchased == 1
		if realized.Valid {
			v := realized.Float64
			it.RealizedUnitPrice = &v
		}
		if purchasedAt.Valid {
			t := purchasedAt.Time.UTC()
			it.PurchasedAt = &t
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return domain.RunReport{}, fmt.Errorf("storage.GetRun: rows: %w", err)
	}
	return domain.BuildRunReport(run, items), nil
}

func (s *SQLiteLedger) getRunRecord(ctx context.Context, runID string) (domain.RunRecord, error) {
	var (
		r           domain.RunRecord
		status      string
		mode        string
		completedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, started_at, completed_at, status, mode, budget_max, predicted_total, unmet_units
		FROM runs WHERE run_id = ?`, runID).
		Scan(&r.RunID, &r.StartedAt, &completedAt, &status, &mode, &r.BudgetMax, &r.PredictedTotal, &r.UnmetUnits)
	if err == sql.ErrNoRows {
		return domain.RunRecord{}, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("query run: %w", err)
	}
	r.StartedAt = r.StartedAt.UTC()
	r.Status = domain.RunStatus(status)
	r.Mode = domain.PlanMode(mode)
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		r.CompletedAt = &t
	}
	return r, nil
}

// Close closes the database.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}
