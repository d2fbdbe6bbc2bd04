// Package storage implements the durable ledger store on SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"upkeep/internal/billing"
	"upkeep/internal/core"

	_ "modernc.org/sqlite"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so every query method
// works identically inside and outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteRepository is the ledger store. It implements billing.Ledger;
// a transactional view of it (produced by InTx) shares all query code.
type SQLiteRepository struct {
	db *sql.DB // nil on transactional views
	q  dbtx
}

var _ billing.Ledger = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, q: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// DB exposes the underlying handle for metrics gauges.
func (r *SQLiteRepository) DB() *sql.DB {
	return r.db
}

// InTx runs fn against a transactional view of the repository. Commit
// uses this so aggregation and the closing append either both see one
// snapshot and succeed, or nothing is written.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(billing.Ledger) error) error {
	if r.db == nil {
		// Already inside a transaction; just run.
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&SQLiteRepository{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Transaction rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) OwnerExists(ctx context.Context, ownerID int64) (bool, error) {
	var n int64
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM owners WHERE id = ?`, ownerID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("owner exists: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) PropertyExists(ctx context.Context, propertyID int64) (bool, error) {
	var n int64
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM properties WHERE id = ?`, propertyID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("property exists: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) PropertiesByOwner(ctx context.Context, ownerID int64) ([]int64, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id FROM properties WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("properties by owner: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan property id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLiteRepository) CleaningSessions(ctx context.Context, propertyIDs []int64, periodStart, periodEnd core.Date) ([]core.CleaningSession, error) {
	if len(propertyIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT id, property_id, date, start_time, end_time, hourly_rate_cents, notes
		FROM cleaning_sessions
		WHERE property_id IN (%s) AND date >= ? AND date <= ?
		ORDER BY property_id, date, id`, placeholders(len(propertyIDs)))

	rows, err := r.q.QueryContext(ctx, query, rangeArgs(propertyIDs, periodStart, periodEnd)...)
	if err != nil {
		return nil, fmt.Errorf("list cleaning sessions: %w", err)
	}
	defer rows.Close()

	var out []core.CleaningSession
	for rows.Next() {
		var s core.CleaningSession
		var date, startStr, endStr string
		if err := rows.Scan(&s.ID, &s.PropertyID, &date, &startStr, &endStr, &s.HourlyRate.Cents, &s.Notes); err != nil {
			return nil, fmt.Errorf("scan cleaning session: %w", err)
		}
		if s.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("cleaning session %d: %w", s.ID, err)
		}
		if s.Start, err = core.ParseClockTime(startStr); err != nil {
			return nil, fmt.Errorf("cleaning session %d: %w", s.ID, err)
		}
		if s.End, err = core.ParseClockTime(endStr); err != nil {
			return nil, fmt.Errorf("cleaning session %d: %w", s.ID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) LinenConsumption(ctx context.Context, propertyIDs []int64, periodStart, periodEnd core.Date) ([]core.LinenConsumption, error) {
	if len(propertyIDs) == 0 {
		return nil, nil
	}
	// The JOIN resolves the current catalog price; linen is priced at
	// read time, never snapshotted on the event.
	query := fmt.Sprintf(`
		SELECT c.id, c.property_id, c.item_id, i.name, c.date, c.quantity, i.unit_price_cents
		FROM linen_consumption c
		JOIN linen_items i ON i.id = c.item_id
		WHERE c.property_id IN (%s) AND c.date >= ? AND c.date <= ?
		ORDER BY c.property_id, c.date, c.id`, placeholders(len(propertyIDs)))

	rows, err := r.q.QueryContext(ctx, query, rangeArgs(propertyIDs, periodStart, periodEnd)...)
	if err != nil {
		return nil, fmt.Errorf("list linen consumption: %w", err)
	}
	defer rows.Close()

	var out []core.LinenConsumption
	for rows.Next() {
		var (
			e    core.LinenConsumption
			date string
		)
		if err := rows.Scan(&e.ID, &e.PropertyID, &e.ItemID, &e.ItemName, &date, &e.Quantity, &e.UnitPrice.Cents); err != nil {
			return nil, fmt.Errorf("scan linen consumption: %w", err)
		}
		if e.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("linen consumption %d: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SupplyReplenishments(ctx context.Context, propertyIDs []int64, periodStart, periodEnd core.Date) ([]core.SupplyReplenishment, error) {
	if len(propertyIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT s.id, s.property_id, s.item_id, i.name, s.date, s.quantity, s.amount_spent_cents, s.receipt_ref
		FROM supply_replenishments s
		JOIN supply_items i ON i.id = s.item_id
		WHERE s.property_id IN (%s) AND s.date >= ? AND s.date <= ?
		ORDER BY s.property_id, s.date, s.id`, placeholders(len(propertyIDs)))

	rows, err := r.q.QueryContext(ctx, query, rangeArgs(propertyIDs, periodStart, periodEnd)...)
	if err != nil {
		return nil, fmt.Errorf("list supply replenishments: %w", err)
	}
	defer rows.Close()

	var out []core.SupplyReplenishment
	for rows.Next() {
		var (
			e    core.SupplyReplenishment
			date string
		)
		if err := rows.Scan(&e.ID, &e.PropertyID, &e.ItemID, &e.ItemName, &date, &e.Quantity, &e.AmountSpent.Cents, &e.ReceiptRef); err != nil {
			return nil, fmt.Errorf("scan supply replenishment: %w", err)
		}
		if e.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("supply replenishment %d: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AppendClosing writes one immutable closing record. There is no
// update or delete counterpart anywhere in this package.
func (r *SQLiteRepository) AppendClosing(ctx context.Context, rec core.ClosingRecord) (core.ClosingRecord, error) {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO closings (scope_type, scope_id, period_start, period_end, total_cents, notes, receipt_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rec.ScopeType), rec.ScopeID, rec.PeriodStart.String(), rec.PeriodEnd.String(),
		rec.Total.Cents, rec.Notes, rec.ReceiptRef, rec.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return core.ClosingRecord{}, fmt.Errorf("insert closing: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.ClosingRecord{}, fmt.Errorf("closing id: %w", err)
	}
	rec.ID = id

	slog.InfoContext(ctx, "Closing saved to SQLite",
		"closing_id", rec.ID,
		"scope_type", rec.ScopeType,
		"scope_id", rec.ScopeID,
		"total_cents", rec.Total.Cents)
	return rec, nil
}

func (r *SQLiteRepository) ListClosings(ctx context.Context, filter billing.ClosingFilter) ([]core.ClosingRecord, error) {
	query := `SELECT id, scope_type, scope_id, period_start, period_end, total_cents, notes, receipt_ref, created_at FROM closings`
	var (
		conds []string
		args  []any
	)
	if filter.ScopeType != "" {
		conds = append(conds, "scope_type = ?")
		args = append(args, string(filter.ScopeType))
	}
	if filter.ScopeID != 0 {
		conds = append(conds, "scope_id = ?")
		args = append(args, filter.ScopeID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id DESC"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list closings: %w", err)
	}
	defer rows.Close()

	var out []core.ClosingRecord
	for rows.Next() {
		rec, err := scanClosing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetClosing loads a single closing record by id.
func (r *SQLiteRepository) GetClosing(ctx context.Context, id int64) (core.ClosingRecord, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, scope_type, scope_id, period_start, period_end, total_cents, notes, receipt_ref, created_at
		FROM closings WHERE id = ?`, id)
	rec, err := scanClosing(row)
	if err != nil {
		return core.ClosingRecord{}, fmt.Errorf("get closing %d: %w", id, err)
	}
	return rec, nil
}

// ListUnmirroredClosings returns closings not yet mirrored downstream,
// oldest first, for the mirror worker's reconcile pass.
func (r *SQLiteRepository) ListUnmirroredClosings(ctx context.Context, limit int) ([]core.ClosingRecord, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, scope_type, scope_id, period_start, period_end, total_cents, notes, receipt_ref, created_at
		FROM closings WHERE mirrored_at IS NULL ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unmirrored closings: %w", err)
	}
	defer rows.Close()

	var out []core.ClosingRecord
	for rows.Next() {
		rec, err := scanClosing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkClosingMirrored stamps a closing as mirrored. This touches only
// the mirror bookkeeping column; the financial fields stay immutable.
func (r *SQLiteRepository) MarkClosingMirrored(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE closings SET mirrored_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("mark closing mirrored: %w", err)
	}
	return nil
}

// --- capture operations for the catalog/data-entry surface and seeds ---

func (r *SQLiteRepository) CreateOwner(ctx context.Context, o core.Owner) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO owners (name, phone, email, address) VALUES (?, ?, ?, ?)`,
		o.Name, o.Phone, o.Email, o.Address)
	if err != nil {
		return 0, fmt.Errorf("create owner: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) CreateProperty(ctx context.Context, p core.Property) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO properties (owner_id, address, bedrooms, bathrooms) VALUES (?, ?, ?, ?)`,
		p.OwnerID, p.Address, p.Bedrooms, p.Bathrooms)
	if err != nil {
		return 0, fmt.Errorf("create property: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) CreateLinenItem(ctx context.Context, it core.LinenItem) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO linen_items (name, unit_price_cents) VALUES (?, ?)`,
		it.Name, it.UnitPrice.Cents)
	if err != nil {
		return 0, fmt.Errorf("create linen item: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) UpdateLinenItemPrice(ctx context.Context, itemID int64, price core.Money) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE linen_items SET unit_price_cents = ? WHERE id = ?`, price.Cents, itemID)
	if err != nil {
		return fmt.Errorf("update linen item price: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateSupplyItem(ctx context.Context, it core.SupplyItem) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO supply_items (name, unit_price_cents) VALUES (?, ?)`,
		it.Name, it.UnitPrice.Cents)
	if err != nil {
		return 0, fmt.Errorf("create supply item: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) AddCleaningSession(ctx context.Context, s core.CleaningSession) (int64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO cleaning_sessions (property_id, date, start_time, end_time, hourly_rate_cents, notes)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.PropertyID, s.Date.String(), s.Start.String(), s.End.String(), s.HourlyRate.Cents, s.Notes)
	if err != nil {
		return 0, fmt.Errorf("add cleaning session: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) AddLinenConsumption(ctx context.Context, e core.LinenConsumption) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO linen_consumption (property_id, item_id, date, quantity)
		VALUES (?, ?, ?, ?)`,
		e.PropertyID, e.ItemID, e.Date.String(), e.Quantity)
	if err != nil {
		return 0, fmt.Errorf("add linen consumption: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) AddSupplyReplenishment(ctx context.Context, e core.SupplyReplenishment) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO supply_replenishments (property_id, item_id, date, quantity, amount_spent_cents, receipt_ref)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.PropertyID, e.ItemID, e.Date.String(), e.Quantity, e.AmountSpent.Cents, e.ReceiptRef)
	if err != nil {
		return 0, fmt.Errorf("add supply replenishment: %w", err)
	}
	return res.LastInsertId()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClosing(row rowScanner) (core.ClosingRecord, error) {
	var (
		rec                   core.ClosingRecord
		scopeType, start, end string
		createdAt             string
	)
	if err := row.Scan(&rec.ID, &scopeType, &rec.ScopeID, &start, &end,
		&rec.Total.Cents, &rec.Notes, &rec.ReceiptRef, &createdAt); err != nil {
		return core.ClosingRecord{}, fmt.Errorf("scan closing: %w", err)
	}
	rec.ScopeType = core.ScopeType(scopeType)
	var err error
	if rec.PeriodStart, err = core.ParseDate(start); err != nil {
		return core.ClosingRecord{}, fmt.Errorf("closing %d: %w", rec.ID, err)
	}
	if rec.PeriodEnd, err = core.ParseDate(end); err != nil {
		return core.ClosingRecord{}, fmt.Errorf("closing %d: %w", rec.ID, err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return core.ClosingRecord{}, fmt.Errorf("closing %d created_at: %w", rec.ID, err)
	}
	return rec, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func rangeArgs(propertyIDs []int64, periodStart, periodEnd core.Date) []any {
	args := make([]any, 0, len(propertyIDs)+2)
	for _, id := range propertyIDs {
		args = append(args, id)
	}
	return append(args, periodStart.String(), periodEnd.String())
}
