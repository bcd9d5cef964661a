package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"outlay/internal/core"

	_ "modernc.org/sqlite"
)

// ErrExpenseNotFound is returned when no row matches an id, or when the
// row exists but belongs to another owner. The two cases are deliberately
// indistinguishable so record existence never leaks across owners.
var ErrExpenseNotFound = errors.New("expense not found")

// Export states for the sheets mirror worker.
const (
	ExportPending int64 = 0
	ExportDone    int64 = 1
	ExportError   int64 = 2
)

// SQLiteRepository is the single storage handle for expense records. It is
// created once at startup and closed at shutdown; nothing else in the
// process opens the database.
type SQLiteRepository struct {
	db *sql.DB
}

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

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateExpense inserts a new record. ID, OwnerID and CreatedAt must
// already be set by the caller.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, title, amount_cents, category, expense_date, owner_id, created_at, export_state, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		e.ID, e.Title, e.Amount.Cents, e.Category,
		encodeTime(e.Date.Time), e.OwnerID, encodeTime(e.CreatedAt.Time), ExportPending)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

// GetExpense returns one record scoped to its owner.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id, ownerID string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, amount_cents, category, expense_date, owner_id, created_at
		FROM expenses WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanExpense(row)
}

// GetExpenseByID returns one record without owner scoping. Only the
// export worker uses it; API paths must go through GetExpense.
func (r *SQLiteRepository) GetExpenseByID(ctx context.Context, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, amount_cents, category, expense_date, owner_id, created_at
		FROM expenses WHERE id = ?`, id)
	return scanExpense(row)
}

// ListByOwner returns every record belonging to ownerID in a fixed order:
// business date ascending, then creation time, then id. The stats engine's
// first-seen category ordering depends on this order being deterministic.
func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, amount_cents, category, expense_date, owner_id, created_at
		FROM expenses WHERE owner_id = ?
		ORDER BY expense_date ASC, created_at ASC, id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

// UpdateExpense rewrites the mutable fields of an owner's record,
// re-queues it for export and returns the bumped version. CreatedAt and
// OwnerID never change.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses
		SET title = ?, amount_cents = ?, category = ?, expense_date = ?,
		    export_state = ?, version = version + 1
		WHERE id = ? AND owner_id = ?`,
		e.Title, e.Amount.Cents, e.Category, encodeTime(e.Date.Time),
		ExportPending, e.ID, e.OwnerID)
	if err != nil {
		return 0, fmt.Errorf("update expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update expense rows affected: %w", err)
	}
	if n == 0 {
		return 0, ErrExpenseNotFound
	}

	var version int64
	if err := r.db.QueryRowContext(ctx, `
		SELECT version FROM expenses WHERE id = ?`, e.ID).Scan(&version); err != nil {
		return 0, fmt.Errorf("read expense version: %w", err)
	}
	return version, nil
}

// DeleteExpense removes an owner's record.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id, ownerID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM expenses WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense rows affected: %w", err)
	}
	if n == 0 {
		return ErrExpenseNotFound
	}
	return nil
}

// PendingExport identifies a record awaiting mirror to the export sheet.
type PendingExport struct {
	ID      string
	OwnerID string
	Version int64
}

// GetPendingExports returns up to limit records still waiting for export,
// oldest first.
func (r *SQLiteRepository) GetPendingExports(ctx context.Context, limit int) ([]PendingExport, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, version FROM expenses
		WHERE export_state = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`, ExportPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending exports: %w", err)
	}
	defer rows.Close()

	var pending []PendingExport
	for rows.Next() {
		var p PendingExport
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Version); err != nil {
			return nil, fmt.Errorf("scan pending export: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending exports: %w", err)
	}
	return pending, nil
}

// MarkExported records that an expense reached the export sheet.
func (r *SQLiteRepository) MarkExported(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET export_state = ? WHERE id = ?`, ExportDone, id); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

// MarkExportError flags an expense whose export failed so the
// reconciliation pass does not retry it forever.
func (r *SQLiteRepository) MarkExportError(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET export_state = ? WHERE id = ?`, ExportError, id); err != nil {
		return fmt.Errorf("mark export error: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e             core.Expense
		date, created string
	)
	err := row.Scan(&e.ID, &e.Title, &e.Amount.Cents, &e.Category, &date, &e.OwnerID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrExpenseNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	if e.Date.Time, err = decodeTime(date); err != nil {
		return core.Expense{}, fmt.Errorf("decode expense date: %w", err)
	}
	if e.CreatedAt.Time, err = decodeTime(created); err != nil {
		return core.Expense{}, fmt.Errorf("decode created at: %w", err)
	}
	return e, nil
}

// Timestamps are stored as RFC 3339 UTC strings so lexicographic ORDER BY
// matches chronological order.
func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
