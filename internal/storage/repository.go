// Package storage is the SQLite-backed expense store.
//
// The schema lives in migrations/ and is applied with golang-migrate when the
// repository is opened. Ids come from INSERT ... RETURNING, so concurrent
// writers never see each other's id.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"expenses/internal/core"
	"expenses/internal/log"

	_ "modernc.org/sqlite"
)

const busyTimeoutMs = 5000

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

// DSN builds the modernc connection string for dbPath with WAL and a busy timeout.
func DSN(dbPath string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		filepath.Clean(dbPath), busyTimeoutMs)
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InsertExpense implements ledger.Store
func (r *SQLiteRepository) InsertExpense(ctx context.Context, e core.Expense) (int64, error) {
	id, err := r.queries.CreateExpense(ctx, CreateExpenseParams{
		Payee:  e.Payee,
		Amount: e.Amount,
		Date:   e.Date.String(),
	})
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}

	r.logger.DebugContext(ctx, "Expense saved to SQLite",
		log.NewFields().WithExpense(id, e.Payee, e.Amount, e.Date.String()).ToSlice()...)

	return id, nil
}

// ExpensesByDate implements ledger.Store
func (r *SQLiteRepository) ExpensesByDate(ctx context.Context, d core.Date) ([]core.Expense, error) {
	rows, err := r.queries.GetExpensesByDate(ctx, d.String())
	if err != nil {
		return nil, fmt.Errorf("get expenses by date: %w", err)
	}

	expenses := make([]core.Expense, 0, len(rows))
	for _, row := range rows {
		e, err := row.toCore()
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, nil
}

// GetExpense implements ledger.Store
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row, err := r.queries.GetExpense(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense by id: %w", err)
	}
	return row.toCore()
}

// CountExpenses returns the number of stored expenses.
func (r *SQLiteRepository) CountExpenses(ctx context.Context) (int64, error) {
	n, err := r.queries.CountExpenses(ctx)
	if err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

// PendingSync returns ids of expenses not yet mirrored, including failed
// ones with fewer than maxAttempts tries.
func (r *SQLiteRepository) PendingSync(ctx context.Context, maxAttempts, limit int) ([]int64, error) {
	ids, err := r.queries.GetPendingSyncExpenses(ctx, GetPendingSyncExpensesParams{
		MaxAttempts: int64(maxAttempts),
		Limit:       int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("get pending sync expenses: %w", err)
	}
	return ids, nil
}

// MarkSynced marks an expense as successfully mirrored
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if err := r.queries.MarkExpenseSynced(ctx, id); err != nil {
		return fmt.Errorf("mark expense synced: %w", err)
	}
	r.logger.DebugContext(ctx, "Expense marked as synced", log.FieldExpenseID, id)
	return nil
}

// IsSynced reports whether the expense has already been mirrored.
func (r *SQLiteRepository) IsSynced(ctx context.Context, id int64) (bool, error) {
	n, err := r.queries.IsExpenseSynced(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check expense sync: %w", err)
	}
	return n > 0, nil
}

// MarkSyncError records a failed mirror attempt
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if err := r.queries.MarkExpenseSyncError(ctx, id); err != nil {
		return fmt.Errorf("mark expense sync error: %w", err)
	}
	r.logger.WarnContext(ctx, "Expense marked with sync error", log.FieldExpenseID, id)
	return nil
}

func (e Expense) toCore() (core.Expense, error) {
	d, err := core.ParseDate(e.Date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d: %w", e.ID, err)
	}
	return core.Expense{
		ID:     e.ID,
		Payee:  e.Payee,
		Amount: e.Amount,
		Date:   d,
	}, nil
}
