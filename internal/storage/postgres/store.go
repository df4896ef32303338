// Package postgres is the PostgreSQL expense store, built on a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"expenses/internal/core"
	"expenses/internal/log"
)

const (
	insertExpense = `
		INSERT INTO expenses (payee, amount, date)
		VALUES ($1, $2, $3)
		RETURNING id`

	selectExpensesByDate = `
		SELECT id, payee, amount, to_char(date, 'YYYY-MM-DD')
		FROM expenses
		WHERE date = $1
		ORDER BY id`

	selectExpense = `
		SELECT id, payee, amount, to_char(date, 'YYYY-MM-DD')
		FROM expenses
		WHERE id = $1`

	selectPendingSync = `
		SELECT e.id
		FROM expenses e
		LEFT JOIN expense_sync s ON s.expense_id = e.id
		WHERE s.expense_id IS NULL
		   OR (s.status = 'error' AND s.attempts < $1)
		ORDER BY e.id
		LIMIT $2`

	selectIsSynced = `
		SELECT EXISTS (
			SELECT 1 FROM expense_sync
			WHERE expense_id = $1 AND status = 'synced'
		)`

	upsertSyncStatus = `
		INSERT INTO expense_sync (expense_id, status, attempts, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (expense_id) DO UPDATE
		SET status = EXCLUDED.status,
		    attempts = expense_sync.attempts + 1,
		    updated_at = now()`
)

type Store struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

// Open connects to dsn, applies migrations and returns a ready store.
func Open(ctx context.Context, dsn string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if err := RunMigrations(dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return New(pool, logger), nil
}

// New wraps an existing pool. The schema must already be migrated.
func New(pool *pgxpool.Pool, logger *log.Logger) *Store {
	return &Store{pool: pool, logger: logger.WithComponent(log.ComponentStorage)}
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) InsertExpense(ctx context.Context, e core.Expense) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, insertExpense, e.Payee, e.Amount, e.Date.Time).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	s.logger.DebugContext(ctx, "Expense saved to Postgres",
		log.NewFields().WithExpense(id, e.Payee, e.Amount, e.Date.String()).ToSlice()...)
	return id, nil
}

func (s *Store) ExpensesByDate(ctx context.Context, d core.Date) ([]core.Expense, error) {
	rows, err := s.pool.Query(ctx, selectExpensesByDate, d.Time)
	if err != nil {
		return nil, fmt.Errorf("query expenses by date: %w", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	e, err := scanExpense(s.pool.QueryRow(ctx, selectExpense, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	return e, err
}

func (s *Store) PendingSync(ctx context.Context, maxAttempts, limit int) ([]int64, error) {
	rows, err := s.pool.Query(ctx, selectPendingSync, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending sync: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect pending sync: %w", err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

func (s *Store) MarkSynced(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, upsertSyncStatus, id, "synced"); err != nil {
		return fmt.Errorf("mark expense synced: %w", err)
	}
	return nil
}

func (s *Store) IsSynced(ctx context.Context, id int64) (bool, error) {
	var synced bool
	if err := s.pool.QueryRow(ctx, selectIsSynced, id).Scan(&synced); err != nil {
		return false, fmt.Errorf("check expense sync: %w", err)
	}
	return synced, nil
}

func (s *Store) MarkSyncError(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, upsertSyncStatus, id, "error"); err != nil {
		return fmt.Errorf("mark expense sync error: %w", err)
	}
	s.logger.WarnContext(ctx, "Expense marked with sync error", log.FieldExpenseID, id)
	return nil
}

func scanExpense(row pgx.Row) (core.Expense, error) {
	var (
		e    core.Expense
		date string
	)
	if err := row.Scan(&e.ID, &e.Payee, &e.Amount, &date); err != nil {
		return core.Expense{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d: %w", e.ID, err)
	}
	e.Date = d
	return e, nil
}
