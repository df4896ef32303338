package storage

import (
	"context"
)

// The date column is declared DATE; reading it through CAST keeps the driver
// from converting the value to time.Time.

const createExpense = `-- name: CreateExpense :one
INSERT INTO expenses (payee, amount, date)
VALUES (?, ?, ?)
RETURNING id
`

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createExpense, arg.Payee, arg.Amount, arg.Date)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const getExpense = `-- name: GetExpense :one
SELECT id, payee, amount, CAST(date AS TEXT) AS date
FROM expenses
WHERE id = ?
`

func (q *Queries) GetExpense(ctx context.Context, id int64) (Expense, error) {
	row := q.db.QueryRowContext(ctx, getExpense, id)
	var i Expense
	err := row.Scan(&i.ID, &i.Payee, &i.Amount, &i.Date)
	return i, err
}

const getExpensesByDate = `-- name: GetExpensesByDate :many
SELECT id, payee, amount, CAST(date AS TEXT) AS date
FROM expenses
WHERE date = ?
ORDER BY id
`

func (q *Queries) GetExpensesByDate(ctx context.Context, date string) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, getExpensesByDate, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Expense{}
	for rows.Next() {
		var i Expense
		if err := rows.Scan(&i.ID, &i.Payee, &i.Amount, &i.Date); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countExpenses = `-- name: CountExpenses :one
SELECT COUNT(*) FROM expenses
`

func (q *Queries) CountExpenses(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countExpenses)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getPendingSyncExpenses = `-- name: GetPendingSyncExpenses :many
SELECT e.id
FROM expenses e
LEFT JOIN expense_sync s ON s.expense_id = e.id
WHERE s.expense_id IS NULL
   OR (s.status = 'error' AND s.attempts < ?)
ORDER BY e.id
LIMIT ?
`

func (q *Queries) GetPendingSyncExpenses(ctx context.Context, arg GetPendingSyncExpensesParams) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, getPendingSyncExpenses, arg.MaxAttempts, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markExpenseSynced = `-- name: MarkExpenseSynced :exec
INSERT INTO expense_sync (expense_id, status, attempts, updated_at)
VALUES (?, 'synced', 1, CURRENT_TIMESTAMP)
ON CONFLICT (expense_id) DO UPDATE
SET status = 'synced', attempts = attempts + 1, updated_at = CURRENT_TIMESTAMP
`

func (q *Queries) MarkExpenseSynced(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markExpenseSynced, id)
	return err
}

const markExpenseSyncError = `-- name: MarkExpenseSyncError :exec
INSERT INTO expense_sync (expense_id, status, attempts, updated_at)
VALUES (?, 'error', 1, CURRENT_TIMESTAMP)
ON CONFLICT (expense_id) DO UPDATE
SET status = 'error', attempts = attempts + 1, updated_at = CURRENT_TIMESTAMP
`

func (q *Queries) MarkExpenseSyncError(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markExpenseSyncError, id)
	return err
}

const isExpenseSynced = `-- name: IsExpenseSynced :one
SELECT COUNT(*) FROM expense_sync
WHERE expense_id = ? AND status = 'synced'
`

func (q *Queries) IsExpenseSynced(ctx context.Context, id int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, isExpenseSynced, id)
	var count int64
	err := row.Scan(&count)
	return count, err
}
