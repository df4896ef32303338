package storage

// Expense is a row of the expenses table. Date holds the YYYY-MM-DD text.
type Expense struct {
	ID     int64
	Payee  string
	Amount float64
	Date   string
}

type CreateExpenseParams struct {
	Payee  string
	Amount float64
	Date   string
}

type GetPendingSyncExpensesParams struct {
	MaxAttempts int64
	Limit       int64
}
