package sheets

import (
	"context"
	"errors"
	"fmt"

	"expenses/internal/core"
)

// Ports for outbound adapters.
type (
	// ExpenseWriter appends one recorded expense to the mirror and returns a
	// reference to the written row.
	ExpenseWriter interface {
		Append(ctx context.Context, e core.Expense) (rowRef string, err error)
	}

	// HeaderWriter prepares an empty mirror with a header row.
	HeaderWriter interface {
		EnsureHeader(ctx context.Context) error
	}
)

// Header is the column layout of the mirror sheet.
var Header = []string{"ID", "Date", "Payee", "Amount"}

var ErrNotMirrorable = errors.New("expense cannot be mirrored")

// Row converts a persisted expense into a sheet row in Header order.
// Only rows the store has assigned an id to can be mirrored.
func Row(e core.Expense) ([]any, error) {
	switch {
	case e.ID <= 0:
		return nil, fmt.Errorf("%w: missing id", ErrNotMirrorable)
	case e.Payee == "":
		return nil, fmt.Errorf("%w: expense %d has no payee", ErrNotMirrorable, e.ID)
	case e.Date.IsZero():
		return nil, fmt.Errorf("%w: expense %d has no date", ErrNotMirrorable, e.ID)
	}
	return []any{e.ID, e.Date.String(), e.Payee, e.Amount}, nil
}
