// Package ledger validates, persists and queries expense records.
//
// The Ledger knows nothing about HTTP. Validation failures are returned as
// core.RecordResult values; only store faults are returned as errors.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"expenses/internal/core"
	"expenses/internal/log"
)

// Store is the durable relational store behind a Ledger.
type Store interface {
	// InsertExpense inserts one row and returns the id the store assigned to
	// it. Implementations must obtain the id atomically with the insert.
	InsertExpense(ctx context.Context, e core.Expense) (int64, error)
	// ExpensesByDate returns every expense dated d, ordered by id.
	ExpensesByDate(ctx context.Context, d core.Date) ([]core.Expense, error)
	// GetExpense returns core.ErrExpenseNotFound when no row has the id.
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	Ping(ctx context.Context) error
}

// Publisher announces recorded expenses to other processes.
type Publisher interface {
	PublishExpenseRecorded(ctx context.Context, id int64, date core.Date) error
}

type Ledger struct {
	store     Store
	publisher Publisher
	logger    *log.Logger
}

type Option func(*Ledger)

// WithPublisher publishes an expense.recorded event after every successful insert.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) {
		l.publisher = p
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// New builds a Ledger around an already-open store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{store: store}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = log.New(log.DefaultConfig())
	}
	l.logger = l.logger.WithComponent(log.ComponentLedger)
	return l
}

// Record validates the input and inserts it. A rejected result means nothing
// was written; a non-nil error means the store failed.
func (l *Ledger) Record(ctx context.Context, in core.ExpenseInput) (core.RecordResult, error) {
	e, err := in.Expense()
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			l.logger.InfoContext(ctx, "Expense rejected",
				log.FieldOperation, log.OpValidate,
				log.FieldField, verr.Field,
				log.FieldError, verr.Error())
			return core.Rejected(verr.Error()), nil
		}
		return core.RecordResult{}, fmt.Errorf("validate expense: %w", err)
	}

	id, err := l.store.InsertExpense(ctx, e)
	if err != nil {
		return core.RecordResult{}, fmt.Errorf("insert expense: %w", err)
	}
	e.ID = id

	l.logger.InfoContext(ctx, "Expense recorded",
		log.NewFields().WithExpense(e.ID, e.Payee, e.Amount, e.Date.String()).WithOperation(log.OpCreate).ToSlice()...)

	if l.publisher != nil {
		if err := l.publisher.PublishExpenseRecorded(ctx, id, e.Date); err != nil {
			// The row is durable; the mirror worker catches up on unsynced rows.
			l.logger.WarnContext(ctx, "Failed to publish expense recorded event",
				log.FieldExpenseID, id,
				log.FieldError, err.Error())
		}
	}

	return core.Recorded(id), nil
}

// ExpensesOn returns every expense dated d. The slice is empty, never nil,
// when nothing matches.
func (l *Ledger) ExpensesOn(ctx context.Context, d core.Date) ([]core.Expense, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	items, err := l.store.ExpensesByDate(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("expenses on %s: %w", d, err)
	}
	if items == nil {
		items = []core.Expense{}
	}
	return items, nil
}

// Get returns a single expense by id.
func (l *Ledger) Get(ctx context.Context, id int64) (core.Expense, error) {
	e, err := l.store.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

// Ping reports whether the underlying store is reachable.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.store.Ping(ctx)
}
