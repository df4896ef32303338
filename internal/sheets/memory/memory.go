package memory

import (
	"context"
	"fmt"
	"sync"

	"expenses/internal/core"
	ports "expenses/internal/sheets"
)

// Writer keeps mirrored rows in memory. It backs the worker when no
// spreadsheet is configured, and tests.
type Writer struct {
	mu     sync.Mutex
	header bool
	rows   []core.Expense
	err    error
}

var (
	_ ports.ExpenseWriter = (*Writer)(nil)
	_ ports.HeaderWriter  = (*Writer)(nil)
)

func New() *Writer {
	return &Writer{}
}

// Append stores the expense and returns a synthetic row reference.
func (w *Writer) Append(_ context.Context, e core.Expense) (string, error) {
	if _, err := ports.Row(e); err != nil {
		return "", err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return "", w.err
	}
	w.rows = append(w.rows, e)
	return fmt.Sprintf("mem:%d", len(w.rows)), nil
}

func (w *Writer) EnsureHeader(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.header = true
	return nil
}

// FailWith makes every later call return err; nil restores normal behaviour.
func (w *Writer) FailWith(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = err
}

// Rows returns a copy of the appended expenses in append order.
func (w *Writer) Rows() []core.Expense {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]core.Expense(nil), w.rows...)
}

func (w *Writer) HasHeader() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.header
}
