package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"expenses/internal/core"
	"expenses/internal/log"
)

// Set POSTGRES_TEST_DSN to a disposable database to run these tests.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, dsn, log.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.pool.Exec(ctx, "TRUNCATE expenses RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresInsertAndQuery(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	d := core.NewDate(2017, 6, 1)
	id, err := s.InsertExpense(ctx, core.Expense{Payee: "Starbucks", Amount: 5.75, Date: d})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id != 1 {
		t.Fatalf("id = %d, want 1", id)
	}

	got, err := s.ExpensesByDate(ctx, d)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].Payee != "Starbucks" || got[0].Date.String() != "2017-06-01" {
		t.Fatalf("unexpected rows %+v", got)
	}

	if _, err := s.GetExpense(ctx, 99); !errors.Is(err, core.ErrExpenseNotFound) {
		t.Fatalf("expected ErrExpenseNotFound, got %v", err)
	}
}

func TestPostgresSyncBookkeeping(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.InsertExpense(ctx, core.Expense{Payee: "p", Amount: 1, Date: core.NewDate(2020, 1, 1)})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.MarkSynced(ctx, id); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if ok, err := s.IsSynced(ctx, id); err != nil || !ok {
		t.Fatalf("IsSynced = %v, %v", ok, err)
	}
	pending, err := s.PendingSync(ctx, 3, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending = %v", pending)
	}
}
