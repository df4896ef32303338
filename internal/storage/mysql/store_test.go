package mysql

import (
	"context"
	"errors"
	"os"
	"testing"

	"expenses/internal/core"
	"expenses/internal/log"
)

func TestConfigDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			in:   "u:p@tcp(localhost:3306)/expenses",
			want: "u:p@tcp(localhost:3306)/expenses?parseTime=true&loc=UTC&charset=utf8mb4",
		},
		{
			in:   "u:p@tcp(db:3306)/expenses?parseTime=true",
			want: "u:p@tcp(db:3306)/expenses?parseTime=true&loc=UTC&charset=utf8mb4",
		},
		{
			in:   "u:p@tcp(db:3306)/x?charset=latin1&loc=Local&parseTime=false",
			want: "u:p@tcp(db:3306)/x?charset=latin1&loc=Local&parseTime=false",
		},
	}
	for _, tt := range tests {
		if got := DefaultConfig(tt.in).dsn(); got != tt.want {
			t.Errorf("dsn(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// Set MYSQL_TEST_DSN to a disposable database to run this test.
func TestMySQLStore(t *testing.T) {
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set")
	}
	ctx := context.Background()
	cfg := DefaultConfig(dsn)
	cfg.ConnectAttempts = 1
	cfg.LogLevel = "silent"

	s, err := Open(ctx, cfg, log.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	s.db.Exec("DELETE FROM expense_sync")
	s.db.Exec("DELETE FROM expenses")

	d := core.NewDate(2017, 6, 1)
	id, err := s.InsertExpense(ctx, core.Expense{Payee: "Starbucks", Amount: 5.75, Date: d})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.ExpensesByDate(ctx, d)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].ID != id || got[0].Date.String() != "2017-06-01" {
		t.Fatalf("unexpected rows %+v", got)
	}

	if err := s.MarkSyncError(ctx, id); err != nil {
		t.Fatalf("mark error: %v", err)
	}
	pending, err := s.PendingSync(ctx, 1, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending = %v", pending)
	}

	if _, err := s.GetExpense(ctx, id+1000); !errors.Is(err, core.ErrExpenseNotFound) {
		t.Fatalf("expected ErrExpenseNotFound, got %v", err)
	}
}
