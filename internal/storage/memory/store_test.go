package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"expenses/internal/core"
)

func TestStoreInsertAndQuery(t *testing.T) {
	ctx := context.Background()
	s := New()

	d := core.NewDate(2017, 6, 1)
	id1, _ := s.InsertExpense(ctx, core.Expense{Payee: "a", Amount: 1, Date: d})
	id2, _ := s.InsertExpense(ctx, core.Expense{Payee: "b", Amount: 2, Date: core.NewDate(2017, 6, 2)})
	if id1 != 1 || id2 != 2 {
		t.Fatalf("ids = %d, %d", id1, id2)
	}

	got, err := s.ExpensesByDate(ctx, d)
	if err != nil || len(got) != 1 || got[0].ID != id1 {
		t.Fatalf("unexpected result %+v err=%v", got, err)
	}

	none, _ := s.ExpensesByDate(ctx, core.NewDate(2000, 1, 1))
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", none)
	}

	if _, err := s.GetExpense(ctx, 42); !errors.Is(err, core.ErrExpenseNotFound) {
		t.Fatalf("expected ErrExpenseNotFound, got %v", err)
	}
}

func TestStoreConcurrentIDs(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := map[int64]bool{}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, _ := s.InsertExpense(context.Background(), core.Expense{Payee: "p", Amount: 1, Date: core.NewDate(2020, 1, 1)})
			mu.Lock()
			defer mu.Unlock()
			if seen[id] {
				t.Errorf("duplicate id %d", id)
			}
			seen[id] = true
		}()
	}
	wg.Wait()
	if s.Len() != 50 {
		t.Fatalf("len = %d", s.Len())
	}
}

func TestStorePendingSync(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i := 0; i < 3; i++ {
		_, _ = s.InsertExpense(ctx, core.Expense{Payee: "p", Amount: 1, Date: core.NewDate(2020, 1, 1)})
	}
	_ = s.MarkSynced(ctx, 2)
	if ok, _ := s.IsSynced(ctx, 2); !ok {
		t.Error("expense 2 should be synced")
	}
	if ok, _ := s.IsSynced(ctx, 1); ok {
		t.Error("expense 1 should not be synced")
	}

	ids, _ := s.PendingSync(ctx, 5, 10)
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Fatalf("pending = %v", ids)
	}
	ids, _ = s.PendingSync(ctx, 5, 1)
	if len(ids) != 1 {
		t.Fatalf("limit not honoured: %v", ids)
	}

	for i := 0; i < 2; i++ {
		_ = s.MarkSyncError(ctx, 1)
	}
	ids, _ = s.PendingSync(ctx, 2, 10)
	if len(ids) != 1 || ids[0] != 3 {
		t.Fatalf("exhausted id still pending: %v", ids)
	}
}
