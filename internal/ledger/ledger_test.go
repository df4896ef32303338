package ledger_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"expenses/internal/core"
	"expenses/internal/ledger"
	"expenses/internal/log"
	"expenses/internal/storage/memory"
)

func ptr[T any](v T) *T { return &v }

type failingStore struct{ err error }

func (f failingStore) InsertExpense(context.Context, core.Expense) (int64, error) { return 0, f.err }
func (f failingStore) ExpensesByDate(context.Context, core.Date) ([]core.Expense, error) {
	return nil, f.err
}
func (f failingStore) GetExpense(context.Context, int64) (core.Expense, error) {
	return core.Expense{}, f.err
}
func (f failingStore) Ping(context.Context) error { return f.err }

type recordingPublisher struct {
	mu   sync.Mutex
	ids  []int64
	fail error
}

func (p *recordingPublisher) PublishExpenseRecorded(_ context.Context, id int64, _ core.Date) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, id)
	return p.fail
}

func newLedger(opts ...ledger.Option) (*ledger.Ledger, *memory.Store) {
	store := memory.New()
	opts = append([]ledger.Option{ledger.WithLogger(log.Discard())}, opts...)
	return ledger.New(store, opts...), store
}

func TestRecordValidation(t *testing.T) {
	tests := []struct {
		name    string
		in      core.ExpenseInput
		wantMsg string
	}{
		{
			name:    "missing payee",
			in:      core.ExpenseInput{Amount: ptr(5.75), Date: ptr("2017-06-01")},
			wantMsg: "Invalid expense: `payee` is required",
		},
		{
			name:    "blank payee",
			in:      core.ExpenseInput{Payee: ptr("  "), Amount: ptr(5.75), Date: ptr("2017-06-01")},
			wantMsg: "Invalid expense: `payee` is required",
		},
		{
			name:    "missing amount",
			in:      core.ExpenseInput{Payee: ptr("Starbucks"), Date: ptr("2017-06-01")},
			wantMsg: "Invalid expense: `amount` is required",
		},
		{
			name:    "missing date",
			in:      core.ExpenseInput{Payee: ptr("Starbucks"), Amount: ptr(5.75)},
			wantMsg: "Invalid expense: `date` is required",
		},
		{
			name:    "malformed date",
			in:      core.ExpenseInput{Payee: ptr("Starbucks"), Amount: ptr(5.75), Date: ptr("06/01/2017")},
			wantMsg: "Invalid expense: `date` must be a YYYY-MM-DD date",
		},
		{
			name:    "payee checked first",
			in:      core.ExpenseInput{},
			wantMsg: "Invalid expense: `payee` is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, store := newLedger()
			res, err := l.Record(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Success() {
				t.Fatal("expected rejection")
			}
			if _, ok := res.ExpenseID(); ok {
				t.Error("rejected result must not carry an id")
			}
			msg, ok := res.ErrorMessage()
			if !ok || msg != tt.wantMsg {
				t.Errorf("message = %q, want %q", msg, tt.wantMsg)
			}
			if store.Len() != 0 {
				t.Errorf("store has %d rows after rejection", store.Len())
			}
		})
	}
}

func TestRecordAndQuery(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger()

	res, err := l.Record(ctx, core.ExpenseInput{Payee: ptr("Starbucks"), Amount: ptr(5.75), Date: ptr("2017-06-01")})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	id, ok := res.ExpenseID()
	if !res.Success() || !ok || id != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, ok := res.ErrorMessage(); ok {
		t.Error("recorded result must not carry a message")
	}
	if store.Len() != 1 {
		t.Fatalf("store has %d rows, want 1", store.Len())
	}

	got, err := l.ExpensesOn(ctx, core.NewDate(2017, 6, 1))
	if err != nil {
		t.Fatalf("expenses on: %v", err)
	}
	want := []core.Expense{{ID: 1, Payee: "Starbucks", Amount: 5.75, Date: core.NewDate(2017, 6, 1)}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	again, _ := l.ExpensesOn(ctx, core.NewDate(2017, 6, 1))
	if !reflect.DeepEqual(got, again) {
		t.Fatal("repeated reads differ")
	}

	empty, err := l.ExpensesOn(ctx, core.NewDate(2017, 6, 2))
	if err != nil {
		t.Fatalf("expenses on: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty slice, got %#v", empty)
	}
}

func TestExpensesOnZeroDate(t *testing.T) {
	l, _ := newLedger()
	if _, err := l.ExpensesOn(context.Background(), core.Date{}); !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestStoreFaultPropagates(t *testing.T) {
	boom := errors.New("disk on fire")
	l := ledger.New(failingStore{err: boom}, ledger.WithLogger(log.Discard()))

	_, err := l.Record(context.Background(), core.ExpenseInput{Payee: ptr("a"), Amount: ptr(1.0), Date: ptr("2020-01-01")})
	if !errors.Is(err, boom) {
		t.Fatalf("record error = %v, want wrapped %v", err, boom)
	}
	if _, err := l.ExpensesOn(context.Background(), core.NewDate(2020, 1, 1)); !errors.Is(err, boom) {
		t.Fatalf("query error = %v", err)
	}
	if err := l.Ping(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("ping error = %v", err)
	}
}

func TestPublisherNotified(t *testing.T) {
	pub := &recordingPublisher{}
	l, _ := newLedger(ledger.WithPublisher(pub))

	for _, payee := range []string{"a", "b"} {
		if _, err := l.Record(context.Background(), core.ExpenseInput{Payee: ptr(payee), Amount: ptr(1.0), Date: ptr("2020-01-01")}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	_, _ = l.Record(context.Background(), core.ExpenseInput{})

	if !reflect.DeepEqual(pub.ids, []int64{1, 2}) {
		t.Fatalf("published ids = %v", pub.ids)
	}
}

func TestPublishFailureDoesNotFailRecord(t *testing.T) {
	pub := &recordingPublisher{fail: errors.New("broker down")}
	l, _ := newLedger(ledger.WithPublisher(pub))

	res, err := l.Record(context.Background(), core.ExpenseInput{Payee: ptr("a"), Amount: ptr(1.0), Date: ptr("2020-01-01")})
	if err != nil || !res.Success() {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

func TestGetNotFound(t *testing.T) {
	l, _ := newLedger()
	_, err := l.Get(context.Background(), 7)
	if !errors.Is(err, core.ErrExpenseNotFound) {
		t.Fatalf("expected ErrExpenseNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "7") {
		t.Errorf("error should name the id: %v", err)
	}
}

func TestConcurrentRecordsGetDistinctIDs(t *testing.T) {
	l, _ := newLedger()
	const n = 30
	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := l.Record(context.Background(), core.ExpenseInput{Payee: ptr("p"), Amount: ptr(1.0), Date: ptr("2020-01-01")})
			if err != nil {
				t.Errorf("record: %v", err)
				return
			}
			ids[i], _ = res.ExpenseID()
		}(i)
	}
	wg.Wait()

	seen := map[int64]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
}
