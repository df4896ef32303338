// Package memory is an in-process expense store used by tests and the
// "memory" backend. Data does not survive a restart.
package memory

import (
	"context"
	"sync"

	"expenses/internal/core"
)

type Store struct {
	mu     sync.Mutex
	nextID int64
	items  []core.Expense
	synced map[int64]bool
	fails  map[int64]int
}

func New() *Store {
	return &Store{synced: make(map[int64]bool), fails: make(map[int64]int)}
}

// InsertExpense assigns the next id under the same lock as the append.
func (s *Store) InsertExpense(_ context.Context, e core.Expense) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	s.items = append(s.items, e)
	return e.ID, nil
}

func (s *Store) ExpensesByDate(_ context.Context, d core.Date) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Expense{}
	for _, e := range s.items {
		if e.Date.Equal(d.Time) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.items {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Expense{}, core.ErrExpenseNotFound
}

func (s *Store) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored expenses.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// PendingSync returns ids not yet synced with fewer than maxAttempts failures.
func (s *Store) PendingSync(_ context.Context, maxAttempts, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []int64{}
	for _, e := range s.items {
		if len(out) >= limit {
			break
		}
		if !s.synced[e.ID] && s.fails[e.ID] < maxAttempts {
			out = append(out, e.ID)
		}
	}
	return out, nil
}

func (s *Store) MarkSynced(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced[id] = true
	return nil
}

func (s *Store) IsSynced(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synced[id], nil
}

func (s *Store) MarkSyncError(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails[id]++
	return nil
}
