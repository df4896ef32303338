package sheets

import (
	"errors"
	"testing"

	"expenses/internal/core"
)

func TestRow(t *testing.T) {
	row, err := Row(core.Expense{ID: 7, Payee: "Starbucks", Amount: 5.75, Date: core.NewDate(2017, 6, 1)})
	if err != nil {
		t.Fatalf("Row() error = %v", err)
	}
	if len(row) != len(Header) || row[0] != int64(7) || row[1] != "2017-06-01" || row[2] != "Starbucks" || row[3] != 5.75 {
		t.Errorf("Row() = %v", row)
	}

	tests := []struct {
		name string
		e    core.Expense
	}{
		{"no id", core.Expense{Payee: "x", Amount: 1, Date: core.NewDate(2017, 6, 1)}},
		{"no payee", core.Expense{ID: 1, Amount: 1, Date: core.NewDate(2017, 6, 1)}},
		{"no date", core.Expense{ID: 1, Payee: "x", Amount: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Row(tt.e); !errors.Is(err, ErrNotMirrorable) {
				t.Errorf("expected ErrNotMirrorable, got %v", err)
			}
		})
	}
}
