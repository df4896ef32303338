package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2017-06-01", true},
		{"2025-12-31", true},
		{" 2017-06-01", false},
		{"2017-06-01 ", false},
		{"2017-06-01\n", false},
		{"2017-6-1", false},
		{"2017-13-01", false},
		{"01/06/2017", false},
		{"", false},
	}
	for _, tc := range cases {
		d, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("%q expected ok, got %v", tc.in, err)
			}
			if d.String() != tc.in {
				t.Fatalf("%q round trip got %q", tc.in, d.String())
			}
			continue
		}
		if !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
		}
	}
}

func TestDateValidate(t *testing.T) {
	if err := NewDate(2025, 1, 1).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Date{Time: time.Time{}}).Validate(); err == nil {
		t.Fatalf("expected error for zero date")
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2017, 6, 1))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2017-06-01"` {
		t.Fatalf("unexpected json %s", b)
	}

	var d Date
	if err := json.Unmarshal([]byte(`"2017-06-01"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !d.Equal(NewDate(2017, 6, 1).Time) {
		t.Fatalf("unexpected date %v", d)
	}
	if err := json.Unmarshal([]byte(`"yesterday"`), &d); err == nil {
		t.Fatalf("expected error for malformed date")
	}
}

func TestExpenseInputValidation(t *testing.T) {
	cases := []struct {
		name    string
		in      ExpenseInput
		wantMsg string
	}{
		{
			name:    "missing payee",
			in:      ExpenseInput{Amount: floatPtr(5.75), Date: strPtr("2017-06-01")},
			wantMsg: "Invalid expense: `payee` is required",
		},
		{
			name:    "blank payee",
			in:      ExpenseInput{Payee: strPtr("   "), Amount: floatPtr(5.75), Date: strPtr("2017-06-01")},
			wantMsg: "Invalid expense: `payee` is required",
		},
		{
			name:    "missing amount",
			in:      ExpenseInput{Payee: strPtr("Starbucks"), Date: strPtr("2017-06-01")},
			wantMsg: "Invalid expense: `amount` is required",
		},
		{
			name:    "missing date",
			in:      ExpenseInput{Payee: strPtr("Starbucks"), Amount: floatPtr(5.75)},
			wantMsg: "Invalid expense: `date` is required",
		},
		{
			name:    "malformed date",
			in:      ExpenseInput{Payee: strPtr("Starbucks"), Amount: floatPtr(5.75), Date: strPtr("June 1st")},
			wantMsg: "Invalid expense: `date` must be a YYYY-MM-DD date",
		},
		{
			name:    "padded date",
			in:      ExpenseInput{Payee: strPtr("Starbucks"), Amount: floatPtr(5.75), Date: strPtr(" 2017-06-01")},
			wantMsg: "Invalid expense: `date` must be a YYYY-MM-DD date",
		},
		{
			name:    "payee checked first",
			in:      ExpenseInput{},
			wantMsg: "Invalid expense: `payee` is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.in.Expense()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if verr.Error() != tc.wantMsg {
				t.Fatalf("got %q, want %q", verr.Error(), tc.wantMsg)
			}
		})
	}
}

func TestExpenseInputValid(t *testing.T) {
	e, err := ExpenseInput{
		Payee:  strPtr(" Starbucks "),
		Amount: floatPtr(5.75),
		Date:   strPtr("2017-06-01"),
	}.Expense()
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if e.ID != 0 || e.Payee != "Starbucks" || e.Amount != 5.75 || e.Date.String() != "2017-06-01" {
		t.Fatalf("unexpected expense %+v", e)
	}
}

func TestExpenseJSON(t *testing.T) {
	b, err := json.Marshal(Expense{ID: 1, Payee: "Starbucks", Amount: 5.75, Date: NewDate(2017, 6, 1)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"id":1,"payee":"Starbucks","amount":5.75,"date":"2017-06-01"}`
	if string(b) != want {
		t.Fatalf("got %s, want %s", b, want)
	}
}
