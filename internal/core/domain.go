package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of an expense date.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar date with no time-of-day component, always in UTC.
	Date struct {
		time.Time
	}

	// Expense is a persisted payee/amount/date record.
	Expense struct {
		ID     int64   `json:"id"`
		Payee  string  `json:"payee"`
		Amount float64 `json:"amount"`
		Date   Date    `json:"date"`
	}

	// ExpenseInput is an expense as decoded from a request, before validation.
	// A nil field means the key was absent.
	ExpenseInput struct {
		Payee  *string
		Amount *float64
		Date   *string
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrExpenseNotFound = errors.New("expense not found")
)

// ValidationError reports the first field of an ExpenseInput that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Invalid expense: `%s` %s", e.Field, e.Reason)
}

func required(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "is required"}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string exactly as given; surrounding
// whitespace is not accepted. Anything else wraps ErrInvalidDate.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Expense validates the input and builds the Expense to persist.
// Every required field is checked in the order payee, amount, date;
// the returned error is a *ValidationError.
func (in ExpenseInput) Expense() (Expense, error) {
	if in.Payee == nil || strings.TrimSpace(*in.Payee) == "" {
		return Expense{}, required("payee")
	}
	if in.Amount == nil {
		return Expense{}, required("amount")
	}
	if in.Date == nil || strings.TrimSpace(*in.Date) == "" {
		return Expense{}, required("date")
	}
	date, err := ParseDate(*in.Date)
	if err != nil {
		return Expense{}, &ValidationError{Field: "date", Reason: "must be a YYYY-MM-DD date"}
	}

	return Expense{
		Payee:  strings.TrimSpace(*in.Payee),
		Amount: *in.Amount,
		Date:   date,
	}, nil
}
