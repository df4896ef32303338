package core

import "encoding/json"

// RecordResult is the outcome of a write attempt. It is built only through
// Recorded or Rejected, so an id and an error message are never both set.
type RecordResult struct {
	success   bool
	expenseID int64
	errorMsg  string
}

// Recorded reports a persisted expense with the id the store assigned.
func Recorded(id int64) RecordResult {
	return RecordResult{success: true, expenseID: id}
}

// Rejected reports an expense that failed validation and was not persisted.
func Rejected(message string) RecordResult {
	return RecordResult{errorMsg: message}
}

func (r RecordResult) Success() bool {
	return r.success
}

// ExpenseID returns the assigned id; ok is false for a rejected result.
func (r RecordResult) ExpenseID() (id int64, ok bool) {
	return r.expenseID, r.success
}

// ErrorMessage returns the validation message; ok is false for a recorded result.
func (r RecordResult) ErrorMessage() (msg string, ok bool) {
	return r.errorMsg, !r.success
}

type recordResultJSON struct {
	Success      bool    `json:"success"`
	ExpenseID    *int64  `json:"expense_id"`
	ErrorMessage *string `json:"error_message"`
}

func (r RecordResult) MarshalJSON() ([]byte, error) {
	out := recordResultJSON{Success: r.success}
	if id, ok := r.ExpenseID(); ok {
		out.ExpenseID = &id
	}
	if msg, ok := r.ErrorMessage(); ok {
		out.ErrorMessage = &msg
	}
	return json.Marshal(out)
}
