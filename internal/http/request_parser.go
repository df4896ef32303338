// Package http provides the JSON API server and its handlers.
//
// This file decodes request bodies into the shape the ledger validates.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"expenses/internal/core"
)

// maxBodyBytes caps a POST /expenses body.
const maxBodyBytes = 1 << 20

// fieldNames are the body keys, matched case-sensitively.
var fieldNames = []string{"payee", "amount", "date"}

// expenseRequest is the accepted body of POST /expenses. Pointer fields keep
// "absent" distinct from a zero value; unknown keys such as id are ignored.
type expenseRequest struct {
	Payee  *string  `json:"payee"`
	Amount *float64 `json:"amount"`
	Date   *string  `json:"date"`
}

// RequestError is a body that could not be decoded into an expense shape.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// DecodeExpenseInput reads one JSON object from the request body.
// Anything that is not a single object with correctly typed fields is a
// *RequestError; field presence is left to ledger validation.
func DecodeExpenseInput(w http.ResponseWriter, r *http.Request) (core.ExpenseInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return core.ExpenseInput{}, decodeError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return core.ExpenseInput{}, &RequestError{Message: "request body must contain a single JSON object"}
	}

	// encoding/json folds key case; the wire names do not
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return core.ExpenseInput{}, decodeError(err)
	}
	if err := checkFieldNames(keys); err != nil {
		return core.ExpenseInput{}, err
	}

	var req expenseRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return core.ExpenseInput{}, decodeError(err)
	}

	return core.ExpenseInput{
		Payee:  req.Payee,
		Amount: req.Amount,
		Date:   req.Date,
	}, nil
}

func checkFieldNames(keys map[string]json.RawMessage) error {
	for key := range keys {
		for _, name := range fieldNames {
			if key != name && strings.EqualFold(key, name) {
				return &RequestError{Message: fmt.Sprintf("unknown field `%s`: did you mean `%s`?", key, name)}
			}
		}
	}
	return nil
}

func decodeError(err error) error {
	var (
		syntaxErr   *json.SyntaxError
		typeErr     *json.UnmarshalTypeError
		tooLargeErr *http.MaxBytesError
	)
	switch {
	case errors.Is(err, io.EOF):
		return &RequestError{Message: "request body is empty"}
	case errors.As(err, &tooLargeErr):
		return &RequestError{Message: fmt.Sprintf("request body exceeds %d bytes", tooLargeErr.Limit)}
	case errors.As(err, &typeErr):
		if typeErr.Field == "" {
			return &RequestError{Message: "request body must be a JSON object"}
		}
		return &RequestError{Message: fmt.Sprintf("field `%s` must be a %s", typeErr.Field, expectedType(typeErr.Field))}
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return &RequestError{Message: "malformed JSON body"}
	default:
		return &RequestError{Message: "malformed JSON body"}
	}
}

func expectedType(field string) string {
	if field == "amount" {
		return "number"
	}
	return "string"
}
