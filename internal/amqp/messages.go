package amqp

import (
	"encoding/json"
	"time"
)

// ExpenseRecordedMessage announces a newly recorded expense. It carries only
// the id and date; consumers read the full row from the store.
type ExpenseRecordedMessage struct {
	ID        int64     `json:"id"`
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseRecordedMessage(id int64, date string) *ExpenseRecordedMessage {
	return &ExpenseRecordedMessage{
		ID:        id,
		Date:      date,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ExpenseRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseRecordedMessageFromJSON(data []byte) (*ExpenseRecordedMessage, error) {
	var msg ExpenseRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
