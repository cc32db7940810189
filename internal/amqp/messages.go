package amqp

import (
	"encoding/json"
	"time"

	"github.com/graff012/finance-bot/internal/core"
)

// TransactionEvent is the lightweight record published after a ledger
// save. Consumers fetch anything heavier from the store by id.
type TransactionEvent struct {
	TransactionID int64     `json:"transaction_id"`
	UserID        int64     `json:"user_id"`
	Kind          string    `json:"kind"`
	AmountCents   int64     `json:"amount_cents"`
	Category      string    `json:"category"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionEvent builds the event for a freshly saved transaction.
func NewTransactionEvent(id int64, tx core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		TransactionID: id,
		UserID:        tx.UserID,
		Kind:          string(tx.Kind),
		AmountCents:   tx.Amount.Cents,
		Category:      tx.Category,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON parses an event from JSON bytes
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var event TransactionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
