package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names a change to the transactions table.
type EventType string

const (
	EventCreated  EventType = "transaction.created"
	EventUpdated  EventType = "transaction.updated"
	EventDeleted  EventType = "transaction.deleted"
	EventImported EventType = "transactions.imported"
)

func (t EventType) valid() bool {
	switch t {
	case EventCreated, EventUpdated, EventDeleted, EventImported:
		return true
	}
	return false
}

// TransactionEvent is a lightweight change notification. It carries only the
// id; consumers fetch the current row from the database when they need it.
type TransactionEvent struct {
	Type      EventType `json:"type"`
	ID        int64     `json:"id,omitempty"`
	Count     int       `json:"count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionEvent creates a created/updated/deleted event for one row.
func NewTransactionEvent(t EventType, id int64) *TransactionEvent {
	return &TransactionEvent{
		Type:      t,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

// NewImportEvent reports a completed CSV import of count rows.
func NewImportEvent(count int) *TransactionEvent {
	return &TransactionEvent{
		Type:      EventImported,
		Count:     count,
		Timestamp: time.Now().UTC(),
	}
}

func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes an event and rejects unknown types.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if !e.Type.valid() {
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	return &e, nil
}
