package amqp

import (
	"encoding/json"
	"time"

	"finledger/internal/core"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// RecordEventMessage is a lightweight notification that a ledger record
// changed. It carries only the kind, action and id; consumers fetch the full
// record from the database when they need it.
type RecordEventMessage struct {
	Kind      core.RecordKind `json:"kind"`
	Action    string          `json:"action"`
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewRecordEventMessage creates an event for a record change.
func NewRecordEventMessage(kind core.RecordKind, action string, id int64) *RecordEventMessage {
	return &RecordEventMessage{
		Kind:      kind,
		Action:    action,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *RecordEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordEventMessageFromJSON creates a message from JSON bytes.
func RecordEventMessageFromJSON(data []byte) (*RecordEventMessage, error) {
	var msg RecordEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
