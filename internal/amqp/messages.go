package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

type (
	RecordKind   string
	RecordAction string
)

const (
	KindExpense  RecordKind = "expense"
	KindIncome   RecordKind = "income"
	KindGoal     RecordKind = "goal"
	KindCategory RecordKind = "category"

	ActionCreated    RecordAction = "created"
	ActionUpdated    RecordAction = "updated"
	ActionDeleted    RecordAction = "deleted"
	ActionDeletedAll RecordAction = "deleted_all"
)

// RecordEvent announces a change to a user's records.
// It carries identifiers only; consumers reload state from the database.
type RecordEvent struct {
	Kind      RecordKind   `json:"kind"`
	Action    RecordAction `json:"action"`
	UserID    int64        `json:"user_id"`
	RecordID  int64        `json:"record_id,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewRecordEvent stamps an event with the current time.
func NewRecordEvent(kind RecordKind, action RecordAction, userID, recordID int64) *RecordEvent {
	return &RecordEvent{
		Kind:      kind,
		Action:    action,
		UserID:    userID,
		RecordID:  recordID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordEventFromJSON decodes an event and rejects ones without a kind or action.
func RecordEventFromJSON(data []byte) (*RecordEvent, error) {
	var msg RecordEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Kind == "" || msg.Action == "" {
		return nil, errors.New("record event missing kind or action")
	}
	return &msg, nil
}
