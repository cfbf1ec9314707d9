package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"presupuesto/internal/alerts"
)

// Event types double as routing keys on the exchange.
const (
	EventBudgetAlert = "budget.alert"
	EventSyncPending = "sync.pending"
)

// Event is the envelope of every published message.
type Event struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Alerts    []alerts.Alert `json:"alerts,omitempty"`
	Reason    string         `json:"reason,omitempty"`
}

func NewBudgetAlertEvent(list []alerts.Alert) *Event {
	return &Event{Type: EventBudgetAlert, Timestamp: time.Now().UTC(), Alerts: list}
}

// NewSyncPendingEvent announces that the local cache holds changes the
// remote store has not seen.
func NewSyncPendingEvent(reason string) *Event {
	return &Event{Type: EventSyncPending, Timestamp: time.Now().UTC(), Reason: reason}
}

// ToJSON converts the event to JSON bytes
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes an event and rejects envelopes without a type.
func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Type == "" {
		return nil, errors.New("event without type")
	}
	return &e, nil
}
