package hub

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

// EventType identifies the kind of fact carried by an Event.
type EventType string

const (
	EventSessionState    EventType = "session.state_changed"
	EventMessageReceived EventType = "message.received"
	EventMessageSent     EventType = "message.sent"
	EventBulkProgress    EventType = "bulk.progress"
)

// Event is an immutable fact broadcast through the hub. Events are
// fire-and-forget; the hub never persists them.
type Event struct {
	SessionID string      `json:"session_id"`
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Encode renders the event as the JSON shape sent to UI clients.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// NewEvent stamps an event with the current time.
func NewEvent(sessionID string, typ EventType, payload interface{}) Event {
	return Event{SessionID: sessionID, Type: typ, Payload: payload, Timestamp: time.Now()}
}
