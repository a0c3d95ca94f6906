// Package driver defines the boundary contract with the external WhatsApp
// protocol client, plus the production whatsmeow-backed adapter. The core
// only ever sees this interface and the translated events.
package driver

import (
	"context"
	"time"
)

// SendTimeout bounds a single outbound send attempt. A driver answer beyond
// it is treated as a failure; retrying is the caller's policy.
const SendTimeout = 30 * time.Second

// EventKind names a translated driver event.
type EventKind string

const (
	EventQRGenerated     EventKind = "qr_generated"
	EventAuthResumed     EventKind = "auth_resumed"
	EventScanSucceeded   EventKind = "scan_succeeded"
	EventSyncCompleted   EventKind = "sync_completed"
	EventDropped         EventKind = "dropped"
	EventFailed          EventKind = "failed"
	EventMessageReceived EventKind = "message_received"
)

// Event is one lifecycle or message fact reported by an adapter. Adapters
// emit exactly one terminal event per lifecycle edge.
type Event struct {
	Kind        EventKind
	QRPayload   string // qr_generated
	PhoneNumber string // sync_completed
	Reason      string // dropped / failed
	From        string // message_received
	Body        string // message_received
	Timestamp   time.Time
}

// EventHandler receives translated events for a session.
type EventHandler func(sessionID string, ev Event)

// MediaPayload carries an outbound media attachment.
type MediaPayload struct {
	MimeType string
	Filename string
	Caption  string
	Data     []byte
}

// Driver is the per-session connection handle. Connect and the send calls
// are the only operations that may block on network I/O.
type Driver interface {
	Connect(ctx context.Context) error
	Disconnect()
	SendText(ctx context.Context, to, body string) error
	SendMedia(ctx context.Context, to string, payload MediaPayload) error
}
