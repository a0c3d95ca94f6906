package session

import "time"

// State is the lifecycle state of one WhatsApp account connection.
type State string

const (
	StateInitializing State = "initializing"
	StateAwaitingScan State = "awaiting_scan"
	StateConnected    State = "connected"
	StateReady        State = "ready"
	StateDisconnected State = "disconnected"
	StateFailed       State = "failed"
)

// Session is the registry's record for one WhatsApp account. Values handed
// out by the registry are copies; the authoritative record is mutated only
// through Registry operations.
type Session struct {
	ID           string    `json:"id"`
	State        State     `json:"state"`
	PhoneNumber  string    `json:"phone_number,omitempty"`
	QRPayload    string    `json:"qr_payload,omitempty"`
	FailReason   string    `json:"fail_reason,omitempty"`
	LastActivity time.Time `json:"last_activity_at"`
	MessageCount int64     `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// TriggerKind names a lifecycle edge reported by the driver or an operator.
type TriggerKind string

const (
	TriggerQRGenerated   TriggerKind = "qr_generated"
	TriggerAuthResumed   TriggerKind = "auth_resumed"
	TriggerScanSucceeded TriggerKind = "scan_succeeded"
	TriggerSyncCompleted TriggerKind = "sync_completed"
	TriggerDropped       TriggerKind = "dropped"
	TriggerReconnect     TriggerKind = "reconnect"
	TriggerFailed        TriggerKind = "failed"
)

// Trigger is a transition request applied through Registry.Transition.
type Trigger struct {
	Kind        TriggerKind
	QRPayload   string // qr_generated
	PhoneNumber string // sync_completed
	Reason      string // dropped / failed
}

func QRGenerated(payload string) Trigger {
	return Trigger{Kind: TriggerQRGenerated, QRPayload: payload}
}

func AuthResumed() Trigger { return Trigger{Kind: TriggerAuthResumed} }

func ScanSucceeded() Trigger { return Trigger{Kind: TriggerScanSucceeded} }

func SyncCompleted(phone string) Trigger {
	return Trigger{Kind: TriggerSyncCompleted, PhoneNumber: phone}
}

func Dropped(reason string) Trigger { return Trigger{Kind: TriggerDropped, Reason: reason} }

func Reconnect() Trigger { return Trigger{Kind: TriggerReconnect} }

func Failed(reason string) Trigger { return Trigger{Kind: TriggerFailed, Reason: reason} }
