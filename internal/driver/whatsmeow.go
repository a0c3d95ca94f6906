package driver

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	waTypes "go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

// WhatsmeowAdapter wraps one whatsmeow client and translates its event
// stream into the driver Event vocabulary.
type WhatsmeowAdapter struct {
	sessionID string
	client    *whatsmeow.Client
	handler   EventHandler

	// per-connection-cycle guards so each lifecycle edge is emitted once
	sawQR     atomic.Bool
	connected atomic.Bool
	synced    atomic.Bool
}

// NewWhatsmeowAdapter registers the translating event handler on the client.
// The client is not connected until Connect is called.
func NewWhatsmeowAdapter(sessionID string, client *whatsmeow.Client, handler EventHandler) *WhatsmeowAdapter {
	a := &WhatsmeowAdapter{sessionID: sessionID, client: client, handler: handler}
	client.AddEventHandler(a.translate)
	return a
}

// Client exposes the wrapped whatsmeow client for provisioning code.
func (a *WhatsmeowAdapter) Client() *whatsmeow.Client { return a.client }

// Connect starts (or resumes) the session. Pairing QR codes arrive through
// the event handler.
func (a *WhatsmeowAdapter) Connect(ctx context.Context) error {
	a.sawQR.Store(false)
	a.connected.Store(false)
	a.synced.Store(false)
	done := make(chan error, 1)
	go func() { done <- a.client.Connect() }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Disconnect closes the websocket; the session can be resumed later.
func (a *WhatsmeowAdapter) Disconnect() {
	a.client.Disconnect()
}

// SendText sends a plain conversation message.
func (a *WhatsmeowAdapter) SendText(ctx context.Context, to, body string) error {
	jid, err := parseJID(to)
	if err != nil {
		return err
	}
	msg := &waE2E.Message{Conversation: proto.String(body)}
	_, err = a.client.SendMessage(ctx, jid, msg)
	if err != nil {
		zap.L().Warn("driver: send text failed",
			zap.String("session_id", a.sessionID),
			zap.String("to", to),
			zap.Error(err))
		return err
	}
	return nil
}

// SendMedia uploads the payload and sends it as a document message.
func (a *WhatsmeowAdapter) SendMedia(ctx context.Context, to string, payload MediaPayload) error {
	jid, err := parseJID(to)
	if err != nil {
		return err
	}
	up, err := a.client.Upload(ctx, payload.Data, whatsmeow.MediaDocument)
	if err != nil {
		return fmt.Errorf("media upload failed: %w", err)
	}
	msg := &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
		Title:         proto.String(payload.Filename),
		FileName:      proto.String(payload.Filename),
		Mimetype:      proto.String(payload.MimeType),
		Caption:       proto.String(payload.Caption),
		URL:           proto.String(up.URL),
		DirectPath:    proto.String(up.DirectPath),
		MediaKey:      up.MediaKey,
		FileEncSHA256: up.FileEncSHA256,
		FileSHA256:    up.FileSHA256,
		FileLength:    proto.Uint64(up.FileLength),
	}}
	_, err = a.client.SendMessage(ctx, jid, msg)
	if err != nil {
		zap.L().Warn("driver: send media failed",
			zap.String("session_id", a.sessionID),
			zap.String("to", to),
			zap.Error(err))
		return err
	}
	return nil
}

func (a *WhatsmeowAdapter) emit(ev Event) {
	if a.handler == nil {
		return
	}
	ev.Timestamp = time.Now()
	a.handler(a.sessionID, ev)
}

// translate maps whatsmeow events onto the lifecycle edges the registry
// understands. Pairing flow: QR -> PairSuccess -> Connected ->
// OfflineSyncCompleted. Resumed auth skips straight to Connected.
func (a *WhatsmeowAdapter) translate(evt interface{}) {
	switch e := evt.(type) {
	case *events.QR:
		if len(e.Codes) == 0 {
			return
		}
		a.sawQR.Store(true)
		a.emit(Event{Kind: EventQRGenerated, QRPayload: e.Codes[0]})
	case *events.PairSuccess:
		if a.connected.CompareAndSwap(false, true) {
			a.emit(Event{Kind: EventScanSucceeded})
		}
	case *events.Connected:
		// A Connected without a preceding QR/PairSuccess means the stored
		// credentials were resumed.
		if !a.sawQR.Load() && a.connected.CompareAndSwap(false, true) {
			a.emit(Event{Kind: EventAuthResumed})
		}
	case *events.OfflineSyncCompleted:
		if a.synced.CompareAndSwap(false, true) {
			a.emit(Event{Kind: EventSyncCompleted, PhoneNumber: a.ownNumber()})
		}
	case *events.Disconnected:
		a.emit(Event{Kind: EventDropped, Reason: "connection dropped"})
	case *events.StreamReplaced:
		a.emit(Event{Kind: EventDropped, Reason: "stream replaced by another device"})
	case *events.LoggedOut:
		a.emit(Event{Kind: EventFailed, Reason: fmt.Sprintf("logged out: %s", e.Reason)})
	case *events.Message:
		from, body := extractMessage(e)
		if body == "" {
			return
		}
		a.emit(Event{Kind: EventMessageReceived, From: from, Body: body})
	default:
		zap.L().Debug("driver: unhandled whatsmeow event",
			zap.String("session_id", a.sessionID),
			zap.String("type", fmt.Sprintf("%T", evt)))
	}
}

func (a *WhatsmeowAdapter) ownNumber() string {
	if a.client.Store == nil || a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.User
}

func extractMessage(e *events.Message) (from, body string) {
	from = e.Info.Sender.User
	msg := e.Message
	if msg == nil {
		return from, ""
	}
	if conv := msg.GetConversation(); conv != "" {
		return from, conv
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return from, ext.GetText()
	}
	return from, ""
}

func parseJID(to string) (waTypes.JID, error) {
	if !strings.ContainsRune(to, '@') {
		to = to + "@" + waTypes.DefaultUserServer
	}
	jid, err := waTypes.ParseJID(to)
	if err != nil {
		return waTypes.JID{}, fmt.Errorf("invalid jid %q: %w", to, err)
	}
	return jid, nil
}
