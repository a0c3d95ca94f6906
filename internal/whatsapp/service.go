// Package whatsapp owns one driver adapter per session and glues the driver
// boundary to the registry, the hub, the agent router and the persistence
// layer.
package whatsapp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/talkincode/waconsole/internal/app"
	"github.com/talkincode/waconsole/internal/bulk"
	"github.com/talkincode/waconsole/internal/domain"
	"github.com/talkincode/waconsole/internal/driver"
	"github.com/talkincode/waconsole/internal/hub"
	"github.com/talkincode/waconsole/internal/session"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.uber.org/zap"
)

// deviceMarker tags whatsmeow store devices with our session id so they can
// be re-linked after a restart.
func deviceMarker(sessionID string) string { return "wacon:" + sessionID }

// MessagePayload is the payload of message.received / message.sent events.
type MessagePayload struct {
	Contact string `json:"contact"`
	Body    string `json:"body"`
	AgentID int64  `json:"agent_id,string,omitempty"`
}

// Service wraps the whatsmeow clients and provides session lifecycle
// operations for the API layer, plus the Sender used by the bulk dispatcher
// and the agent responder.
type Service struct {
	app   app.AppContext
	store *sqlstore.Container

	mu       sync.RWMutex
	adapters map[string]*driver.WhatsmeowAdapter // keyed by session id

	sendTimeout time.Duration
}

// New builds the service on top of the application's database connection so
// whatsmeow tables live in the same database, re-links persisted devices to
// registry sessions, and registers the inbound routing pipeline.
func New(a app.AppContext) (*Service, error) {
	gdb := a.DB()
	sqlDB, err := gdb.DB()
	if err != nil {
		zap.L().Error("whatsapp: failed to get sql.DB from gorm", zap.Error(err))
		return nil, fmt.Errorf("failed to obtain underlying sql.DB: %w", err)
	}

	dbType := strings.ToLower(strings.TrimSpace(a.Config().Database.Type))
	driverName := "postgres"
	if dbType == "sqlite" || dbType == "sqlite3" {
		driverName = "sqlite3"
	}

	container := sqlstore.NewWithDB(sqlDB, driverName, nil)
	if err := container.Upgrade(); err != nil {
		zap.L().Error("whatsapp: sqlstore.Upgrade failed", zap.Error(err), zap.String("driver", driverName))
		return nil, fmt.Errorf("sqlstore upgrade failed: %w", err)
	}

	svc := &Service{
		app:         a,
		store:       container,
		adapters:    make(map[string]*driver.WhatsmeowAdapter),
		sendTimeout: time.Duration(a.Config().WhatsApp.SendTimeout) * time.Second,
	}
	if svc.sendTimeout <= 0 {
		svc.sendTimeout = driver.SendTimeout
	}

	if err := svc.restoreAccounts(); err != nil {
		return nil, err
	}

	setGlobalService(svc)
	zap.L().Info("whatsapp: service initialized",
		zap.Int("sessions", len(svc.adapters)),
		zap.String("driver", driverName))
	return svc, nil
}

// restoreAccounts re-creates registry sessions and adapters for accounts
// persisted in earlier runs.
func (s *Service) restoreAccounts() error {
	devices, err := s.store.GetAllDevices()
	if err != nil {
		zap.L().Error("whatsapp: failed to list stored devices", zap.Error(err))
		return fmt.Errorf("sqlstore GetAllDevices failed: %w", err)
	}
	byMarker := make(map[string]*whatsmeow.Client, len(devices))
	for _, d := range devices {
		if d == nil {
			continue
		}
		byMarker[d.BusinessName] = whatsmeow.NewClient(d, nil)
	}

	var accounts []domain.WhatsAppAccount
	if err := s.app.DB().Find(&accounts).Error; err != nil {
		zap.L().Warn("whatsapp: failed to query accounts for restore", zap.Error(err))
		return nil
	}
	for _, acct := range accounts {
		if _, err := s.app.Registry().Create(acct.SessionId); err != nil {
			zap.L().Warn("whatsapp: restore create session failed", zap.String("session_id", acct.SessionId), zap.Error(err))
			continue
		}
		cli, ok := byMarker[deviceMarker(acct.SessionId)]
		if !ok {
			// Account row without a persisted device: provision a fresh one
			// so pairing can restart.
			dev := s.store.NewDevice()
			dev.PushName = acct.Name
			dev.BusinessName = deviceMarker(acct.SessionId)
			if err := s.store.PutDevice(dev); err != nil {
				zap.L().Warn("whatsapp: PutDevice failed during restore", zap.Error(err), zap.String("session_id", acct.SessionId))
			}
			cli = whatsmeow.NewClient(dev, nil)
		}
		s.register(acct.SessionId, cli)
	}
	return nil
}

func (s *Service) register(sessionID string, cli *whatsmeow.Client) *driver.WhatsmeowAdapter {
	adapter := driver.NewWhatsmeowAdapter(sessionID, cli, s.handleDriverEvent)
	s.mu.Lock()
	s.adapters[sessionID] = adapter
	s.mu.Unlock()
	return adapter
}

func (s *Service) adapter(sessionID string) (*driver.WhatsmeowAdapter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.adapters[sessionID]
	return a, ok
}

// Start connects all known sessions (when auto-connect is on) and blocks
// until the context is cancelled, then disconnects everything.
func (s *Service) Start(ctx context.Context) error {
	if s.app.Config().WhatsApp.AutoConnect {
		s.mu.RLock()
		ids := make([]string, 0, len(s.adapters))
		for id := range s.adapters {
			ids = append(ids, id)
		}
		s.mu.RUnlock()
		for _, id := range ids {
			s.connectAsync(id)
		}
	}

	<-ctx.Done()
	zap.L().Info("whatsapp: shutting down clients")
	s.mu.RLock()
	for _, a := range s.adapters {
		a.Disconnect()
	}
	s.mu.RUnlock()
	return nil
}

func (s *Service) connectAsync(sessionID string) {
	a, ok := s.adapter(sessionID)
	if !ok {
		return
	}
	go func() {
		if err := a.Connect(context.Background()); err != nil {
			zap.L().Warn("whatsapp: connect failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()
}

// CreateSession registers a new session, provisions a whatsmeow device for
// it and starts pairing. Returns the new session id.
func (s *Service) CreateSession(ctx context.Context, phone, name string) (string, error) {
	sessionID := uuid.NewString()
	if _, err := s.app.Registry().Create(sessionID); err != nil {
		return "", err
	}

	acct := &domain.WhatsAppAccount{
		SessionId: sessionID,
		Phone:     phone,
		Name:      name,
		Status:    "created",
	}
	if err := s.app.DB().WithContext(ctx).Create(acct).Error; err != nil {
		// Roll the registry entry back; the account row is the operator's
		// handle on the session.
		s.app.Registry().Remove(sessionID)
		return "", fmt.Errorf("failed to create account record: %w", err)
	}

	dev := s.store.NewDevice()
	dev.PushName = name
	dev.BusinessName = deviceMarker(sessionID)
	if err := s.store.PutDevice(dev); err != nil {
		zap.L().Warn("whatsapp: PutDevice failed, continuing with in-memory device",
			zap.Error(err), zap.String("session_id", sessionID))
	}

	s.register(sessionID, whatsmeow.NewClient(dev, nil))
	s.connectAsync(sessionID)
	zap.L().Info("whatsapp: session created", zap.String("session_id", sessionID), zap.String("name", name))
	return sessionID, nil
}

// ReconnectSession requests a reconnect for a disconnected session.
func (s *Service) ReconnectSession(sessionID string) error {
	if _, err := s.app.Registry().Transition(sessionID, session.Reconnect()); err != nil {
		return err
	}
	s.connectAsync(sessionID)
	return nil
}

// RemoveSession disconnects the driver, removes the registry record and
// deletes the account row. Future sends for the id are rejected with
// SessionNotReady; an in-flight send is not interrupted.
func (s *Service) RemoveSession(ctx context.Context, sessionID string) error {
	if a, ok := s.adapter(sessionID); ok {
		a.Disconnect()
	}
	s.mu.Lock()
	delete(s.adapters, sessionID)
	s.mu.Unlock()
	s.app.Registry().Remove(sessionID)

	if err := s.app.DB().WithContext(ctx).Where("session_id = ?", sessionID).
		Delete(&domain.WhatsAppAccount{}).Error; err != nil {
		zap.L().Warn("whatsapp: failed to delete account record", zap.Error(err), zap.String("session_id", sessionID))
	}
	zap.L().Info("whatsapp: session removed", zap.String("session_id", sessionID))
	return nil
}

// SendText sends one text message through the session's driver. It is the
// Sender used by the bulk dispatcher, the agent responder and the API.
func (s *Service) SendText(ctx context.Context, sessionID, to, body string) error {
	return s.sendText(ctx, sessionID, to, body, 0)
}

func (s *Service) sendText(ctx context.Context, sessionID, to, body string, agentID int64) error {
	st, err := s.app.Registry().Get(sessionID)
	if err != nil {
		return fmt.Errorf("%w: %s", bulk.ErrSessionNotReady, sessionID)
	}
	if st.State != session.StateReady {
		return fmt.Errorf("%w: %s is %s", bulk.ErrSessionNotReady, sessionID, st.State)
	}
	a, ok := s.adapter(sessionID)
	if !ok {
		return fmt.Errorf("%w: no driver for %s", bulk.ErrSessionNotReady, sessionID)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	if err := a.SendText(sendCtx, to, body); err != nil {
		return err
	}

	if _, err := s.app.Registry().Touch(sessionID, true); err != nil {
		zap.L().Debug("whatsapp: touch after send failed", zap.Error(err))
	}
	s.persistMessage(sessionID, to, body, domain.MessageDirOut, agentID)
	s.app.Hub().Publish(hub.NewEvent(sessionID, hub.EventMessageSent, MessagePayload{
		Contact: to,
		Body:    body,
		AgentID: agentID,
	}))
	return nil
}

// SendMedia sends a media payload through the session's driver.
func (s *Service) SendMedia(ctx context.Context, sessionID, to string, payload driver.MediaPayload) error {
	st, err := s.app.Registry().Get(sessionID)
	if err != nil || st.State != session.StateReady {
		return fmt.Errorf("%w: %s", bulk.ErrSessionNotReady, sessionID)
	}
	a, ok := s.adapter(sessionID)
	if !ok {
		return fmt.Errorf("%w: no driver for %s", bulk.ErrSessionNotReady, sessionID)
	}
	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	if err := a.SendMedia(sendCtx, to, payload); err != nil {
		return err
	}
	if _, err := s.app.Registry().Touch(sessionID, true); err != nil {
		zap.L().Debug("whatsapp: touch after media send failed", zap.Error(err))
	}
	s.app.Hub().Publish(hub.NewEvent(sessionID, hub.EventMessageSent, MessagePayload{
		Contact: to,
		Body:    "[media] " + payload.Filename,
	}))
	return nil
}

// handleDriverEvent applies driver lifecycle events to the registry and
// feeds inbound messages into the routing pipeline. Invalid transitions are
// already logged by the registry and never fatal here.
func (s *Service) handleDriverEvent(sessionID string, ev driver.Event) {
	switch ev.Kind {
	case driver.EventQRGenerated:
		_, _ = s.app.Registry().Transition(sessionID, session.QRGenerated(ev.QRPayload))
	case driver.EventAuthResumed:
		_, _ = s.app.Registry().Transition(sessionID, session.AuthResumed())
	case driver.EventScanSucceeded:
		if _, err := s.app.Registry().Transition(sessionID, session.ScanSucceeded()); err == nil {
			s.updateAccount(sessionID, map[string]interface{}{"status": "paired"})
		}
	case driver.EventSyncCompleted:
		if _, err := s.app.Registry().Transition(sessionID, session.SyncCompleted(ev.PhoneNumber)); err == nil {
			s.updateAccount(sessionID, map[string]interface{}{
				"status": "paired",
				"jid":    ev.PhoneNumber,
			})
		}
	case driver.EventDropped:
		_, _ = s.app.Registry().Transition(sessionID, session.Dropped(ev.Reason))
	case driver.EventFailed:
		_, _ = s.app.Registry().Transition(sessionID, session.Failed(ev.Reason))
	case driver.EventMessageReceived:
		s.handleInbound(sessionID, ev.From, ev.Body)
	}
}

func (s *Service) handleInbound(sessionID, from, body string) {
	if _, err := s.app.Registry().Touch(sessionID, true); err != nil {
		zap.L().Debug("whatsapp: inbound for unknown session", zap.String("session_id", sessionID))
		return
	}
	s.persistMessage(sessionID, from, body, domain.MessageDirIn, 0)
	s.app.Hub().Publish(hub.NewEvent(sessionID, hub.EventMessageReceived, MessagePayload{
		Contact: from,
		Body:    body,
	}))
	go s.autoReply(sessionID, from, body)
}

// autoReply resolves the responsible agent for the inbound message and, when
// one matches, generates and sends the reply. Assignments are re-read on
// every message.
func (s *Service) autoReply(sessionID, from, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	agentID, ok, err := s.app.Router().Resolve(ctx, sessionID, from)
	if err != nil || !ok {
		return
	}
	cfg, err := s.app.Repo().AgentConfigFor(ctx, agentID)
	if err != nil {
		zap.L().Warn("whatsapp: loading agent config failed",
			zap.Int64("agent_id", agentID), zap.Error(err))
		return
	}
	appCfg := s.app.Config().Agent
	responder := newAgentResponder(s, agentID, appCfg)
	if err := responder.Reply(ctx, agentID, cfg, sessionID, from, body); err != nil {
		zap.L().Warn("whatsapp: auto-reply failed",
			zap.Int64("agent_id", agentID),
			zap.String("session_id", sessionID),
			zap.String("contact", from),
			zap.Error(err))
	}
}

func (s *Service) persistMessage(sessionID, contact, body, direction string, agentID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.app.Repo().SaveMessage(ctx, &domain.Message{
		SessionId: sessionID,
		Contact:   contact,
		Direction: direction,
		Body:      body,
		AgentId:   agentID,
	})
	if err != nil {
		// Persistence failures never disturb the live connection.
		zap.L().Warn("whatsapp: persisting message failed",
			zap.String("session_id", sessionID),
			zap.String("direction", direction),
			zap.Error(err))
	}
}

func (s *Service) updateAccount(sessionID string, updates map[string]interface{}) {
	updates["updated_at"] = time.Now()
	if err := s.app.DB().Model(&domain.WhatsAppAccount{}).
		Where("session_id = ?", sessionID).Updates(updates).Error; err != nil {
		zap.L().Warn("whatsapp: account update failed", zap.Error(err), zap.String("session_id", sessionID))
	}
}

// package-level global reference for the running service instance
var (
	globalSvc     *Service
	globalSvcLock sync.RWMutex
)

func setGlobalService(s *Service) {
	globalSvcLock.Lock()
	defer globalSvcLock.Unlock()
	globalSvc = s
}

// Get returns the running WhatsApp service instance or nil if not
// initialized.
func Get() *Service {
	globalSvcLock.RLock()
	defer globalSvcLock.RUnlock()
	return globalSvc
}
