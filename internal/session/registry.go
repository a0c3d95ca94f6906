// Package session holds the in-memory session registry: the single source of
// truth for every WhatsApp account's connection state. All mutation goes
// through the legal-transition table below; readers always get copies.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/talkincode/waconsole/internal/hub"
	"github.com/talkincode/waconsole/pkg/metrics"
	"go.uber.org/zap"
)

var (
	ErrAlreadyExists     = errors.New("session already exists")
	ErrNotFound          = errors.New("session not found")
	ErrInvalidTransition = errors.New("invalid session transition")
)

// Publisher receives the state-change events the registry emits. Satisfied by
// *hub.Hub.
type Publisher interface {
	Publish(hub.Event)
}

// StateChange is the payload of a session.state_changed event.
type StateChange struct {
	From    State   `json:"from"`
	To      State   `json:"to"`
	Session Session `json:"session"`
}

// Registry owns every session record. Transitions for a single session are
// serialized behind the registry mutex, and state-change events are published
// under that same mutex so event order always matches transition order.
type Registry struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	order     []string
	publisher Publisher
	onFailed  func(Session)
}

// NewRegistry creates an empty registry publishing state changes to pub.
func NewRegistry(pub Publisher) *Registry {
	return &Registry{
		sessions:  make(map[string]*Session),
		publisher: pub,
	}
}

// SetFailureHook installs a callback invoked (on its own goroutine) whenever
// a session enters the failed state. Used for operator alerting.
func (r *Registry) SetFailureHook(fn func(Session)) {
	r.mu.Lock()
	r.onFailed = fn
	r.mu.Unlock()
}

// Create registers a new session in the initializing state.
func (r *Registry) Create(id string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		return Session{}, fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	}
	now := time.Now()
	s := &Session{
		ID:           id,
		State:        StateInitializing,
		LastActivity: now,
		CreatedAt:    now,
	}
	r.sessions[id] = s
	r.order = append(r.order, id)
	metrics.SetGauge("registry_sessions", int64(len(r.sessions)))
	zap.L().Info("registry: session created", zap.String("session_id", id))
	return *s, nil
}

// Get returns a snapshot of the session.
func (r *Registry) Get(id string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *s, nil
}

// List returns snapshots of all sessions in insertion order.
func (r *Registry) List() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Session, 0, len(r.order))
	for _, id := range r.order {
		if s, ok := r.sessions[id]; ok {
			out = append(out, *s)
		}
	}
	return out
}

// Remove deletes the session record. Removing an unknown id is a no-op so
// deletion stays idempotent.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return
	}
	delete(r.sessions, id)
	for i, sid := range r.order {
		if sid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	metrics.SetGauge("registry_sessions", int64(len(r.sessions)))
	zap.L().Info("registry: session removed", zap.String("session_id", id))
}

// Transition applies a lifecycle trigger. Illegal triggers leave the session
// completely untouched and return ErrInvalidTransition; the caller decides
// whether to retry or surface the error. On success the matching
// session.state_changed event is published synchronously before returning.
func (r *Registry) Transition(id string, tr Trigger) (Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	from := s.State
	if !apply(s, tr) {
		r.mu.Unlock()
		zap.L().Warn("registry: invalid transition",
			zap.String("session_id", id),
			zap.String("state", string(from)),
			zap.String("trigger", string(tr.Kind)))
		return Session{}, fmt.Errorf("%w: %s + %s", ErrInvalidTransition, from, tr.Kind)
	}
	s.LastActivity = time.Now()
	snapshot := *s
	onFailed := r.onFailed
	if r.publisher != nil {
		// Published while still holding the mutex so subscribers observe
		// state changes in apply order. Hub publish is drop-oldest and
		// never blocks.
		r.publisher.Publish(hub.NewEvent(id, hub.EventSessionState, StateChange{
			From:    from,
			To:      snapshot.State,
			Session: snapshot,
		}))
	}
	r.mu.Unlock()

	zap.L().Info("registry: session transition",
		zap.String("session_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(snapshot.State)))
	if snapshot.State == StateFailed && from != StateFailed && onFailed != nil {
		go onFailed(snapshot)
	}
	return snapshot, nil
}

// Touch updates the session's activity timestamp and optionally bumps the
// message counter. Used by the driver layer on every inbound/outbound event.
func (r *Registry) Touch(id string, countMessage bool) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.LastActivity = time.Now()
	if countMessage {
		s.MessageCount++
	}
	return *s, nil
}

// apply mutates s according to the legal-transition table. It returns false,
// leaving s untouched, when the trigger is not legal for the current state.
// QRPayload and PhoneNumber stay mutually exclusive: setting one clears the
// other.
func apply(s *Session, tr Trigger) bool {
	switch tr.Kind {
	case TriggerQRGenerated:
		if s.State != StateInitializing {
			return false
		}
		s.State = StateAwaitingScan
		s.QRPayload = tr.QRPayload
		s.PhoneNumber = ""
	case TriggerAuthResumed:
		if s.State != StateInitializing {
			return false
		}
		s.State = StateConnected
	case TriggerScanSucceeded:
		if s.State != StateAwaitingScan {
			return false
		}
		s.State = StateConnected
		s.QRPayload = ""
	case TriggerSyncCompleted:
		if s.State != StateConnected {
			return false
		}
		s.State = StateReady
		s.QRPayload = ""
		s.PhoneNumber = tr.PhoneNumber
	case TriggerDropped:
		switch s.State {
		case StateAwaitingScan, StateConnected, StateReady:
		default:
			return false
		}
		s.State = StateDisconnected
		s.QRPayload = ""
	case TriggerReconnect:
		if s.State != StateDisconnected {
			return false
		}
		s.State = StateInitializing
		s.QRPayload = ""
		s.PhoneNumber = ""
		s.FailReason = ""
	case TriggerFailed:
		// Unrecoverable driver errors are accepted from any state; failed is
		// terminal and requires operator-initiated recreation.
		s.State = StateFailed
		s.QRPayload = ""
		s.FailReason = tr.Reason
	default:
		return false
	}
	return true
}
