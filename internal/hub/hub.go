// Package hub implements the in-process publish/subscribe broker that fans
// registry and message events out to connected UI clients. Each subscriber
// owns an independent bounded queue with a drop-oldest overflow policy, so a
// slow client can never block publishers or starve other clients.
package hub

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/talkincode/waconsole/pkg/metrics"
	"go.uber.org/zap"
)

// Filter selects events by session id and/or type. A zero field matches
// everything.
type Filter struct {
	SessionID string
	Type      EventType
}

// Match reports whether the event passes the filter.
func (f Filter) Match(e Event) bool {
	if f.SessionID != "" && f.SessionID != e.SessionID {
		return false
	}
	if f.Type != "" && f.Type != e.Type {
		return false
	}
	return true
}

// Subscription is one client's registration with the hub. Events are consumed
// from Events(); Done() is closed when the subscription is removed.
type Subscription struct {
	id       string
	clientID string
	filter   Filter

	queue   chan Event
	done    chan struct{}
	dropped atomic.Int64

	// enqMu serializes enqueues so the drop-oldest dance keeps per-session
	// publish order intact under concurrent publishers.
	enqMu sync.Mutex
}

// ID returns the unique subscription handle id.
func (s *Subscription) ID() string { return s.id }

// ClientID returns the subscribing client's identifier.
func (s *Subscription) ClientID() string { return s.clientID }

// Events is the delivery channel. It is never closed; consumers must also
// select on Done().
func (s *Subscription) Events() <-chan Event { return s.queue }

// Done is closed when the subscription has been removed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Dropped returns how many events were discarded because this subscriber's
// queue was full.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

func (s *Subscription) enqueue(e Event, hubDropped *atomic.Int64) {
	s.enqMu.Lock()
	defer s.enqMu.Unlock()
	select {
	case <-s.done:
		return
	default:
	}
	for {
		select {
		case s.queue <- e:
			return
		default:
		}
		// Queue full: discard the oldest undelivered event and retry.
		select {
		case <-s.queue:
			s.dropped.Add(1)
			hubDropped.Add(1)
			metrics.IncrCounter("hub_dropped_events", 1)
		default:
		}
	}
}

// Hub distributes published events to every matching subscription.
type Hub struct {
	mu        sync.RWMutex
	subs      map[string]*Subscription
	queueSize int
	dropped   atomic.Int64
}

// New creates a hub whose subscribers each get a queue of the given capacity.
func New(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Hub{
		subs:      make(map[string]*Subscription),
		queueSize: queueSize,
	}
}

// Subscribe registers a filtered subscription for the client. A client may
// hold any number of subscriptions.
func (h *Hub) Subscribe(clientID string, filter Filter) *Subscription {
	sub := &Subscription{
		id:       uuid.NewString(),
		clientID: clientID,
		filter:   filter,
		queue:    make(chan Event, h.queueSize),
		done:     make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()
	zap.L().Debug("hub: subscribed",
		zap.String("client_id", clientID),
		zap.String("sub_id", sub.id),
		zap.String("filter_session", filter.SessionID),
		zap.String("filter_type", string(filter.Type)))
	return sub
}

// Unsubscribe removes the subscription and discards pending deliveries.
// Calling it again, or with an already removed subscription, is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	_, exists := h.subs[sub.id]
	if exists {
		delete(h.subs, sub.id)
		close(sub.done)
	}
	h.mu.Unlock()
	if exists {
		zap.L().Debug("hub: unsubscribed", zap.String("sub_id", sub.id), zap.Int64("dropped", sub.Dropped()))
	}
}

// Publish delivers the event to every subscription whose filter matches.
// Delivery to one subscriber never blocks on another; a full queue drops that
// subscriber's oldest event. No error is ever reported to the publisher.
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	matched := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.filter.Match(e) {
			matched = append(matched, sub)
		}
	}
	h.mu.RUnlock()
	for _, sub := range matched {
		sub.enqueue(e, &h.dropped)
	}
}

// SubscriberCount returns how many subscriptions are currently registered.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns the hub-wide count of discarded events.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
