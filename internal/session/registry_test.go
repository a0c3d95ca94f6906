package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/waconsole/internal/hub"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []hub.Event
}

func (p *capturePublisher) Publish(e hub.Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *capturePublisher) all() []hub.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]hub.Event(nil), p.events...)
}

func TestRegistryCreate(t *testing.T) {
	r := NewRegistry(nil)

	s, err := r.Create("s1")
	require.NoError(t, err)
	assert.Equal(t, StateInitializing, s.State)
	assert.Equal(t, "s1", s.ID)
	assert.False(t, s.CreatedAt.IsZero())

	_, err = r.Create("s1")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryListInsertionOrder(t *testing.T) {
	r := NewRegistry(nil)
	for _, id := range []string{"c", "a", "b"} {
		_, err := r.Create(id)
		require.NoError(t, err)
	}
	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "a", list[1].ID)
	assert.Equal(t, "b", list[2].ID)
}

func TestRegistryPairingFlow(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Create("s1")
	require.NoError(t, err)

	s, err := r.Transition("s1", QRGenerated("qr-payload"))
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingScan, s.State)
	assert.Equal(t, "qr-payload", s.QRPayload)

	s, err = r.Transition("s1", ScanSucceeded())
	require.NoError(t, err)
	assert.Equal(t, StateConnected, s.State)
	assert.Empty(t, s.QRPayload)

	s, err = r.Transition("s1", SyncCompleted("628123456"))
	require.NoError(t, err)
	assert.Equal(t, StateReady, s.State)
	assert.Equal(t, "628123456", s.PhoneNumber)
	assert.Empty(t, s.QRPayload)
}

func TestRegistryResumedAuthSkipsScan(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Create("s1")
	require.NoError(t, err)

	s, err := r.Transition("s1", AuthResumed())
	require.NoError(t, err)
	assert.Equal(t, StateConnected, s.State)
}

func TestRegistryInvalidTransitionLeavesStateUntouched(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Create("s1")
	require.NoError(t, err)

	// Cannot complete a scan that never started.
	_, err = r.Transition("s1", ScanSucceeded())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	s, err := r.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, StateInitializing, s.State)

	// Cannot drop a session that never connected.
	_, err = r.Transition("s1", Dropped("network"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRegistryReconnectKeepsMessageCount(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Create("s1")
	require.NoError(t, err)
	_, err = r.Transition("s1", AuthResumed())
	require.NoError(t, err)
	_, err = r.Transition("s1", SyncCompleted("628123456"))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err = r.Touch("s1", true)
		require.NoError(t, err)
	}

	s, err := r.Transition("s1", Dropped("socket closed"))
	require.NoError(t, err)
	assert.Equal(t, StateDisconnected, s.State)

	s, err = r.Transition("s1", Reconnect())
	require.NoError(t, err)
	assert.Equal(t, StateInitializing, s.State)
	assert.Empty(t, s.PhoneNumber)
	assert.Empty(t, s.QRPayload)
	assert.EqualValues(t, 5, s.MessageCount)
}

func TestRegistryFailedIsTerminal(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Create("s1")
	require.NoError(t, err)

	s, err := r.Transition("s1", Failed("logged out"))
	require.NoError(t, err)
	assert.Equal(t, StateFailed, s.State)
	assert.Equal(t, "logged out", s.FailReason)

	// No trigger leaves the failed state.
	for _, tr := range []Trigger{QRGenerated("x"), AuthResumed(), ScanSucceeded(), SyncCompleted("1"), Dropped("d"), Reconnect()} {
		_, err = r.Transition("s1", tr)
		assert.ErrorIs(t, err, ErrInvalidTransition, "trigger %s", tr.Kind)
	}
}

func TestRegistryQRAndPhoneMutuallyExclusive(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Create("s1")
	require.NoError(t, err)

	s, _ := r.Transition("s1", QRGenerated("qr1"))
	assert.NotEmpty(t, s.QRPayload)
	assert.Empty(t, s.PhoneNumber)

	_, _ = r.Transition("s1", ScanSucceeded())
	s, _ = r.Transition("s1", SyncCompleted("628"))
	assert.Empty(t, s.QRPayload)
	assert.NotEmpty(t, s.PhoneNumber)
}

func TestRegistryPublishesStateChanges(t *testing.T) {
	pub := &capturePublisher{}
	r := NewRegistry(pub)
	_, err := r.Create("s1")
	require.NoError(t, err)

	_, err = r.Transition("s1", AuthResumed())
	require.NoError(t, err)

	events := pub.all()
	require.Len(t, events, 1)
	assert.Equal(t, hub.EventSessionState, events[0].Type)
	assert.Equal(t, "s1", events[0].SessionID)
	payload, ok := events[0].Payload.(StateChange)
	require.True(t, ok)
	assert.Equal(t, StateInitializing, payload.From)
	assert.Equal(t, StateConnected, payload.To)

	// Rejected transitions publish nothing.
	_, _ = r.Transition("s1", Reconnect())
	assert.Len(t, pub.all(), 1)
}

func TestRegistryPublishOrderMatchesTransitionOrder(t *testing.T) {
	pub := &capturePublisher{}
	r := NewRegistry(pub)
	_, err := r.Create("s1")
	require.NoError(t, err)
	_, err = r.Transition("s1", AuthResumed())
	require.NoError(t, err)
	_, err = r.Transition("s1", SyncCompleted("628123456"))
	require.NoError(t, err)

	// Four goroutines race the ready -> disconnected -> initializing ->
	// connected -> ready cycle; most attempts lose and are rejected, the
	// winners interleave in some schedule-dependent order.
	triggers := []Trigger{Dropped("socket closed"), Reconnect(), AuthResumed(), SyncCompleted("628123456")}
	var wg sync.WaitGroup
	for _, tr := range triggers {
		wg.Add(1)
		go func(tr Trigger) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, _ = r.Transition("s1", tr)
			}
		}(tr)
	}
	wg.Wait()

	// Whatever the interleaving was, the published events must chain: each
	// event starts from the state the previous one ended in.
	events := pub.all()
	require.NotEmpty(t, events)
	prev := StateReady
	for i, e := range events[2:] {
		payload, ok := e.Payload.(StateChange)
		require.True(t, ok)
		assert.Equal(t, prev, payload.From, "event %d out of order", i)
		prev = payload.To
	}
}

func TestRegistryFailureHook(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Create("s1")
	require.NoError(t, err)

	got := make(chan Session, 1)
	r.SetFailureHook(func(s Session) { got <- s })

	_, err = r.Transition("s1", Failed("banned"))
	require.NoError(t, err)

	s := <-got
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, "banned", s.FailReason)
}

func TestRegistryRemoveIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Create("s1")
	require.NoError(t, err)

	r.Remove("s1")
	r.Remove("s1")
	r.Remove("never-existed")

	_, err = r.Get("s1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, r.List())
}
