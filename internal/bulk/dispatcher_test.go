package bulk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/waconsole/internal/hub"
	"github.com/talkincode/waconsole/internal/session"
)

type fakeStates struct {
	mu     sync.Mutex
	states map[string]session.State
}

func newFakeStates(ready ...string) *fakeStates {
	f := &fakeStates{states: make(map[string]session.State)}
	for _, id := range ready {
		f.states[id] = session.StateReady
	}
	return f
}

func (f *fakeStates) set(id string, st session.State) {
	f.mu.Lock()
	f.states[id] = st
	f.mu.Unlock()
}

func (f *fakeStates) Get(id string) (session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.states[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	return session.Session{ID: id, State: st}, nil
}

type sendRecord struct {
	sessionID string
	contact   string
	at        time.Time
}

type fakeSender struct {
	mu      sync.Mutex
	sends   []sendRecord
	failFor map[string]error
	delay   time.Duration
}

func newFakeSender() *fakeSender {
	return &fakeSender{failFor: make(map[string]error)}
}

func (f *fakeSender) SendText(ctx context.Context, sessionID, to, body string) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.sends = append(f.sends, sendRecord{sessionID: sessionID, contact: to, at: time.Now()})
	err := f.failFor[to]
	f.mu.Unlock()
	return err
}

func (f *fakeSender) records() []sendRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sendRecord(nil), f.sends...)
}

type capturePub struct {
	mu     sync.Mutex
	events []hub.Event
}

func (p *capturePub) Publish(e hub.Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *capturePub) all() []hub.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]hub.Event(nil), p.events...)
}

type captureSink struct {
	mu   sync.Mutex
	jobs []Job
}

func (s *captureSink) SaveCampaignResults(ctx context.Context, campaignID int64, sessionID string, jobs []Job) error {
	s.mu.Lock()
	s.jobs = append([]Job(nil), jobs...)
	s.mu.Unlock()
	return nil
}

func waitDone(t *testing.T, d *Dispatcher, id int64) Campaign {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := d.Snapshot(id)
		require.NoError(t, err)
		if snap.Done {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("campaign did not finish in time")
	return Campaign{}
}

func jobsFor(n int) []JobInput {
	out := make([]JobInput, n)
	for i := range out {
		out[i] = JobInput{Contact: fmt.Sprintf("contact-%d", i), Body: "hi"}
	}
	return out
}

func TestDispatcherRunsSequentiallyWithMinDelay(t *testing.T) {
	states := newFakeStates("s1")
	sender := newFakeSender()
	sender.failFor["contact-2"] = errors.New("recipient rejected")
	pub := &capturePub{}
	sink := &captureSink{}

	d, err := NewDispatcher(states, sender, pub, sink, 4, time.Second)
	require.NoError(t, err)
	defer d.Release()

	const minDelay = 20 * time.Millisecond
	start := time.Now()
	id, err := d.Start("s1", jobsFor(5), minDelay)
	require.NoError(t, err)

	snap := waitDone(t, d, id)
	elapsed := time.Since(start)

	// One failed job does not stop the campaign.
	assert.Equal(t, 5, snap.Completed)
	assert.Equal(t, JobFailed, snap.Jobs[2].Status)
	assert.Contains(t, snap.Jobs[2].Error, "recipient rejected")
	for _, i := range []int{0, 1, 3, 4} {
		assert.Equal(t, JobSent, snap.Jobs[i].Status)
	}

	// 5 jobs mean at least 4 inter-send delays, failures included.
	assert.GreaterOrEqual(t, elapsed, 4*minDelay)

	// One progress event per job.
	var progress []Progress
	for _, e := range pub.all() {
		if e.Type == hub.EventBulkProgress {
			progress = append(progress, e.Payload.(Progress))
		}
	}
	require.Len(t, progress, 5)
	for i, p := range progress {
		assert.Equal(t, i+1, p.Completed)
		assert.Equal(t, 5, p.Total)
	}

	// Results reached the sink.
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Len(t, sink.jobs, 5)
}

func TestDispatcherRejectsInvalidInput(t *testing.T) {
	d, err := NewDispatcher(newFakeStates("s1"), newFakeSender(), nil, nil, 4, time.Second)
	require.NoError(t, err)
	defer d.Release()

	_, err = d.Start("s1", nil, time.Millisecond)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = d.Start("s1", jobsFor(1), -time.Millisecond)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDispatcherRejectsNotReadySession(t *testing.T) {
	states := newFakeStates("s1")
	states.set("s1", session.StateConnected)
	d, err := NewDispatcher(states, newFakeSender(), nil, nil, 4, time.Second)
	require.NoError(t, err)
	defer d.Release()

	_, err = d.Start("s1", jobsFor(1), 0)
	assert.ErrorIs(t, err, ErrSessionNotReady)

	_, err = d.Start("unknown", jobsFor(1), 0)
	assert.ErrorIs(t, err, ErrSessionNotReady)
}

func TestDispatcherCancelStopsRemainingJobs(t *testing.T) {
	states := newFakeStates("s1")
	sender := newFakeSender()
	pub := &capturePub{}
	d, err := NewDispatcher(states, sender, pub, nil, 4, time.Second)
	require.NoError(t, err)
	defer d.Release()

	id, err := d.Start("s1", jobsFor(50), 20*time.Millisecond)
	require.NoError(t, err)

	// Let a couple of jobs through, then cancel.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, d.Cancel(id))
	snap := waitDone(t, d, id)

	assert.True(t, snap.Cancelled)
	assert.Less(t, snap.Completed, 50)

	// A final event is published even though the campaign stopped short.
	events := pub.all()
	require.NotEmpty(t, events)
	last := events[len(events)-1].Payload.(Progress)
	assert.True(t, last.Cancelled)

	// Cancel is idempotent; unknown ids are reported.
	assert.NoError(t, d.Cancel(id))
	assert.ErrorIs(t, d.Cancel(999), ErrNotFound)
}

func TestDispatcherSerializesCampaignsPerSession(t *testing.T) {
	states := newFakeStates("s1")
	sender := newFakeSender()
	sender.delay = 5 * time.Millisecond
	d, err := NewDispatcher(states, sender, nil, nil, 4, time.Second)
	require.NoError(t, err)
	defer d.Release()

	id1, err := d.Start("s1", []JobInput{{Contact: "a1", Body: "x"}, {Contact: "a2", Body: "x"}}, 0)
	require.NoError(t, err)
	id2, err := d.Start("s1", []JobInput{{Contact: "b1", Body: "x"}, {Contact: "b2", Body: "x"}}, 0)
	require.NoError(t, err)

	waitDone(t, d, id1)
	waitDone(t, d, id2)

	recs := sender.records()
	require.Len(t, recs, 4)
	// Sends from the two campaigns never interleave.
	first := recs[0].contact[:1]
	assert.Equal(t, first, recs[1].contact[:1])
	assert.Equal(t, recs[2].contact[:1], recs[3].contact[:1])
	assert.NotEqual(t, first, recs[2].contact[:1])
}

func TestDispatcherConcurrentSessionsProceedIndependently(t *testing.T) {
	states := newFakeStates("s1", "s2")
	sender := newFakeSender()
	d, err := NewDispatcher(states, sender, nil, nil, 4, time.Second)
	require.NoError(t, err)
	defer d.Release()

	id1, err := d.Start("s1", jobsFor(3), 10*time.Millisecond)
	require.NoError(t, err)
	id2, err := d.Start("s2", jobsFor(3), 10*time.Millisecond)
	require.NoError(t, err)

	snap1 := waitDone(t, d, id1)
	snap2 := waitDone(t, d, id2)
	assert.Equal(t, 3, snap1.Completed)
	assert.Equal(t, 3, snap2.Completed)
	assert.Len(t, d.List(), 2)
}

func TestDispatcherEvictsFinishedCampaigns(t *testing.T) {
	states := newFakeStates("s1")
	d, err := NewDispatcher(states, newFakeSender(), nil, nil, 4, time.Second)
	require.NoError(t, err)
	defer d.Release()
	d.retention = 150 * time.Millisecond

	id, err := d.Start("s1", jobsFor(1), 0)
	require.NoError(t, err)
	snap := waitDone(t, d, id)
	assert.Equal(t, 1, snap.Completed)

	// The snapshot stays available through the retention window, then the
	// campaign leaves memory; only the persisted log remains.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err = d.Snapshot(id); errors.Is(err, ErrNotFound) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("finished campaign was never evicted")
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Empty(t, d.List())
}

func TestDispatcherSnapshotUnknownCampaign(t *testing.T) {
	d, err := NewDispatcher(newFakeStates(), newFakeSender(), nil, nil, 4, time.Second)
	require.NoError(t, err)
	defer d.Release()

	_, err = d.Snapshot(42)
	assert.ErrorIs(t, err, ErrNotFound)
}
