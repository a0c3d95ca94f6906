package hub

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(sub *Subscription) []Event {
	var out []Event
	for {
		select {
		case e := <-sub.Events():
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestHubDeliversMatchingEvents(t *testing.T) {
	h := New(8)
	sub := h.Subscribe("ui-1", Filter{})
	defer h.Unsubscribe(sub)

	h.Publish(NewEvent("s1", EventMessageReceived, "hello"))
	h.Publish(NewEvent("s2", EventSessionState, nil))

	events := drain(sub)
	require.Len(t, events, 2)
	assert.Equal(t, "s1", events[0].SessionID)
	assert.Equal(t, EventSessionState, events[1].Type)
}

func TestHubFilterBySessionAndType(t *testing.T) {
	h := New(8)
	bySession := h.Subscribe("ui-1", Filter{SessionID: "s1"})
	byType := h.Subscribe("ui-2", Filter{Type: EventBulkProgress})
	both := h.Subscribe("ui-3", Filter{SessionID: "s1", Type: EventBulkProgress})
	defer h.Unsubscribe(bySession)
	defer h.Unsubscribe(byType)
	defer h.Unsubscribe(both)

	h.Publish(NewEvent("s1", EventMessageReceived, nil))
	h.Publish(NewEvent("s2", EventBulkProgress, nil))
	h.Publish(NewEvent("s1", EventBulkProgress, nil))

	assert.Len(t, drain(bySession), 2)
	assert.Len(t, drain(byType), 2)
	assert.Len(t, drain(both), 1)
}

func TestHubDropOldestOnOverflow(t *testing.T) {
	const capacity = 4
	const published = 10
	h := New(capacity)
	sub := h.Subscribe("slow", Filter{})
	defer h.Unsubscribe(sub)

	for i := 0; i < published; i++ {
		h.Publish(NewEvent("s1", EventMessageReceived, i))
	}

	events := drain(sub)
	require.Len(t, events, capacity)
	// The retained events are the newest ones, still in publish order.
	for i, e := range events {
		assert.Equal(t, published-capacity+i, e.Payload)
	}
	assert.EqualValues(t, published-capacity, sub.Dropped())
	assert.EqualValues(t, published-capacity, h.Dropped())
}

func TestHubSlowSubscriberDoesNotAffectOthers(t *testing.T) {
	h := New(2)
	slow := h.Subscribe("slow", Filter{})
	fast := h.Subscribe("fast", Filter{})
	defer h.Unsubscribe(slow)
	defer h.Unsubscribe(fast)

	// The fast client consumes each event as it is published; the slow one
	// never reads and overflows its queue.
	var got []Event
	for i := 0; i < 6; i++ {
		h.Publish(NewEvent("s1", EventMessageReceived, i))
		select {
		case e := <-fast.Events():
			got = append(got, e)
		case <-time.After(time.Second):
			t.Fatal("fast subscriber starved by slow one")
		}
	}

	require.Len(t, got, 6)
	for i, e := range got {
		assert.Equal(t, i, e.Payload)
	}
	assert.EqualValues(t, 4, slow.Dropped())
	assert.EqualValues(t, 0, fast.Dropped())
}

func TestHubUnsubscribeIdempotent(t *testing.T) {
	h := New(4)
	sub := h.Subscribe("ui-1", Filter{})
	assert.Equal(t, 1, h.SubscriberCount())

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
	h.Unsubscribe(nil)
	assert.Equal(t, 0, h.SubscriberCount())

	select {
	case <-sub.Done():
	default:
		t.Fatal("Done not closed after unsubscribe")
	}

	// Publishing after removal is a silent no-op for this subscriber.
	h.Publish(NewEvent("s1", EventMessageReceived, nil))
	assert.Empty(t, drain(sub))
}

func TestHubConcurrentPublishOrderPerSubscriber(t *testing.T) {
	h := New(1024)
	sub := h.Subscribe("ui-1", Filter{SessionID: "s1"})
	defer h.Unsubscribe(sub)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				h.Publish(NewEvent("s1", EventMessageReceived, fmt.Sprintf("%d-%d", p, i)))
			}
		}(p)
	}
	wg.Wait()

	events := drain(sub)
	require.Len(t, events, 200)
	assert.EqualValues(t, 0, sub.Dropped())

	// Each publisher's events must arrive as an in-order subsequence even
	// though the four streams interleave arbitrarily.
	next := make(map[int]int)
	for _, e := range events {
		var p, i int
		_, err := fmt.Sscanf(e.Payload.(string), "%d-%d", &p, &i)
		require.NoError(t, err)
		assert.Equal(t, next[p], i, "publisher %d out of order", p)
		next[p] = i + 1
	}
	for p := 0; p < 4; p++ {
		assert.Equal(t, 50, next[p])
	}
}

func TestEventEncode(t *testing.T) {
	e := NewEvent("s1", EventBulkProgress, map[string]int{"completed": 3})
	data, err := e.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"bulk.progress"`)
	assert.Contains(t, string(data), `"session_id":"s1"`)
}
