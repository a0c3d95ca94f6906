package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	assignments []Assignment
	err         error
	calls       int
}

func (s *staticSource) GetAssignments(ctx context.Context, sessionID, contactNumber string) ([]Assignment, error) {
	s.calls++
	return s.assignments, s.err
}

func at(offset time.Duration) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(offset)
}

func TestRouterChatLevelWinsOverDefault(t *testing.T) {
	src := &staticSource{assignments: []Assignment{
		{AgentID: 1, SessionID: "s1", ContactNumber: "", Priority: 100, Enabled: true, AssignedAt: at(0)},
		{AgentID: 2, SessionID: "s1", ContactNumber: "628111", Priority: 0, Enabled: true, AssignedAt: at(time.Hour)},
	}}
	r := NewRouter(src)

	id, ok, err := r.Resolve(context.Background(), "s1", "628111")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 2, id)
}

func TestRouterDisabledChatLevelSuppressesAll(t *testing.T) {
	src := &staticSource{assignments: []Assignment{
		{AgentID: 1, SessionID: "s1", ContactNumber: "", Priority: 100, Enabled: true, AssignedAt: at(0)},
		{AgentID: 2, SessionID: "s1", ContactNumber: "628111", Enabled: false, AssignedAt: at(0)},
	}}
	r := NewRouter(src)

	_, ok, err := r.Resolve(context.Background(), "s1", "628111")
	require.NoError(t, err)
	assert.False(t, ok, "per-chat opt-out must also block session defaults")

	// Other contacts still get the session default.
	id, ok, err := r.Resolve(context.Background(), "s1", "628222")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 1, id)
}

func TestRouterDefaultPriorityAndTieBreak(t *testing.T) {
	src := &staticSource{assignments: []Assignment{
		{AgentID: 1, SessionID: "s1", Priority: 5, Enabled: true, AssignedAt: at(2 * time.Hour)},
		{AgentID: 2, SessionID: "s1", Priority: 10, Enabled: true, AssignedAt: at(time.Hour)},
		{AgentID: 3, SessionID: "s1", Priority: 10, Enabled: true, AssignedAt: at(0)},
		{AgentID: 4, SessionID: "s1", Priority: 99, Enabled: false, AssignedAt: at(0)},
	}}
	r := NewRouter(src)

	id, ok, err := r.Resolve(context.Background(), "s1", "628111")
	require.NoError(t, err)
	assert.True(t, ok)
	// Highest enabled priority wins; the tie goes to the earliest assignment.
	assert.EqualValues(t, 3, id)
}

func TestRouterNoAssignments(t *testing.T) {
	r := NewRouter(&staticSource{})
	_, ok, err := r.Resolve(context.Background(), "s1", "628111")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRouterSourceErrorPropagates(t *testing.T) {
	src := &staticSource{err: errors.New("db down")}
	r := NewRouter(src)
	_, ok, err := r.Resolve(context.Background(), "s1", "628111")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRouterReadsSourceEveryResolve(t *testing.T) {
	src := &staticSource{assignments: []Assignment{
		{AgentID: 1, SessionID: "s1", Enabled: true, AssignedAt: at(0)},
	}}
	r := NewRouter(src)

	for i := 0; i < 3; i++ {
		_, _, err := r.Resolve(context.Background(), "s1", "628111")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, src.calls)
}

func TestRouterIgnoresForeignSessions(t *testing.T) {
	src := &staticSource{assignments: []Assignment{
		{AgentID: 1, SessionID: "other", Enabled: true, AssignedAt: at(0)},
	}}
	r := NewRouter(src)
	_, ok, err := r.Resolve(context.Background(), "s1", "628111")
	require.NoError(t, err)
	assert.False(t, ok)
}
