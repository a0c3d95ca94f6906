// Package agent resolves which AI auto-reply agent (if any) answers an
// inbound message, and generates the reply through the configured completion
// endpoint.
package agent

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Assignment is a priority-ordered binding of an agent to a session or to a
// single chat. ContactNumber empty means a session-level default.
type Assignment struct {
	AgentID       int64
	SessionID     string
	ContactNumber string
	Priority      int
	Enabled       bool
	AssignedAt    time.Time
}

// AssignmentSource loads the current assignments for a session, including
// chat-level records for the given contact. Assignments change at any time,
// so the router re-reads them on every inbound message.
type AssignmentSource interface {
	GetAssignments(ctx context.Context, sessionID, contactNumber string) ([]Assignment, error)
}

// Router picks the responsible agent for an inbound message. It is a pure
// reader over assignment state and never caches across messages.
type Router struct {
	source AssignmentSource
}

func NewRouter(source AssignmentSource) *Router {
	return &Router{source: source}
}

// Resolve returns the responsible agent id for (session, contact), or false
// when no agent should answer. Resolution order, first match wins:
//  1. enabled chat-level assignment for the exact contact;
//  2. a chat-level record that is disabled suppresses every agent, session
//     defaults included;
//  3. enabled session-level default with the highest priority, ties broken by
//     earliest AssignedAt;
//  4. no agent.
func (r *Router) Resolve(ctx context.Context, sessionID, contactNumber string) (int64, bool, error) {
	assignments, err := r.source.GetAssignments(ctx, sessionID, contactNumber)
	if err != nil {
		zap.L().Warn("agent: loading assignments failed",
			zap.String("session_id", sessionID),
			zap.String("contact", contactNumber),
			zap.Error(err))
		return 0, false, err
	}

	var chatLevel, defaults []Assignment
	for _, a := range assignments {
		if a.SessionID != sessionID {
			continue
		}
		switch a.ContactNumber {
		case contactNumber:
			if contactNumber != "" {
				chatLevel = append(chatLevel, a)
			}
		case "":
			defaults = append(defaults, a)
		}
	}

	if len(chatLevel) > 0 {
		if best, ok := pickBest(chatLevel); ok {
			return best.AgentID, true, nil
		}
		// Explicit per-chat opt-out always wins over session defaults.
		return 0, false, nil
	}
	if best, ok := pickBest(defaults); ok {
		return best.AgentID, true, nil
	}
	return 0, false, nil
}

// pickBest returns the enabled assignment with the highest priority, ties
// broken by earliest AssignedAt.
func pickBest(list []Assignment) (Assignment, bool) {
	enabled := make([]Assignment, 0, len(list))
	for _, a := range list {
		if a.Enabled {
			enabled = append(enabled, a)
		}
	}
	if len(enabled) == 0 {
		return Assignment{}, false
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		if enabled[i].Priority != enabled[j].Priority {
			return enabled[i].Priority > enabled[j].Priority
		}
		return enabled[i].AssignedAt.Before(enabled[j].AssignedAt)
	})
	return enabled[0], true
}
