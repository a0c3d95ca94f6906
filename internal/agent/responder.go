package agent

import (
	"context"
	"fmt"
	"math/rand"
	"time"
	"unicode/utf8"

	"github.com/guonaihong/gout"
	"go.uber.org/zap"
)

// Sender performs the single outbound send for a generated reply.
type Sender interface {
	SendText(ctx context.Context, sessionID, to, body string) error
}

// Responder turns an inbound message into an agent reply: it waits a
// randomized delay within the agent's configured bounds, calls the AI
// completion endpoint and sends the (truncated) result through the driver.
type Responder struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	sender   Sender
}

func NewResponder(endpoint, apiKey string, timeout time.Duration, sender Sender) *Responder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Responder{endpoint: endpoint, apiKey: apiKey, timeout: timeout, sender: sender}
}

type completionRequest struct {
	Personality string `json:"personality"`
	Message     string `json:"message"`
	Contact     string `json:"contact"`
}

type completionResponse struct {
	Reply string `json:"reply"`
}

// Reply handles one inbound message for a resolved agent. A non-matching
// keyword filter is not an error; the message is simply left unanswered.
func (r *Responder) Reply(ctx context.Context, agentID int64, cfg Config, sessionID, contact, inbound string) error {
	if r.endpoint == "" {
		return fmt.Errorf("agent: completion endpoint not configured")
	}
	if !cfg.Matches(inbound) {
		return nil
	}

	if delay := replyDelay(cfg); delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	var out completionResponse
	err := gout.POST(r.endpoint).
		SetTimeout(r.timeout).
		SetHeader(gout.H{"Authorization": "Bearer " + r.apiKey}).
		SetJSON(completionRequest{
			Personality: cfg.Personality,
			Message:     inbound,
			Contact:     contact,
		}).
		BindJSON(&out).
		Do()
	if err != nil {
		return fmt.Errorf("agent: completion call failed: %w", err)
	}
	reply := out.Reply
	if reply == "" {
		zap.L().Debug("agent: empty completion, skipping reply",
			zap.Int64("agent_id", agentID),
			zap.String("session_id", sessionID))
		return nil
	}
	reply = truncateReply(reply, cfg.MaxReplyLength)
	zap.L().Info("agent: sending auto-reply",
		zap.Int64("agent_id", agentID),
		zap.String("session_id", sessionID),
		zap.String("contact", contact),
		zap.Int("reply_len", len(reply)))
	return r.sender.SendText(ctx, sessionID, contact, reply)
}

// truncateReply cuts the reply to at most max bytes without splitting a
// multi-byte rune; the cut backs up to the previous rune boundary.
func truncateReply(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func replyDelay(cfg Config) time.Duration {
	if cfg.MaxReplyDelayMs <= 0 {
		return 0
	}
	span := cfg.MaxReplyDelayMs - cfg.MinReplyDelayMs
	ms := cfg.MinReplyDelayMs
	if span > 0 {
		ms += rand.Intn(span + 1)
	}
	return time.Duration(ms) * time.Millisecond
}
