package whatsapp

import (
	"context"
	"time"

	"github.com/talkincode/waconsole/config"
	"github.com/talkincode/waconsole/internal/agent"
)

// agentSender routes agent replies through the service send path so they are
// persisted and published with the agent id attached.
type agentSender struct {
	svc     *Service
	agentID int64
}

func (s agentSender) SendText(ctx context.Context, sessionID, to, body string) error {
	return s.svc.sendText(ctx, sessionID, to, body, s.agentID)
}

func newAgentResponder(svc *Service, agentID int64, cfg config.AgentConfig) *agent.Responder {
	return agent.NewResponder(
		cfg.Endpoint,
		cfg.ApiKey,
		time.Duration(cfg.Timeout)*time.Second,
		agentSender{svc: svc, agentID: agentID},
	)
}
