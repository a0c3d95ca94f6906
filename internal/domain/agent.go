package domain

import "time"

// Agent is an automated responder configuration. Config holds the serialized
// agent.Config structure; it is validated at the API boundary before save.
type Agent struct {
	ID        int64     `json:"id,string" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"index"`
	Config    string    `json:"config"` // json-encoded agent.Config
	Remark    string    `json:"remark"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Agent) TableName() string {
	return "agent"
}

// AgentAssignment binds an agent to a session or to a single chat.
// ContactNumber empty means a session-level default; non-empty is a chat-level
// override for that contact, which wins over any default (including an
// explicit disabled record, which suppresses all agents for the chat).
type AgentAssignment struct {
	ID            int64     `json:"id,string" gorm:"primaryKey"`
	AgentId       int64     `json:"agent_id,string" gorm:"index"`
	SessionId     string    `json:"session_id" gorm:"index"`
	ContactNumber string    `json:"contact_number" gorm:"index"`
	Priority      int       `json:"priority"`
	Enabled       bool      `json:"enabled"`
	AssignedAt    time.Time `json:"assigned_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (AgentAssignment) TableName() string {
	return "agent_assignment"
}
