package domain

import "time"

const (
	MessageDirIn  = "in"
	MessageDirOut = "out"
)

// Message is one row of per-session message history.
type Message struct {
	ID        int64     `json:"id,string" gorm:"primaryKey"`
	SessionId string    `json:"session_id" gorm:"index"`
	Contact   string    `json:"contact" gorm:"index"` // remote phone number
	Direction string    `json:"direction"`            // in | out
	Body      string    `json:"body"`
	AgentId   int64     `json:"agent_id,string"` // non-zero when sent by an auto-reply agent
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (Message) TableName() string {
	return "message"
}

// MsgTemplate is a reusable message body with {{placeholders}}.
type MsgTemplate struct {
	ID        int64     `json:"id,string" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"index"`
	Body      string    `json:"body"`
	Remark    string    `json:"remark"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (MsgTemplate) TableName() string {
	return "msg_template"
}
