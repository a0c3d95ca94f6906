package domain

import "time"

// Contact is an address-book entry scoped to one WhatsApp session.
type Contact struct {
	ID        int64     `json:"id,string" gorm:"primaryKey"`
	SessionId string    `json:"session_id" gorm:"index" csv:"session_id"`
	Number    string    `json:"number" gorm:"index" csv:"number"`
	Name      string    `json:"name" csv:"name"`
	Tags      string    `json:"tags" csv:"tags"`
	Remark    string    `json:"remark" csv:"-"`
	CreatedAt time.Time `json:"created_at" csv:"-"`
	UpdatedAt time.Time `json:"updated_at" csv:"-"`
}

func (Contact) TableName() string {
	return "contact"
}
