package domain

import "time"

// WhatsAppAccount links a registry session id to a persisted WhatsApp device
// entry. Live connection state is owned by the session registry; Status here
// only records the provisioning stage for the admin UI.
type WhatsAppAccount struct {
	ID        int64     `json:"id,string" gorm:"primaryKey"`
	SessionId string    `json:"session_id" gorm:"uniqueIndex"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Jid       string    `json:"jid"`    // populated after pairing
	Status    string    `json:"status"` // e.g., created, provisioned, paired
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (WhatsAppAccount) TableName() string {
	return "whatsapp_account"
}
