package domain

import "time"

// CampaignLog is the persisted outcome of one bulk-send job. Campaign state
// itself lives in memory for the campaign's lifetime; these rows are written
// best-effort once the campaign finishes.
type CampaignLog struct {
	ID         int64     `json:"id,string" gorm:"primaryKey"`
	CampaignId int64     `json:"campaign_id,string" gorm:"index"`
	SessionId  string    `json:"session_id" gorm:"index"`
	Contact    string    `json:"contact"`
	Body       string    `json:"body"`
	Status     string    `json:"status"` // pending | sent | failed | skipped
	Error      string    `json:"error"`
	CreatedAt  time.Time `json:"created_at"`
}

func (CampaignLog) TableName() string {
	return "campaign_log"
}
