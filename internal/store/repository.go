// Package store is the persistence boundary. Everything here is best-effort
// from the core's point of view: a failed write surfaces as a *StorageError
// that callers log without disturbing in-memory state.
package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/talkincode/waconsole/internal/agent"
	"github.com/talkincode/waconsole/internal/bulk"
	"github.com/talkincode/waconsole/internal/domain"
	"gorm.io/gorm"
)

// ErrNotFound reports a lookup miss; it is never wrapped as a StorageError.
var ErrNotFound = stderrors.New("record not found")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StorageError wraps a database failure. The wrapped cause carries a
// pkg/errors stack for diagnostics.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error in %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err is (or wraps) a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return stderrors.As(err, &se)
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	}
	return &StorageError{Op: op, Err: errors.WithStack(err)}
}

// Repository is the gorm-backed implementation of the persistence boundary.
// It also satisfies agent.AssignmentSource and bulk.ResultSink.
type Repository struct {
	db   *gorm.DB
	node *snowflake.Node
}

func NewRepository(db *gorm.DB) (*Repository, error) {
	node, err := snowflake.NewNode(2)
	if err != nil {
		return nil, err
	}
	return &Repository{db: db, node: node}, nil
}

// SaveMessage appends one message-history row.
func (r *Repository) SaveMessage(ctx context.Context, m *domain.Message) error {
	if m.ID == 0 {
		m.ID = r.node.Generate().Int64()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	return wrap("SaveMessage", r.db.WithContext(ctx).Create(m).Error)
}

// GetMessages returns history for a session, optionally narrowed to one
// contact and a lower time bound, newest rows last.
func (r *Repository) GetMessages(ctx context.Context, sessionID, contact string, since time.Time, limit int) ([]domain.Message, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	q := r.db.WithContext(ctx).Where("session_id = ?", sessionID)
	if contact != "" {
		q = q.Where("contact = ?", contact)
	}
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	var out []domain.Message
	err := q.Order("created_at ASC").Limit(limit).Find(&out).Error
	return out, wrap("GetMessages", err)
}

// SaveContact upserts an address-book entry keyed by (session, number).
func (r *Repository) SaveContact(ctx context.Context, c *domain.Contact) error {
	var existing domain.Contact
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND number = ?", c.SessionId, c.Number).
		First(&existing).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{"updated_at": time.Now()}
		if c.Name != "" {
			updates["name"] = c.Name
		}
		if c.Tags != "" {
			updates["tags"] = c.Tags
		}
		return wrap("SaveContact", r.db.WithContext(ctx).
			Model(&domain.Contact{}).Where("id = ?", existing.ID).Updates(updates).Error)
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		if c.ID == 0 {
			c.ID = r.node.Generate().Int64()
		}
		return wrap("SaveContact", r.db.WithContext(ctx).Create(c).Error)
	default:
		return wrap("SaveContact", err)
	}
}

// GetContacts lists the address book for one session.
func (r *Repository) GetContacts(ctx context.Context, sessionID string) ([]domain.Contact, error) {
	var out []domain.Contact
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("name ASC").Find(&out).Error
	return out, wrap("GetContacts", err)
}

// GetAssignments implements agent.AssignmentSource: session-level defaults
// plus chat-level records for the given contact.
func (r *Repository) GetAssignments(ctx context.Context, sessionID, contactNumber string) ([]agent.Assignment, error) {
	var rows []domain.AgentAssignment
	q := r.db.WithContext(ctx).Where("session_id = ?", sessionID)
	if contactNumber != "" {
		q = q.Where("contact_number = '' OR contact_number = ?", contactNumber)
	} else {
		q = q.Where("contact_number = ''")
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, wrap("GetAssignments", err)
	}
	out := make([]agent.Assignment, 0, len(rows))
	for _, row := range rows {
		out = append(out, agent.Assignment{
			AgentID:       row.AgentId,
			SessionID:     row.SessionId,
			ContactNumber: row.ContactNumber,
			Priority:      row.Priority,
			Enabled:       row.Enabled,
			AssignedAt:    row.AssignedAt,
		})
	}
	return out, nil
}

// AgentConfigFor loads and validates the stored configuration of an agent.
func (r *Repository) AgentConfigFor(ctx context.Context, agentID int64) (agent.Config, error) {
	var row domain.Agent
	if err := r.db.WithContext(ctx).First(&row, agentID).Error; err != nil {
		return agent.Config{}, wrap("AgentConfigFor", err)
	}
	var raw map[string]interface{}
	if row.Config != "" {
		if err := json.Unmarshal([]byte(row.Config), &raw); err != nil {
			return agent.Config{}, fmt.Errorf("agent %d config corrupt: %w", agentID, err)
		}
	}
	return agent.ParseConfig(raw)
}

// SaveCampaignResults implements bulk.ResultSink, persisting one row per job.
func (r *Repository) SaveCampaignResults(ctx context.Context, campaignID int64, sessionID string, jobs []bulk.Job) error {
	rows := make([]domain.CampaignLog, 0, len(jobs))
	now := time.Now()
	for _, j := range jobs {
		rows = append(rows, domain.CampaignLog{
			ID:         r.node.Generate().Int64(),
			CampaignId: campaignID,
			SessionId:  sessionID,
			Contact:    j.Contact,
			Body:       j.Body,
			Status:     string(j.Status),
			Error:      j.Error,
			CreatedAt:  now,
		})
	}
	return wrap("SaveCampaignResults", r.db.WithContext(ctx).CreateInBatches(rows, 200).Error)
}

// GetCampaignLogs returns the persisted outcome rows for one campaign.
func (r *Repository) GetCampaignLogs(ctx context.Context, campaignID int64) ([]domain.CampaignLog, error) {
	var out []domain.CampaignLog
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("id ASC").Find(&out).Error
	return out, wrap("GetCampaignLogs", err)
}
