// Package bulk executes rate-limited outbound campaigns. Jobs inside one
// campaign run strictly sequentially with a minimum delay between sends;
// campaigns on different sessions run concurrently while campaigns on the
// same session serialize behind a per-session lock.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/montanaflynn/stats"
	"github.com/panjf2000/ants/v2"
	"github.com/talkincode/waconsole/internal/hub"
	"github.com/talkincode/waconsole/internal/session"
	"github.com/talkincode/waconsole/pkg/metrics"
	"go.uber.org/zap"
)

var (
	ErrSessionNotReady = errors.New("session not ready")
	ErrInvalidInput    = errors.New("invalid campaign input")
	ErrNotFound        = errors.New("campaign not found")
)

// JobStatus is the terminal or pending state of one campaign job.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobSent    JobStatus = "sent"
	JobFailed  JobStatus = "failed"
)

// JobInput is one (contact, body) pair submitted to Start.
type JobInput struct {
	Contact string `json:"contact"`
	Body    string `json:"body"`
}

// Job is one row of a running campaign.
type Job struct {
	Contact string    `json:"contact"`
	Body    string    `json:"body"`
	Status  JobStatus `json:"status"`
	Attempt int       `json:"attempt"`
	Error   string    `json:"error,omitempty"`
}

// Campaign is a copy-out snapshot of campaign state.
type Campaign struct {
	ID         int64         `json:"id,string"`
	SessionID  string        `json:"session_id"`
	Jobs       []Job         `json:"jobs"`
	MinDelay   time.Duration `json:"min_delay"`
	Completed  int           `json:"completed"`
	Total      int           `json:"total"`
	Cancelled  bool          `json:"cancelled"`
	Done       bool          `json:"done"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
}

// Progress is the payload of a bulk.progress event.
type Progress struct {
	CampaignID int64     `json:"campaign_id,string"`
	SessionID  string    `json:"session_id"`
	Completed  int       `json:"completed"`
	Total      int       `json:"total"`
	LastStatus JobStatus `json:"last_status"`
	LastError  string    `json:"last_error,omitempty"`
	Cancelled  bool      `json:"cancelled,omitempty"`
}

type campaign struct {
	mu sync.Mutex
	Campaign
}

func (c *campaign) snapshot() Campaign {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.Campaign
	out.Jobs = append([]Job(nil), c.Jobs...)
	return out
}

// SessionStates exposes the registry lookup the dispatcher needs. Satisfied
// by *session.Registry.
type SessionStates interface {
	Get(id string) (session.Session, error)
}

// Sender performs one outbound text send through a session's driver.
type Sender interface {
	SendText(ctx context.Context, sessionID, to, body string) error
}

// Publisher receives bulk.progress events. Satisfied by *hub.Hub.
type Publisher interface {
	Publish(hub.Event)
}

// ResultSink persists finished campaign results. Failures are logged and
// never affect the campaign outcome.
type ResultSink interface {
	SaveCampaignResults(ctx context.Context, campaignID int64, sessionID string, jobs []Job) error
}

// Finished campaigns stay available to Snapshot for this long before they
// are evicted from memory; the persisted campaign log remains the durable
// record.
const campaignRetention = time.Hour

// Dispatcher owns every live campaign plus recently finished ones.
type Dispatcher struct {
	mu           sync.Mutex
	campaigns    map[int64]*campaign
	sessionLocks map[string]*sync.Mutex

	states      SessionStates
	sender      Sender
	pub         Publisher
	sink        ResultSink
	pool        *ants.Pool
	node        *snowflake.Node
	sendTimeout time.Duration
	retention   time.Duration
}

// NewDispatcher creates a dispatcher running campaign workers on an ants
// pool. sink may be nil when result persistence is not wanted.
func NewDispatcher(states SessionStates, sender Sender, pub Publisher, sink ResultSink, poolSize int, sendTimeout time.Duration) (*Dispatcher, error) {
	if poolSize <= 0 {
		poolSize = 64
	}
	if sendTimeout <= 0 {
		sendTimeout = 30 * time.Second
	}
	pool, err := ants.NewPool(poolSize, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		pool.Release()
		return nil, err
	}
	return &Dispatcher{
		campaigns:    make(map[int64]*campaign),
		sessionLocks: make(map[string]*sync.Mutex),
		states:       states,
		sender:       sender,
		pub:          pub,
		sink:         sink,
		pool:         pool,
		node:         node,
		sendTimeout:  sendTimeout,
		retention:    campaignRetention,
	}, nil
}

// Release stops the worker pool. Campaigns already running finish their
// in-flight job; new submissions are rejected by the pool.
func (d *Dispatcher) Release() {
	d.pool.Release()
}

// Start validates and enqueues a campaign, returning its id. The session must
// be in the ready state.
func (d *Dispatcher) Start(sessionID string, jobs []JobInput, minDelay time.Duration) (int64, error) {
	if len(jobs) == 0 {
		return 0, fmt.Errorf("%w: no jobs", ErrInvalidInput)
	}
	if minDelay < 0 {
		return 0, fmt.Errorf("%w: negative delay", ErrInvalidInput)
	}
	st, err := d.states.Get(sessionID)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrSessionNotReady, sessionID)
	}
	if st.State != session.StateReady {
		return 0, fmt.Errorf("%w: %s is %s", ErrSessionNotReady, sessionID, st.State)
	}

	c := &campaign{}
	c.ID = d.node.Generate().Int64()
	c.SessionID = sessionID
	c.MinDelay = minDelay
	c.Total = len(jobs)
	c.StartedAt = time.Now()
	c.Jobs = make([]Job, len(jobs))
	for i, j := range jobs {
		c.Jobs[i] = Job{Contact: j.Contact, Body: j.Body, Status: JobPending}
	}

	d.mu.Lock()
	d.campaigns[c.ID] = c
	d.mu.Unlock()

	if err := d.pool.Submit(func() { d.run(c) }); err != nil {
		// Pool saturated; fall back to a plain goroutine rather than reject
		// the campaign.
		zap.L().Warn("bulk: pool submit failed, running unpooled", zap.Error(err), zap.Int64("campaign_id", c.ID))
		go d.run(c)
	}
	zap.L().Info("bulk: campaign started",
		zap.Int64("campaign_id", c.ID),
		zap.String("session_id", sessionID),
		zap.Int("jobs", len(jobs)),
		zap.Duration("min_delay", minDelay))
	return c.ID, nil
}

// Cancel marks the campaign cancelled. The in-flight job is allowed to
// finish; no further jobs are dispatched. Repeated calls are no-ops.
func (d *Dispatcher) Cancel(campaignID int64) error {
	d.mu.Lock()
	c, ok := d.campaigns[campaignID]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, campaignID)
	}
	c.mu.Lock()
	already := c.Cancelled
	c.Cancelled = true
	c.mu.Unlock()
	if !already {
		zap.L().Info("bulk: campaign cancelled", zap.Int64("campaign_id", campaignID))
	}
	return nil
}

// Snapshot returns a copy of the campaign state for status polling.
func (d *Dispatcher) Snapshot(campaignID int64) (Campaign, error) {
	d.mu.Lock()
	c, ok := d.campaigns[campaignID]
	d.mu.Unlock()
	if !ok {
		return Campaign{}, fmt.Errorf("%w: %d", ErrNotFound, campaignID)
	}
	return c.snapshot(), nil
}

// List returns snapshots of all campaigns, newest first not guaranteed.
func (d *Dispatcher) List() []Campaign {
	d.mu.Lock()
	all := make([]*campaign, 0, len(d.campaigns))
	for _, c := range d.campaigns {
		all = append(all, c)
	}
	d.mu.Unlock()
	out := make([]Campaign, 0, len(all))
	for _, c := range all {
		out = append(out, c.snapshot())
	}
	return out
}

func (d *Dispatcher) sessionLock(sessionID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.sessionLocks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		d.sessionLocks[sessionID] = l
	}
	return l
}

func (d *Dispatcher) run(c *campaign) {
	lock := d.sessionLock(c.SessionID)
	lock.Lock()
	defer lock.Unlock()

	durations := make([]float64, 0, c.Total)
	for i := range c.Jobs {
		c.mu.Lock()
		cancelled := c.Cancelled
		c.mu.Unlock()
		if cancelled {
			break
		}
		if i > 0 && c.MinDelay > 0 {
			// Delay is measured from completion of the previous attempt to
			// the start of this one, failures included.
			time.Sleep(c.MinDelay)
			c.mu.Lock()
			cancelled = c.Cancelled
			c.mu.Unlock()
			if cancelled {
				break
			}
		}

		c.mu.Lock()
		c.Jobs[i].Attempt++
		contact, body := c.Jobs[i].Contact, c.Jobs[i].Body
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		start := time.Now()
		err := d.sender.SendText(ctx, c.SessionID, contact, body)
		cancel()
		durations = append(durations, float64(time.Since(start).Milliseconds()))

		c.mu.Lock()
		if err != nil {
			c.Jobs[i].Status = JobFailed
			c.Jobs[i].Error = err.Error()
			metrics.IncrCounter("bulk_jobs_failed", 1)
			zap.L().Warn("bulk: job send failed",
				zap.Int64("campaign_id", c.ID),
				zap.String("session_id", c.SessionID),
				zap.String("contact", contact),
				zap.Error(err))
		} else {
			c.Jobs[i].Status = JobSent
			metrics.IncrCounter("bulk_jobs_sent", 1)
		}
		c.Completed++
		prog := Progress{
			CampaignID: c.ID,
			SessionID:  c.SessionID,
			Completed:  c.Completed,
			Total:      c.Total,
			LastStatus: c.Jobs[i].Status,
			LastError:  c.Jobs[i].Error,
		}
		c.mu.Unlock()
		d.publish(prog)
	}

	c.mu.Lock()
	c.Done = true
	c.FinishedAt = time.Now()
	final := Progress{
		CampaignID: c.ID,
		SessionID:  c.SessionID,
		Completed:  c.Completed,
		Total:      c.Total,
		Cancelled:  c.Cancelled,
	}
	cancelledEarly := c.Cancelled && c.Completed < c.Total
	jobs := append([]Job(nil), c.Jobs...)
	c.mu.Unlock()

	if cancelledEarly {
		// Subscribers still get a terminal event when a campaign stops short.
		d.publish(final)
	}
	d.logStats(c.ID, durations)
	if d.sink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := d.sink.SaveCampaignResults(ctx, final.CampaignID, final.SessionID, jobs); err != nil {
			zap.L().Warn("bulk: persisting campaign results failed", zap.Int64("campaign_id", final.CampaignID), zap.Error(err))
		}
		cancel()
	}
	zap.L().Info("bulk: campaign finished",
		zap.Int64("campaign_id", final.CampaignID),
		zap.Int("completed", final.Completed),
		zap.Int("total", final.Total),
		zap.Bool("cancelled", final.Cancelled))
	if d.retention > 0 {
		time.AfterFunc(d.retention, func() { d.evict(final.CampaignID) })
	}
}

func (d *Dispatcher) evict(campaignID int64) {
	d.mu.Lock()
	delete(d.campaigns, campaignID)
	d.mu.Unlock()
}

func (d *Dispatcher) publish(p Progress) {
	if d.pub == nil {
		return
	}
	d.pub.Publish(hub.NewEvent(p.SessionID, hub.EventBulkProgress, p))
}

func (d *Dispatcher) logStats(campaignID int64, durations []float64) {
	if len(durations) == 0 {
		return
	}
	mean, _ := stats.Mean(durations)
	p95, _ := stats.Percentile(durations, 95)
	zap.L().Info("bulk: campaign send stats",
		zap.Int64("campaign_id", campaignID),
		zap.Float64("mean_ms", mean),
		zap.Float64("p95_ms", p95))
}
