package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"mercator-hq/cleaner/pkg/cleaner"
)

// Pinger reports whether the target database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Schedule is the scheduler state the checker reports.
type Schedule interface {
	IsRunning() bool
	NextRun() *time.Time
}

// RunStatus is the outcome of the most recent cleanup run.
type RunStatus struct {
	RunID        string    `json:"run_id"`
	Started      time.Time `json:"started"`
	DurationMS   int64     `json:"duration_ms"`
	DryRun       bool      `json:"dry_run"`
	Result       string    `json:"result"` // success, failed or interrupted
	FailedTables []string  `json:"failed_tables,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Status is the body of the health endpoints.
type Status struct {
	// Status is "ok" (liveness), "ready" or "degraded"
	Status string `json:"status"`

	// Database is "ok" or the ping error; readiness only
	Database string `json:"database,omitempty"`

	// Scheduler is "running" or "stopped"; empty without a schedule
	Scheduler string     `json:"scheduler,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`

	LastRun             *RunStatus `json:"last_run,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	Timestamp           time.Time  `json:"timestamp"`
}

// Checker tracks the database, the scheduler and the last run for the
// probes of schedule mode.
type Checker struct {
	db          Pinger
	pingTimeout time.Duration

	mu       sync.RWMutex
	schedule Schedule
	last     *RunStatus
	failures int
}

// New creates a checker. A zero pingTimeout defaults to 5 seconds.
func New(db Pinger, pingTimeout time.Duration) *Checker {
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	return &Checker{db: db, pingTimeout: pingTimeout}
}

// TrackSchedule makes readiness depend on s running.
func (c *Checker) TrackSchedule(s Schedule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schedule = s
}

// RecordRun stores the outcome of a run. Failed runs increase the
// consecutive failure count, successful ones reset it.
func (c *Checker) RecordRun(summary *cleaner.RunSummary, err error) {
	if summary == nil {
		return
	}
	rs := &RunStatus{
		RunID:      summary.RunID,
		Started:    summary.Started,
		DurationMS: summary.Duration.Milliseconds(),
		DryRun:     summary.DryRun,
		Result:     "success",
	}
	for _, t := range summary.Tables {
		if t.Err != nil {
			rs.FailedTables = append(rs.FailedTables, t.Table)
		}
	}
	switch {
	case err != nil || len(rs.FailedTables) > 0:
		rs.Result = "failed"
		if err != nil {
			rs.Error = err.Error()
		}
	case summary.Interrupted:
		rs.Result = "interrupted"
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = rs
	switch rs.Result {
	case "failed":
		c.failures++
	case "success":
		c.failures = 0
	}
}

// Liveness reports the process as alive along with the last run.
func (c *Checker) Liveness() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		Status:              "ok",
		LastRun:             c.last,
		ConsecutiveFailures: c.failures,
		Timestamp:           time.Now(),
	}
}

// Readiness pings the database and checks the scheduler. Failed runs do
// not affect readiness; they are reported for alerting.
func (c *Checker) Readiness(ctx context.Context) Status {
	status := c.Liveness()
	status.Status = "ready"

	if c.db != nil {
		status.Database = "ok"
		if err := c.ping(ctx); err != nil {
			status.Database = err.Error()
			status.Status = "degraded"
		}
	}

	c.mu.RLock()
	schedule := c.schedule
	c.mu.RUnlock()
	if schedule != nil {
		status.Scheduler = "running"
		status.NextRun = schedule.NextRun()
		if !schedule.IsRunning() {
			status.Scheduler = "stopped"
			status.Status = "degraded"
		}
	}
	return status
}

func (c *Checker) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.db.Ping(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errors.New("database ping timed out")
	}
}
