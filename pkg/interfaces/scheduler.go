package interfaces

import (
	"context"
	"time"
)

// SchedulerState describes whether a periodic job is currently executing.
type SchedulerState string

const (
	SchedulerIdle    SchedulerState = "idle"
	SchedulerRunning SchedulerState = "running"
)

// Job is the unit of work triggered by a scheduler. Implementations must be
// safe to call repeatedly; the scheduler guarantees at most one concurrent run.
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc adapts a function into a Job.
type JobFunc func(ctx context.Context) error

// Run satisfies Job.
func (fn JobFunc) Run(ctx context.Context) error {
	return fn(ctx)
}

// SchedulerStats summarises scheduler activity for health endpoints.
type SchedulerStats struct {
	State     SchedulerState `json:"state"`
	Runs      int64          `json:"runs"`
	Dropped   int64          `json:"dropped"`
	Failures  int64          `json:"failures"`
	LastRunAt time.Time      `json:"last_run_at,omitempty"`
	LastError string         `json:"last_error,omitempty"`
}
