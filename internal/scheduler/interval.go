// Package scheduler fires a job on a fixed interval with a non-queuing
// re-entrancy guard.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-postindex/internal/logging"
	"github.com/goliatone/go-postindex/pkg/interfaces"
)

// DefaultInterval is used when no positive interval is configured.
const DefaultInterval = 60 * time.Second

var (
	// ErrAlreadyStarted is returned by Start on a running scheduler.
	ErrAlreadyStarted = errors.New("scheduler: already started")
	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("scheduler: stopped")
)

// Option configures an Interval scheduler.
type Option func(*Interval)

// WithInterval sets the tick period. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(s *Interval) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithRunOnStart controls the synchronous warm-up run in Start.
func WithRunOnStart(enabled bool) Option {
	return func(s *Interval) {
		s.runOnStart = enabled
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(s *Interval) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for stats.
func WithClock(now func() time.Time) Option {
	return func(s *Interval) {
		if now != nil {
			s.now = now
		}
	}
}

// Interval runs a job every interval. A trigger that arrives while the job
// is running is dropped, not queued.
type Interval struct {
	job        interfaces.Job
	interval   time.Duration
	runOnStart bool
	logger     interfaces.Logger
	now        func() time.Time

	running atomic.Bool
	runs    atomic.Int64
	dropped atomic.Int64
	fails   atomic.Int64

	mu        sync.Mutex
	started   bool
	stopped   bool
	stop      chan struct{}
	done      chan struct{}
	lastRunAt time.Time
	lastErr   error
}

// NewInterval builds a scheduler for job.
func NewInterval(job interfaces.Job, opts ...Option) *Interval {
	s := &Interval{
		job:        job,
		interval:   DefaultInterval,
		runOnStart: true,
		logger:     logging.NoOp(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the job once synchronously, when enabled, and then starts the
// ticker goroutine. The goroutine exits on Stop or when ctx is done.
func (s *Interval) Start(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.stopped:
		s.mu.Unlock()
		return ErrStopped
	case s.started:
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	if s.runOnStart {
		s.logger.Info("scheduler.startup.run")
		s.Trigger(ctx)
	}

	go s.loop(ctx)
	s.logger.Info("scheduler.started", "interval", s.interval)
	return nil
}

func (s *Interval) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.Trigger(ctx)
		}
	}
}

// Trigger runs the job now unless it is already running. It reports whether
// the job ran.
func (s *Interval) Trigger(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.dropped.Add(1)
		s.logger.Debug("scheduler.trigger.dropped")
		return false
	}
	defer s.running.Store(false)

	err := s.job.Run(ctx)
	s.runs.Add(1)

	s.mu.Lock()
	s.lastRunAt = s.now()
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.fails.Add(1)
		s.logger.Error("scheduler.job.failed", "error", err)
	}
	return true
}

// Stop halts the ticker and waits for the goroutine to exit. It does not
// interrupt a running job beyond waiting for it. Safe to call repeatedly.
func (s *Interval) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	stop, done := s.stop, s.done
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	s.logger.Info("scheduler.stopped")
}

// State reports whether the job is currently executing.
func (s *Interval) State() interfaces.SchedulerState {
	if s.running.Load() {
		return interfaces.SchedulerRunning
	}
	return interfaces.SchedulerIdle
}

// Stats returns a snapshot of scheduler counters.
func (s *Interval) Stats() interfaces.SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := interfaces.SchedulerStats{
		State:     s.State(),
		Runs:      s.runs.Load(),
		Dropped:   s.dropped.Load(),
		Failures:  s.fails.Load(),
		LastRunAt: s.lastRunAt,
	}
	if s.lastErr != nil {
		stats.LastError = s.lastErr.Error()
	}
	return stats
}
