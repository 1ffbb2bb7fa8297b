package scheduler

import (
	"context"
	"errors"
	"expiry-monitor/internal/config"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// State is the driver's position in its WAITING/RUNNING cycle
type State int32

const (
	StateWaiting State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// ErrCycleRunning is returned when a trigger arrives during a cycle
var ErrCycleRunning = errors.New("a check cycle is already running")

// Job is one report-and-notify cycle
type Job func(ctx context.Context) error

// Scheduler fires the job once per day at a fixed time of day and never
// runs two cycles at once
type Scheduler struct {
	schedule     cron.Schedule
	spec         string
	job          Job
	pollInterval time.Duration
	logger       *zap.Logger
	now          func() time.Time

	state atomic.Int32
	mu    sync.Mutex
	next  time.Time
	last  time.Time
	wg    sync.WaitGroup
}

// DailySpec converts an HH:MM time of day to a cron expression
func DailySpec(runAt string) (string, error) {
	hour, minute, err := config.ParseRunAt(runAt)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// NewScheduler creates a new scheduler firing daily at runAt (local time)
func NewScheduler(runAt string, pollInterval time.Duration, job Job, logger *zap.Logger) (*Scheduler, error) {
	spec, err := DailySpec(runAt)
	if err != nil {
		return nil, err
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	s := &Scheduler{
		schedule:     schedule,
		spec:         spec,
		job:          job,
		pollInterval: pollInterval,
		logger:       logger,
		now:          time.Now,
	}
	s.next = schedule.Next(s.now())
	return s, nil
}

// State returns the current driver state
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// NextRun returns the next scheduled firing
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// LastRun returns when the last cycle started, zero if none has
func (s *Scheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Run polls until ctx is cancelled, running the job synchronously whenever
// it is due
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.logger.Info("Scheduler started",
		zap.String("spec", s.spec),
		zap.Time("next_run", s.NextRun()),
		zap.Duration("poll_interval", s.pollInterval),
	)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx, s.now())
		}
	}
}

// Tick runs the job if the scheduled time has been reached and no cycle is
// in progress. It reports whether a cycle ran.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) bool {
	s.mu.Lock()
	due := !now.Before(s.next)
	s.mu.Unlock()
	if !due {
		return false
	}

	if !s.state.CompareAndSwap(int32(StateWaiting), int32(StateRunning)) {
		s.logger.Debug("Scheduled run deferred, cycle in progress")
		return false
	}

	s.mu.Lock()
	scheduled := s.next
	s.next = s.schedule.Next(now)
	s.last = now
	s.mu.Unlock()

	s.run(ctx, "scheduled", zap.Time("scheduled_for", scheduled))
	return true
}

// Trigger starts a cycle in the background outside the daily schedule. It
// fails with ErrCycleRunning instead of overlapping a running cycle.
func (s *Scheduler) Trigger(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateWaiting), int32(StateRunning)) {
		return ErrCycleRunning
	}

	s.mu.Lock()
	s.last = s.now()
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, "manual")
	}()
	return nil
}

// run executes the job; the caller must have moved the state to RUNNING
func (s *Scheduler) run(ctx context.Context, reason string, fields ...zap.Field) {
	defer s.state.Store(int32(StateWaiting))

	fields = append(fields, zap.String("trigger", reason))
	s.logger.Info("Starting scheduled domain check", fields...)
	if err := s.job(ctx); err != nil {
		s.logger.Error("Scheduled check failed", append(fields, zap.Error(err))...)
		return
	}
	s.logger.Info("Scheduled domain check completed", fields...)
}
