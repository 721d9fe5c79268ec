// Package scheduler runs the absence detector on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/pkordes/goat-attendance/internal/domain"
	"github.com/pkordes/goat-attendance/internal/report"
)

// Runner is the part of service.AbsenceDetector the scheduler needs.
type Runner interface {
	Run(ctx context.Context, windowHours int) (domain.AbsenceReport, error)
}

// Stats contains information about one scheduled run.
type Stats struct {
	RunID   uuid.UUID
	Rows    int
	Elapsed time.Duration
	Error   error
}

// Scheduler invokes a Runner on a cron schedule, one run at a time.
type Scheduler struct {
	cron        *cron.Cron
	runner      Runner
	windowHours int
	log         *slog.Logger
	clock       quartz.Clock
	location    *time.Location
	statsCh     chan<- Stats

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the structured logger. Cron internals log through it too.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithLocation sets the time zone the schedule is evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.location = loc }
}

// WithClock sets the clock used to measure run durations.
func WithClock(c quartz.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithStatsChannel makes the scheduler push a Stats to ch after every run.
func WithStatsChannel(ch chan<- Stats) Option {
	return func(s *Scheduler) { s.statsCh = ch }
}

// New parses spec and returns a Scheduler that is not yet started.
// spec is a standard five-field cron expression or a descriptor such as
// "@every 2h" or "@hourly".
func New(spec string, runner Runner, windowHours int, opts ...Option) (*Scheduler, error) {
	if err := domain.ValidateWindowHours(windowHours); err != nil {
		return nil, fmt.Errorf("scheduler.New: %w", err)
	}

	s := &Scheduler{
		runner:      runner,
		windowHours: windowHours,
		log:         slog.Default(),
		clock:       quartz.NewReal(),
		location:    time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	logger := cronLogger{log: s.log}
	s.cron = cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(s.ctx) }); err != nil {
		s.cancel()
		return nil, fmt.Errorf("scheduler.New: %w: schedule %q: %w", domain.ErrInvalidArgument, spec, err)
	}
	return s, nil
}

// Start begins firing the schedule in its own goroutine.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started",
		"window_hours", s.windowHours,
		"location", s.location.String(),
	)
	s.cron.Start()
}

// Stop halts the schedule and waits for an in-flight run to finish. When ctx
// is done first the run's context is cancelled and ctx.Err() is returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	defer s.once.Do(s.cancel)

	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.once.Do(s.cancel)
		<-done.Done()
		return fmt.Errorf("scheduler.Stop: %w", ctx.Err())
	}
}

// RunOnce runs the detector a single time and logs the rendered report.
func (s *Scheduler) RunOnce(ctx context.Context) Stats {
	started := s.clock.Now()
	r, err := s.runner.Run(ctx, s.windowHours)

	stats := Stats{
		RunID:   r.RunID,
		Rows:    len(r.Rows),
		Elapsed: s.clock.Since(started),
		Error:   err,
	}

	if err != nil {
		s.log.ErrorContext(ctx, "scheduled absence run failed", "error", err)
	} else {
		s.log.InfoContext(ctx, "absence report",
			"run_id", r.RunID,
			"rows", stats.Rows,
			"message", report.Text(r),
		)
	}

	if s.statsCh != nil {
		select {
		case <-ctx.Done():
		case s.statsCh <- stats:
		}
	}
	return stats
}

// cronLogger adapts slog to cron.Logger. Cron's own chatter goes to debug.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
