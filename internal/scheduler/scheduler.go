// Package scheduler runs background jobs such as retraining on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Veraticus/artmap/internal/common"
)

// ErrDisabled is returned by New when the schedule is empty.
var ErrDisabled = errors.New("schedule disabled")

// Task is the job run on every tick.
type Task func(ctx context.Context) error

// parser accepts the standard 5-field expression (minute hour day-of-month month day-of-week).
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule validates a cron expression such as "0 3 * * *" or "@daily".
func ParseSchedule(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, ErrDisabled
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: schedule %q: %w", common.ErrInvalidConfig, expr, err)
	}
	return sched, nil
}

// Scheduler runs a Task on a cron schedule. A tick that arrives while the
// previous run is still going is skipped.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	logger   *slog.Logger
	expr     string
}

// New creates a scheduler for expr. An empty expr returns ErrDisabled.
func New(ctx context.Context, expr string, task Task, logger *slog.Logger) (*Scheduler, error) {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	adapter := cronLogger{logger: logger}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)

	s := &Scheduler{cron: c, schedule: sched, logger: logger, expr: strings.TrimSpace(expr)}
	c.Schedule(sched, cron.FuncJob(func() {
		start := time.Now()
		if err := task(ctx); err != nil {
			logger.Error("Scheduled run failed", "error", err, "duration", time.Since(start))
			return
		}
		logger.Info("Scheduled run finished", "duration", time.Since(start), "next", s.Next(time.Now()))
	}))
	return s, nil
}

// Start begins scheduling in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	now := time.Now()
	next := s.Next(now)
	s.logger.Info("Schedule started",
		"cron", s.expr,
		"next", next.Format("Mon Jan 2 15:04"),
		"in", next.Sub(now).Round(time.Minute))
}

// Stop halts scheduling and waits for a running task to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Next returns the first activation after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// cronLogger bridges cron's logger to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
