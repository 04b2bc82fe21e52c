// Package scheduler wires the reconcile package's jobs onto cron
// schedules, using robfig/cron/v3 the way the rest of the pack drives
// periodic work: one shared cron instance, jobs wrapped with panic
// recovery and structured logging, and a clean Stop() for shutdown.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/dipnamdev/attendance-management-backend/internal/logger"
	"github.com/dipnamdev/attendance-management-backend/internal/reconcile"
)

// Schedule is the cron expression a named reconciler runs on, per §4.4.
type Schedule struct {
	Reconciler reconcile.Reconciler
	CronExpr   string
}

// Scheduler owns a cron.Cron instance and the reconcilers registered
// against it.
type Scheduler struct {
	cron *cron.Cron
	log  logger.Logger
}

// New builds a Scheduler. The underlying cron.Cron runs with second
// precision disabled (standard 5-field expressions), matching the
// schedules named in §4.4.
func New(log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Noop{}
	}
	return &Scheduler{
		cron: cron.New(),
		log:  log.With("scheduler"),
	}
}

// Register adds every schedule to the cron instance. Call before Start.
func (s *Scheduler) Register(schedules []Schedule) error {
	for _, sc := range schedules {
		if _, err := s.cron.AddFunc(sc.CronExpr, s.wrap(sc.Reconciler)); err != nil {
			return fmt.Errorf("scheduler: register %s: %w", sc.Reconciler.Name(), err)
		}
	}
	return nil
}

// wrap runs a reconciler with panic recovery and logs its outcome. A
// panicking job is logged and skipped; it still runs on its next tick.
func (s *Scheduler) wrap(r reconcile.Reconciler) func() {
	return func() {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("reconciler panicked", "job", r.Name(), "panic", rec)
			}
		}()

		ctx := context.Background()
		s.log.Debug("running reconciler", "job", r.Name())
		if err := r.Run(ctx); err != nil {
			s.log.Error("reconciler failed", "job", r.Name(), "err", err)
		}
	}
}

// Start begins running registered jobs in a background goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron scheduler without blocking. The returned context
// is done once any in-flight job has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// DefaultSchedules returns the five cron schedules named in §4.4 (the
// startup backfill runs once and is not scheduled): excessive-
// idle and excessive-break closers every 5 minutes, the gap detector
// every minute, the daily attendance creator at midnight, and the
// end-of-day closer just before it.
func DefaultSchedules(idle, brk, gap reconcile.Reconciler, endOfDay, dailyCreator reconcile.Reconciler) []Schedule {
	return []Schedule{
		{Reconciler: idle, CronExpr: "*/5 * * * *"},
		{Reconciler: brk, CronExpr: "*/5 * * * *"},
		{Reconciler: gap, CronExpr: "* * * * *"},
		{Reconciler: endOfDay, CronExpr: "59 23 * * *"},
		{Reconciler: dailyCreator, CronExpr: "0 0 * * *"},
	}
}
