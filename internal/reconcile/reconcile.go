// Package reconcile implements the six scheduled jobs of §4.4: the
// excessive-break closer, excessive-idle closer, gap detector,
// end-of-day closer, startup backfill, and daily attendance creator.
// Each processes its candidate records independently, one transaction
// per record, so a single bad row never aborts the batch.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/dipnamdev/attendance-management-backend/internal/cache"
	"github.com/dipnamdev/attendance-management-backend/internal/clock"
	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/engine"
	"github.com/dipnamdev/attendance-management-backend/internal/logger"
	"github.com/dipnamdev/attendance-management-backend/internal/store"
)

// Reconciler is the common shape every scheduled job implements, driven
// by internal/scheduler.
type Reconciler interface {
	Name() string
	Run(ctx context.Context) error
}

// Deps groups the dependencies every reconciler needs. Individual jobs
// only use the subset relevant to them.
type Deps struct {
	Tx           store.Transactor
	Attendance   store.AttendanceRepository
	Breaks       store.LunchBreakRepository
	ActivityLogs store.ActivityLogRepository
	InputSamples store.InputSampleRepository
	Users        store.UserRepository
	Cache        cache.ActivityCache
	Engine       *engine.Engine
	Clock        clock.Clock
	Log          logger.Logger

	IdleCap            time.Duration // excessive-idle closer cap, default 30 min
	BreakCap           time.Duration // excessive-break closer cap, default 2 h
	GapThreshold       time.Duration // gap detector's retroactive-idle threshold, default 5 min
	EndOfDayTailWindow time.Duration // end-of-day unexplained-tail window, default 15 min
	CacheTTL           time.Duration
}

func (d Deps) logger(component string) logger.Logger {
	log := d.Log
	if log == nil {
		log = logger.Noop{}
	}
	return log.With(component)
}

// closeOpenActivityLog closes whatever audit segment is open for the
// record at `at`, if any. Missing segments are not an error (§4.3 Design
// Notes: ActivityLog is audit-only, never load-bearing).
func closeOpenActivityLog(ctx context.Context, logs store.ActivityLogRepository, q store.Queryer, recordID string, at time.Time) error {
	open, err := logs.GetOpenByRecord(ctx, q, recordID)
	if err != nil {
		return fmt.Errorf("reconcile: load open activity log: %w", err)
	}
	if open == nil {
		return nil
	}
	open.Close(at)
	if err := logs.Update(ctx, q, open); err != nil {
		return fmt.Errorf("reconcile: close activity log: %w", err)
	}
	return nil
}

// openActivityLog opens a fresh audit segment of the given type.
func openActivityLog(ctx context.Context, logs store.ActivityLogRepository, q store.Queryer, recordID string, segType domain.SegmentType, at time.Time) error {
	seg := domain.NewActivityLog(recordID, segType, at)
	if err := logs.Create(ctx, q, seg); err != nil {
		return fmt.Errorf("reconcile: open activity log: %w", err)
	}
	return nil
}

// applyLegacyMirror recomputes the legacy mirror totals from the
// authoritative *_seconds counters, per §3.
func applyLegacyMirror(rec *domain.AttendanceRecord) {
	rec.TotalActiveDuration = rec.ActiveSeconds
	rec.TotalIdleDuration = rec.IdleSeconds
	rec.TotalBreakDuration = rec.LunchSeconds
	rec.TotalWorkDuration = rec.ActiveSeconds + rec.IdleSeconds
}

// finalizeRecord runs the common close-out sequence a reconciler applies
// to one attendance record: close any open lunch break and audit
// segment, finalize the state engine, mirror totals, persist, and clear
// the cache. Callers hold the row lock via the transaction q runs in.
func finalizeRecord(ctx context.Context, d Deps, q store.Queryer, rec *domain.AttendanceRecord, at time.Time) error {
	if openBreak, err := d.Breaks.GetOpenByRecord(ctx, q, rec.ID); err != nil {
		return fmt.Errorf("reconcile: load open break: %w", err)
	} else if openBreak != nil {
		openBreak.Close(at)
		if err := d.Breaks.Update(ctx, q, openBreak); err != nil {
			return fmt.Errorf("reconcile: close open break: %w", err)
		}
	}

	if err := closeOpenActivityLog(ctx, d.ActivityLogs, q, rec.ID, at); err != nil {
		return err
	}

	d.Engine.Finalize(rec, at)
	applyLegacyMirror(rec)
	rec.CheckOutTime = &at

	if err := d.Attendance.Update(ctx, q, rec); err != nil {
		return fmt.Errorf("reconcile: update attendance record: %w", err)
	}
	return nil
}
