package reconcile

import (
	"context"
	"time"

	"github.com/dipnamdev/attendance-management-backend/internal/clock"
	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/logger"
	"github.com/dipnamdev/attendance-management-backend/internal/store"
)

// EndOfDayCloser finalizes every still-open record for the current
// calendar day at 23:59:59.999999999 server-local, per §4.4. Before
// finalizing a record stuck in WORKING with a stale InputSample, it
// first back-dates the tail to IDLE so the unexplained silence is not
// billed as active work.
type EndOfDayCloser struct {
	d   Deps
	log logger.Logger
}

func NewEndOfDayCloser(d Deps) *EndOfDayCloser {
	if d.EndOfDayTailWindow == 0 {
		d.EndOfDayTailWindow = 15 * time.Minute
	}
	return &EndOfDayCloser{d: d, log: d.logger("reconcile.end_of_day")}
}

func (r *EndOfDayCloser) Name() string { return "end_of_day_closer" }

func (r *EndOfDayCloser) Run(ctx context.Context) error {
	date := clock.Today(r.d.Clock)
	return r.RunForDate(ctx, date)
}

// RunForDate closes every open record for the given calendar date at that
// date's end-of-day. Run calls it with today's date; Backfill does not use
// it and calls finalizeEndOfDay per record instead.
func (r *EndOfDayCloser) RunForDate(ctx context.Context, date time.Time) error {
	candidates, err := r.d.Attendance.FindOpenForDate(ctx, r.d.Tx.Queryer(), date)
	if err != nil {
		return err
	}

	endOfDay := clock.EndOfDay(date, r.d.Clock.Location())
	for _, rec := range candidates {
		if err := finalizeEndOfDay(ctx, r.d, rec.ID, endOfDay); err != nil {
			r.log.Error("end of day closer failed for record", "record_id", rec.ID, "err", err)
		}
	}
	return nil
}

// finalizeEndOfDay closes one record at the given end-of-day instant.
// Shared by EndOfDayCloser and Backfill.
func finalizeEndOfDay(ctx context.Context, d Deps, recordID string, endOfDay time.Time) error {
	return d.Tx.WithTx(ctx, func(ctx context.Context, q store.Queryer) error {
		rec, err := d.Attendance.GetByID(ctx, q, recordID)
		if err != nil {
			return err
		}
		if rec == nil || rec.CheckOutTime != nil {
			return nil
		}

		if rec.CurrentState == domain.StateWorking {
			latest, err := d.InputSamples.GetLatestByRecord(ctx, q, rec.ID)
			if err != nil {
				return err
			}
			if latest != nil && endOfDay.Sub(latest.Timestamp) > d.EndOfDayTailWindow {
				d.Engine.ApplyTransition(rec, domain.StateIdle, latest.Timestamp)
				if err := closeOpenActivityLog(ctx, d.ActivityLogs, q, rec.ID, latest.Timestamp); err != nil {
					return err
				}
				if err := openActivityLog(ctx, d.ActivityLogs, q, rec.ID, domain.SegmentIdle, latest.Timestamp); err != nil {
					return err
				}
			}
		}

		if err := finalizeRecord(ctx, d, q, rec, endOfDay); err != nil {
			return err
		}

		d.Cache.Clear(ctx, rec.UserID)
		return nil
	})
}
