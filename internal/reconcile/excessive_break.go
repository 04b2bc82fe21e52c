package reconcile

import (
	"context"
	"time"

	"github.com/dipnamdev/attendance-management-backend/internal/logger"
	"github.com/dipnamdev/attendance-management-backend/internal/store"
)

// ExcessiveBreakCloser caps lunch breaks that have run past BreakCap and
// checks the record out at the capped break end, per §4.4.
type ExcessiveBreakCloser struct {
	d   Deps
	log logger.Logger
}

func NewExcessiveBreakCloser(d Deps) *ExcessiveBreakCloser {
	if d.BreakCap == 0 {
		d.BreakCap = 2 * time.Hour
	}
	return &ExcessiveBreakCloser{d: d, log: d.logger("reconcile.excessive_break")}
}

func (r *ExcessiveBreakCloser) Name() string { return "excessive_break_closer" }

func (r *ExcessiveBreakCloser) Run(ctx context.Context) error {
	now := r.d.Clock.Now()
	cutoff := now.Add(-r.d.BreakCap)

	candidates, err := r.d.Breaks.FindOpenOlderThan(ctx, r.d.Tx.Queryer(), cutoff)
	if err != nil {
		return err
	}

	for _, lb := range candidates {
		if err := r.closeOne(ctx, lb.AttendanceRecordID); err != nil {
			r.log.Error("excessive break closer failed for record", "record_id", lb.AttendanceRecordID, "err", err)
		}
	}
	return nil
}

func (r *ExcessiveBreakCloser) closeOne(ctx context.Context, recordID string) error {
	return r.d.Tx.WithTx(ctx, func(ctx context.Context, q store.Queryer) error {
		rec, err := r.d.Attendance.GetByID(ctx, q, recordID)
		if err != nil {
			return err
		}
		if rec == nil || rec.CheckOutTime != nil {
			return nil
		}

		openBreak, err := r.d.Breaks.GetOpenByRecord(ctx, q, recordID)
		if err != nil {
			return err
		}
		if openBreak == nil {
			return nil
		}
		if r.d.Clock.Now().Sub(openBreak.BreakStartTime) <= r.d.BreakCap {
			return nil
		}

		breakEnd := openBreak.BreakStartTime.Add(r.d.BreakCap)
		if err := finalizeRecord(ctx, r.d, q, rec, breakEnd); err != nil {
			return err
		}

		r.d.Cache.Clear(ctx, rec.UserID)
		return nil
	})
}
