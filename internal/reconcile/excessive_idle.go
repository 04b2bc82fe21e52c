package reconcile

import (
	"context"
	"time"

	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/logger"
	"github.com/dipnamdev/attendance-management-backend/internal/store"
)

// ExcessiveIdleCloser caps records stuck in IDLE past IdleCap and checks
// them out at the capped idle boundary, per §4.4.
type ExcessiveIdleCloser struct {
	d   Deps
	log logger.Logger
}

func NewExcessiveIdleCloser(d Deps) *ExcessiveIdleCloser {
	if d.IdleCap == 0 {
		d.IdleCap = 30 * time.Minute
	}
	return &ExcessiveIdleCloser{d: d, log: d.logger("reconcile.excessive_idle")}
}

func (r *ExcessiveIdleCloser) Name() string { return "excessive_idle_closer" }

func (r *ExcessiveIdleCloser) Run(ctx context.Context) error {
	now := r.d.Clock.Now()
	cutoff := now.Add(-r.d.IdleCap)

	candidates, err := r.d.Attendance.FindExcessiveIdle(ctx, r.d.Tx.Queryer(), cutoff)
	if err != nil {
		return err
	}

	for _, rec := range candidates {
		if err := r.closeOne(ctx, rec.ID); err != nil {
			r.log.Error("excessive idle closer failed for record", "record_id", rec.ID, "err", err)
		}
	}
	return nil
}

func (r *ExcessiveIdleCloser) closeOne(ctx context.Context, recordID string) error {
	return r.d.Tx.WithTx(ctx, func(ctx context.Context, q store.Queryer) error {
		rec, err := r.d.Attendance.GetByID(ctx, q, recordID)
		if err != nil {
			return err
		}
		if rec == nil || rec.CheckOutTime != nil {
			return nil
		}
		if rec.CurrentState != domain.StateIdle || rec.LastStateChangeAt == nil {
			return nil
		}
		if r.d.Clock.Now().Sub(*rec.LastStateChangeAt) <= r.d.IdleCap {
			return nil
		}

		checkoutAt := rec.LastStateChangeAt.Add(r.d.IdleCap)
		if err := finalizeRecord(ctx, r.d, q, rec, checkoutAt); err != nil {
			return err
		}

		r.d.Cache.Clear(ctx, rec.UserID)
		return nil
	})
}
