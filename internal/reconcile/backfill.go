package reconcile

import (
	"context"

	"github.com/dipnamdev/attendance-management-backend/internal/clock"
	"github.com/dipnamdev/attendance-management-backend/internal/logger"
)

// Backfill runs the end-of-day closer against every record left open
// from a prior calendar day, using each record's own end-of-day rather
// than today's — the recovery path for a process that was down when its
// own end-of-day closer should have run, per §4.4.
type Backfill struct {
	d   Deps
	log logger.Logger
}

func NewBackfill(d Deps) *Backfill {
	return &Backfill{d: d, log: d.logger("reconcile.backfill")}
}

func (r *Backfill) Name() string { return "startup_backfill" }

func (r *Backfill) Run(ctx context.Context) error {
	today := clock.Today(r.d.Clock)

	candidates, err := r.d.Attendance.FindOpenBeforeDate(ctx, r.d.Tx.Queryer(), today)
	if err != nil {
		return err
	}

	for _, rec := range candidates {
		ownEndOfDay := clock.EndOfDay(rec.Date, r.d.Clock.Location())
		if err := finalizeEndOfDay(ctx, r.d, rec.ID, ownEndOfDay); err != nil {
			r.log.Error("backfill failed for record", "record_id", rec.ID, "err", err)
		}
	}
	return nil
}
