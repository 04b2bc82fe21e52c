package reconcile

import (
	"context"
	"time"

	"github.com/dipnamdev/attendance-management-backend/internal/commands"
	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/logger"
	"github.com/dipnamdev/attendance-management-backend/internal/store"
)

// GapDetector watches for clients that have stopped sending heartbeats
// entirely: a short silence is promoted to IDLE, a long one triggers
// auto-checkout, per §4.4. It relies entirely on the cache's
// lastHeartbeatTs — a record with no cache entry is left alone (startup
// grace), since the store carries no heartbeat-arrival timestamp.
type GapDetector struct {
	d        Deps
	commands *commands.Commands
	log      logger.Logger
}

// NewGapDetector builds a GapDetector. cmd is used to run the
// auto-checkout path in its own transaction, per §5's release-before-
// invoking rule.
func NewGapDetector(d Deps, cmd *commands.Commands) *GapDetector {
	if d.GapThreshold == 0 {
		d.GapThreshold = 5 * time.Minute
	}
	return &GapDetector{d: d, commands: cmd, log: d.logger("reconcile.gap_detector")}
}

func (r *GapDetector) Name() string { return "gap_detector" }

const gapDetectorAutoCheckoutThreshold = 60 * time.Minute

func (r *GapDetector) Run(ctx context.Context) error {
	candidates, err := r.d.Attendance.FindOpenStates(ctx, r.d.Tx.Queryer())
	if err != nil {
		return err
	}

	now := r.d.Clock.Now()
	for _, rec := range candidates {
		last, ok := r.d.Cache.GetLastActivity(ctx, rec.UserID)
		if !ok {
			continue
		}

		silence := now.Sub(last.LastHeartbeatTs)
		switch {
		case silence > gapDetectorAutoCheckoutThreshold:
			at := last.LastHeartbeatTs.Add(r.d.GapThreshold)
			if _, err := r.commands.CheckOut(ctx, rec.UserID, at, "", "", "reconcile: gap detector"); err != nil {
				r.log.Error("gap detector auto-checkout failed", "record_id", rec.ID, "user_id", rec.UserID, "err", err)
			}

		case silence > r.d.GapThreshold && rec.CurrentState == domain.StateWorking:
			at := last.LastHeartbeatTs.Add(r.d.GapThreshold)
			if err := r.markIdle(ctx, rec.ID, at); err != nil {
				r.log.Error("gap detector idle transition failed", "record_id", rec.ID, "err", err)
			}
		}
	}
	return nil
}

// markIdle re-fetches the record under the row lock and double-checks it
// is still WORKING before transitioning, to avoid racing a heartbeat that
// committed between the candidate scan and this call (§5). It does not
// touch the ActivityLog audit trail — that is left to whichever of the
// next heartbeat or the end-of-day closer runs next, keeping this
// transaction's lock hold time short across every record it scans.
func (r *GapDetector) markIdle(ctx context.Context, recordID string, at time.Time) error {
	return r.d.Tx.WithTx(ctx, func(ctx context.Context, q store.Queryer) error {
		rec, err := r.d.Attendance.GetByID(ctx, q, recordID)
		if err != nil {
			return err
		}
		if rec == nil || rec.CheckOutTime != nil || rec.CurrentState != domain.StateWorking {
			return nil
		}

		r.d.Engine.ApplyTransition(rec, domain.StateIdle, at)
		if err := r.d.Attendance.Update(ctx, q, rec); err != nil {
			return err
		}
		r.d.Cache.SetCurrentState(ctx, rec.UserID, domain.StateIdle, r.d.CacheTTL)
		return nil
	})
}
