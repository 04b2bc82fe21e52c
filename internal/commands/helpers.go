package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/store"
)

// closeOpenActivityLog closes whatever audit segment is currently open
// for the record at `at`. A missing open segment is not an error — audit
// segments are best-effort bookkeeping, never load-bearing for totals.
func (c *Commands) closeOpenActivityLog(ctx context.Context, q store.Queryer, recordID string, at time.Time) error {
	open, err := c.activityLogs.GetOpenByRecord(ctx, q, recordID)
	if err != nil {
		return fmt.Errorf("commands: load open activity log: %w", err)
	}
	if open == nil {
		return nil
	}
	open.Close(at)
	if err := c.activityLogs.Update(ctx, q, open); err != nil {
		return fmt.Errorf("commands: close activity log: %w", err)
	}
	return nil
}

// openActivityLog opens a fresh audit segment of the given type.
func (c *Commands) openActivityLog(ctx context.Context, q store.Queryer, recordID string, segType domain.SegmentType, at time.Time) error {
	seg := domain.NewActivityLog(recordID, segType, at)
	if err := c.activityLogs.Create(ctx, q, seg); err != nil {
		return fmt.Errorf("commands: open activity log: %w", err)
	}
	return nil
}

// segmentForState maps a current attendance state to the audit segment
// type it corresponds to.
func segmentForState(state domain.State) domain.SegmentType {
	switch state {
	case domain.StateIdle:
		return domain.SegmentIdle
	case domain.StateLunch:
		return domain.SegmentLunchBreak
	default:
		return domain.SegmentActive
	}
}

// applyLegacyMirror computes the legacy mirror totals written at
// check-out/finalize time, per §3: total_work_duration = active+idle,
// plus the individual mirrors. Clamping is intentionally not applied
// here — the *_seconds counters are the authoritative accounting and are
// not expected to exceed elapsed time under normal operation; clamping
// is reserved for read-time views over records whose counters might have
// drifted (§4.1).
func applyLegacyMirror(rec *domain.AttendanceRecord) {
	rec.TotalActiveDuration = rec.ActiveSeconds
	rec.TotalIdleDuration = rec.IdleSeconds
	rec.TotalBreakDuration = rec.LunchSeconds
	rec.TotalWorkDuration = rec.ActiveSeconds + rec.IdleSeconds
}
