package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dipnamdev/attendance-management-backend/internal/clock"
	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/store"
)

// CheckIn opens (or re-opens) the caller's attendance record for today.
// Three starting points are handled: no row yet, a pre-created empty row
// from the daily-attendance job, and a previously checked-out row that the
// user is returning to (§4.3).
func (c *Commands) CheckIn(ctx context.Context, userID string, at time.Time, ip, location string) (*domain.AttendanceRecord, error) {
	date := clock.NormalizeDate(at, c.clock.Location())

	var result *domain.AttendanceRecord
	err := c.tx.WithTx(ctx, func(ctx context.Context, q store.Queryer) error {
		rec, err := c.attendance.GetByUserAndDate(ctx, q, userID, date)
		if err != nil {
			return fmt.Errorf("commands: load attendance record: %w", err)
		}

		switch {
		case rec == nil:
			rec = domain.NewAttendanceRecord(userID, date)
			rec.CheckInTime = &at
			rec.CheckInIP = ip
			rec.CheckInLoc = location
			c.engine.ApplyTransition(rec, domain.StateWorking, at)
			if err := c.attendance.Create(ctx, q, rec); err != nil {
				return fmt.Errorf("commands: create attendance record: %w", err)
			}

		case rec.CheckOutTime != nil:
			// Returning after a check-out: close the gap as idle time, clear
			// the legacy mirror totals, and reopen the record in WORKING state.
			if err := c.closeOpenActivityLog(ctx, q, rec.ID, at); err != nil {
				return err
			}
			gap := at.Sub(*rec.CheckOutTime)
			if gap > 0 {
				rec.IdleSeconds += int64(gap.Seconds())
			}
			rec.CheckOutTime = nil
			rec.CheckOutIP = ""
			rec.CheckOutLoc = ""
			rec.TotalWorkDuration = 0
			rec.TotalActiveDuration = 0
			rec.TotalIdleDuration = 0
			rec.TotalBreakDuration = 0
			c.engine.ApplyTransition(rec, domain.StateWorking, at)
			if err := c.attendance.Update(ctx, q, rec); err != nil {
				return fmt.Errorf("commands: update attendance record: %w", err)
			}

		case rec.CheckInTime != nil:
			return domain.ErrAlreadyCheckedIn

		default:
			// Pre-created empty row from the daily-attendance job.
			rec.CheckInTime = &at
			rec.CheckInIP = ip
			rec.CheckInLoc = location
			c.engine.ApplyTransition(rec, domain.StateWorking, at)
			if err := c.attendance.Update(ctx, q, rec); err != nil {
				return fmt.Errorf("commands: update attendance record: %w", err)
			}
		}

		if err := c.openActivityLog(ctx, q, rec.ID, domain.SegmentActive, at); err != nil {
			return err
		}

		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.cache.SetCurrentState(ctx, userID, domain.StateWorking, c.cacheTTL)
	return result, nil
}
