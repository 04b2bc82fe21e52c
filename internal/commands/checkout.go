package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dipnamdev/attendance-management-backend/internal/clock"
	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/store"
)

// CheckOut closes the caller's open attendance record, crediting the
// remaining open segment and closing any open lunch break first (§4.3).
func (c *Commands) CheckOut(ctx context.Context, userID string, at time.Time, ip, location, reason string) (*domain.AttendanceRecord, error) {
	date := clock.NormalizeDate(at, c.clock.Location())

	var result *domain.AttendanceRecord
	err := c.tx.WithTx(ctx, func(ctx context.Context, q store.Queryer) error {
		rec, err := c.attendance.GetByUserAndDate(ctx, q, userID, date)
		if err != nil {
			return fmt.Errorf("commands: load attendance record: %w", err)
		}
		if rec == nil || rec.CheckInTime == nil {
			return domain.ErrNotCheckedIn
		}
		if rec.CheckOutTime != nil {
			return domain.ErrAlreadyCheckedOut
		}

		if openBreak, err := c.breaks.GetOpenByRecord(ctx, q, rec.ID); err != nil {
			return fmt.Errorf("commands: load open break: %w", err)
		} else if openBreak != nil {
			openBreak.Close(at)
			openBreak.EndLocation = location
			if err := c.breaks.Update(ctx, q, openBreak); err != nil {
				return fmt.Errorf("commands: close open break: %w", err)
			}
		}

		if err := c.closeOpenActivityLog(ctx, q, rec.ID, at); err != nil {
			return err
		}

		c.engine.Finalize(rec, at)
		applyLegacyMirror(rec)

		rec.CheckOutTime = &at
		rec.CheckOutIP = ip
		rec.CheckOutLoc = location
		if reason != "" {
			rec.Notes = reason
		}

		if err := c.attendance.Update(ctx, q, rec); err != nil {
			return fmt.Errorf("commands: update attendance record: %w", err)
		}

		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.cache.Clear(ctx, userID)
	return result, nil
}
