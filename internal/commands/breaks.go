package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dipnamdev/attendance-management-backend/internal/clock"
	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/store"
)

// StartBreak moves an open record into LUNCH state, crediting whatever
// state it was previously in. A second break cannot be started while one
// is already open (§4.3).
func (c *Commands) StartBreak(ctx context.Context, userID string, at time.Time, location string) (*domain.AttendanceRecord, error) {
	date := clock.NormalizeDate(at, c.clock.Location())

	var result *domain.AttendanceRecord
	err := c.tx.WithTx(ctx, func(ctx context.Context, q store.Queryer) error {
		rec, err := c.attendance.GetByUserAndDate(ctx, q, userID, date)
		if err != nil {
			return fmt.Errorf("commands: load attendance record: %w", err)
		}
		if rec == nil || !rec.IsOpen() {
			return domain.ErrNotCheckedIn
		}

		openBreak, err := c.breaks.GetOpenByRecord(ctx, q, rec.ID)
		if err != nil {
			return fmt.Errorf("commands: load open break: %w", err)
		}
		if openBreak != nil || rec.CurrentState == domain.StateLunch {
			return domain.ErrBreakAlreadyStarted
		}

		if err := c.closeOpenActivityLog(ctx, q, rec.ID, at); err != nil {
			return err
		}

		c.engine.ApplyTransition(rec, domain.StateLunch, at)

		lb := domain.NewLunchBreak(rec.ID, at, location)
		if err := c.breaks.Create(ctx, q, lb); err != nil {
			return fmt.Errorf("commands: create lunch break: %w", err)
		}

		if err := c.openActivityLog(ctx, q, rec.ID, domain.SegmentLunchBreak, at); err != nil {
			return err
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

	c.cache.SetCurrentState(ctx, userID, domain.StateLunch, c.cacheTTL)
	return result, nil
}

// EndBreak closes the caller's open lunch break and returns the record to
// WORKING state (§4.3).
func (c *Commands) EndBreak(ctx context.Context, userID string, at time.Time, location string) (*domain.AttendanceRecord, error) {
	date := clock.NormalizeDate(at, c.clock.Location())

	var result *domain.AttendanceRecord
	err := c.tx.WithTx(ctx, func(ctx context.Context, q store.Queryer) error {
		rec, err := c.attendance.GetByUserAndDate(ctx, q, userID, date)
		if err != nil {
			return fmt.Errorf("commands: load attendance record: %w", err)
		}
		if rec == nil || !rec.IsOpen() {
			return domain.ErrNotCheckedIn
		}

		openBreak, err := c.breaks.GetOpenByRecord(ctx, q, rec.ID)
		if err != nil {
			return fmt.Errorf("commands: load open break: %w", err)
		}
		if openBreak == nil {
			return domain.ErrNoActiveBreak
		}

		if err := c.closeOpenActivityLog(ctx, q, rec.ID, at); err != nil {
			return err
		}

		c.engine.ApplyTransition(rec, domain.StateWorking, at)

		openBreak.Close(at)
		openBreak.EndLocation = location
		if err := c.breaks.Update(ctx, q, openBreak); err != nil {
			return fmt.Errorf("commands: close lunch break: %w", err)
		}

		if err := c.openActivityLog(ctx, q, rec.ID, domain.SegmentActive, at); err != nil {
			return err
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

	c.cache.SetCurrentState(ctx, userID, domain.StateWorking, c.cacheTTL)
	return result, nil
}
