package reconcile

import (
	"context"
	"time"

	"github.com/dipnamdev/attendance-management-backend/internal/clock"
	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/logger"
	"github.com/dipnamdev/attendance-management-backend/internal/store"
)

// DailyAttendanceCreator inserts one empty attendance row per active user
// for today, if not already present, per §4.4. check_in_time stays nil
// until the user actually checks in.
type DailyAttendanceCreator struct {
	d   Deps
	log logger.Logger
}

func NewDailyAttendanceCreator(d Deps) *DailyAttendanceCreator {
	return &DailyAttendanceCreator{d: d, log: d.logger("reconcile.daily_creator")}
}

func (r *DailyAttendanceCreator) Name() string { return "daily_attendance_creator" }

func (r *DailyAttendanceCreator) Run(ctx context.Context) error {
	today := clock.Today(r.d.Clock)

	users, err := r.d.Users.FindActive(ctx, r.d.Tx.Queryer())
	if err != nil {
		return err
	}

	for _, u := range users {
		if err := r.createOne(ctx, u.ID, today); err != nil {
			r.log.Error("daily attendance creator failed for user", "user_id", u.ID, "err", err)
		}
	}
	return nil
}

func (r *DailyAttendanceCreator) createOne(ctx context.Context, userID string, date time.Time) error {
	return r.d.Tx.WithTx(ctx, func(ctx context.Context, q store.Queryer) error {
		existing, err := r.d.Attendance.GetByUserAndDate(ctx, q, userID, date)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}

		rec := domain.NewAttendanceRecord(userID, date)
		return r.d.Attendance.Create(ctx, q, rec)
	})
}
