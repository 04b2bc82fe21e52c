// Package api is the public façade over the attendance core (component
// 8, §6): the same surface both the HTTP transport and the operator CLI
// call into. It adds nothing business-logic-wise beyond what commands,
// heartbeat, and the store already provide — it composes them and shapes
// their results for a caller outside the core.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/dipnamdev/attendance-management-backend/internal/clock"
	"github.com/dipnamdev/attendance-management-backend/internal/commands"
	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/engine"
	"github.com/dipnamdev/attendance-management-backend/internal/heartbeat"
	"github.com/dipnamdev/attendance-management-backend/internal/logger"
	"github.com/dipnamdev/attendance-management-backend/internal/store"
)

// TodayAttendance is GetTodayAttendance's result: the stored record plus
// the live, as-of-now figures §6 calls for — committed counters with the
// record's current open state added in, without mutating anything.
type TodayAttendance struct {
	Record      *domain.AttendanceRecord
	LiveActive  time.Duration
	LiveIdle    time.Duration
	LiveBreak   time.Duration
	LiveTracked time.Duration
}

// Deps groups everything the façade composes.
type Deps struct {
	Tx         store.Transactor
	Attendance store.AttendanceRepository
	Commands   *commands.Commands
	Heartbeat  *heartbeat.Processor
	Engine     *engine.Engine
	Clock      clock.Clock
	Log        logger.Logger
}

// API implements the public surface named in §6.
type API struct {
	tx         store.Transactor
	attendance store.AttendanceRepository
	commands   *commands.Commands
	heartbeat  *heartbeat.Processor
	engine     *engine.Engine
	clock      clock.Clock
	log        logger.Logger
}

// New builds an API façade.
func New(d Deps) *API {
	log := d.Log
	if log == nil {
		log = logger.Noop{}
	}
	return &API{
		tx:         d.Tx,
		attendance: d.Attendance,
		commands:   d.Commands,
		heartbeat:  d.Heartbeat,
		engine:     d.Engine,
		clock:      d.Clock,
		log:        log.With("api"),
	}
}

func (a *API) CheckIn(ctx context.Context, userID string, at time.Time, ip, location string) (*domain.AttendanceRecord, error) {
	return a.commands.CheckIn(ctx, userID, at, ip, location)
}

func (a *API) CheckOut(ctx context.Context, userID string, at time.Time, ip, location, reason string) (*domain.AttendanceRecord, error) {
	return a.commands.CheckOut(ctx, userID, at, ip, location, reason)
}

func (a *API) Heartbeat(ctx context.Context, userID string, sample heartbeat.Sample, at time.Time) (*heartbeat.Result, error) {
	return a.heartbeat.Process(ctx, userID, sample, at)
}

func (a *API) StartBreak(ctx context.Context, userID string, at time.Time, location string) (*domain.AttendanceRecord, error) {
	return a.commands.StartBreak(ctx, userID, at, location)
}

func (a *API) EndBreak(ctx context.Context, userID string, at time.Time, location string) (*domain.AttendanceRecord, error) {
	return a.commands.EndBreak(ctx, userID, at, location)
}

// GetTodayAttendance returns today's record plus live counters, per §6.
// Returns (nil, nil) when no record exists yet for today — the ∅ case.
func (a *API) GetTodayAttendance(ctx context.Context, userID string) (*TodayAttendance, error) {
	now := a.clock.Now()
	today := clock.Today(a.clock)

	rec, err := a.attendance.GetByUserAndDate(ctx, a.tx.Queryer(), userID, today)
	if err != nil {
		return nil, fmt.Errorf("api: load today's attendance: %w", err)
	}
	if rec == nil {
		return nil, nil
	}

	live := a.engine.CurrentDurationAt(rec, now)

	out := &TodayAttendance{
		Record:     rec,
		LiveActive: time.Duration(rec.ActiveSeconds) * time.Second,
		LiveIdle:   time.Duration(rec.IdleSeconds) * time.Second,
		LiveBreak:  time.Duration(rec.LunchSeconds) * time.Second,
	}

	switch rec.CurrentState {
	case domain.StateWorking:
		out.LiveActive += live
	case domain.StateIdle:
		out.LiveIdle += live
	case domain.StateLunch:
		out.LiveBreak += live
	}
	out.LiveTracked = out.LiveActive + out.LiveIdle

	return out, nil
}

// GetAttendanceHistory returns every record for userID ordered newest
// first, optionally bounded by [start, end]. Past-day records still open
// are capped at their own end-of-day and clamped, per §6 — this is a
// read-time presentation fix, it never persists a mutation.
func (a *API) GetAttendanceHistory(ctx context.Context, userID string, start, end *time.Time) ([]*domain.AttendanceRecord, error) {
	rangeStart := time.Time{}
	if start != nil {
		rangeStart = clock.NormalizeDate(*start, a.clock.Location())
	}
	rangeEnd := a.clock.Now()
	if end != nil {
		rangeEnd = *end
	}

	recs, err := a.attendance.FindByUserInRange(ctx, a.tx.Queryer(), userID, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("api: load attendance history: %w", err)
	}

	today := clock.Today(a.clock)
	for _, rec := range recs {
		a.presentHistoricalRecord(rec, today)
	}

	// FindByUserInRange already orders by date DESC; the cap/clamp pass
	// above only touches counters and check_out_time, never Date, so the
	// ordering is preserved.
	return recs, nil
}

// presentHistoricalRecord applies the read-time cap-and-clamp view to one
// record. It mutates the in-memory value returned to the caller only —
// the stored row is untouched.
func (a *API) presentHistoricalRecord(rec *domain.AttendanceRecord, today time.Time) {
	if rec.CheckOutTime == nil && rec.Date.Before(today) {
		endOfDay := clock.EndOfDay(rec.Date, a.clock.Location())
		if rec.CurrentState != domain.StateNone && rec.LastStateChangeAt != nil {
			a.engine.Finalize(rec, endOfDay)
		}
		rec.CheckOutTime = &endOfDay
	}

	if rec.CheckInTime == nil || rec.CheckOutTime == nil {
		return
	}

	// work is the elapsed time available for active+idle accrual: the
	// checked-in span minus whatever was spent on lunch. active+idle can
	// exceed it after counter drift (a missed transition, a clock-skew
	// drop); the clamp trims idle first, then active, never below zero.
	work := int64(rec.CheckOutTime.Sub(*rec.CheckInTime).Seconds()) - rec.LunchSeconds
	rec.ActiveSeconds, rec.IdleSeconds = engine.Clamp(rec.ActiveSeconds, rec.IdleSeconds, work)
}
