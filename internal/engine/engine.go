// Package engine implements the attendance state machine: the pure
// credit-and-transition logic every command, heartbeat, and reconciler
// drives. It never touches the store directly — callers load a record,
// hand it to the Engine inside their own transaction, and persist the
// mutated record themselves. This keeps the hard part of the system (the
// transition language) independent of how a row happens to be fetched.
package engine

import (
	"time"

	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/logger"
)

// Engine applies state transitions to AttendanceRecord values in memory.
type Engine struct {
	log logger.Logger
}

// New builds an Engine. A nil logger is replaced with a no-op logger.
func New(log logger.Logger) *Engine {
	if log == nil {
		log = logger.Noop{}
	}
	return &Engine{log: log}
}

// ApplyTransition credits the elapsed time since the record's last state
// change to the counter matching its current state, then moves it to
// newState at time at. If the record has no open state yet (CurrentState
// is StateNone), this is initialization: counters are untouched and the
// new state/timestamp are simply recorded. If at is before the record's
// last recorded change, the transition is dropped — no counters move, no
// timestamp advances — and the anomaly is logged; it is never clamped to
// zero, which would silently rewrite history.
//
// Returns whether the record was mutated.
func (e *Engine) ApplyTransition(rec *domain.AttendanceRecord, newState domain.State, at time.Time) bool {
	if rec.CurrentState == domain.StateNone || rec.LastStateChangeAt == nil {
		rec.CurrentState = newState
		t := at
		rec.LastStateChangeAt = &t
		return true
	}

	if at.Before(*rec.LastStateChangeAt) {
		e.log.Warn("dropping transition: event time precedes last state change",
			"record_id", rec.ID, "at", at, "last_state_change_at", *rec.LastStateChangeAt)
		return false
	}

	delta := at.Sub(*rec.LastStateChangeAt)
	e.credit(rec, rec.CurrentState, delta)

	rec.CurrentState = newState
	t := at
	rec.LastStateChangeAt = &t
	return true
}

// Finalize performs the same credit step as ApplyTransition and then
// clears CurrentState/LastStateChangeAt to the closed (∅) state. Used by
// check-out and every reconciler that closes a record.
func (e *Engine) Finalize(rec *domain.AttendanceRecord, at time.Time) bool {
	if rec.CurrentState == domain.StateNone || rec.LastStateChangeAt == nil {
		return false
	}

	if at.Before(*rec.LastStateChangeAt) {
		e.log.Warn("dropping finalize: event time precedes last state change",
			"record_id", rec.ID, "at", at, "last_state_change_at", *rec.LastStateChangeAt)
		return false
	}

	delta := at.Sub(*rec.LastStateChangeAt)
	e.credit(rec, rec.CurrentState, delta)

	rec.CurrentState = domain.StateNone
	rec.LastStateChangeAt = nil
	return true
}

// CurrentDurationAt returns the accrued-but-uncommitted duration of the
// record's current state as of now, without mutating it — the live
// figure a read path adds to the committed counter for a "right now"
// view (§6 GetTodayAttendance).
func (e *Engine) CurrentDurationAt(rec *domain.AttendanceRecord, now time.Time) time.Duration {
	if rec.CurrentState == domain.StateNone || rec.LastStateChangeAt == nil {
		return 0
	}
	d := now.Sub(*rec.LastStateChangeAt)
	if d < 0 {
		return 0
	}
	return d
}

// credit adds delta seconds to the counter matching state. An unknown
// prior state (should not occur outside of data corruption) is credited
// to idle and logged, per §4.1.
func (e *Engine) credit(rec *domain.AttendanceRecord, state domain.State, delta time.Duration) {
	seconds := int64(delta.Seconds())
	if seconds < 0 {
		seconds = 0
	}

	switch state {
	case domain.StateWorking:
		rec.ActiveSeconds += seconds
	case domain.StateIdle:
		rec.IdleSeconds += seconds
	case domain.StateLunch:
		rec.LunchSeconds += seconds
	default:
		e.log.Warn("crediting unknown prior state to idle", "record_id", rec.ID, "state", string(state))
		rec.IdleSeconds += seconds
	}
}

// Clamp enforces active+idle <= work by trimming idle first, then
// active, never going below zero. It is idempotent: applying it twice
// yields the same result as applying it once (§4.1).
func Clamp(active, idle, work int64) (clampedActive, clampedIdle int64) {
	if work < 0 {
		work = 0
	}

	total := active + idle
	if total <= work {
		return active, idle
	}

	excess := total - work
	if idle >= excess {
		idle -= excess
		excess = 0
	} else {
		excess -= idle
		idle = 0
	}

	if excess > 0 {
		if active >= excess {
			active -= excess
		} else {
			active = 0
		}
	}

	return active, idle
}
