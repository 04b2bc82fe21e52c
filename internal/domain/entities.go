// Package domain holds the core entities of the attendance tracker: the
// per-user-per-day record, its lunch breaks, and the audit trail written
// alongside every state transition. These types carry no store or
// transport concerns — they are plain data plus the small amount of
// behavior (state labels, zero-value checks) that every layer needs.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// State is the attendance record's current activity state. The zero value
// StateNone represents "not checked in" or "checked out" — never a fourth
// working state.
type State string

const (
	StateNone    State = ""
	StateWorking State = "WORKING"
	StateIdle    State = "IDLE"
	StateLunch   State = "LUNCH"
)

// User is identity-only from the core's perspective.
type User struct {
	ID      string
	Handle  string
	Active  bool
}

// AttendanceRecord is the single row tracked per (user, date). Counters are
// monotonically non-decreasing seconds; CurrentState/LastStateChangeAt are
// either both set or both zero.
type AttendanceRecord struct {
	ID       string
	UserID   string
	Date     time.Time // normalized to midnight in the server timezone

	CheckInTime  *time.Time
	CheckOutTime *time.Time

	CurrentState      State
	LastStateChangeAt *time.Time

	ActiveSeconds int64
	IdleSeconds   int64
	LunchSeconds  int64

	// Legacy mirror totals, written once at check-out/finalize.
	TotalWorkDuration   int64
	TotalActiveDuration int64
	TotalIdleDuration   int64
	TotalBreakDuration  int64

	CheckInIP    string
	CheckOutIP   string
	CheckInLoc   string // free-form JSON
	CheckOutLoc  string
	Notes        string
}

// NewAttendanceRecord creates an empty pre-created row for the given user
// and date, as written by the daily-attendance job. CheckInTime is left
// nil until the user's first check-in.
func NewAttendanceRecord(userID string, date time.Time) *AttendanceRecord {
	return &AttendanceRecord{
		ID:     uuid.New().String(),
		UserID: userID,
		Date:   date,
	}
}

// IsOpen reports whether the record has been checked in but not yet
// checked out.
func (r *AttendanceRecord) IsOpen() bool {
	return r.CheckInTime != nil && r.CheckOutTime == nil
}

// LunchBreak is an audit row tied to an attendance record. At most one row
// per record may have BreakEndTime nil at any instant.
type LunchBreak struct {
	ID                 string
	AttendanceRecordID string
	BreakStartTime     time.Time
	BreakEndTime       *time.Time
	DurationSeconds    int64
	StartLocation      string
	EndLocation        string
}

// NewLunchBreak opens a new break for the given attendance record.
func NewLunchBreak(attendanceRecordID string, start time.Time, startLocation string) *LunchBreak {
	return &LunchBreak{
		ID:                 uuid.New().String(),
		AttendanceRecordID: attendanceRecordID,
		BreakStartTime:     start,
		StartLocation:      startLocation,
	}
}

// IsOpen reports whether the break has not yet been ended.
func (b *LunchBreak) IsOpen() bool {
	return b.BreakEndTime == nil
}

// Close ends the break at the given time and records its duration. Callers
// are responsible for clamping end against start before calling Close.
func (b *LunchBreak) Close(end time.Time) {
	b.BreakEndTime = &end
	d := end.Sub(b.BreakStartTime)
	if d < 0 {
		d = 0
	}
	b.DurationSeconds = int64(d.Seconds())
}

// SegmentType identifies the kind of ActivityLog segment.
type SegmentType string

const (
	SegmentActive     SegmentType = "active"
	SegmentIdle       SegmentType = "idle"
	SegmentLunchBreak SegmentType = "lunch_break"
)

// ActivityLog is an audit-only open/close segment. It is never summed to
// produce totals — the *_seconds counters on AttendanceRecord are
// authoritative; ActivityLog exists for audit trails and UI timelines.
type ActivityLog struct {
	ID                 string
	AttendanceRecordID string
	Type               SegmentType
	StartTime          time.Time
	EndTime            *time.Time
}

// NewActivityLog opens a new audit segment.
func NewActivityLog(attendanceRecordID string, segType SegmentType, start time.Time) *ActivityLog {
	return &ActivityLog{
		ID:                 uuid.New().String(),
		AttendanceRecordID: attendanceRecordID,
		Type:               segType,
		StartTime:          start,
	}
}

// Close ends the audit segment at the given time.
func (a *ActivityLog) Close(end time.Time) {
	a.EndTime = &end
}

// InputSample is one row of raw heartbeat telemetry. It is retained for
// metrics only and is never authoritative for state or billing.
type InputSample struct {
	ID                 string
	AttendanceRecordID string
	Timestamp          time.Time
	ActiveWindow       string
	ActiveApplication  string
	URL                string
	MouseClicks        int64
	KeyboardStrokes    int64
	ClientIsActive     bool
	ClientIdleSeconds  int64
}

// HasInput reports whether the sample itself carries the authoritative
// "has input" signal. Mouse movement alone never counts.
func (s *InputSample) HasInput() bool {
	return s.MouseClicks+s.KeyboardStrokes > 0
}

// NewInputSample constructs a raw telemetry row for persistence.
func NewInputSample(attendanceRecordID string, ts time.Time) *InputSample {
	return &InputSample{
		ID:                 uuid.New().String(),
		AttendanceRecordID: attendanceRecordID,
		Timestamp:          ts,
	}
}
