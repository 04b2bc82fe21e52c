// Package clock provides the wall clock, date normalization, and ID
// generation the rest of the attendance core depends on. Every component
// that needs "now" takes a Clock instead of calling time.Now() directly so
// tests can drive deterministic timelines.
package clock

import (
	"time"

	"github.com/google/uuid"
)

// Clock is the contract for time operations used throughout the core.
// Location is the server's single configured timezone, which defines
// "today", "endOfDay", and the attendance record's Date field (§2, §6).
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// System is the production Clock backed by the real wall clock and a
// configured time.Location.
type System struct {
	loc *time.Location
}

// NewSystem builds a System clock for the given IANA timezone name. An
// unknown zone falls back to UTC rather than failing startup.
func NewSystem(timezone string) *System {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return &System{loc: loc}
}

func (c *System) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c *System) Location() *time.Location {
	return c.loc
}

// Today normalizes a Clock's current time to the calendar date at
// midnight in its configured timezone — the AttendanceRecord.Date value.
func Today(c Clock) time.Time {
	return NormalizeDate(c.Now(), c.Location())
}

// NormalizeDate strips the time-of-day component, keeping only the
// calendar date in the given location.
func NormalizeDate(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns the instant 23:59:59.999999999 of the given date's
// calendar day, in the clock's timezone — the moment the end-of-day
// closer runs against (§4.4).
func EndOfDay(date time.Time, loc *time.Location) time.Time {
	d := NormalizeDate(date, loc)
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 999999999, loc)
}

// NewID generates a new random identifier for entities created outside of
// domain constructors (e.g. repository-side rows with no natural entity).
func NewID() string {
	return uuid.New().String()
}
