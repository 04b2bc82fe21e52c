package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/logger"
)

func newRecordAt(state domain.State, at time.Time) *domain.AttendanceRecord {
	rec := &domain.AttendanceRecord{ID: "rec-1"}
	if state != domain.StateNone {
		rec.CurrentState = state
		t := at
		rec.LastStateChangeAt = &t
	}
	return rec
}

func TestApplyTransition_Initialization(t *testing.T) {
	e := New(logger.Noop{})
	rec := &domain.AttendanceRecord{ID: "rec-1"}
	start := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

	mutated := e.ApplyTransition(rec, domain.StateWorking, start)

	require.True(t, mutated)
	assert.Equal(t, domain.StateWorking, rec.CurrentState)
	require.NotNil(t, rec.LastStateChangeAt)
	assert.Equal(t, start, *rec.LastStateChangeAt)
	assert.Zero(t, rec.ActiveSeconds)
}

func TestApplyTransition_CreditsPriorState(t *testing.T) {
	e := New(logger.Noop{})
	start := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	rec := newRecordAt(domain.StateWorking, start)

	mutated := e.ApplyTransition(rec, domain.StateIdle, start.Add(10*time.Minute))

	require.True(t, mutated)
	assert.Equal(t, int64(600), rec.ActiveSeconds)
	assert.Equal(t, domain.StateIdle, rec.CurrentState)
	assert.Equal(t, start.Add(10*time.Minute), *rec.LastStateChangeAt)
}

func TestApplyTransition_DropsNegativeDelta(t *testing.T) {
	e := New(logger.Noop{})
	start := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	rec := newRecordAt(domain.StateWorking, start)

	mutated := e.ApplyTransition(rec, domain.StateIdle, start.Add(-time.Second))

	assert.False(t, mutated)
	assert.Equal(t, domain.StateWorking, rec.CurrentState)
	assert.Equal(t, start, *rec.LastStateChangeAt)
	assert.Zero(t, rec.ActiveSeconds)
}

func TestFinalize_ClearsState(t *testing.T) {
	e := New(logger.Noop{})
	start := time.Date(2025, 1, 15, 17, 0, 0, 0, time.UTC)
	rec := newRecordAt(domain.StateWorking, start)

	mutated := e.Finalize(rec, start.Add(30*time.Minute))

	require.True(t, mutated)
	assert.Equal(t, int64(1800), rec.ActiveSeconds)
	assert.Equal(t, domain.StateNone, rec.CurrentState)
	assert.Nil(t, rec.LastStateChangeAt)
}

func TestFinalize_NoOpWhenAlreadyClosed(t *testing.T) {
	e := New(logger.Noop{})
	rec := &domain.AttendanceRecord{ID: "rec-1"}

	mutated := e.Finalize(rec, time.Now())

	assert.False(t, mutated)
}

func TestCurrentDurationAt(t *testing.T) {
	e := New(logger.Noop{})
	start := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	rec := newRecordAt(domain.StateWorking, start)

	d := e.CurrentDurationAt(rec, start.Add(90*time.Second))

	assert.Equal(t, 90*time.Second, d)
	assert.Zero(t, rec.ActiveSeconds, "read-only view must not mutate counters")
}

func TestClamp_NoExcess(t *testing.T) {
	active, idle := Clamp(100, 50, 200)
	assert.Equal(t, int64(100), active)
	assert.Equal(t, int64(50), idle)
}

func TestClamp_TrimsIdleBeforeActive(t *testing.T) {
	// active=100, idle=150, work=200 -> excess=50, all absorbed by idle
	active, idle := Clamp(100, 150, 200)
	assert.Equal(t, int64(100), active)
	assert.Equal(t, int64(100), idle)
}

func TestClamp_TrimsActiveAfterIdleExhausted(t *testing.T) {
	// active=300, idle=50, work=200 -> excess=150, idle absorbs 50, active absorbs 100
	active, idle := Clamp(300, 50, 200)
	assert.Equal(t, int64(200), active)
	assert.Equal(t, int64(0), idle)
}

func TestClamp_NeverNegative(t *testing.T) {
	active, idle := Clamp(10, 10, 0)
	assert.Equal(t, int64(0), active)
	assert.Equal(t, int64(0), idle)
}

func TestClamp_Idempotent(t *testing.T) {
	a1, i1 := Clamp(300, 150, 200)
	a2, i2 := Clamp(a1, i1, 200)
	assert.Equal(t, a1, a2)
	assert.Equal(t, i1, i2)
}
