package reconcile

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipnamdev/attendance-management-backend/internal/cache"
	"github.com/dipnamdev/attendance-management-backend/internal/commands"
	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/engine"
	"github.com/dipnamdev/attendance-management-backend/internal/logger"
	"github.com/dipnamdev/attendance-management-backend/internal/store/sqlite"
)

type fakeClock struct {
	now time.Time
	loc *time.Location
}

func (c *fakeClock) Now() time.Time           { return c.now }
func (c *fakeClock) Location() *time.Location { return c.loc }

type memCache struct {
	activity map[string]cache.LastActivity
	state    map[string]domain.State
}

func newMemCache() *memCache {
	return &memCache{activity: map[string]cache.LastActivity{}, state: map[string]domain.State{}}
}

func (m *memCache) GetLastActivity(ctx context.Context, userID string) (cache.LastActivity, bool) {
	v, ok := m.activity[userID]
	return v, ok
}
func (m *memCache) SetLastActivity(ctx context.Context, userID string, v cache.LastActivity, ttl time.Duration) {
	m.activity[userID] = v
}
func (m *memCache) GetCurrentState(ctx context.Context, userID string) (domain.State, bool) {
	v, ok := m.state[userID]
	return v, ok
}
func (m *memCache) SetCurrentState(ctx context.Context, userID string, state domain.State, ttl time.Duration) {
	m.state[userID] = state
}
func (m *memCache) Clear(ctx context.Context, userID string) {
	delete(m.activity, userID)
	delete(m.state, userID)
}

type testRig struct {
	db   *sqlite.DB
	clk  *fakeClock
	cmd  *commands.Commands
	cach *memCache
	deps Deps
}

func newTestRig(t *testing.T, now time.Time) *testRig {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.Open(sqlite.Config{DSN: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clk := &fakeClock{now: now, loc: time.UTC}
	eng := engine.New(logger.Noop{})
	mc := newMemCache()

	attendance := sqlite.NewAttendanceRepository()
	breaks := sqlite.NewLunchBreakRepository()
	activityLogs := sqlite.NewActivityLogRepository()
	inputSamples := sqlite.NewInputSampleRepository()
	users := sqlite.NewUserRepository()

	cmd := commands.New(commands.Deps{
		Tx:           db,
		Attendance:   attendance,
		Breaks:       breaks,
		ActivityLogs: activityLogs,
		Cache:        mc,
		Engine:       eng,
		Clock:        clk,
		Log:          logger.Noop{},
		CacheTTL:     time.Hour,
	})

	deps := Deps{
		Tx:           db,
		Attendance:   attendance,
		Breaks:       breaks,
		ActivityLogs: activityLogs,
		InputSamples: inputSamples,
		Users:        users,
		Cache:        mc,
		Engine:       eng,
		Clock:        clk,
		Log:          logger.Noop{},
		CacheTTL:     time.Hour,
	}

	return &testRig{db: db, clk: clk, cmd: cmd, cach: mc, deps: deps}
}

func TestExcessiveIdleCloser_CapsAndChecksOut(t *testing.T) {
	start := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	rig := newTestRig(t, start)
	ctx := context.Background()

	_, err := rig.cmd.CheckIn(ctx, "user-1", start, "", "")
	require.NoError(t, err)

	idleAt := start.Add(time.Hour)
	rig.clk.now = idleAt
	rec, err := rig.deps.Attendance.GetByUserAndDate(ctx, rig.db.Queryer(), "user-1", start.In(time.UTC).Truncate(24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, rec)
	rig.deps.Engine.ApplyTransition(rec, domain.StateIdle, idleAt)
	require.NoError(t, rig.deps.Attendance.Update(ctx, rig.db.Queryer(), rec))

	rig.clk.now = idleAt.Add(45 * time.Minute)
	closer := NewExcessiveIdleCloser(rig.deps)
	require.NoError(t, closer.Run(ctx))

	after, err := rig.deps.Attendance.GetByID(ctx, rig.db.Queryer(), rec.ID)
	require.NoError(t, err)
	require.NotNil(t, after.CheckOutTime)
	assert.Equal(t, idleAt.Add(30*time.Minute), *after.CheckOutTime)
	assert.Equal(t, int64(30*60), after.IdleSeconds)
}

func TestExcessiveBreakCloser_CapsAt2Hours(t *testing.T) {
	start := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	rig := newTestRig(t, start)
	ctx := context.Background()

	_, err := rig.cmd.CheckIn(ctx, "user-1", start, "", "")
	require.NoError(t, err)
	breakStart := start.Add(2 * time.Hour)
	rig.clk.now = breakStart
	_, err = rig.cmd.StartBreak(ctx, "user-1", breakStart, "")
	require.NoError(t, err)

	rig.clk.now = breakStart.Add(3 * time.Hour)
	closer := NewExcessiveBreakCloser(rig.deps)
	require.NoError(t, closer.Run(ctx))

	rec, err := rig.deps.Attendance.GetByUserAndDate(ctx, rig.db.Queryer(), "user-1", start.Truncate(24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, rec.CheckOutTime)
	assert.Equal(t, breakStart.Add(2*time.Hour), *rec.CheckOutTime)
}

func TestGapDetector_AutoChecksOutOnLongSilence(t *testing.T) {
	start := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	rig := newTestRig(t, start)
	ctx := context.Background()

	_, err := rig.cmd.CheckIn(ctx, "user-1", start, "", "")
	require.NoError(t, err)
	rig.cach.SetLastActivity(ctx, "user-1", cache.LastActivity{LastInputTs: start, LastHeartbeatTs: start}, time.Hour)

	rig.clk.now = start.Add(90 * time.Minute)
	gd := NewGapDetector(rig.deps, rig.cmd)
	require.NoError(t, gd.Run(ctx))

	rec, err := rig.deps.Attendance.GetByUserAndDate(ctx, rig.db.Queryer(), "user-1", start.Truncate(24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, rec.CheckOutTime)
}

func TestDailyAttendanceCreator_CreatesEmptyRow(t *testing.T) {
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	rig := newTestRig(t, start)
	ctx := context.Background()

	u := &domain.User{ID: "user-1", Handle: "alice", Active: true}
	require.NoError(t, seedUser(t, rig.db, u))

	creator := NewDailyAttendanceCreator(rig.deps)
	require.NoError(t, creator.Run(ctx))

	rec, err := rig.deps.Attendance.GetByUserAndDate(ctx, rig.db.Queryer(), "user-1", start)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Nil(t, rec.CheckInTime)
}

func seedUser(t *testing.T, db *sqlite.DB, u *domain.User) error {
	t.Helper()
	active := 0
	if u.Active {
		active = 1
	}
	_, err := db.Queryer().ExecContext(context.Background(),
		`INSERT INTO users (id, handle, active) VALUES (?, ?, ?)`, u.ID, u.Handle, active)
	return err
}

func TestEndOfDayCloser_BackdatesStaleTailToIdle(t *testing.T) {
	start := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	rig := newTestRig(t, start)
	ctx := context.Background()

	_, err := rig.cmd.CheckIn(ctx, "user-1", start, "", "")
	require.NoError(t, err)

	lastSample := start.Add(8 * time.Hour)
	_, err = rig.db.Queryer().ExecContext(ctx,
		`INSERT INTO input_samples (id, attendance_record_id, timestamp, active_window, active_application, url, mouse_clicks, keyboard_strokes, client_is_active, client_idle_seconds) VALUES (?, (SELECT id FROM attendance_records WHERE user_id = ?), ?, '', '', '', 1, 0, 1, 0)`,
		"sample-1", "user-1", lastSample)
	require.NoError(t, err)

	closer := NewEndOfDayCloser(rig.deps)
	rig.clk.now = lastSample
	require.NoError(t, closer.Run(ctx))

	rec, err := rig.deps.Attendance.GetByUserAndDate(ctx, rig.db.Queryer(), "user-1", start.Truncate(24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, rec.CheckOutTime)
	// 8h credited WORKING up to the last sample, then IDLE from the
	// sample to end-of-day (~7h), since the tail is stale by more
	// than the 15 minute window.
	assert.Equal(t, int64(8*3600), rec.ActiveSeconds)
	assert.Greater(t, rec.IdleSeconds, int64(0))
}
