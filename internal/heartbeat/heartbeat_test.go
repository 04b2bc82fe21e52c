package heartbeat

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

// memCache is a minimal in-memory ActivityCache, letting heartbeat tests
// exercise real cache round-trips without a Redis dependency.
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

func newTestProcessor(t *testing.T, clk *fakeClock) (*Processor, *memCache) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.Open(sqlite.Config{DSN: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	eng := engine.New(logger.Noop{})
	mc := newMemCache()

	cmd := commands.New(commands.Deps{
		Tx:           db,
		Attendance:   sqlite.NewAttendanceRepository(),
		Breaks:       sqlite.NewLunchBreakRepository(),
		ActivityLogs: sqlite.NewActivityLogRepository(),
		Cache:        mc,
		Engine:       eng,
		Clock:        clk,
		Log:          logger.Noop{},
		CacheTTL:     time.Minute,
	})

	p := New(Deps{
		Tx:           db,
		Attendance:   sqlite.NewAttendanceRepository(),
		ActivityLogs: sqlite.NewActivityLogRepository(),
		InputSamples: sqlite.NewInputSampleRepository(),
		Cache:        mc,
		Engine:       eng,
		Clock:        clk,
		Commands:     cmd,
		Log:          logger.Noop{},
	})
	return p, mc
}

func TestProcess_NotCheckedIn(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC), loc: time.UTC}
	p, _ := newTestProcessor(t, clk)

	_, err := p.Process(context.Background(), "user-1", Sample{MouseClicks: 1}, clk.now)
	assert.ErrorIs(t, err, domain.ErrNotCheckedIn)
}

func TestProcess_ActiveHeartbeatStaysWorking(t *testing.T) {
	start := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	clk := &fakeClock{now: start, loc: time.UTC}
	p, _ := newTestProcessor(t, clk)
	ctx := context.Background()

	_, err := p.commands.CheckIn(ctx, "user-1", start, "", "")
	require.NoError(t, err)

	clk.now = start.Add(30 * time.Second)
	res, err := p.Process(ctx, "user-1", Sample{MouseClicks: 5}, clk.now)
	require.NoError(t, err)
	assert.Equal(t, domain.StateWorking, res.CurrentState)
}

func TestProcess_RetroactiveIdleOnSilence(t *testing.T) {
	start := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	clk := &fakeClock{now: start, loc: time.UTC}
	p, mc := newTestProcessor(t, clk)
	ctx := context.Background()

	_, err := p.commands.CheckIn(ctx, "user-1", start, "", "")
	require.NoError(t, err)

	active := start
	for i := 0; i < 120; i++ {
		active = active.Add(30 * time.Second)
		clk.now = active
		_, err := p.Process(ctx, "user-1", Sample{MouseClicks: 5}, clk.now)
		require.NoError(t, err)
	}
	require.True(t, active.Equal(start.Add(time.Hour)))

	// 10 minutes of silence, then one active heartbeat.
	clk.now = active.Add(10 * time.Minute)
	res, err := p.Process(ctx, "user-1", Sample{MouseClicks: 5}, clk.now)
	require.NoError(t, err)
	assert.Equal(t, domain.StateWorking, res.CurrentState)

	last, ok := mc.GetLastActivity(ctx, "user-1")
	require.True(t, ok)
	assert.Equal(t, clk.now, last.LastInputTs)

	out, err := p.commands.CheckOut(ctx, "user-1", clk.now, "", "", "")
	require.NoError(t, err)
	assert.Equal(t, int64(3600), out.ActiveSeconds)
	assert.Equal(t, int64(600), out.IdleSeconds)
}

func TestProcess_AutoCheckoutOnLongGap(t *testing.T) {
	start := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	clk := &fakeClock{now: start, loc: time.UTC}
	p, mc := newTestProcessor(t, clk)
	ctx := context.Background()

	_, err := p.commands.CheckIn(ctx, "user-1", start, "", "")
	require.NoError(t, err)
	mc.SetLastActivity(ctx, "user-1", cache.LastActivity{LastInputTs: start, LastHeartbeatTs: start}, time.Hour)

	clk.now = start.Add(90 * time.Minute)
	res, err := p.Process(ctx, "user-1", Sample{}, clk.now)
	assert.ErrorIs(t, err, domain.ErrAutoCheckedOut)
	require.NotNil(t, res)
	assert.True(t, res.AutoCheckedOut)
	require.NotNil(t, res.Record)
	assert.NotNil(t, res.Record.CheckOutTime)
}

func TestProcess_AlreadyCheckedOut(t *testing.T) {
	start := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	clk := &fakeClock{now: start, loc: time.UTC}
	p, _ := newTestProcessor(t, clk)
	ctx := context.Background()

	_, err := p.commands.CheckIn(ctx, "user-1", start, "", "")
	require.NoError(t, err)
	_, err = p.commands.CheckOut(ctx, "user-1", start.Add(time.Hour), "", "", "")
	require.NoError(t, err)

	_, err = p.Process(ctx, "user-1", Sample{MouseClicks: 1}, start.Add(2*time.Hour))
	assert.ErrorIs(t, err, domain.ErrAlreadyCheckedOut)
}
