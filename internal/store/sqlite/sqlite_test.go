package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/store"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{DSN: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_EmptyDSNRejected(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestOpen_AppliesSchemaIdempotently(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "test.db")
	db1, err := Open(Config{DSN: dsn})
	require.NoError(t, err)
	db1.Close()

	db2, err := Open(Config{DSN: dsn})
	require.NoError(t, err)
	db2.Close()
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := openTestDB(t)
	attendance := NewAttendanceRepository()

	rec := domain.NewAttendanceRecord("user-1", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	err := db.WithTx(context.Background(), func(ctx context.Context, q store.Queryer) error {
		return attendance.Create(ctx, q, rec)
	})
	require.NoError(t, err)

	got, err := attendance.GetByID(context.Background(), db.Queryer(), rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.UserID)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	attendance := NewAttendanceRepository()

	rec := domain.NewAttendanceRecord("user-2", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	wantErr := errors.New("boom")

	err := db.WithTx(context.Background(), func(ctx context.Context, q store.Queryer) error {
		if createErr := attendance.Create(ctx, q, rec); createErr != nil {
			return createErr
		}
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	got, err := attendance.GetByID(context.Background(), db.Queryer(), rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAttendanceRepository_CreateGetUpdate(t *testing.T) {
	db := openTestDB(t)
	repo := NewAttendanceRepository()
	ctx := context.Background()

	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	rec := domain.NewAttendanceRecord("user-3", date)
	checkIn := date.Add(9 * time.Hour)
	rec.CheckInTime = &checkIn
	rec.CurrentState = domain.StateWorking
	rec.LastStateChangeAt = &checkIn

	require.NoError(t, repo.Create(ctx, db.Queryer(), rec))

	got, err := repo.GetByUserAndDate(ctx, db.Queryer(), "user-3", date)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StateWorking, got.CurrentState)
	require.NotNil(t, got.CheckInTime)
	assert.True(t, got.CheckInTime.Equal(checkIn))

	checkOut := checkIn.Add(8 * time.Hour)
	got.CheckOutTime = &checkOut
	got.CurrentState = domain.StateNone
	got.ActiveSeconds = 28000
	require.NoError(t, repo.Update(ctx, db.Queryer(), got))

	reloaded, err := repo.GetByID(ctx, db.Queryer(), rec.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Equal(t, int64(28000), reloaded.ActiveSeconds)
	require.NotNil(t, reloaded.CheckOutTime)
}

func TestAttendanceRepository_GetByUserAndDate_NoRowsReturnsNilNotError(t *testing.T) {
	db := openTestDB(t)
	repo := NewAttendanceRepository()

	got, err := repo.GetByUserAndDate(context.Background(), db.Queryer(), "nobody", time.Now())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAttendanceRepository_Update_UnknownIDErrors(t *testing.T) {
	db := openTestDB(t)
	repo := NewAttendanceRepository()

	rec := domain.NewAttendanceRecord("user-4", time.Now())
	err := repo.Update(context.Background(), db.Queryer(), rec)
	assert.Error(t, err)
}

func TestAttendanceRepository_FindOpenForDate(t *testing.T) {
	db := openTestDB(t)
	repo := NewAttendanceRepository()
	ctx := context.Background()

	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	openRec := domain.NewAttendanceRecord("user-5", date)
	checkIn := date.Add(9 * time.Hour)
	openRec.CheckInTime = &checkIn
	openRec.CurrentState = domain.StateWorking
	openRec.LastStateChangeAt = &checkIn
	require.NoError(t, repo.Create(ctx, db.Queryer(), openRec))

	closedRec := domain.NewAttendanceRecord("user-6", date)
	closedRec.CheckInTime = &checkIn
	checkOut := checkIn.Add(time.Hour)
	closedRec.CheckOutTime = &checkOut
	require.NoError(t, repo.Create(ctx, db.Queryer(), closedRec))

	open, err := repo.FindOpenForDate(ctx, db.Queryer(), date)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "user-5", open[0].UserID)
}

func TestAttendanceRepository_FindExcessiveIdle(t *testing.T) {
	db := openTestDB(t)
	repo := NewAttendanceRepository()
	ctx := context.Background()

	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	checkIn := date.Add(9 * time.Hour)
	idleSince := checkIn.Add(time.Hour)

	rec := domain.NewAttendanceRecord("user-7", date)
	rec.CheckInTime = &checkIn
	rec.CurrentState = domain.StateIdle
	rec.LastStateChangeAt = &idleSince
	require.NoError(t, repo.Create(ctx, db.Queryer(), rec))

	cutoff := idleSince.Add(30 * time.Minute)
	found, err := repo.FindExcessiveIdle(ctx, db.Queryer(), cutoff)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, rec.ID, found[0].ID)

	noneYet, err := repo.FindExcessiveIdle(ctx, db.Queryer(), idleSince.Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, noneYet)
}

func TestLunchBreakRepository_CreateGetUpdate(t *testing.T) {
	db := openTestDB(t)
	attendance := NewAttendanceRepository()
	breaks := NewLunchBreakRepository()
	ctx := context.Background()

	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	rec := domain.NewAttendanceRecord("user-8", date)
	require.NoError(t, attendance.Create(ctx, db.Queryer(), rec))

	start := date.Add(12 * time.Hour)
	brk := domain.NewLunchBreak(rec.ID, start, "office")
	require.NoError(t, breaks.Create(ctx, db.Queryer(), brk))

	open, err := breaks.GetOpenByRecord(ctx, db.Queryer(), rec.ID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.True(t, open.IsOpen())

	end := start.Add(30 * time.Minute)
	open.Close(end)
	open.EndLocation = "office"
	require.NoError(t, breaks.Update(ctx, db.Queryer(), open))

	noneOpen, err := breaks.GetOpenByRecord(ctx, db.Queryer(), rec.ID)
	require.NoError(t, err)
	assert.Nil(t, noneOpen)
}

func TestLunchBreakRepository_FindOpenOlderThan(t *testing.T) {
	db := openTestDB(t)
	attendance := NewAttendanceRepository()
	breaks := NewLunchBreakRepository()
	ctx := context.Background()

	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	rec := domain.NewAttendanceRecord("user-9", date)
	require.NoError(t, attendance.Create(ctx, db.Queryer(), rec))

	start := date.Add(12 * time.Hour)
	brk := domain.NewLunchBreak(rec.ID, start, "office")
	require.NoError(t, breaks.Create(ctx, db.Queryer(), brk))

	found, err := breaks.FindOpenOlderThan(ctx, db.Queryer(), start.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, found, 1)

	none, err := breaks.FindOpenOlderThan(ctx, db.Queryer(), start.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestActivityLogRepository_CreateGetUpdate(t *testing.T) {
	db := openTestDB(t)
	attendance := NewAttendanceRepository()
	logs := NewActivityLogRepository()
	ctx := context.Background()

	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	rec := domain.NewAttendanceRecord("user-10", date)
	require.NoError(t, attendance.Create(ctx, db.Queryer(), rec))

	start := date.Add(9 * time.Hour)
	seg := domain.NewActivityLog(rec.ID, domain.SegmentActive, start)
	require.NoError(t, logs.Create(ctx, db.Queryer(), seg))

	open, err := logs.GetOpenByRecord(ctx, db.Queryer(), rec.ID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, domain.SegmentActive, open.Type)

	open.Close(start.Add(time.Hour))
	require.NoError(t, logs.Update(ctx, db.Queryer(), open))

	noneOpen, err := logs.GetOpenByRecord(ctx, db.Queryer(), rec.ID)
	require.NoError(t, err)
	assert.Nil(t, noneOpen)
}

func TestInputSampleRepository_CreateAndGetLatest(t *testing.T) {
	db := openTestDB(t)
	attendance := NewAttendanceRepository()
	samples := NewInputSampleRepository()
	ctx := context.Background()

	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	rec := domain.NewAttendanceRecord("user-11", date)
	require.NoError(t, attendance.Create(ctx, db.Queryer(), rec))

	first := domain.NewInputSample(rec.ID, date.Add(9*time.Hour))
	first.MouseClicks = 3
	require.NoError(t, samples.Create(ctx, db.Queryer(), first))

	second := domain.NewInputSample(rec.ID, date.Add(10*time.Hour))
	second.KeyboardStrokes = 5
	second.ClientIsActive = true
	require.NoError(t, samples.Create(ctx, db.Queryer(), second))

	latest, err := samples.GetLatestByRecord(ctx, db.Queryer(), rec.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
	assert.True(t, latest.ClientIsActive)
	assert.True(t, latest.HasInput())
}

func TestUserRepository_FindActive(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Queryer().ExecContext(ctx, `INSERT INTO users (id, handle, active) VALUES (?, ?, ?)`, "u1", "alice", 1)
	require.NoError(t, err)
	_, err = db.Queryer().ExecContext(ctx, `INSERT INTO users (id, handle, active) VALUES (?, ?, ?)`, "u2", "bob", 0)
	require.NoError(t, err)

	repo := NewUserRepository()
	active, err := repo.FindActive(ctx, db.Queryer())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "alice", active[0].Handle)
}
