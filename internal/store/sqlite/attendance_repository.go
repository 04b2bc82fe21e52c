package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/store"
)

// AttendanceRepository implements store.AttendanceRepository against
// SQLite. Every method takes an explicit store.Queryer so callers control
// whether it runs against the pool or inside a locked transaction.
type AttendanceRepository struct{}

// NewAttendanceRepository constructs the repository. It holds no state —
// SQLite connection handling lives entirely in the Queryer passed in.
func NewAttendanceRepository() *AttendanceRepository {
	return &AttendanceRepository{}
}

func (r *AttendanceRepository) Create(ctx context.Context, q store.Queryer, rec *domain.AttendanceRecord) error {
	query := `
		INSERT INTO attendance_records (
			id, user_id, date, check_in_time, check_out_time,
			current_state, last_state_change_at,
			active_seconds, idle_seconds, lunch_seconds,
			total_work_duration, total_active_duration, total_idle_duration, total_break_duration,
			check_in_ip, check_out_ip, check_in_location, check_out_location, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.Date, nullTime(rec.CheckInTime), nullTime(rec.CheckOutTime),
		string(rec.CurrentState), nullTime(rec.LastStateChangeAt),
		rec.ActiveSeconds, rec.IdleSeconds, rec.LunchSeconds,
		rec.TotalWorkDuration, rec.TotalActiveDuration, rec.TotalIdleDuration, rec.TotalBreakDuration,
		rec.CheckInIP, rec.CheckOutIP, rec.CheckInLoc, rec.CheckOutLoc, rec.Notes,
	)
	if err != nil {
		return fmt.Errorf("sqlite: create attendance record: %w", err)
	}
	return nil
}

func (r *AttendanceRepository) Update(ctx context.Context, q store.Queryer, rec *domain.AttendanceRecord) error {
	query := `
		UPDATE attendance_records SET
			check_in_time = ?, check_out_time = ?,
			current_state = ?, last_state_change_at = ?,
			active_seconds = ?, idle_seconds = ?, lunch_seconds = ?,
			total_work_duration = ?, total_active_duration = ?, total_idle_duration = ?, total_break_duration = ?,
			check_in_ip = ?, check_out_ip = ?, check_in_location = ?, check_out_location = ?, notes = ?
		WHERE id = ?
	`
	res, err := q.ExecContext(ctx, query,
		nullTime(rec.CheckInTime), nullTime(rec.CheckOutTime),
		string(rec.CurrentState), nullTime(rec.LastStateChangeAt),
		rec.ActiveSeconds, rec.IdleSeconds, rec.LunchSeconds,
		rec.TotalWorkDuration, rec.TotalActiveDuration, rec.TotalIdleDuration, rec.TotalBreakDuration,
		rec.CheckInIP, rec.CheckOutIP, rec.CheckInLoc, rec.CheckOutLoc, rec.Notes,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update attendance record %s: %w", rec.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlite: attendance record %s not found", rec.ID)
	}
	return nil
}

const attendanceColumns = `
	id, user_id, date, check_in_time, check_out_time,
	current_state, last_state_change_at,
	active_seconds, idle_seconds, lunch_seconds,
	total_work_duration, total_active_duration, total_idle_duration, total_break_duration,
	check_in_ip, check_out_ip, check_in_location, check_out_location, notes
`

func scanAttendance(row interface{ Scan(...interface{}) error }) (*domain.AttendanceRecord, error) {
	rec := &domain.AttendanceRecord{}
	var checkIn, checkOut, lastChange sql.NullTime
	var state string

	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.Date, &checkIn, &checkOut,
		&state, &lastChange,
		&rec.ActiveSeconds, &rec.IdleSeconds, &rec.LunchSeconds,
		&rec.TotalWorkDuration, &rec.TotalActiveDuration, &rec.TotalIdleDuration, &rec.TotalBreakDuration,
		&rec.CheckInIP, &rec.CheckOutIP, &rec.CheckInLoc, &rec.CheckOutLoc, &rec.Notes,
	)
	if err != nil {
		return nil, err
	}

	rec.CurrentState = domain.State(state)
	rec.CheckInTime = fromNullTime(checkIn)
	rec.CheckOutTime = fromNullTime(checkOut)
	rec.LastStateChangeAt = fromNullTime(lastChange)
	return rec, nil
}

func (r *AttendanceRepository) GetByUserAndDate(ctx context.Context, q store.Queryer, userID string, date time.Time) (*domain.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE user_id = ? AND date = ?`
	row := q.QueryRowContext(ctx, query, userID, date)
	rec, err := scanAttendance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get attendance for %s/%s: %w", userID, date, err)
	}
	return rec, nil
}

func (r *AttendanceRepository) GetByID(ctx context.Context, q store.Queryer, id string) (*domain.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE id = ?`
	row := q.QueryRowContext(ctx, query, id)
	rec, err := scanAttendance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get attendance record %s: %w", id, err)
	}
	return rec, nil
}

func (r *AttendanceRepository) FindByUserInRange(ctx context.Context, q store.Queryer, userID string, start, end time.Time) ([]*domain.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date DESC`
	return r.queryMany(ctx, q, query, userID, start, end)
}

func (r *AttendanceRepository) FindOpenBeforeDate(ctx context.Context, q store.Queryer, date time.Time) ([]*domain.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records
		WHERE date < ? AND check_out_time IS NULL`
	return r.queryMany(ctx, q, query, date)
}

func (r *AttendanceRepository) FindOpenForDate(ctx context.Context, q store.Queryer, date time.Time) ([]*domain.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records
		WHERE date = ? AND check_out_time IS NULL`
	return r.queryMany(ctx, q, query, date)
}

func (r *AttendanceRepository) FindExcessiveIdle(ctx context.Context, q store.Queryer, cutoff time.Time) ([]*domain.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records
		WHERE current_state = 'IDLE' AND last_state_change_at < ?`
	return r.queryMany(ctx, q, query, cutoff)
}

func (r *AttendanceRepository) FindOpenStates(ctx context.Context, q store.Queryer) ([]*domain.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records
		WHERE check_out_time IS NULL AND current_state IN ('WORKING', 'IDLE')`
	return r.queryMany(ctx, q, query)
}

func (r *AttendanceRepository) queryMany(ctx context.Context, q store.Queryer, query string, args ...interface{}) ([]*domain.AttendanceRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query attendance records: %w", err)
	}
	defer rows.Close()

	var out []*domain.AttendanceRecord
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan attendance record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate attendance records: %w", err)
	}
	return out, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func fromNullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
