package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/store"
)

// LunchBreakRepository implements store.LunchBreakRepository.
type LunchBreakRepository struct{}

func NewLunchBreakRepository() *LunchBreakRepository {
	return &LunchBreakRepository{}
}

const lunchBreakColumns = `
	id, attendance_record_id, break_start_time, break_end_time,
	duration_seconds, start_location, end_location
`

func (r *LunchBreakRepository) Create(ctx context.Context, q store.Queryer, b *domain.LunchBreak) error {
	query := `INSERT INTO lunch_breaks (` + lunchBreakColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, query,
		b.ID, b.AttendanceRecordID, b.BreakStartTime, nullTime(b.BreakEndTime),
		b.DurationSeconds, b.StartLocation, b.EndLocation,
	)
	if err != nil {
		return fmt.Errorf("sqlite: create lunch break: %w", err)
	}
	return nil
}

func (r *LunchBreakRepository) Update(ctx context.Context, q store.Queryer, b *domain.LunchBreak) error {
	query := `UPDATE lunch_breaks SET break_end_time = ?, duration_seconds = ?, end_location = ? WHERE id = ?`
	res, err := q.ExecContext(ctx, query, nullTime(b.BreakEndTime), b.DurationSeconds, b.EndLocation, b.ID)
	if err != nil {
		return fmt.Errorf("sqlite: update lunch break %s: %w", b.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlite: lunch break %s not found", b.ID)
	}
	return nil
}

func scanLunchBreak(row interface{ Scan(...interface{}) error }) (*domain.LunchBreak, error) {
	b := &domain.LunchBreak{}
	var end sql.NullTime
	err := row.Scan(&b.ID, &b.AttendanceRecordID, &b.BreakStartTime, &end, &b.DurationSeconds, &b.StartLocation, &b.EndLocation)
	if err != nil {
		return nil, err
	}
	b.BreakEndTime = fromNullTime(end)
	return b, nil
}

func (r *LunchBreakRepository) GetOpenByRecord(ctx context.Context, q store.Queryer, attendanceRecordID string) (*domain.LunchBreak, error) {
	query := `SELECT ` + lunchBreakColumns + ` FROM lunch_breaks
		WHERE attendance_record_id = ? AND break_end_time IS NULL
		ORDER BY break_start_time DESC LIMIT 1`
	row := q.QueryRowContext(ctx, query, attendanceRecordID)
	b, err := scanLunchBreak(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get open lunch break for %s: %w", attendanceRecordID, err)
	}
	return b, nil
}

func (r *LunchBreakRepository) FindOpenOlderThan(ctx context.Context, q store.Queryer, cutoff time.Time) ([]*domain.LunchBreak, error) {
	query := `SELECT ` + lunchBreakColumns + ` FROM lunch_breaks
		WHERE break_end_time IS NULL AND break_start_time < ?`
	rows, err := q.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query open lunch breaks: %w", err)
	}
	defer rows.Close()

	var out []*domain.LunchBreak
	for rows.Next() {
		b, err := scanLunchBreak(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan lunch break: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate lunch breaks: %w", err)
	}
	return out, nil
}
