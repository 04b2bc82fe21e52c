package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/store"
)

// ActivityLogRepository implements store.ActivityLogRepository. These rows
// are audit-only: never summed to produce the *_seconds totals.
type ActivityLogRepository struct{}

func NewActivityLogRepository() *ActivityLogRepository {
	return &ActivityLogRepository{}
}

const activityLogColumns = `id, attendance_record_id, type, start_time, end_time`

func (r *ActivityLogRepository) Create(ctx context.Context, q store.Queryer, a *domain.ActivityLog) error {
	query := `INSERT INTO activity_logs (` + activityLogColumns + `) VALUES (?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, query, a.ID, a.AttendanceRecordID, string(a.Type), a.StartTime, nullTime(a.EndTime))
	if err != nil {
		return fmt.Errorf("sqlite: create activity log: %w", err)
	}
	return nil
}

func (r *ActivityLogRepository) Update(ctx context.Context, q store.Queryer, a *domain.ActivityLog) error {
	query := `UPDATE activity_logs SET end_time = ? WHERE id = ?`
	res, err := q.ExecContext(ctx, query, nullTime(a.EndTime), a.ID)
	if err != nil {
		return fmt.Errorf("sqlite: update activity log %s: %w", a.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlite: activity log %s not found", a.ID)
	}
	return nil
}

func (r *ActivityLogRepository) GetOpenByRecord(ctx context.Context, q store.Queryer, attendanceRecordID string) (*domain.ActivityLog, error) {
	query := `SELECT ` + activityLogColumns + ` FROM activity_logs
		WHERE attendance_record_id = ? AND end_time IS NULL
		ORDER BY start_time DESC LIMIT 1`
	row := q.QueryRowContext(ctx, query, attendanceRecordID)

	a := &domain.ActivityLog{}
	var segType string
	var end sql.NullTime
	err := row.Scan(&a.ID, &a.AttendanceRecordID, &segType, &a.StartTime, &end)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get open activity log for %s: %w", attendanceRecordID, err)
	}
	a.Type = domain.SegmentType(segType)
	a.EndTime = fromNullTime(end)
	return a, nil
}
