package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/store"
)

// InputSampleRepository implements store.InputSampleRepository. Samples
// are retained raw for metrics and are never authoritative for state.
type InputSampleRepository struct{}

func NewInputSampleRepository() *InputSampleRepository {
	return &InputSampleRepository{}
}

func (r *InputSampleRepository) Create(ctx context.Context, q store.Queryer, s *domain.InputSample) error {
	query := `
		INSERT INTO input_samples (
			id, attendance_record_id, timestamp, active_window, active_application, url,
			mouse_clicks, keyboard_strokes, client_is_active, client_idle_seconds
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		s.ID, s.AttendanceRecordID, s.Timestamp, s.ActiveWindow, s.ActiveApplication, s.URL,
		s.MouseClicks, s.KeyboardStrokes, boolToInt(s.ClientIsActive), s.ClientIdleSeconds,
	)
	if err != nil {
		return fmt.Errorf("sqlite: create input sample: %w", err)
	}
	return nil
}

func (r *InputSampleRepository) GetLatestByRecord(ctx context.Context, q store.Queryer, attendanceRecordID string) (*domain.InputSample, error) {
	query := `
		SELECT id, attendance_record_id, timestamp, active_window, active_application, url,
		       mouse_clicks, keyboard_strokes, client_is_active, client_idle_seconds
		FROM input_samples
		WHERE attendance_record_id = ?
		ORDER BY timestamp DESC LIMIT 1
	`
	row := q.QueryRowContext(ctx, query, attendanceRecordID)

	s := &domain.InputSample{}
	var isActive int
	err := row.Scan(&s.ID, &s.AttendanceRecordID, &s.Timestamp, &s.ActiveWindow, &s.ActiveApplication, &s.URL,
		&s.MouseClicks, &s.KeyboardStrokes, &isActive, &s.ClientIdleSeconds)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get latest input sample for %s: %w", attendanceRecordID, err)
	}
	s.ClientIsActive = isActive != 0
	return s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
