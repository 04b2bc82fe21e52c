package sqlite

import (
	"context"
	"fmt"

	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/store"
)

// UserRepository implements store.UserRepository.
type UserRepository struct{}

func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

func (r *UserRepository) FindActive(ctx context.Context, q store.Queryer) ([]*domain.User, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, handle, active FROM users WHERE active = 1`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query active users: %w", err)
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		u := &domain.User{}
		var active int
		if err := rows.Scan(&u.ID, &u.Handle, &active); err != nil {
			return nil, fmt.Errorf("sqlite: scan user: %w", err)
		}
		u.Active = active != 0
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate users: %w", err)
	}
	return out, nil
}
