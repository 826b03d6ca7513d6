package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-desk/atlas-desk/internal/platform/httpx"
)

// ErrNotFound indicates the user does not exist. It wraps the platform
// sentinel so handlers can map it with httpx.RespondError.
var ErrNotFound = fmt.Errorf("users: %w", httpx.ErrNotFound)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns the organization's users ordered by name, each with the
// names of their active roles attached.
func (r *Repository) ListUsers(ctx context.Context, orgID int64) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.org_id, u.email, u.name, u.is_active, u.created_at, u.updated_at,
		       COALESCE(array_agg(DISTINCT ro.name) FILTER (WHERE ro.name IS NOT NULL), '{}')
		FROM users u
		LEFT JOIN user_roles ur ON ur.user_id = u.id AND ur.is_active
		LEFT JOIN roles ro ON ro.id = ur.role_id AND ro.state = 'active'
		WHERE u.org_id = $1
		GROUP BY u.id
		ORDER BY u.name`,
		orgID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.OrgID, &u.Email, &u.Name, &u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.RoleNames); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUser fetches one user with active role names.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `
		SELECT u.id, u.org_id, u.email, u.name, u.is_active, u.created_at, u.updated_at,
		       COALESCE(array_agg(DISTINCT ro.name) FILTER (WHERE ro.name IS NOT NULL), '{}')
		FROM users u
		LEFT JOIN user_roles ur ON ur.user_id = u.id AND ur.is_active
		LEFT JOIN roles ro ON ro.id = ur.role_id AND ro.state = 'active'
		WHERE u.id = $1
		GROUP BY u.id`,
		id,
	).Scan(&u.ID, &u.OrgID, &u.Email, &u.Name, &u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.RoleNames)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}
