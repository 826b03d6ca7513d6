package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-desk/atlas-desk/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the engine.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// ListPermissions returns the full catalog.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, module, action, resource_pattern, description FROM permissions ORDER BY module, action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Module, &p.Action, &p.ResourcePattern, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// GetPermissionByName resolves a canonical permission name. Names without a
// pattern suffix target the module-wide entry.
func (r *Repository) GetPermissionByName(ctx context.Context, name string) (Permission, error) {
	pattern := ResourceAll
	if i := strings.IndexByte(name, ':'); i >= 0 {
		pattern = name[i+1:]
		name = name[:i]
	}
	module, action, ok := strings.Cut(name, ".")
	if !ok {
		return Permission{}, ErrNotFound
	}
	var p Permission
	err := r.pool.QueryRow(ctx,
		`SELECT id, module, action, resource_pattern, description FROM permissions WHERE module = $1 AND action = $2 AND resource_pattern = $3`,
		module, action, pattern,
	).Scan(&p.ID, &p.Module, &p.Action, &p.ResourcePattern, &p.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, ErrNotFound
		}
		return Permission{}, err
	}
	return p, nil
}

const roleColumns = `id, org_id, name, description, is_system, state, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.OrgID, &role.Name, &role.Description, &role.IsSystem, &role.State, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// ListRoles returns active roles visible to the organization with grant
// edges attached, ordered by name.
func (r *Repository) ListRoles(ctx context.Context, orgID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE (org_id = $1 OR org_id IS NULL) AND state = $2 ORDER BY name`,
		orgID, RoleStateActive,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	var ids []int64
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
		ids = append(ids, role.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return roles, nil
	}
	edges, err := r.rolePermissions(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range roles {
		roles[i].Permissions = edges[roles[i].ID]
	}
	return roles, nil
}

// GetRole fetches a role by id with its grant edges.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if err != nil {
		return Role{}, err
	}
	edges, err := r.rolePermissions(ctx, []int64{id})
	if err != nil {
		return Role{}, err
	}
	role.Permissions = edges[id]
	return role, nil
}

// GetRoleByName resolves a role by name within the organization scope,
// system roles included.
func (r *Repository) GetRoleByName(ctx context.Context, orgID int64, name string) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE name = $2 AND (org_id = $1 OR org_id IS NULL) AND state = $3`,
		orgID, name, RoleStateActive,
	))
}

// rolePermissions loads grant edges for the given roles. Edges referencing a
// permission that no longer exists are dropped by the join.
func (r *Repository) rolePermissions(ctx context.Context, roleIDs []int64) (map[int64][]RolePermission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT rp.role_id, rp.permission_id, rp.granted, rp.created_at
		 FROM role_permissions rp
		 JOIN permissions p ON p.id = rp.permission_id
		 WHERE rp.role_id = ANY($1)
		 ORDER BY rp.permission_id`,
		roleIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	edges := make(map[int64][]RolePermission)
	for rows.Next() {
		var rp RolePermission
		if err := rows.Scan(&rp.RoleID, &rp.PermissionID, &rp.Granted, &rp.CreatedAt); err != nil {
			return nil, err
		}
		edges[rp.RoleID] = append(edges[rp.RoleID], rp)
	}
	return edges, rows.Err()
}

// CreateRole inserts the role and its grant edges in one transaction.
func (r *Repository) CreateRole(ctx context.Context, role Role, permissionIDs []int64) (Role, error) {
	var created Role
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO roles (org_id, name, description, is_system, state) VALUES ($1, $2, $3, $4, $5) RETURNING `+roleColumns,
			role.OrgID, role.Name, role.Description, role.IsSystem, RoleStateActive,
		)
		var err error
		created, err = scanRole(row)
		if err != nil {
			return err
		}
		return insertGrants(ctx, tx, created.ID, permissionIDs)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, ErrDuplicate
		}
		return Role{}, err
	}
	return r.GetRole(ctx, created.ID)
}

// UpdateRole persists name and description changes.
func (r *Repository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, description = $3, updated_at = NOW() WHERE id = $1 RETURNING `+roleColumns,
		role.ID, role.Name, role.Description,
	)
	updated, err := scanRole(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, ErrDuplicate
		}
		return Role{}, err
	}
	updated.Permissions = role.Permissions
	return updated, nil
}

// ReplaceRolePermissions swaps the full grant set inside one transaction so a
// concurrent permission check never observes the role between delete and
// insert.
func (r *Repository) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		return insertGrants(ctx, tx, roleID, permissionIDs)
	})
}

func insertGrants(ctx context.Context, tx pgx.Tx, roleID int64, permissionIDs []int64) error {
	for _, pid := range permissionIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO role_permissions (role_id, permission_id, granted) VALUES ($1, $2, TRUE) ON CONFLICT (role_id, permission_id) DO UPDATE SET granted = TRUE`,
			roleID, pid,
		); err != nil {
			return fmt.Errorf("insert grant %d: %w", pid, err)
		}
	}
	return nil
}

// DeactivateRole soft deletes the role.
func (r *Repository) DeactivateRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE roles SET state = $2, updated_at = NOW() WHERE id = $1 AND state = $3`,
		id, RoleStateDeactivated, RoleStateActive,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUserRoles returns the user's active assignment edges.
func (r *Repository) ListUserRoles(ctx context.Context, userID int64) ([]UserRole, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, role_id, assigned_by, assigned_at, is_active, revoked_at FROM user_roles WHERE user_id = $1 AND is_active ORDER BY assigned_at`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var edges []UserRole
	for rows.Next() {
		var e UserRole
		if err := rows.Scan(&e.ID, &e.UserID, &e.RoleID, &e.AssignedBy, &e.AssignedAt, &e.IsActive, &e.RevokedAt); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// InsertUserRole adds an assignment edge. A partial unique index on
// (user_id, role_id) WHERE is_active turns concurrent duplicates into
// ErrDuplicate.
func (r *Repository) InsertUserRole(ctx context.Context, edge UserRole) (UserRole, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO user_roles (user_id, role_id, assigned_by, is_active) VALUES ($1, $2, $3, TRUE) RETURNING id, assigned_at`,
		edge.UserID, edge.RoleID, edge.AssignedBy,
	).Scan(&edge.ID, &edge.AssignedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return UserRole{}, ErrDuplicate
		}
		return UserRole{}, err
	}
	edge.IsActive = true
	return edge, nil
}

// RevokeUserRole flips the matching active edge(s) to inactive, stamping
// revoked_at. The rows are preserved for audit history.
func (r *Repository) RevokeUserRole(ctx context.Context, userID, roleID int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE user_roles SET is_active = FALSE, revoked_at = NOW() WHERE user_id = $1 AND role_id = $2 AND is_active`,
		userID, roleID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListOverrides returns the user's permission overrides.
func (r *Repository) ListOverrides(ctx context.Context, userID int64) ([]Override, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT up.user_id, up.permission_id, up.granted, up.assigned_by, up.reason, up.updated_at
		 FROM user_permissions up
		 JOIN permissions p ON p.id = up.permission_id
		 WHERE up.user_id = $1
		 ORDER BY up.permission_id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var overrides []Override
	for rows.Next() {
		var o Override
		if err := rows.Scan(&o.UserID, &o.PermissionID, &o.Granted, &o.AssignedBy, &o.Reason, &o.UpdatedAt); err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

// GetOverride fetches one override row.
func (r *Repository) GetOverride(ctx context.Context, userID, permissionID int64) (Override, error) {
	var o Override
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, permission_id, granted, assigned_by, reason, updated_at FROM user_permissions WHERE user_id = $1 AND permission_id = $2`,
		userID, permissionID,
	).Scan(&o.UserID, &o.PermissionID, &o.Granted, &o.AssignedBy, &o.Reason, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Override{}, ErrNotFound
		}
		return Override{}, err
	}
	return o, nil
}

// UpsertOverride inserts or replaces the override row for (user, permission).
func (r *Repository) UpsertOverride(ctx context.Context, o Override) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_permissions (user_id, permission_id, granted, assigned_by, reason, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (user_id, permission_id)
		 DO UPDATE SET granted = EXCLUDED.granted, assigned_by = EXCLUDED.assigned_by, reason = EXCLUDED.reason, updated_at = NOW()`,
		o.UserID, o.PermissionID, o.Granted, o.AssignedBy, o.Reason,
	)
	return err
}

// DeleteOverride removes the override row entirely.
func (r *Repository) DeleteOverride(ctx context.Context, userID, permissionID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_permissions WHERE user_id = $1 AND permission_id = $2`,
		userID, permissionID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
