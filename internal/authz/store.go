package authz

import "context"

// Store is the persistence boundary for the engine. Implementations own the
// transaction boundaries of multi-step writes: CreateRole inserts the role and
// its grant edges atomically, and ReplaceRolePermissions performs its
// delete-then-insert inside a single transaction so concurrent permission
// checks never observe a role with zero permissions mid-update.
//
// Reads used during permission resolution honor referential integrity: an
// edge referencing a missing permission or a deactivated role is reported as
// if absent.
type Store interface {
	// Catalog.
	ListPermissions(ctx context.Context) ([]Permission, error)
	GetPermissionByName(ctx context.Context, name string) (Permission, error)

	// Roles. ListRoles returns active roles visible to the organization
	// (its own plus system roles) with grant edges resolved, ordered by name.
	ListRoles(ctx context.Context, orgID int64) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleByName(ctx context.Context, orgID int64, name string) (Role, error)
	CreateRole(ctx context.Context, role Role, permissionIDs []int64) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	DeactivateRole(ctx context.Context, id int64) error

	// User-role edges. ListUserRoles returns active edges only.
	ListUserRoles(ctx context.Context, userID int64) ([]UserRole, error)
	InsertUserRole(ctx context.Context, edge UserRole) (UserRole, error)
	RevokeUserRole(ctx context.Context, userID, roleID int64) error

	// Per-user overrides.
	ListOverrides(ctx context.Context, userID int64) ([]Override, error)
	GetOverride(ctx context.Context, userID, permissionID int64) (Override, error)
	UpsertOverride(ctx context.Context, o Override) error
	DeleteOverride(ctx context.Context, userID, permissionID int64) error
}
