package authz

import (
	"fmt"
	"time"
)

// Action tiers form a cumulative ladder: view < edit < full_edit.
const (
	ActionView     = "view"
	ActionEdit     = "edit"
	ActionFullEdit = "full_edit"
)

// ResourceAll marks a permission as module-wide.
const ResourceAll = "all"

// Modules returns the resource domains the catalog covers.
func Modules() []string {
	return []string{
		"tickets",
		"services",
		"users",
		"analytics",
		"security",
		"knowledge_base",
		"assets",
		"reports",
		"integrations",
		"administration",
	}
}

// Tiers returns the ordered action tiers.
func Tiers() []string {
	return []string{ActionView, ActionEdit, ActionFullEdit}
}

// Permission represents an atomic capability scoped to a module and action tier.
// (Module, Action, ResourcePattern) is unique within the catalog.
type Permission struct {
	ID              int64
	Module          string
	Action          string
	ResourcePattern string
	Description     string
}

// Name returns the canonical permission name used by enforcement call sites.
// Module-wide permissions read "module.action"; narrower patterns carry the
// pattern as a suffix so names stay unique across the catalog.
func (p Permission) Name() string {
	if p.ResourcePattern == "" || p.ResourcePattern == ResourceAll {
		return p.Module + "." + p.Action
	}
	return p.Module + "." + p.Action + ":" + p.ResourcePattern
}

// RoleState tags the role lifecycle. Deactivated is terminal but queryable:
// grants referencing the role stay in place for audit history.
type RoleState string

const (
	RoleStateActive      RoleState = "active"
	RoleStateDeactivated RoleState = "deactivated"
)

// Valid reports whether the state is a known lifecycle value.
func (s RoleState) Valid() bool {
	return s == RoleStateActive || s == RoleStateDeactivated
}

// Role is a named bundle of permission grants. System roles are shared across
// organizations (OrgID nil) and their identity is immutable.
type Role struct {
	ID          int64
	OrgID       *int64
	Name        string
	Description string
	IsSystem    bool
	State       RoleState
	Permissions []RolePermission
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Active reports whether the role participates in permission resolution.
func (r Role) Active() bool {
	return r.State == RoleStateActive
}

// RolePermission is the grant edge between a role and a permission. A
// Granted=false edge is treated the same as an absent edge during resolution;
// explicit deny is expressed only through user overrides.
type RolePermission struct {
	RoleID       int64
	PermissionID int64
	Granted      bool
	CreatedAt    time.Time
}

// UserRole links a user to a role. Revocation flips IsActive and stamps
// RevokedAt; rows are never deleted.
type UserRole struct {
	ID         int64
	UserID     int64
	RoleID     int64
	AssignedBy int64
	AssignedAt time.Time
	IsActive   bool
	RevokedAt  *time.Time
}

// Override is a per-user exception that wins over role-derived grants in both
// directions. At most one row exists per (user, permission).
type Override struct {
	UserID       int64
	PermissionID int64
	Granted      bool
	AssignedBy   int64
	Reason       string
	UpdatedAt    time.Time
}

// AccessLevel is the closed three-tier control the admin UI exposes per
// module. The zero value is invalid so a forgotten assignment cannot silently
// grant anything.
type AccessLevel int

const (
	AccessViewOnly AccessLevel = iota + 1
	AccessEdit
	AccessFullEdit
)

// String implements fmt.Stringer.
func (l AccessLevel) String() string {
	switch l {
	case AccessViewOnly:
		return ActionView
	case AccessEdit:
		return ActionEdit
	case AccessFullEdit:
		return ActionFullEdit
	default:
		return fmt.Sprintf("AccessLevel(%d)", int(l))
	}
}

// ParseAccessLevel converts the wire representation into the enum.
func ParseAccessLevel(s string) (AccessLevel, error) {
	switch s {
	case ActionView:
		return AccessViewOnly, nil
	case ActionEdit:
		return AccessEdit, nil
	case ActionFullEdit:
		return AccessFullEdit, nil
	default:
		return 0, fmt.Errorf("authz: unknown access level %q", s)
	}
}
