package authz

import (
	"context"
	"fmt"

	"github.com/atlas-desk/atlas-desk/internal/shared"
)

// UserRoles returns the user's active role assignments, deduplicated by role
// id. Revoked edges stay in the table for audit history and are not returned.
func (s *Service) UserRoles(ctx context.Context, userID int64) ([]UserRole, error) {
	edges, err := s.store.ListUserRoles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("authz: list user roles: %w", err)
	}
	seen := make(map[int64]struct{}, len(edges))
	out := make([]UserRole, 0, len(edges))
	for _, edge := range edges {
		if _, dup := seen[edge.RoleID]; dup {
			continue
		}
		seen[edge.RoleID] = struct{}{}
		out = append(out, edge)
	}
	return out, nil
}

// AssignRole grants a role to a user. Assigning an already-held role returns
// ErrDuplicate; assigning again after a revocation inserts a fresh edge.
func (s *Service) AssignRole(ctx context.Context, actor shared.Actor, userID, roleID int64) (UserRole, error) {
	role, err := s.store.GetRole(ctx, roleID)
	if err != nil {
		return UserRole{}, err
	}
	if !role.Active() {
		return UserRole{}, fmt.Errorf("%w: role %d is deactivated", ErrNotFound, roleID)
	}
	edge, err := s.store.InsertUserRole(ctx, UserRole{
		UserID:     userID,
		RoleID:     roleID,
		AssignedBy: actor.UserID,
		IsActive:   true,
	})
	if err != nil {
		return UserRole{}, err
	}
	s.invalidate(ctx)
	s.record(ctx, actor, "user_role.assign", "user_role", edge.ID, map[string]any{
		"user_id": userID,
		"role_id": roleID,
	})
	return edge, nil
}

// RevokeRole flips the user's active edge(s) for the role to inactive.
func (s *Service) RevokeRole(ctx context.Context, actor shared.Actor, userID, roleID int64) error {
	if err := s.store.RevokeUserRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.record(ctx, actor, "user_role.revoke", "user_role", roleID, map[string]any{
		"user_id": userID,
		"role_id": roleID,
	})
	return nil
}
