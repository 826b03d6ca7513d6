package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/atlas-desk/atlas-desk/internal/shared"
)

// Overrides returns the user's permission overrides.
func (s *Service) Overrides(ctx context.Context, userID int64) ([]Override, error) {
	overrides, err := s.store.ListOverrides(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("authz: list overrides: %w", err)
	}
	return overrides, nil
}

// GrantOverride upserts an explicit allow for the user regardless of role
// membership.
func (s *Service) GrantOverride(ctx context.Context, actor shared.Actor, userID, permissionID int64, reason string) error {
	return s.upsertOverride(ctx, actor, userID, permissionID, true, reason)
}

// RevokeOverride upserts an explicit deny. This is distinct from
// RemoveOverride: the deny row actively blocks role-derived grants. A reason
// is required for the audit trail.
func (s *Service) RevokeOverride(ctx context.Context, actor shared.Actor, userID, permissionID int64, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return validationError("reason", "reason required when revoking access")
	}
	return s.upsertOverride(ctx, actor, userID, permissionID, false, reason)
}

func (s *Service) upsertOverride(ctx context.Context, actor shared.Actor, userID, permissionID int64, granted bool, reason string) error {
	err := s.store.UpsertOverride(ctx, Override{
		UserID:       userID,
		PermissionID: permissionID,
		Granted:      granted,
		AssignedBy:   actor.UserID,
		Reason:       strings.TrimSpace(reason),
	})
	if err != nil {
		return fmt.Errorf("authz: upsert override: %w", err)
	}
	action := "override.grant"
	if !granted {
		action = "override.revoke"
	}
	s.invalidate(ctx)
	s.record(ctx, actor, action, "user_permission", permissionID, map[string]any{
		"user_id":       userID,
		"permission_id": permissionID,
		"granted":       granted,
		"reason":        reason,
	})
	return nil
}

// RemoveOverride deletes the override row entirely, returning the user to
// pure role-derived permissions for that permission.
func (s *Service) RemoveOverride(ctx context.Context, actor shared.Actor, userID, permissionID int64) error {
	if err := s.store.DeleteOverride(ctx, userID, permissionID); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.record(ctx, actor, "override.remove", "user_permission", permissionID, map[string]any{
		"user_id":       userID,
		"permission_id": permissionID,
	})
	return nil
}
