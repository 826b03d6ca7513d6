package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/atlas-desk/atlas-desk/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates administrative operations on the role and permission
// catalog. Every mutation bumps the decision cache version and records an
// audit entry.
type Service struct {
	store  Store
	cache  *Cache
	audit  AuditPort
	logger *slog.Logger
}

// NewService constructs a Service. Cache and audit may be nil.
func NewService(store Store, cache *Cache, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, cache: cache, audit: audit, logger: logger}
}

// CreateRoleInput carries the fields for a new custom role.
type CreateRoleInput struct {
	OrgID         int64
	Name          string
	Description   string
	PermissionIDs []int64
}

// UpdateRoleInput carries partial updates. A nil field is left untouched; a
// nil PermissionIDs keeps the current grant set, an empty non-nil slice
// clears it.
type UpdateRoleInput struct {
	Name          *string
	Description   *string
	PermissionIDs []int64
	ReplaceGrants bool
}

// Roles returns active roles visible to the organization, system roles
// included, with grant edges resolved and ordered by name.
func (s *Service) Roles(ctx context.Context, orgID int64) ([]Role, error) {
	roles, err := s.store.ListRoles(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("authz: list roles: %w", err)
	}
	return roles, nil
}

// Role fetches one role with its grant edges.
func (s *Service) Role(ctx context.Context, id int64) (Role, error) {
	return s.store.GetRole(ctx, id)
}

// CreateRole inserts a custom role and its grant edges in one transaction.
func (s *Service) CreateRole(ctx context.Context, actor shared.Actor, in CreateRoleInput) (Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Role{}, validationError("name", "role name required")
	}
	if _, err := s.store.GetRoleByName(ctx, in.OrgID, name); err == nil {
		return Role{}, validationError("name", "role name already in use")
	} else if !errors.Is(err, ErrNotFound) {
		return Role{}, fmt.Errorf("authz: check role name: %w", err)
	}

	role := Role{
		OrgID:       &in.OrgID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		State:       RoleStateActive,
	}
	created, err := s.store.CreateRole(ctx, role, in.PermissionIDs)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return Role{}, validationError("name", "role name already in use")
		}
		return Role{}, fmt.Errorf("authz: create role: %w", err)
	}
	s.invalidate(ctx)
	s.record(ctx, actor, "role.create", "role", created.ID, map[string]any{
		"name":           created.Name,
		"permission_ids": in.PermissionIDs,
	})
	return created, nil
}

// UpdateRole mutates a role. Renaming a system role is forbidden; its grant
// set may still be edited. Replacing the grant set runs in one transaction so
// concurrent checks never observe an empty role.
func (s *Service) UpdateRole(ctx context.Context, actor shared.Actor, id int64, in UpdateRoleInput) (Role, error) {
	role, err := s.store.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Role{}, validationError("name", "role name required")
		}
		if role.IsSystem && name != role.Name {
			return Role{}, fmt.Errorf("%w: system role identity is immutable", ErrForbidden)
		}
		if name != role.Name {
			orgID := int64(0)
			if role.OrgID != nil {
				orgID = *role.OrgID
			}
			if existing, err := s.store.GetRoleByName(ctx, orgID, name); err == nil && existing.ID != role.ID {
				return Role{}, validationError("name", "role name already in use")
			} else if err != nil && !errors.Is(err, ErrNotFound) {
				return Role{}, fmt.Errorf("authz: check role name: %w", err)
			}
		}
		role.Name = name
	}
	if in.Description != nil {
		role.Description = strings.TrimSpace(*in.Description)
	}

	updated, err := s.store.UpdateRole(ctx, role)
	if err != nil {
		return Role{}, fmt.Errorf("authz: update role: %w", err)
	}
	if in.ReplaceGrants {
		if err := s.store.ReplaceRolePermissions(ctx, role.ID, in.PermissionIDs); err != nil {
			return Role{}, fmt.Errorf("authz: replace role permissions: %w", err)
		}
		updated, err = s.store.GetRole(ctx, role.ID)
		if err != nil {
			return Role{}, err
		}
	}
	s.invalidate(ctx)
	s.record(ctx, actor, "role.update", "role", updated.ID, map[string]any{
		"name":            updated.Name,
		"grants_replaced": in.ReplaceGrants,
	})
	return updated, nil
}

// DeleteRole deactivates a custom role. The row and its grant edges survive
// for audit history; the resolver stops honoring them immediately.
func (s *Service) DeleteRole(ctx context.Context, actor shared.Actor, id int64) error {
	role, err := s.store.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return fmt.Errorf("%w: system roles cannot be deleted", ErrForbidden)
	}
	if err := s.store.DeactivateRole(ctx, id); err != nil {
		return fmt.Errorf("authz: deactivate role: %w", err)
	}
	s.invalidate(ctx)
	s.record(ctx, actor, "role.deactivate", "role", id, map[string]any{"name": role.Name})
	return nil
}

// SetRoleLevels replaces a role's grant set from per-module access levels,
// deriving the cumulative permission set through the ladder so non-cumulative
// combinations cannot be persisted.
func (s *Service) SetRoleLevels(ctx context.Context, actor shared.Actor, id int64, levels map[string]AccessLevel) (Role, error) {
	catalog, err := s.store.ListPermissions(ctx)
	if err != nil {
		return Role{}, fmt.Errorf("authz: list permissions: %w", err)
	}
	ids, err := ApplyModuleLevels(catalog, levels)
	if err != nil {
		return Role{}, err
	}
	return s.UpdateRole(ctx, actor, id, UpdateRoleInput{PermissionIDs: ids, ReplaceGrants: true})
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump authz cache version", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("record audit log", slog.String("action", action), slog.Any("error", err))
	}
}
