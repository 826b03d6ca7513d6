package authz

import "time"

type permissionResponse struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Module          string `json:"module"`
	Action          string `json:"action"`
	ResourcePattern string `json:"resource_pattern"`
	Description     string `json:"description,omitempty"`
}

func toPermissionResponse(p Permission) permissionResponse {
	return permissionResponse{
		ID:              p.ID,
		Name:            p.Name(),
		Module:          p.Module,
		Action:          p.Action,
		ResourcePattern: p.ResourcePattern,
		Description:     p.Description,
	}
}

type moduleGroupResponse struct {
	Module      string               `json:"module"`
	Permissions []permissionResponse `json:"permissions"`
}

type roleResponse struct {
	ID            int64     `json:"id"`
	OrgID         *int64    `json:"org_id,omitempty"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	IsSystem      bool      `json:"is_system"`
	State         string    `json:"state"`
	PermissionIDs []int64   `json:"permission_ids"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toRoleResponse(role Role) roleResponse {
	ids := make([]int64, 0, len(role.Permissions))
	for _, rp := range role.Permissions {
		if rp.Granted {
			ids = append(ids, rp.PermissionID)
		}
	}
	return roleResponse{
		ID:            role.ID,
		OrgID:         role.OrgID,
		Name:          role.Name,
		Description:   role.Description,
		IsSystem:      role.IsSystem,
		State:         string(role.State),
		PermissionIDs: ids,
		CreatedAt:     role.CreatedAt,
		UpdatedAt:     role.UpdatedAt,
	}
}

type userRoleResponse struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	RoleID     int64     `json:"role_id"`
	AssignedBy int64     `json:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at"`
}

func toUserRoleResponse(edge UserRole) userRoleResponse {
	return userRoleResponse{
		ID:         edge.ID,
		UserID:     edge.UserID,
		RoleID:     edge.RoleID,
		AssignedBy: edge.AssignedBy,
		AssignedAt: edge.AssignedAt,
	}
}

type overrideResponse struct {
	UserID       int64     `json:"user_id"`
	PermissionID int64     `json:"permission_id"`
	Granted      bool      `json:"granted"`
	AssignedBy   int64     `json:"assigned_by"`
	Reason       string    `json:"reason,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toOverrideResponse(o Override) overrideResponse {
	return overrideResponse{
		UserID:       o.UserID,
		PermissionID: o.PermissionID,
		Granted:      o.Granted,
		AssignedBy:   o.AssignedBy,
		Reason:       o.Reason,
		UpdatedAt:    o.UpdatedAt,
	}
}

type createRoleRequest struct {
	Name          string            `json:"name" validate:"required,max=120"`
	Description   string            `json:"description" validate:"max=500"`
	PermissionIDs []int64           `json:"permission_ids" validate:"omitempty,dive,gt=0"`
	Levels        map[string]string `json:"levels" validate:"omitempty,dive,oneof=view edit full_edit"`
}

type updateRoleRequest struct {
	Name          *string  `json:"name,omitempty" validate:"omitempty,max=120"`
	Description   *string  `json:"description,omitempty" validate:"omitempty,max=500"`
	PermissionIDs *[]int64 `json:"permission_ids,omitempty" validate:"omitempty,dive,gt=0"`
}

type setLevelsRequest struct {
	Levels map[string]string `json:"levels" validate:"required,dive,oneof=view edit full_edit"`
}

type assignRoleRequest struct {
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}

type upsertOverrideRequest struct {
	PermissionID int64  `json:"permission_id" validate:"required,gt=0"`
	Granted      *bool  `json:"granted" validate:"required"`
	Reason       string `json:"reason" validate:"max=500"`
}

func parseLevels(raw map[string]string) (map[string]AccessLevel, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	levels := make(map[string]AccessLevel, len(raw))
	for module, value := range raw {
		level, err := ParseAccessLevel(value)
		if err != nil {
			return nil, validationError("levels", err.Error())
		}
		levels[module] = level
	}
	return levels, nil
}
