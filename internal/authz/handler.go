package authz

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atlas-desk/atlas-desk/internal/platform/httpx"
	"github.com/atlas-desk/atlas-desk/internal/shared"
)

// Handler exposes the administrative JSON API for the engine: catalog
// listing, role management, user-role assignment and overrides. Every route
// is guarded by the engine itself.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	resolver  *Resolver
	validator *validator.Validate
	guard     Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, resolver *Resolver, guard Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		resolver:  resolver,
		validator: validator.New(),
		guard:     guard,
	}
}

// MountRoutes registers the administrative routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermAdministrationView, shared.PermSecurityView))
		r.Get("/permissions", h.listPermissions)
		r.Get("/permissions/modules", h.listPermissionsByModule)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermAdministrationView))
		r.Get("/roles", h.listRoles)
		r.Get("/roles/{roleID}", h.getRole)
		r.Get("/users/{userID}/roles", h.listUserRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll(shared.PermAdministrationEdit))
		r.Post("/roles", h.createRole)
		r.Patch("/roles/{roleID}", h.updateRole)
		r.Delete("/roles/{roleID}", h.deleteRole)
		r.Put("/roles/{roleID}/levels", h.setRoleLevels)
		r.Post("/users/{userID}/roles", h.assignRole)
		r.Delete("/users/{userID}/roles/{roleID}", h.revokeRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermSecurityView))
		r.Get("/users/{userID}/permissions", h.effectivePermissions)
		r.Get("/users/{userID}/overrides", h.listOverrides)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll(shared.PermSecurityEdit))
		r.Post("/users/{userID}/overrides", h.upsertOverride)
		r.Delete("/users/{userID}/overrides/{permissionID}", h.removeOverride)
	})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.Permissions(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, toPermissionResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": out})
}

func (h *Handler) listPermissionsByModule(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.PermissionsByModule(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]moduleGroupResponse, 0, len(groups))
	for _, g := range groups {
		perms := make([]permissionResponse, 0, len(g.Permissions))
		for _, p := range g.Permissions {
			perms = append(perms, toPermissionResponse(p))
		}
		out = append(out, moduleGroupResponse{Module: g.Module, Permissions: perms})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"modules": out})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	roles, err := h.service.Roles(r.Context(), actor.OrgID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid role id")
		return
	}
	role, err := h.service.Role(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())

	ids := req.PermissionIDs
	if len(req.Levels) > 0 {
		levels, err := parseLevels(req.Levels)
		if err != nil {
			h.respondError(w, err)
			return
		}
		catalog, err := h.service.Permissions(r.Context())
		if err != nil {
			h.respondError(w, err)
			return
		}
		ids, err = ApplyModuleLevels(catalog, levels)
		if err != nil {
			h.respondError(w, err)
			return
		}
	}

	role, err := h.service.CreateRole(r.Context(), actor, CreateRoleInput{
		OrgID:         actor.OrgID,
		Name:          req.Name,
		Description:   req.Description,
		PermissionIDs: ids,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid role id")
		return
	}
	var req updateRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())

	in := UpdateRoleInput{Name: req.Name, Description: req.Description}
	if req.PermissionIDs != nil {
		in.PermissionIDs = *req.PermissionIDs
		in.ReplaceGrants = true
	}
	role, err := h.service.UpdateRole(r.Context(), actor, id, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) setRoleLevels(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid role id")
		return
	}
	var req setLevelsRequest
	if !h.decode(w, r, &req) {
		return
	}
	levels, err := parseLevels(req.Levels)
	if err != nil {
		h.respondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	role, err := h.service.SetRoleLevels(r.Context(), actor, id, levels)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid role id")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.DeleteRole(r.Context(), actor, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	edges, err := h.service.UserRoles(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]userRoleResponse, 0, len(edges))
	for _, edge := range edges {
		out = append(out, toUserRoleResponse(edge))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user_roles": out})
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	var req assignRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	edge, err := h.service.AssignRole(r.Context(), actor, userID, req.RoleID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toUserRoleResponse(edge))
}

func (h *Handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	roleID, err := pathID(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid role id")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.RevokeRole(r.Context(), actor, userID, roleID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) effectivePermissions(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	names, err := h.resolver.EffectivePermissions(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user_id": userID, "permissions": names})
}

func (h *Handler) listOverrides(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	overrides, err := h.service.Overrides(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]overrideResponse, 0, len(overrides))
	for _, o := range overrides {
		out = append(out, toOverrideResponse(o))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"overrides": out})
}

func (h *Handler) upsertOverride(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	var req upsertOverrideRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if *req.Granted {
		err = h.service.GrantOverride(r.Context(), actor, userID, req.PermissionID, req.Reason)
	} else {
		err = h.service.RevokeOverride(r.Context(), actor, userID, req.PermissionID, req.Reason)
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeOverride(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	permissionID, err := pathID(r, "permissionID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid permission id")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.RemoveOverride(r.Context(), actor, userID, permissionID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", ve.Error())
	case errors.Is(err, ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error("authz request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}
