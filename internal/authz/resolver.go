package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// Resolver computes effective permissions for users. It is stateless between
// calls; all durable state lives behind the injected Store. The optional
// cache holds effective sets for a short TTL and is version-invalidated by
// every administrative write, so an admin's own follow-up checks observe
// their just-made change.
type Resolver struct {
	store   Store
	cache   *Cache
	metrics *Metrics
	logger  *slog.Logger
	group   singleflight.Group
}

// NewResolver constructs a Resolver. Cache and metrics may be nil.
func NewResolver(store Store, cache *Cache, metrics *Metrics, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, cache: cache, metrics: metrics, logger: logger}
}

// snapshot holds the per-user data the decision function reads.
type snapshot struct {
	overrides map[int64]bool     // permission id -> override verdict
	granted   map[int64]struct{} // permission ids granted by at least one active role
}

// decide is the single decision function both resolution paths share: an
// override wins in both directions, otherwise allow iff at least one active
// role grants the permission.
func (s snapshot) decide(permissionID int64) bool {
	if verdict, ok := s.overrides[permissionID]; ok {
		return verdict
	}
	_, ok := s.granted[permissionID]
	return ok
}

func (r *Resolver) load(ctx context.Context, userID int64) (snapshot, error) {
	snap := snapshot{
		overrides: make(map[int64]bool),
		granted:   make(map[int64]struct{}),
	}

	overrides, err := r.store.ListOverrides(ctx, userID)
	if err != nil {
		return snapshot{}, fmt.Errorf("authz: load overrides: %w", err)
	}
	for _, o := range overrides {
		snap.overrides[o.PermissionID] = o.Granted
	}

	edges, err := r.store.ListUserRoles(ctx, userID)
	if err != nil {
		return snapshot{}, fmt.Errorf("authz: load user roles: %w", err)
	}
	seen := make(map[int64]struct{}, len(edges))
	for _, edge := range edges {
		// Legacy data may hold duplicate active edges; dedupe by role id.
		if _, dup := seen[edge.RoleID]; dup {
			continue
		}
		seen[edge.RoleID] = struct{}{}

		role, err := r.store.GetRole(ctx, edge.RoleID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return snapshot{}, fmt.Errorf("authz: load role %d: %w", edge.RoleID, err)
		}
		if !role.Active() {
			continue
		}
		for _, rp := range role.Permissions {
			if !rp.Granted {
				continue
			}
			snap.granted[rp.PermissionID] = struct{}{}
		}
	}
	return snap, nil
}

// HasPermission decides allow/deny for one permission name. Unknown
// permissions deny. The returned error is always an infrastructure failure,
// never "permission denied".
func (r *Resolver) HasPermission(ctx context.Context, userID int64, name string) (bool, error) {
	perm, err := r.store.GetPermissionByName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("authz: lookup permission %s: %w", name, err)
	}
	snap, err := r.load(ctx, userID)
	if err != nil {
		return false, err
	}
	return snap.decide(perm.ID), nil
}

// EffectivePermissions returns the names of every catalog permission the user
// holds. The set is the pointwise application of HasPermission to the full
// catalog, so the two can never diverge. Results are served from the cache
// when one is configured.
func (r *Resolver) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	if r.cache == nil {
		return r.effectivePermissions(ctx, userID)
	}
	key, err := r.cache.BuildKey(ctx, "authz", "effective", fmt.Sprintf("%d", userID))
	if err != nil {
		r.logger.Warn("effective permissions cache key", slog.Any("error", err))
		return r.effectivePermissions(ctx, userID)
	}
	result, err, _ := r.group.Do(key, func() (interface{}, error) {
		var names []string
		err := r.cache.FetchJSON(ctx, key, &names, func(ctx context.Context) (interface{}, error) {
			return r.effectivePermissions(ctx, userID)
		})
		return names, err
	})
	if err != nil {
		return nil, err
	}
	names, _ := result.([]string)
	return names, nil
}

func (r *Resolver) effectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	catalog, err := r.store.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("authz: load catalog: %w", err)
	}
	snap, err := r.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(catalog))
	for _, perm := range catalog {
		if snap.decide(perm.ID) {
			names = append(names, perm.Name())
		}
	}
	return names, nil
}

// Allowed is the fail-closed form used by enforcement call sites: any
// infrastructure failure resolves to deny so a crashed check can never pass a
// request through.
func (r *Resolver) Allowed(ctx context.Context, userID int64, name string) bool {
	granted, err := r.HasPermission(ctx, userID, name)
	if err != nil {
		r.logger.Error("permission check failed closed",
			slog.Int64("user_id", userID),
			slog.String("permission", name),
			slog.Any("error", err))
		r.metrics.RecordDecision(decisionError)
		return false
	}
	if granted {
		r.metrics.RecordDecision(decisionAllow)
	} else {
		r.metrics.RecordDecision(decisionDeny)
	}
	return granted
}
