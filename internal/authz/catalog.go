package authz

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ModulePermissions groups the catalog entries of one module for the admin UI.
type ModulePermissions struct {
	Module      string
	Permissions []Permission
}

// Permissions returns the full catalog ordered by module then action tier.
func (s *Service) Permissions(ctx context.Context) ([]Permission, error) {
	perms, err := s.store.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("authz: list permissions: %w", err)
	}
	sortCatalog(perms)
	return perms, nil
}

// PermissionsByModule returns the catalog grouped and ordered for
// deterministic rendering: modules in collated order, actions view before
// edit before full_edit, module-specific actions after the tiers.
func (s *Service) PermissionsByModule(ctx context.Context) ([]ModulePermissions, error) {
	perms, err := s.Permissions(ctx)
	if err != nil {
		return nil, err
	}
	groups := make([]ModulePermissions, 0, len(Modules()))
	index := make(map[string]int)
	for _, p := range perms {
		i, ok := index[p.Module]
		if !ok {
			i = len(groups)
			index[p.Module] = i
			groups = append(groups, ModulePermissions{Module: p.Module})
		}
		groups[i].Permissions = append(groups[i].Permissions, p)
	}
	return groups, nil
}

var catalogCollator = collate.New(language.English)

func sortCatalog(perms []Permission) {
	sort.SliceStable(perms, func(i, j int) bool {
		if perms[i].Module != perms[j].Module {
			return catalogCollator.CompareString(perms[i].Module, perms[j].Module) < 0
		}
		ti, tj := tierRank(perms[i].Action), tierRank(perms[j].Action)
		if ti != tj {
			return ti < tj
		}
		if perms[i].Action != perms[j].Action {
			return catalogCollator.CompareString(perms[i].Action, perms[j].Action) < 0
		}
		return perms[i].ResourcePattern < perms[j].ResourcePattern
	})
}

func tierRank(action string) int {
	switch action {
	case ActionView:
		return 0
	case ActionEdit:
		return 1
	case ActionFullEdit:
		return 2
	default:
		return 3
	}
}
