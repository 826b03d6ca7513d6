package authz

import "fmt"

// actions returns the cumulative action set for the level. Holding edit
// without view is impossible by construction: callers derive grant sets from
// this ladder, never from raw tier lists.
func (l AccessLevel) actions() []string {
	switch l {
	case AccessViewOnly:
		return []string{ActionView}
	case AccessEdit:
		return []string{ActionView, ActionEdit}
	case AccessFullEdit:
		return []string{ActionView, ActionEdit, ActionFullEdit}
	default:
		return nil
	}
}

// LevelPermissions resolves the cumulative permission-id set for one module at
// the given level, using the module-wide entries of the catalog.
func LevelPermissions(catalog []Permission, module string, level AccessLevel) ([]int64, error) {
	actions := level.actions()
	if actions == nil {
		return nil, fmt.Errorf("authz: invalid access level for module %s", module)
	}
	byAction := make(map[string]int64, len(actions))
	for _, p := range catalog {
		if p.Module != module || p.ResourcePattern != ResourceAll {
			continue
		}
		byAction[p.Action] = p.ID
	}
	ids := make([]int64, 0, len(actions))
	for _, action := range actions {
		id, ok := byAction[action]
		if !ok {
			return nil, fmt.Errorf("%w: permission %s.%s", ErrNotFound, module, action)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ApplyModuleLevels converts a per-module level map into the full permission-id
// set for a role. Modules absent from the map grant nothing.
func ApplyModuleLevels(catalog []Permission, levels map[string]AccessLevel) ([]int64, error) {
	var ids []int64
	seen := make(map[int64]struct{})
	for _, module := range Modules() {
		level, ok := levels[module]
		if !ok {
			continue
		}
		moduleIDs, err := LevelPermissions(catalog, module, level)
		if err != nil {
			return nil, err
		}
		for _, id := range moduleIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for module := range levels {
		if !knownModule(module) {
			return nil, validationError("levels", fmt.Sprintf("unknown module %q", module))
		}
	}
	return ids, nil
}

func knownModule(module string) bool {
	for _, m := range Modules() {
		if m == module {
			return true
		}
	}
	return false
}
