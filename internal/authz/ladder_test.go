package authz

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tierCatalog() []Permission {
	var perms []Permission
	id := int64(1)
	for _, module := range Modules() {
		for _, action := range Tiers() {
			perms = append(perms, Permission{ID: id, Module: module, Action: action, ResourcePattern: ResourceAll})
			id++
		}
	}
	return perms
}

func namesOf(catalog []Permission, ids []int64) []string {
	byID := make(map[int64]Permission, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id].Name())
	}
	return out
}

func TestLevelPermissionsCumulative(t *testing.T) {
	catalog := tierCatalog()

	ids, err := LevelPermissions(catalog, "tickets", AccessViewOnly)
	require.NoError(t, err)
	assert.Equal(t, []string{"tickets.view"}, namesOf(catalog, ids))

	ids, err = LevelPermissions(catalog, "tickets", AccessEdit)
	require.NoError(t, err)
	assert.Equal(t, []string{"tickets.view", "tickets.edit"}, namesOf(catalog, ids))

	ids, err = LevelPermissions(catalog, "tickets", AccessFullEdit)
	require.NoError(t, err)
	assert.Equal(t, []string{"tickets.view", "tickets.edit", "tickets.full_edit"}, namesOf(catalog, ids))
}

func TestLevelPermissionsInvalidLevel(t *testing.T) {
	catalog := tierCatalog()
	_, err := LevelPermissions(catalog, "tickets", AccessLevel(0))
	require.Error(t, err)
}

func TestLevelPermissionsMissingCatalogEntry(t *testing.T) {
	catalog := tierCatalog()
	// Strip the edit tier of one module.
	trimmed := catalog[:0:0]
	for _, p := range catalog {
		if p.Module == "assets" && p.Action == ActionEdit {
			continue
		}
		trimmed = append(trimmed, p)
	}
	_, err := LevelPermissions(trimmed, "assets", AccessEdit)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLevelPermissionsIgnoresPatternScopedEntries(t *testing.T) {
	catalog := tierCatalog()
	catalog = append(catalog, Permission{ID: 999, Module: "tickets", Action: ActionView, ResourcePattern: "team:12"})
	ids, err := LevelPermissions(catalog, "tickets", AccessViewOnly)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.NotEqual(t, int64(999), ids[0])
}

func TestApplyModuleLevels(t *testing.T) {
	catalog := tierCatalog()
	ids, err := ApplyModuleLevels(catalog, map[string]AccessLevel{
		"tickets": AccessEdit,
		"reports": AccessViewOnly,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{"tickets.view", "tickets.edit", "reports.view"},
		namesOf(catalog, ids))
}

func TestApplyModuleLevelsUnknownModule(t *testing.T) {
	catalog := tierCatalog()
	_, err := ApplyModuleLevels(catalog, map[string]AccessLevel{"billing": AccessEdit})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestApplyModuleLevelsEmptyGrantsNothing(t *testing.T) {
	catalog := tierCatalog()
	ids, err := ApplyModuleLevels(catalog, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestParseAccessLevelRoundTrip(t *testing.T) {
	for _, tier := range Tiers() {
		level, err := ParseAccessLevel(tier)
		require.NoError(t, err)
		assert.Equal(t, tier, level.String())
	}
	_, err := ParseAccessLevel("admin")
	require.Error(t, err)
}

func TestPermissionName(t *testing.T) {
	assert.Equal(t, "tickets.view", Permission{Module: "tickets", Action: "view", ResourcePattern: ResourceAll}.Name())
	assert.Equal(t, "tickets.view", Permission{Module: "tickets", Action: "view"}.Name())
	assert.Equal(t, "tickets.view:team:12", Permission{Module: "tickets", Action: "view", ResourcePattern: "team:12"}.Name())
}
