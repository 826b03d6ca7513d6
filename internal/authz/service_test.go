package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-desk/atlas-desk/internal/shared"
)

var testActor = shared.Actor{UserID: 42, OrgID: 1}

func newTestService(store *mockStore) (*Service, *mockAudit) {
	audit := &mockAudit{}
	return NewService(store, nil, audit, nil), audit
}

func TestCreateRole(t *testing.T) {
	store := newMockStore()
	byName := store.seedCatalog()
	svc, audit := newTestService(store)

	role, err := svc.CreateRole(context.Background(), testActor, CreateRoleInput{
		OrgID:         1,
		Name:          "  Support Lead  ",
		Description:   "Handles escalations",
		PermissionIDs: []int64{byName["tickets.view"].ID, byName["tickets.edit"].ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "Support Lead", role.Name)
	assert.Equal(t, RoleStateActive, role.State)
	assert.Len(t, role.Permissions, 2)
	assert.Equal(t, []string{"role.create"}, audit.actions())
}

func TestCreateRoleValidation(t *testing.T) {
	store := newMockStore()
	store.seedCatalog()
	svc, _ := newTestService(store)
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, testActor, CreateRoleInput{OrgID: 1, Name: "   "})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	_, err = svc.CreateRole(ctx, testActor, CreateRoleInput{OrgID: 1, Name: "Agent"})
	require.NoError(t, err)
	_, err = svc.CreateRole(ctx, testActor, CreateRoleInput{OrgID: 1, Name: "Agent"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestUpdateRoleRenameSystemRoleForbidden(t *testing.T) {
	store := newMockStore()
	store.seedCatalog()
	role := store.addRole(Role{Name: "Administrator", IsSystem: true})
	svc, _ := newTestService(store)

	newName := "Root"
	_, err := svc.UpdateRole(context.Background(), testActor, role.ID, UpdateRoleInput{Name: &newName})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrForbidden))
}

func TestUpdateRoleSystemRoleGrantsEditable(t *testing.T) {
	store := newMockStore()
	byName := store.seedCatalog()
	role := store.addRole(Role{Name: "Administrator", IsSystem: true})
	svc, _ := newTestService(store)

	updated, err := svc.UpdateRole(context.Background(), testActor, role.ID, UpdateRoleInput{
		PermissionIDs: []int64{byName["security.view"].ID},
		ReplaceGrants: true,
	})
	require.NoError(t, err)
	require.Len(t, updated.Permissions, 1)
	assert.Equal(t, byName["security.view"].ID, updated.Permissions[0].PermissionID)
}

func TestUpdateRoleReplaceGrantsEmptyClears(t *testing.T) {
	store := newMockStore()
	byName := store.seedCatalog()
	role := store.addRole(Role{Name: "Agent"}, byName["tickets.view"].ID)
	svc, _ := newTestService(store)

	updated, err := svc.UpdateRole(context.Background(), testActor, role.ID, UpdateRoleInput{
		PermissionIDs: []int64{},
		ReplaceGrants: true,
	})
	require.NoError(t, err)
	assert.Empty(t, updated.Permissions)
}

func TestDeleteRole(t *testing.T) {
	store := newMockStore()
	store.seedCatalog()
	custom := store.addRole(Role{Name: "Temp"})
	system := store.addRole(Role{Name: "Administrator", IsSystem: true})
	svc, audit := newTestService(store)
	ctx := context.Background()

	err := svc.DeleteRole(ctx, testActor, system.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrForbidden))

	require.NoError(t, svc.DeleteRole(ctx, testActor, custom.ID))
	stored, err := store.GetRole(ctx, custom.ID)
	require.NoError(t, err)
	assert.Equal(t, RoleStateDeactivated, stored.State)
	assert.Contains(t, audit.actions(), "role.deactivate")

	err = svc.DeleteRole(ctx, testActor, 999)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSetRoleLevels(t *testing.T) {
	store := newMockStore()
	store.seedCatalog()
	role := store.addRole(Role{Name: "Support"})
	svc, _ := newTestService(store)

	updated, err := svc.SetRoleLevels(context.Background(), testActor, role.ID, map[string]AccessLevel{
		"tickets": AccessFullEdit,
		"reports": AccessViewOnly,
	})
	require.NoError(t, err)
	assert.Len(t, updated.Permissions, 4)

	_, err = svc.SetRoleLevels(context.Background(), testActor, role.ID, map[string]AccessLevel{
		"billing": AccessEdit,
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}
