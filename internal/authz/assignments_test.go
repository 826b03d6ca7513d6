package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignRole(t *testing.T) {
	store := newMockStore()
	byName := store.seedCatalog()
	role := store.addRole(Role{Name: "Agent"}, byName["tickets.view"].ID)
	svc, audit := newTestService(store)

	edge, err := svc.AssignRole(context.Background(), testActor, 7, role.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), edge.UserID)
	assert.Equal(t, testActor.UserID, edge.AssignedBy)
	assert.True(t, edge.IsActive)
	assert.False(t, edge.AssignedAt.IsZero())
	assert.Equal(t, []string{"user_role.assign"}, audit.actions())
}

func TestAssignRoleDuplicateRejected(t *testing.T) {
	store := newMockStore()
	store.seedCatalog()
	role := store.addRole(Role{Name: "Agent"})
	svc, _ := newTestService(store)
	ctx := context.Background()

	_, err := svc.AssignRole(ctx, testActor, 7, role.ID)
	require.NoError(t, err)
	_, err = svc.AssignRole(ctx, testActor, 7, role.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))
}

func TestAssignRoleUnknownOrDeactivated(t *testing.T) {
	store := newMockStore()
	store.seedCatalog()
	deactivated := store.addRole(Role{Name: "Old", State: RoleStateDeactivated})
	svc, _ := newTestService(store)
	ctx := context.Background()

	_, err := svc.AssignRole(ctx, testActor, 7, 999)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = svc.AssignRole(ctx, testActor, 7, deactivated.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRevokeRoleAllowsReassignment(t *testing.T) {
	store := newMockStore()
	store.seedCatalog()
	role := store.addRole(Role{Name: "Agent"})
	svc, audit := newTestService(store)
	ctx := context.Background()

	_, err := svc.AssignRole(ctx, testActor, 7, role.ID)
	require.NoError(t, err)
	require.NoError(t, svc.RevokeRole(ctx, testActor, 7, role.ID))

	edges, err := svc.UserRoles(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, edges)

	// A fresh edge after revocation is allowed.
	_, err = svc.AssignRole(ctx, testActor, 7, role.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"user_role.assign", "user_role.revoke", "user_role.assign"}, audit.actions())
}

func TestRevokeRoleMissingEdge(t *testing.T) {
	store := newMockStore()
	store.seedCatalog()
	role := store.addRole(Role{Name: "Agent"})
	svc, _ := newTestService(store)

	err := svc.RevokeRole(context.Background(), testActor, 7, role.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUserRolesDeduplicates(t *testing.T) {
	store := newMockStore()
	store.seedCatalog()
	role := store.addRole(Role{Name: "Agent"})
	store.assign(7, role.ID)
	store.assign(7, role.ID)
	svc, _ := newTestService(store)

	edges, err := svc.UserRoles(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}
