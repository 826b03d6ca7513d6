package authz

import (
	"context"
	"time"

	"github.com/atlas-desk/atlas-desk/internal/shared"
)

// mockStore is an in-memory Store for service and resolver tests.
type mockStore struct {
	permissions map[int64]Permission
	roles       map[int64]Role
	userRoles   []UserRole
	overrides   map[int64]map[int64]Override // user -> permission -> override
	nextRoleID  int64
	nextEdgeID  int64

	// Error injection.
	listPermissionsErr error
	getRoleErr         error
	listUserRolesErr   error
	listOverridesErr   error
	replaceGrantsErr   error
}

func newMockStore() *mockStore {
	return &mockStore{
		permissions: make(map[int64]Permission),
		roles:       make(map[int64]Role),
		overrides:   make(map[int64]map[int64]Override),
		nextRoleID:  1,
		nextEdgeID:  1,
	}
}

// seedCatalog installs the module-wide tier permissions and returns a lookup
// by canonical name.
func (m *mockStore) seedCatalog() map[string]Permission {
	byName := make(map[string]Permission)
	id := int64(1)
	for _, module := range Modules() {
		for _, action := range Tiers() {
			p := Permission{ID: id, Module: module, Action: action, ResourcePattern: ResourceAll}
			m.permissions[id] = p
			byName[p.Name()] = p
			id++
		}
	}
	return byName
}

func (m *mockStore) addRole(role Role, permissionIDs ...int64) Role {
	if role.ID == 0 {
		role.ID = m.nextRoleID
		m.nextRoleID++
	}
	if role.State == "" {
		role.State = RoleStateActive
	}
	for _, pid := range permissionIDs {
		role.Permissions = append(role.Permissions, RolePermission{RoleID: role.ID, PermissionID: pid, Granted: true})
	}
	m.roles[role.ID] = role
	return role
}

func (m *mockStore) assign(userID, roleID int64) {
	m.userRoles = append(m.userRoles, UserRole{
		ID:         m.nextEdgeID,
		UserID:     userID,
		RoleID:     roleID,
		AssignedAt: time.Now(),
		IsActive:   true,
	})
	m.nextEdgeID++
}

func (m *mockStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	if m.listPermissionsErr != nil {
		return nil, m.listPermissionsErr
	}
	out := make([]Permission, 0, len(m.permissions))
	for _, p := range m.permissions {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockStore) GetPermissionByName(ctx context.Context, name string) (Permission, error) {
	for _, p := range m.permissions {
		if p.Name() == name {
			return p, nil
		}
	}
	return Permission{}, ErrNotFound
}

func (m *mockStore) ListRoles(ctx context.Context, orgID int64) ([]Role, error) {
	out := make([]Role, 0, len(m.roles))
	for _, r := range m.roles {
		if !r.Active() {
			continue
		}
		if r.OrgID != nil && *r.OrgID != orgID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *mockStore) GetRole(ctx context.Context, id int64) (Role, error) {
	if m.getRoleErr != nil {
		return Role{}, m.getRoleErr
	}
	r, ok := m.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return r, nil
}

func (m *mockStore) GetRoleByName(ctx context.Context, orgID int64, name string) (Role, error) {
	for _, r := range m.roles {
		roleOrg := int64(0)
		if r.OrgID != nil {
			roleOrg = *r.OrgID
		}
		if r.Name == name && (r.OrgID == nil || roleOrg == orgID) {
			return r, nil
		}
	}
	return Role{}, ErrNotFound
}

func (m *mockStore) CreateRole(ctx context.Context, role Role, permissionIDs []int64) (Role, error) {
	for _, existing := range m.roles {
		if existing.Name == role.Name {
			return Role{}, ErrDuplicate
		}
	}
	return m.addRole(role, permissionIDs...), nil
}

func (m *mockStore) UpdateRole(ctx context.Context, role Role) (Role, error) {
	existing, ok := m.roles[role.ID]
	if !ok {
		return Role{}, ErrNotFound
	}
	role.Permissions = existing.Permissions
	m.roles[role.ID] = role
	return role, nil
}

func (m *mockStore) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if m.replaceGrantsErr != nil {
		return m.replaceGrantsErr
	}
	role, ok := m.roles[roleID]
	if !ok {
		return ErrNotFound
	}
	role.Permissions = nil
	for _, pid := range permissionIDs {
		role.Permissions = append(role.Permissions, RolePermission{RoleID: roleID, PermissionID: pid, Granted: true})
	}
	m.roles[roleID] = role
	return nil
}

func (m *mockStore) DeactivateRole(ctx context.Context, id int64) error {
	role, ok := m.roles[id]
	if !ok {
		return ErrNotFound
	}
	role.State = RoleStateDeactivated
	m.roles[id] = role
	return nil
}

func (m *mockStore) ListUserRoles(ctx context.Context, userID int64) ([]UserRole, error) {
	if m.listUserRolesErr != nil {
		return nil, m.listUserRolesErr
	}
	out := make([]UserRole, 0)
	for _, edge := range m.userRoles {
		if edge.UserID == userID && edge.IsActive {
			out = append(out, edge)
		}
	}
	return out, nil
}

func (m *mockStore) InsertUserRole(ctx context.Context, edge UserRole) (UserRole, error) {
	for _, existing := range m.userRoles {
		if existing.UserID == edge.UserID && existing.RoleID == edge.RoleID && existing.IsActive {
			return UserRole{}, ErrDuplicate
		}
	}
	edge.ID = m.nextEdgeID
	m.nextEdgeID++
	edge.AssignedAt = time.Now()
	m.userRoles = append(m.userRoles, edge)
	return edge, nil
}

func (m *mockStore) RevokeUserRole(ctx context.Context, userID, roleID int64) error {
	revoked := false
	now := time.Now()
	for i, edge := range m.userRoles {
		if edge.UserID == userID && edge.RoleID == roleID && edge.IsActive {
			m.userRoles[i].IsActive = false
			m.userRoles[i].RevokedAt = &now
			revoked = true
		}
	}
	if !revoked {
		return ErrNotFound
	}
	return nil
}

func (m *mockStore) ListOverrides(ctx context.Context, userID int64) ([]Override, error) {
	if m.listOverridesErr != nil {
		return nil, m.listOverridesErr
	}
	out := make([]Override, 0)
	for _, o := range m.overrides[userID] {
		out = append(out, o)
	}
	return out, nil
}

func (m *mockStore) GetOverride(ctx context.Context, userID, permissionID int64) (Override, error) {
	o, ok := m.overrides[userID][permissionID]
	if !ok {
		return Override{}, ErrNotFound
	}
	return o, nil
}

func (m *mockStore) UpsertOverride(ctx context.Context, o Override) error {
	if m.overrides[o.UserID] == nil {
		m.overrides[o.UserID] = make(map[int64]Override)
	}
	o.UpdatedAt = time.Now()
	m.overrides[o.UserID][o.PermissionID] = o
	return nil
}

func (m *mockStore) DeleteOverride(ctx context.Context, userID, permissionID int64) error {
	if _, ok := m.overrides[userID][permissionID]; !ok {
		return ErrNotFound
	}
	delete(m.overrides[userID], permissionID)
	return nil
}

var _ Store = (*mockStore)(nil)

// mockAudit captures recorded audit entries.
type mockAudit struct {
	entries []shared.AuditLog
}

func (m *mockAudit) Record(ctx context.Context, log shared.AuditLog) error {
	m.entries = append(m.entries, log)
	return nil
}

func (m *mockAudit) actions() []string {
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}
