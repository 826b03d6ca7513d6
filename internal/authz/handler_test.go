package authz

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-desk/atlas-desk/internal/shared"
)

// newTestServer mounts the handler behind an identity-injecting middleware
// and seeds an admin holding full administration and security access.
func newTestServer(t *testing.T) (*httptest.Server, *mockStore, map[string]Permission) {
	t.Helper()
	store := newMockStore()
	byName := store.seedCatalog()
	admin := store.addRole(Role{Name: "Administrator", IsSystem: true},
		byName["administration.view"].ID,
		byName["administration.edit"].ID,
		byName["security.view"].ID,
		byName["security.edit"].ID,
	)
	store.assign(42, admin.ID)

	resolver := NewResolver(store, nil, nil, nil)
	guard := Middleware{Resolver: resolver}
	service := NewService(store, nil, &mockAudit{}, nil)
	handler := NewHandler(nil, service, resolver, guard)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if v := req.Header.Get("X-User-ID"); v != "" {
				var userID int64
				_, _ = fmt.Sscan(v, &userID)
				req = req.WithContext(shared.ContextWithActor(req.Context(), shared.Actor{UserID: userID, OrgID: 1}))
			}
			next.ServeHTTP(w, req)
		})
	})
	handler.MountRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store, byName
}

func doJSON(t *testing.T, method, url string, userID string, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, payload
}

func TestPermissionCatalogEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/permissions", "42", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Permissions []struct {
			Name   string `json:"name"`
			Module string `json:"module"`
		} `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Len(t, out.Permissions, len(Modules())*len(Tiers()))
}

func TestEndpointsDenyWithoutPermission(t *testing.T) {
	srv, store, _ := newTestServer(t)
	store.assign(9, 0) // user 9 exists but holds nothing

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/permissions", "9", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/roles", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateRoleEndpoint(t *testing.T) {
	srv, _, byName := newTestServer(t)

	body := fmt.Sprintf(`{"name":"Support Lead","permission_ids":[%d,%d]}`,
		byName["tickets.view"].ID, byName["tickets.edit"].ID)
	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/roles", "42", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var role roleResponse
	require.NoError(t, json.Unmarshal(payload, &role))
	assert.Equal(t, "Support Lead", role.Name)
	assert.ElementsMatch(t, []int64{byName["tickets.view"].ID, byName["tickets.edit"].ID}, role.PermissionIDs)

	// Duplicate name surfaces as a validation problem.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/roles", "42", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateRoleFromLevelsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body := `{"name":"Reporting","levels":{"reports":"edit","analytics":"view"}}`
	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/roles", "42", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var role roleResponse
	require.NoError(t, json.Unmarshal(payload, &role))
	assert.Len(t, role.PermissionIDs, 3)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/roles", "42",
		`{"name":"Broken","levels":{"reports":"owner"}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRoleNotFoundMapsTo404(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/roles/999", "42", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAssignRoleEndpointConflict(t *testing.T) {
	srv, store, _ := newTestServer(t)
	role := store.addRole(Role{Name: "Agent"})

	body := fmt.Sprintf(`{"role_id":%d}`, role.ID)
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/users/7/roles", "42", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/users/7/roles", "42", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestEffectivePermissionsEndpoint(t *testing.T) {
	srv, store, byName := newTestServer(t)
	role := store.addRole(Role{Name: "Agent"}, byName["tickets.view"].ID)
	store.assign(7, role.ID)

	resp, payload := doJSON(t, http.MethodGet, srv.URL+"/users/7/permissions", "42", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		UserID      int64    `json:"user_id"`
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(payload, &out))
	assert.Equal(t, int64(7), out.UserID)
	assert.Equal(t, []string{"tickets.view"}, out.Permissions)
}

func TestOverrideEndpoints(t *testing.T) {
	srv, _, byName := newTestServer(t)
	permID := byName["tickets.view"].ID

	// Deny without a reason is rejected.
	body := fmt.Sprintf(`{"permission_id":%d,"granted":false}`, permID)
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/users/7/overrides", "42", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body = fmt.Sprintf(`{"permission_id":%d,"granted":false,"reason":"incident lockout"}`, permID)
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/users/7/overrides", "42", body)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, payload := doJSON(t, http.MethodGet, srv.URL+"/users/7/overrides", "42", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Overrides []overrideResponse `json:"overrides"`
	}
	require.NoError(t, json.Unmarshal(payload, &out))
	require.Len(t, out.Overrides, 1)
	assert.False(t, out.Overrides[0].Granted)

	url := fmt.Sprintf("%s/users/7/overrides/%d", srv.URL, permID)
	resp, _ = doJSON(t, http.MethodDelete, url, "42", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, url, "42", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMalformedBodyRejected(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/roles", "42", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
