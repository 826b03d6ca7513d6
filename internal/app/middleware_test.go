package app

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-desk/atlas-desk/internal/shared"
)

func runStack(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, shared.Actor, bool) {
	t.Helper()
	var actor shared.Actor
	var ok bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok = shared.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	var wrapped http.Handler = handler
	stack := MiddlewareStack(MiddlewareConfig{Logger: slog.Default(), Config: &Config{AppEnv: "test"}})
	for i := len(stack) - 1; i >= 0; i-- {
		wrapped = stack[i](wrapped)
	}
	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, req)
	return rr, actor, ok
}

func TestIdentityAssertionParsed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "42")
	req.Header.Set(HeaderOrgID, "7")

	rr, actor, ok := runStack(t, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.True(t, ok)
	assert.Equal(t, int64(42), actor.UserID)
	assert.Equal(t, int64(7), actor.OrgID)
}

func TestMissingIdentityPassesThroughUnauthenticated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	rr, _, ok := runStack(t, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.False(t, ok)
}

func TestMalformedIdentityRejected(t *testing.T) {
	for _, value := range []string{"abc", "0", "-3"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderUserID, value)

		rr, _, _ := runStack(t, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, value)
	}
}

func TestMalformedOrgRejected(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "42")
	req.Header.Set(HeaderOrgID, "not-a-number")

	rr, _, _ := runStack(t, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
