package app

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-desk/atlas-desk/internal/observability"
)

func TestHealthz(t *testing.T) {
	router := NewRouter(RouterParams{Logger: slog.Default(), Config: &Config{AppEnv: "test"}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestMetricsEndpointMounted(t *testing.T) {
	router := NewRouter(RouterParams{
		Logger:  slog.Default(),
		Config:  &Config{AppEnv: "test"},
		Metrics: observability.NewMetrics(),
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}
