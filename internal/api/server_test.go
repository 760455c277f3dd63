package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mapleads/mapleads/internal/progress"
)

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := NewServer(Config{}, nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestStatusReturnsSnapshot(t *testing.T) {
	t.Parallel()

	tracker := progress.NewTracker("run-1")
	tracker.StageStarted("places", 10)
	tracker.ItemDone(0, "succeeded")
	tracker.ItemDone(1, "failed")

	srv := NewServer(Config{}, tracker, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var snap progress.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Equal(t, "run-1", snap.RunID)
	require.Equal(t, "places", snap.Stage)
	require.Equal(t, 10, snap.ItemTotal)
	require.Equal(t, 1, snap.Succeeded)
	require.Equal(t, 1, snap.Failed)
}

func TestStatusWithoutTracker(t *testing.T) {
	t.Parallel()

	srv := NewServer(Config{}, nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPIKeyGuardsStatus(t *testing.T) {
	t.Parallel()

	srv := NewServer(Config{APIKey: "secret"}, progress.NewTracker("run-1"), nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req.Header.Set("X-API-Key", "secret")
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Health stays open.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpointServesPrometheus(t *testing.T) {
	t.Parallel()

	srv := NewServer(Config{}, nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}
