package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordPermissionCheck(true)
	m.RecordSyncRun("changed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rec = httptest.NewRecorder()
	m.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
}

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	m.RecordPermissionCheck(true)
	m.RecordPermissionCheck(false)
	m.RecordSyncRun("changed")

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/roles", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)

	exposition := string(body)
	require.True(t, strings.Contains(exposition, `idaraos_permission_checks_total{decision="allowed"} 1`))
	require.True(t, strings.Contains(exposition, `idaraos_permission_checks_total{decision="denied"} 1`))
	require.True(t, strings.Contains(exposition, `idaraos_directory_sync_runs_total{outcome="changed"} 1`))
	require.True(t, strings.Contains(exposition, "idaraos_http_requests_total"))
}
