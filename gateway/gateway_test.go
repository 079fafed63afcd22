package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whiteheaddmark/Observatory-Databases/config"
)

const testConfig = `{
	"server": {"addr": ":0"},
	"version": {"strategy": "header", "default": "v1"},
	"router": {"enable_response_cache": true},
	"adapters": [
		{"id": "archive", "type": "memory"}
	],
	"resources": [
		{
			"name": "calmodels",
			"operations": ["fetch", "create", "replace", "patch", "delete"],
			"versions": ["v1"],
			"cache": {"cacheable": true, "max_age_seconds": 30}
		}
	],
	"bindings": [
		{"resource": "calmodels", "version": "v1", "strategy": "single",
			"targets": [{"adapter": "archive"}]}
	]
}`

func newService(t *testing.T) *Service {
	t.Helper()
	cfg, err := config.NewLoader().Parse([]byte(testConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	svc, err := New(context.Background(), cfg, "", slog.Default())
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func TestServiceServesResources(t *testing.T) {
	svc := newService(t)

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/calmodels",
		strings.NewReader(`{"id": "cm-1", "antenna": "ea05"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calmodels/cm-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "v1", body["version"])
	assert.Equal(t, "ea05", body["data"].(map[string]any)["antenna"])
}

func TestServiceHealthAndMetricsEndpoints(t *testing.T) {
	svc := newService(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rec := httptest.NewRecorder()
		svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestServiceRequestMetricsRecorded(t *testing.T) {
	svc := newService(t)

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calmodels", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "obsgateway_requests_total")
}

func TestReloadSwapsConfiguration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.json")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	cfg, err := config.NewLoader().Load(path)
	require.NoError(t, err)

	svc, err := New(context.Background(), cfg, path, slog.Default())
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	// Rewrite the config renaming the resource, then reload.
	renamed := strings.ReplaceAll(testConfig, "calmodels", "spectra")
	require.NoError(t, os.WriteFile(path, []byte(renamed), 0o600))
	require.NoError(t, svc.Reload(context.Background()))

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calmodels", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/spectra", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReloadKeepsConfigOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.json")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	cfg, err := config.NewLoader().Load(path)
	require.NoError(t, err)

	svc, err := New(context.Background(), cfg, path, slog.Default())
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	require.NoError(t, os.WriteFile(path, []byte(`{"broken`), 0o600))
	require.Error(t, svc.Reload(context.Background()))

	// The previous configuration keeps serving.
	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calmodels", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
