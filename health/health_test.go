package health

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whiteheaddmark/Observatory-Databases/adapter"
	"github.com/whiteheaddmark/Observatory-Databases/pkg/breaker"
	"github.com/whiteheaddmark/Observatory-Databases/registry"
)

func TestStatusPredicates(t *testing.T) {
	assert.True(t, NewHealthy("a", "").IsHealthy())
	assert.True(t, NewDegraded("a", "").IsDegraded())
	assert.True(t, NewUnhealthy("a", "").IsUnhealthy())
	assert.False(t, NewDegraded("a", "").Healthy)
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name string
		subs []Status
		want string
	}{
		{"empty", nil, "healthy"},
		{"all healthy", []Status{NewHealthy("a", ""), NewHealthy("b", "")}, "healthy"},
		{"one degraded", []Status{NewHealthy("a", ""), NewDegraded("b", "")}, "degraded"},
		{"unhealthy wins", []Status{NewDegraded("a", ""), NewUnhealthy("b", "")}, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate("sys", tt.subs)
			assert.Equal(t, tt.want, got.Status)
			assert.Len(t, got.SubStatuses, len(tt.subs))
		})
	}
}

type fetchOnlyBackend struct{}

func (fetchOnlyBackend) ID() string { return "archive" }

func (fetchOnlyBackend) Capabilities() adapter.Capabilities {
	return adapter.NewCapabilities(adapter.OpFetch)
}

func (fetchOnlyBackend) Invoke(_ context.Context, _ adapter.Request) (adapter.Result, error) {
	return adapter.Result{}, nil
}

func loadedRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	snap, err := registry.NewSnapshot(
		[]registry.Descriptor{{
			Name:       "calmodels",
			Operations: []adapter.Operation{adapter.OpFetch},
			Versions:   []string{"v1"},
		}},
		[]registry.Binding{{
			Resource: "calmodels", Version: "v1", Strategy: registry.StrategySingle,
			Targets: []registry.Target{{Adapter: "archive"}},
		}},
		map[string]adapter.Backend{"archive": fetchOnlyBackend{}},
	)
	require.NoError(t, err)
	reg.Swap(snap)
	return reg
}

func TestReadinessNoSnapshot(t *testing.T) {
	checker := NewChecker(registry.New(), breaker.NewSet(breaker.DefaultConfig()))

	status := checker.Readiness()
	assert.True(t, status.IsUnhealthy())

	rec := httptest.NewRecorder()
	checker.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 503, rec.Code)
}

func TestReadinessWithSnapshot(t *testing.T) {
	checker := NewChecker(loadedRegistry(t), breaker.NewSet(breaker.DefaultConfig()))

	status := checker.Readiness()
	assert.True(t, status.IsHealthy())

	rec := httptest.NewRecorder()
	checker.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 200, rec.Code)

	var decoded Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&decoded))
	assert.Equal(t, "gateway", decoded.Component)
}

func TestReadinessOpenBreakerDegrades(t *testing.T) {
	breakers := breaker.NewSet(breaker.Config{FailureThreshold: 1})
	br := breakers.Get("archive")
	br.RecordFailure()

	checker := NewChecker(loadedRegistry(t), breakers)

	status := checker.Readiness()
	assert.True(t, status.IsDegraded(), "open breaker should degrade, not fail, readiness")

	rec := httptest.NewRecorder()
	checker.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 200, rec.Code, "degraded gateway stays in rotation")
}

func TestLiveness(t *testing.T) {
	checker := NewChecker(registry.New(), breaker.NewSet(breaker.DefaultConfig()))
	assert.True(t, checker.Liveness().IsHealthy())

	rec := httptest.NewRecorder()
	checker.LivenessHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, 200, rec.Code)
}
