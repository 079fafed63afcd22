package health

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/whiteheaddmark/Observatory-Databases/pkg/breaker"
	"github.com/whiteheaddmark/Observatory-Databases/registry"
)

// Checker derives gateway health from the registry snapshot and the
// circuit-breaker states.
type Checker struct {
	registry *registry.Registry
	breakers *breaker.Set
}

// NewChecker creates a health checker
func NewChecker(reg *registry.Registry, breakers *breaker.Set) *Checker {
	return &Checker{registry: reg, breakers: breakers}
}

// Liveness reports whether the process is up. It never inspects backends: a
// gateway with every upstream down is still alive.
func (c *Checker) Liveness() Status {
	return NewHealthy("gateway", "process is up")
}

// Readiness aggregates the registry and adapter breaker states. No snapshot
// means not ready; open breakers degrade readiness without failing it, since
// the gateway can still serve the remaining adapters.
func (c *Checker) Readiness() Status {
	var subs []Status

	snap := c.registry.Current()
	if snap == nil {
		subs = append(subs, NewUnhealthy("registry", "no configuration loaded"))
	} else {
		subs = append(subs, NewHealthy("registry",
			fmt.Sprintf("%d resources registered", snap.Resources())))
	}

	for id, state := range c.breakers.States() {
		switch state {
		case breaker.StateOpen:
			subs = append(subs, NewDegraded("adapter:"+id, "circuit open"))
		case breaker.StateHalfOpen:
			subs = append(subs, NewDegraded("adapter:"+id, "circuit half-open"))
		default:
			subs = append(subs, NewHealthy("adapter:"+id, "circuit closed"))
		}
	}

	return Aggregate("gateway", subs)
}

// LivenessHandler serves the liveness endpoint
func (c *Checker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, c.Liveness())
	})
}

// ReadinessHandler serves the readiness endpoint. Unhealthy maps to 503;
// healthy and degraded both serve 200 so partial upstream outages do not
// pull the gateway out of rotation.
func (c *Checker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, c.Readiness())
	})
}

func writeStatus(w http.ResponseWriter, status Status) {
	w.Header().Set("Content-Type", "application/json")
	if status.IsUnhealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}
