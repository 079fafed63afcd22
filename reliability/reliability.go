// Package reliability wraps backend adapter calls with timeout, retry, and
// circuit-breaking policy.
package reliability

import (
	"context"
	"log/slog"
	"time"

	"github.com/whiteheaddmark/Observatory-Databases/adapter"
	"github.com/whiteheaddmark/Observatory-Databases/errors"
	"github.com/whiteheaddmark/Observatory-Databases/pkg/breaker"
	"github.com/whiteheaddmark/Observatory-Databases/pkg/retry"
)

// Config provides the reliability policy applied to every backend call
type Config struct {
	CallTimeout time.Duration  `json:"call_timeout"` // Hard per-attempt timeout
	Retry       retry.Config   `json:"retry"`
	Breaker     breaker.Config `json:"breaker"`
}

// DefaultConfig returns the default reliability policy
func DefaultConfig() Config {
	return Config{
		CallTimeout: 5 * time.Second,
		Retry:       retry.DefaultConfig(),
		Breaker:     breaker.DefaultConfig(),
	}
}

func (c Config) normalize() Config {
	if c.CallTimeout <= 0 {
		c.CallTimeout = 5 * time.Second
	}
	return c
}

// Observer receives reliability events for metrics collection
type Observer interface {
	RecordBackendCall(adapterID, outcome string, duration time.Duration)
	RecordRetryExhausted(adapterID string)
	RecordBreakerState(adapterID string, state breaker.State)
}

// Executor decorates adapter invocations with the reliability policy. It is
// the single path every backend call takes, so the policy stays centrally
// testable instead of being duplicated inside each adapter.
type Executor struct {
	cfg      Config
	breakers *breaker.Set
	logger   *slog.Logger
	observer Observer
}

// Option configures an Executor
type Option func(*Executor)

// WithObserver attaches a metrics observer
func WithObserver(obs Observer) Option {
	return func(e *Executor) {
		e.observer = obs
	}
}

// NewExecutor creates an executor with its own breaker set
func NewExecutor(cfg Config, logger *slog.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		cfg:      cfg.normalize(),
		breakers: breaker.NewSet(cfg.Breaker),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Breakers exposes the breaker set for health reporting
func (e *Executor) Breakers() *breaker.Set {
	return e.breakers
}

// Call invokes one backend under the reliability policy: the breaker is
// consulted first, each attempt gets a hard timeout, and only retriable
// failures are re-attempted. Breaker accounting uses the final outcome, so a
// call that succeeds within its retry budget does not move the breaker
// toward open.
func (e *Executor) Call(ctx context.Context, backend adapter.Backend, req adapter.Request) (adapter.Result, error) {
	id := backend.ID()
	br := e.breakers.Get(id)

	if !br.Allow() {
		e.observe(id, "circuit_open", 0)
		return adapter.Result{}, errors.New(errors.KindCircuitOpen,
			"reliability", "Call", "circuit open for backend "+id)
	}

	start := time.Now()
	result, err := retry.DoWithResult(ctx, e.cfg.Retry, func() (adapter.Result, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		defer cancel()
		return backend.Invoke(attemptCtx, req)
	})
	elapsed := time.Since(start)

	if err != nil {
		br.RecordFailure()
		e.observe(id, errors.KindOf(err).String(), elapsed)
		if errors.IsRetriable(err) && e.observer != nil {
			e.observer.RecordRetryExhausted(id)
		}
		e.logger.Warn("backend call failed",
			"adapter", id,
			"resource", req.Resource,
			"operation", string(req.Operation),
			"kind", errors.KindOf(err).String(),
			"duration", elapsed,
		)
		e.publishState(id, br)
		return adapter.Result{}, err
	}

	br.RecordSuccess()
	e.observe(id, "success", elapsed)
	e.publishState(id, br)
	return result, nil
}

func (e *Executor) observe(adapterID, outcome string, duration time.Duration) {
	if e.observer != nil {
		e.observer.RecordBackendCall(adapterID, outcome, duration)
	}
}

func (e *Executor) publishState(adapterID string, br *breaker.Breaker) {
	if e.observer != nil {
		e.observer.RecordBreakerState(adapterID, br.State())
	}
}
