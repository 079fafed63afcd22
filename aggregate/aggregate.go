// Package aggregate composes one or more backend adapter calls into a single
// response according to the service binding's strategy.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/whiteheaddmark/Observatory-Databases/adapter"
	"github.com/whiteheaddmark/Observatory-Databases/errors"
	"github.com/whiteheaddmark/Observatory-Databases/registry"
	"github.com/whiteheaddmark/Observatory-Databases/reliability"
)

// Response is the aggregate outcome handed back to the router.
type Response struct {
	// Payload is the merged or passed-through backend payload.
	Payload any

	// Warnings lists per-adapter degradations that did not fail the
	// aggregate, e.g. an optional fan-out-merge adapter that errored.
	Warnings []string
}

// Engine executes a resolved binding. All backend calls flow through the
// reliability executor so every attempt carries the timeout, retry, and
// circuit-breaker policy.
type Engine struct {
	exec   *reliability.Executor
	logger *slog.Logger
}

// New creates an aggregation engine.
func New(exec *reliability.Executor, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{exec: exec, logger: logger.With("component", "aggregate")}
}

// Execute dispatches the request according to the binding strategy. Mutating
// operations always dispatch to the first-listed adapter only, regardless of
// strategy.
func (e *Engine) Execute(ctx context.Context, resolved *registry.Resolved, req adapter.Request) (Response, error) {
	binding := resolved.Binding

	if req.Operation.Mutating() || binding.Strategy == registry.StrategySingle {
		result, err := e.exec.Call(ctx, resolved.Backends[0], req)
		if err != nil {
			return Response{}, err
		}
		return Response{Payload: result.Payload}, nil
	}

	switch binding.Strategy {
	case registry.StrategyFanOutMerge:
		return e.fanOutMerge(ctx, resolved, req)
	case registry.StrategyFanOutFirstWins:
		return e.fanOutFirstSuccess(ctx, resolved, req)
	default:
		return Response{}, errors.New(errors.KindInternal, "aggregate", "Execute",
			fmt.Sprintf("unknown strategy %q", binding.Strategy))
	}
}

type fanOutResult struct {
	target  registry.Target
	payload any
	err     error
}

// fanOutMerge invokes every bound adapter concurrently and merges the
// successful payloads into one object keyed by merge key. A required
// adapter's failure fails the aggregate as PartialFailure; an optional
// adapter's failure degrades to a warning. When two targets declare the same
// merge key the first-listed target wins.
func (e *Engine) fanOutMerge(ctx context.Context, resolved *registry.Resolved, req adapter.Request) (Response, error) {
	targets := resolved.Binding.Targets
	results := make([]fanOutResult, len(targets))

	var wg sync.WaitGroup
	for i := range targets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := e.exec.Call(ctx, resolved.Backends[i], req)
			results[i] = fanOutResult{target: targets[i], payload: result.Payload, err: err}
		}(i)
	}
	wg.Wait()

	merged := make(map[string]any, len(targets))
	var warnings []string
	var failed []string

	for _, r := range results {
		if r.err != nil {
			if r.target.Required {
				failed = append(failed, r.target.Adapter)
				e.logger.Warn("required adapter failed in fan-out-merge",
					"adapter", r.target.Adapter,
					"resource", req.Resource,
					"error", r.err)
			} else {
				warnings = append(warnings, fmt.Sprintf(
					"adapter %s unavailable: %s", r.target.Adapter, errors.KindOf(r.err)))
				e.logger.Info("optional adapter degraded in fan-out-merge",
					"adapter", r.target.Adapter,
					"resource", req.Resource,
					"error", r.err)
			}
			continue
		}
		key := r.target.Key()
		if _, taken := merged[key]; taken {
			continue
		}
		merged[key] = r.payload
	}

	if len(failed) > 0 {
		sort.Strings(failed)
		err := errors.New(errors.KindPartialFailure, "aggregate", "fanOutMerge",
			fmt.Sprintf("required adapters failed: %v", failed))
		return Response{}, errors.WithFailedAdapters(err, errors.KindPartialFailure, failed)
	}

	return Response{Payload: merged, Warnings: warnings}, nil
}

// fanOutFirstSuccess invokes the bound adapters concurrently in declared
// priority order and serves the first success by completion; the remaining
// calls are cancelled once a winner is chosen. A success from any adapter
// other than the first-listed one carries a fallback warning. When every
// adapter fails the aggregate fails as AllBackendsFailed with the adapter IDs
// in priority order.
func (e *Engine) fanOutFirstSuccess(ctx context.Context, resolved *registry.Resolved, req adapter.Request) (Response, error) {
	targets := resolved.Binding.Targets

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		idx     int
		payload any
		err     error
	}

	// Buffered so late losers never block after the winner returns.
	outcomes := make(chan outcome, len(targets))
	for i := range targets {
		go func(i int) {
			result, err := e.exec.Call(callCtx, resolved.Backends[i], req)
			outcomes <- outcome{idx: i, payload: result.Payload, err: err}
		}(i)
	}

	errs := make([]error, len(targets))
	for range targets {
		o := <-outcomes
		if o.err != nil {
			errs[o.idx] = o.err
			e.logger.Info("adapter failed in fan-out-first-success",
				"adapter", targets[o.idx].Adapter,
				"resource", req.Resource,
				"error", o.err)
			continue
		}

		var warnings []string
		if o.idx != 0 {
			warnings = append(warnings, fmt.Sprintf(
				"served by fallback adapter %s", targets[o.idx].Adapter))
		}
		return Response{Payload: o.payload, Warnings: warnings}, nil
	}

	failed := make([]string, len(targets))
	var lastErr error
	for i, target := range targets {
		failed[i] = target.Adapter
		if errs[i] != nil {
			lastErr = errs[i]
		}
	}

	err := errors.Wrap(lastErr, errors.KindAllBackendsFailed, "aggregate", "fanOutFirstSuccess",
		"all bound adapters failed")
	return Response{}, errors.WithFailedAdapters(err, errors.KindAllBackendsFailed, failed)
}
