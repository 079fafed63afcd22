package reliability

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whiteheaddmark/Observatory-Databases/adapter"
	gwerrors "github.com/whiteheaddmark/Observatory-Databases/errors"
	"github.com/whiteheaddmark/Observatory-Databases/pkg/breaker"
	"github.com/whiteheaddmark/Observatory-Databases/pkg/retry"
)

// scriptedBackend fails a set number of times before succeeding
type scriptedBackend struct {
	id       string
	failures int32
	failWith error
	calls    atomic.Int32
	delay    time.Duration
}

func (s *scriptedBackend) ID() string { return s.id }

func (s *scriptedBackend) Capabilities() adapter.Capabilities {
	return adapter.NewCapabilities(adapter.OpFetch)
}

func (s *scriptedBackend) Invoke(ctx context.Context, _ adapter.Request) (adapter.Result, error) {
	n := s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return adapter.Result{}, gwerrors.Wrap(ctx.Err(), gwerrors.KindTimeout,
				"scripted", "Invoke", "sleep")
		case <-time.After(s.delay):
		}
	}
	if n <= s.failures {
		return adapter.Result{}, s.failWith
	}
	return adapter.Result{Payload: map[string]any{"id": 1, "name": "X"}}, nil
}

func testExecutor(t *testing.T, cfg Config) *Executor {
	t.Helper()
	return NewExecutor(cfg, slog.New(slog.NewTextHandler(testWriter{t}, nil)))
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func fastRetry(attempts int) retry.Config {
	return retry.Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestExecutor_SuccessWithinRetryBudget(t *testing.T) {
	// Times out twice, succeeds on the third attempt.
	backend := &scriptedBackend{
		id:       "archive",
		failures: 2,
		failWith: gwerrors.New(gwerrors.KindTimeout, "scripted", "Invoke", "deadline"),
	}
	e := testExecutor(t, Config{
		CallTimeout: time.Second,
		Retry:       fastRetry(3),
		Breaker:     breaker.DefaultConfig(),
	})

	result, err := e.Call(context.Background(), backend, adapter.Request{
		Resource: "calmodels", Operation: adapter.OpFetch,
	})

	require.NoError(t, err)
	assert.Equal(t, int32(3), backend.calls.Load())
	assert.Equal(t, "X", result.Payload.(map[string]any)["name"])
	// Final success: breaker untouched.
	assert.Equal(t, breaker.StateClosed, e.Breakers().Get("archive").State())
}

func TestExecutor_NonRetriableSingleAttempt(t *testing.T) {
	backend := &scriptedBackend{
		id:       "archive",
		failures: 10,
		failWith: gwerrors.New(gwerrors.KindUpstreamRejected, "scripted", "Invoke", "409"),
	}
	e := testExecutor(t, Config{
		CallTimeout: time.Second,
		Retry:       fastRetry(3),
		Breaker:     breaker.DefaultConfig(),
	})

	_, err := e.Call(context.Background(), backend, adapter.Request{
		Resource: "calmodels", Operation: adapter.OpFetch,
	})

	require.Error(t, err)
	assert.Equal(t, int32(1), backend.calls.Load())
	assert.Equal(t, gwerrors.KindUpstreamRejected, gwerrors.KindOf(err))
}

func TestExecutor_BreakerOpensAfterThreshold(t *testing.T) {
	backend := &scriptedBackend{
		id:       "flaky",
		failures: 100,
		failWith: gwerrors.New(gwerrors.KindUnreachable, "scripted", "Invoke", "refused"),
	}
	e := testExecutor(t, Config{
		CallTimeout: time.Second,
		Retry:       fastRetry(1),
		Breaker:     breaker.Config{FailureThreshold: 3, CoolDown: time.Minute},
	})

	for i := 0; i < 3; i++ {
		_, err := e.Call(context.Background(), backend, adapter.Request{
			Resource: "calmodels", Operation: adapter.OpFetch,
		})
		require.Error(t, err)
		assert.Equal(t, gwerrors.KindUnreachable, gwerrors.KindOf(err))
	}
	callsBeforeOpen := backend.calls.Load()

	// Breaker is now open: the adapter must not be invoked again.
	_, err := e.Call(context.Background(), backend, adapter.Request{
		Resource: "calmodels", Operation: adapter.OpFetch,
	})
	require.Error(t, err)
	assert.Equal(t, gwerrors.KindCircuitOpen, gwerrors.KindOf(err))
	assert.Equal(t, callsBeforeOpen, backend.calls.Load())
	assert.False(t, gwerrors.IsRetriable(err))
}

func TestExecutor_BreakerRecoversThroughProbe(t *testing.T) {
	backend := &scriptedBackend{
		id:       "recovering",
		failures: 2,
		failWith: gwerrors.New(gwerrors.KindUnreachable, "scripted", "Invoke", "refused"),
	}
	e := testExecutor(t, Config{
		CallTimeout: time.Second,
		Retry:       fastRetry(1),
		Breaker:     breaker.Config{FailureThreshold: 2, CoolDown: 10 * time.Millisecond},
	})

	for i := 0; i < 2; i++ {
		_, err := e.Call(context.Background(), backend, adapter.Request{
			Resource: "calmodels", Operation: adapter.OpFetch,
		})
		require.Error(t, err)
	}
	require.Equal(t, breaker.StateOpen, e.Breakers().Get("recovering").State())

	time.Sleep(20 * time.Millisecond)

	// Probe succeeds (failures exhausted), breaker closes.
	_, err := e.Call(context.Background(), backend, adapter.Request{
		Resource: "calmodels", Operation: adapter.OpFetch,
	})
	require.NoError(t, err)
	assert.Equal(t, breaker.StateClosed, e.Breakers().Get("recovering").State())
}

func TestExecutor_PerAttemptTimeout(t *testing.T) {
	backend := &scriptedBackend{
		id:    "slow",
		delay: 100 * time.Millisecond,
	}
	e := testExecutor(t, Config{
		CallTimeout: 10 * time.Millisecond,
		Retry:       fastRetry(1),
		Breaker:     breaker.DefaultConfig(),
	})

	_, err := e.Call(context.Background(), backend, adapter.Request{
		Resource: "calmodels", Operation: adapter.OpFetch,
	})

	require.Error(t, err)
	assert.Equal(t, gwerrors.KindTimeout, gwerrors.KindOf(err))
}

func TestExecutor_AggregateDeadlineCutsRetries(t *testing.T) {
	backend := &scriptedBackend{
		id:       "slow",
		failures: 100,
		failWith: gwerrors.New(gwerrors.KindUnreachable, "scripted", "Invoke", "refused"),
	}
	e := testExecutor(t, Config{
		CallTimeout: time.Second,
		Retry: retry.Config{
			MaxAttempts:  10,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   2.0,
		},
		Breaker: breaker.DefaultConfig(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := e.Call(ctx, backend, adapter.Request{
		Resource: "calmodels", Operation: adapter.OpFetch,
	})

	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond,
		"aggregate deadline must cut the retry loop short")
}
