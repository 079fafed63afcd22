package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerrors "github.com/whiteheaddmark/Observatory-Databases/errors"
)

func testConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2.0,
		AddJitter:    false, // Disable for predictable tests
	}
}

func retriableErr() error {
	return gwerrors.New(gwerrors.KindUnreachable, "test", "Call", "connection refused")
}

func TestRetry_SuccessAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), testConfig(), func() error {
		attempts++
		if attempts < 3 {
			return retriableErr()
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_AllAttemptsFail(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), testConfig(), func() error {
		attempts++
		return retriableErr()
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	// Classification survives the retry loop.
	assert.Equal(t, gwerrors.KindUnreachable, gwerrors.KindOf(err))
}

func TestRetry_NonRetriableFailsImmediately(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), testConfig(), func() error {
		attempts++
		return gwerrors.New(gwerrors.KindUpstreamRejected, "test", "Call", "409 conflict")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, gwerrors.KindUpstreamRejected, gwerrors.KindOf(err))
}

func TestRetry_CircuitOpenNotRetried(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), testConfig(), func() error {
		attempts++
		return gwerrors.New(gwerrors.KindCircuitOpen, "breaker", "Allow", "open")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{
		MaxAttempts:  5,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}

	attempts := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, cfg, func() error {
		attempts++
		return retriableErr()
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestRetry_ZeroConfigRunsOnce(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{}, func() error {
		attempts++
		return gwerrors.New(gwerrors.KindTimeout, "test", "Call", "deadline")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(context.Background(), testConfig(), func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", retriableErr()
		}
		return "payload", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "payload", result)
	assert.Equal(t, 2, attempts)
}
