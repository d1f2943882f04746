package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func TestSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := WithExponentialBackoff(context.Background(), fastConfig(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, IsTemporaryError)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestNonRetryableStopsImmediately(t *testing.T) {
	rejected := errors.New("invalid recipient")
	calls := 0
	err := WithExponentialBackoff(context.Background(), fastConfig(3), func() error {
		calls++
		return rejected
	}, IsTemporaryError)

	require.Error(t, err)
	assert.ErrorIs(t, err, rejected)
	assert.Equal(t, 1, calls)
}

func TestAttemptBudgetExhausted(t *testing.T) {
	gatewayDown := errors.New("service unavailable")
	calls := 0
	err := WithExponentialBackoff(context.Background(), fastConfig(2), func() error {
		calls++
		return gatewayDown
	}, IsTemporaryError)

	require.Error(t, err)
	assert.ErrorIs(t, err, gatewayDown)
	assert.Equal(t, 2, calls)
}

func TestCancelledContextStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := WithExponentialBackoff(ctx, fastConfig(3), func() error {
		calls++
		return errors.New("timeout")
	}, IsTemporaryError)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDeliveryDefaults(t *testing.T) {
	cfg := DeliveryDefaults()
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.BaseDelay)
	assert.Equal(t, 2*time.Second, cfg.MaxDelay)
}

type fakeTimeout struct{}

func (fakeTimeout) Error() string   { return "dial tcp: i/o deadline" }
func (fakeTimeout) Timeout() bool   { return true }
func (fakeTimeout) Temporary() bool { return true }

func TestIsTemporaryError(t *testing.T) {
	assert.False(t, IsTemporaryError(nil))
	assert.False(t, IsTemporaryError(errors.New("invalid recipient")))
	assert.True(t, IsTemporaryError(errors.New("429 Too Many Requests")))
	assert.True(t, IsTemporaryError(errors.New("upstream connection reset")))
	assert.True(t, IsTemporaryError(fakeTimeout{}))
}
