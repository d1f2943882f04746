// Package retry bounds transient-failure retries for outbound delivery
// calls with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Config bounds the backoff schedule.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DeliveryDefaults is tuned for OTP delivery. A code is only useful for
// minutes, so the budget gives up quickly instead of queueing a stale send.
func DeliveryDefaults() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Multiplier:  2.0,
	}
}

// WithExponentialBackoff runs fn until it succeeds, returns a
// non-retryable error, exhausts cfg.MaxAttempts, or ctx is done.
func WithExponentialBackoff(ctx context.Context, cfg Config, fn func() error, isRetryable func(error) bool) error {
	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return fmt.Errorf("non-retryable error: %w", lastErr)
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("giving up after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// transientPatterns match the gateway and network failures worth retrying.
var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporarily unavailable",
	"service unavailable",
	"too many requests",
	"rate limit",
	"network is unreachable",
}

// IsTemporaryError reports whether err looks transient.
func IsTemporaryError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
