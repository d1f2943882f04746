// Package ratewindow provides sliding-window counting with timed blocks,
// keyed by IP or identifier. Two backends exist: an in-memory map for
// single-process deployments and a Redis sorted-set backend for
// horizontally scaled ones.
package ratewindow

import (
	"context"
	"time"
)

// RateWindow counts events in a trailing time window and carries block
// state per key. Losing a count only weakens the limiter; block state
// must never be lost.
type RateWindow interface {
	// Increment records one event for the key and returns the count inside
	// the current window, including this event
	Increment(ctx context.Context, key string) (int, error)

	// CountInWindow returns the current in-window count without recording
	CountInWindow(ctx context.Context, key string) (int, error)

	// Block denies the key for the given duration
	Block(ctx context.Context, key string, d time.Duration) error

	// IsBlocked reports an active block and its remaining duration
	IsBlocked(ctx context.Context, key string) (bool, time.Duration, error)

	// Reset clears all state for the key
	Reset(ctx context.Context, key string) error
}
