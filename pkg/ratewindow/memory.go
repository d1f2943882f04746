package ratewindow

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count        int
	windowStart  time.Time
	blockedUntil time.Time
}

// MemoryWindow is the in-memory RateWindow backend. State is per-process
// and rebuilt from zero on restart. A background sweep evicts entries whose
// block has lapsed and whose window start is older than twice the window
// length, bounding memory growth.
type MemoryWindow struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	window  time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryWindow creates an in-memory window. Call StartSweep to bound
// memory, and Stop on shutdown.
func NewMemoryWindow(window time.Duration) *MemoryWindow {
	return &MemoryWindow{
		entries: make(map[string]*memoryEntry),
		window:  window,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

// WithClock overrides the clock, for tests
func (m *MemoryWindow) WithClock(now func() time.Time) *MemoryWindow {
	m.now = now
	return m
}

// Increment records one event and returns the in-window count
func (m *MemoryWindow) Increment(_ context.Context, key string) (int, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || now.Sub(e.windowStart) >= m.window {
		blockedUntil := time.Time{}
		if ok {
			blockedUntil = e.blockedUntil
		}
		e = &memoryEntry{windowStart: now, blockedUntil: blockedUntil}
		m.entries[key] = e
	}
	e.count++
	return e.count, nil
}

// CountInWindow returns the in-window count without recording
func (m *MemoryWindow) CountInWindow(_ context.Context, key string) (int, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || now.Sub(e.windowStart) >= m.window {
		return 0, nil
	}
	return e.count, nil
}

// Block denies the key for the given duration
func (m *MemoryWindow) Block(_ context.Context, key string, d time.Duration) error {
	until := m.now().Add(d)

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		e = &memoryEntry{windowStart: m.now()}
		m.entries[key] = e
	}
	e.blockedUntil = until
	return nil
}

// IsBlocked reports an active block and its remaining duration
func (m *MemoryWindow) IsBlocked(_ context.Context, key string) (bool, time.Duration, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || e.blockedUntil.IsZero() || !e.blockedUntil.After(now) {
		return false, 0, nil
	}
	return true, e.blockedUntil.Sub(now), nil
}

// Reset clears all state for the key
func (m *MemoryWindow) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// StartSweep launches the background eviction loop
func (m *MemoryWindow) StartSweep(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sweep()
			case <-m.stop:
				return
			}
		}
	}()
}

// Sweep evicts stale entries. Keys are snapshotted first so the lock is
// not held across the full scan when the map is large.
func (m *MemoryWindow) Sweep() {
	now := m.now()

	m.mu.Lock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	for _, k := range keys {
		m.mu.Lock()
		if e, ok := m.entries[k]; ok {
			blockLapsed := e.blockedUntil.IsZero() || !e.blockedUntil.After(now)
			windowStale := now.Sub(e.windowStart) > 2*m.window
			if blockLapsed && windowStale {
				delete(m.entries, k)
			}
		}
		m.mu.Unlock()
	}
}

// Stop terminates the sweep loop
func (m *MemoryWindow) Stop() {
	m.once.Do(func() { close(m.stop) })
}

// Size returns the tracked key count
func (m *MemoryWindow) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
