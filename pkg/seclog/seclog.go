// Package seclog holds the bounded in-memory security event log the
// perimeter middleware funnels into. Entries are for introspection and
// stats only, never for enforcement decisions.
package seclog

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ridepulse/risk_service/pkg/sanitize"
)

// Event types emitted by the perimeter guard
const (
	EventRateLimitTriggered = "RATE_LIMIT_TRIGGERED"
	EventBlockedIP          = "BLOCKED_IP"
	EventBotDetected        = "BOT_DETECTED"
	EventRepeated404Probe   = "REPEATED_404_PROBE"
	EventCSPViolation       = "CSP_VIOLATION"
	EventCSRFRejected       = "CSRF_REJECTED"
)

// Entry is one security log record
type Entry struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      string            `json:"type"`
	IP        string            `json:"ip"`
	UserAgent string            `json:"userAgent,omitempty"`
	Path      string            `json:"path,omitempty"`
	Method    string            `json:"method,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Stats aggregates the log by event type
type Stats struct {
	TotalEvents    int
	EventsByType   map[string]int
	BlocksLastHour int
}

// Log is a FIFO-bounded event buffer shared across concurrent requests.
// Append and truncation happen under one lock so the cap holds at all times.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	cap     int
	logger  *zap.Logger
	now     func() time.Time
}

// DefaultCapacity bounds the buffer at ten thousand entries
const DefaultCapacity = 10000

// New creates a security log with the given capacity. A capacity of zero
// or less falls back to DefaultCapacity.
func New(capacity int, logger *zap.Logger) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		entries: make([]Entry, 0, 256),
		cap:     capacity,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the clock, for tests
func (l *Log) WithClock(now func() time.Time) *Log {
	l.now = now
	return l
}

// Record appends an entry, evicting the oldest when the cap is reached
func (l *Log) Record(eventType, ip, userAgent, path, method string, details map[string]string) {
	// Request-supplied fields are stripped of newlines so a crafted
	// User-Agent cannot forge extra log lines.
	entry := Entry{
		Timestamp: l.now(),
		Type:      eventType,
		IP:        sanitize.LogString(ip),
		UserAgent: sanitize.LogString(userAgent),
		Path:      sanitize.LogString(path),
		Method:    method,
		Details:   details,
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.cap {
		over := len(l.entries) - l.cap
		l.entries = l.entries[over:]
	}
	l.mu.Unlock()

	if l.logger != nil {
		l.logger.Warn("Security event",
			zap.String("type", eventType),
			zap.String("ip", ip),
			zap.String("path", path))
	}
}

// Logs returns the newest entries, newest first, capped at limit.
// A limit of zero or less returns everything.
func (l *Log) Logs(limit int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.entries)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]Entry, limit)
	for i := 0; i < limit; i++ {
		out[i] = l.entries[n-1-i]
	}
	return out
}

// Len returns the current entry count
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Stats aggregates counts by event type plus blocks seen in the last hour
func (l *Log) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{
		TotalEvents:  len(l.entries),
		EventsByType: make(map[string]int),
	}
	hourAgo := l.now().Add(-time.Hour)
	for _, e := range l.entries {
		stats.EventsByType[e.Type]++
		if (e.Type == EventBlockedIP || e.Type == EventRateLimitTriggered) && e.Timestamp.After(hourAgo) {
			stats.BlocksLastHour++
		}
	}
	return stats
}
