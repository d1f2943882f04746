package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ridepulse/risk_service/pkg/metrics"
	"github.com/ridepulse/risk_service/pkg/seclog"
)

// probeEntry tracks 404 responses for one IP inside a rolling window
type probeEntry struct {
	count       int
	windowStart time.Time
}

// NotFoundProbeDetector watches completed responses and flags IPs that
// accumulate repeated 404s, a signature of endpoint enumeration. It
// only observes and logs, it never blocks.
type NotFoundProbeDetector struct {
	mu        sync.Mutex
	probes    map[string]*probeEntry
	threshold int
	window    time.Duration
	secLog    *seclog.Log
	now       func() time.Time
}

// NewNotFoundProbeDetector creates the detector. A threshold of zero or
// less falls back to 10 within a 5-minute window.
func NewNotFoundProbeDetector(threshold int, secLog *seclog.Log) *NotFoundProbeDetector {
	if threshold <= 0 {
		threshold = 10
	}
	return &NotFoundProbeDetector{
		probes:    make(map[string]*probeEntry),
		threshold: threshold,
		window:    5 * time.Minute,
		secLog:    secLog,
		now:       time.Now,
	}
}

// WithClock overrides the clock, for tests
func (d *NotFoundProbeDetector) WithClock(now func() time.Time) *NotFoundProbeDetector {
	d.now = now
	return d
}

// Handler returns the gin middleware. The counter resets when its
// window has elapsed; the probe event is recorded once per window, on
// the request that reaches the threshold.
func (d *NotFoundProbeDetector) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() != http.StatusNotFound {
			return
		}

		ip := c.ClientIP()
		now := d.now()

		d.mu.Lock()
		entry, ok := d.probes[ip]
		if !ok || now.Sub(entry.windowStart) > d.window {
			entry = &probeEntry{windowStart: now}
			d.probes[ip] = entry
		}
		entry.count++
		count := entry.count
		d.mu.Unlock()

		if count == d.threshold {
			d.secLog.Record(seclog.EventRepeated404Probe, ip, c.Request.UserAgent(), c.Request.URL.Path, c.Request.Method, map[string]string{
				"count_in_window": fmt.Sprintf("%d", count),
			})
			metrics.PerimeterEventsTotal.WithLabelValues(seclog.EventRepeated404Probe).Inc()
		}
	}
}

// Sweep drops entries whose window has elapsed, bounding map growth
func (d *NotFoundProbeDetector) Sweep() {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	for ip, entry := range d.probes {
		if now.Sub(entry.windowStart) > d.window {
			delete(d.probes, ip)
		}
	}
}

// StartSweep runs Sweep on the given interval until stop is closed
func (d *NotFoundProbeDetector) StartSweep(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.Sweep()
			case <-stop:
				return
			}
		}
	}()
}
