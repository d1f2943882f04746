package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/ridepulse/risk_service/pkg/seclog"
)

func newProbeRouter(t *testing.T) (*gin.Engine, *NotFoundProbeDetector, *seclog.Log, *time.Time) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	secLog := seclog.New(1000, nil)
	detector := NewNotFoundProbeDetector(10, secLog).WithClock(func() time.Time { return current })

	r := gin.New()
	r.Use(detector.Handler())
	r.GET("/known", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, detector, secLog, &current
}

func probeRequest(r *gin.Engine, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-Forwarded-For", ip)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestProbeEventRecordedAtThreshold(t *testing.T) {
	r, _, secLog, _ := newProbeRouter(t)

	for i := 0; i < 9; i++ {
		probeRequest(r, fmt.Sprintf("/wp-admin/%d", i), "41.58.0.9")
	}
	assert.Zero(t, secLog.Len())

	probeRequest(r, "/.env", "41.58.0.9")
	assert.Equal(t, 1, secLog.Len())

	entries := secLog.Logs(1)
	assert.Equal(t, seclog.EventRepeated404Probe, entries[0].Type)
	assert.Equal(t, "/.env", entries[0].Path)
}

func TestProbeEventRecordedOncePerWindow(t *testing.T) {
	r, _, secLog, _ := newProbeRouter(t)

	for i := 0; i < 25; i++ {
		probeRequest(r, "/phpmyadmin", "41.58.0.9")
	}
	assert.Equal(t, 1, secLog.Len())
}

func TestProbeWindowResets(t *testing.T) {
	r, _, secLog, clock := newProbeRouter(t)

	for i := 0; i < 9; i++ {
		probeRequest(r, "/backup.sql", "41.58.0.9")
	}

	*clock = clock.Add(6 * time.Minute)
	probeRequest(r, "/backup.sql", "41.58.0.9")
	assert.Zero(t, secLog.Len(), "count restarts in a fresh window")
}

func TestSuccessfulResponsesNotCounted(t *testing.T) {
	r, _, secLog, _ := newProbeRouter(t)

	for i := 0; i < 20; i++ {
		w := probeRequest(r, "/known", "41.58.0.9")
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.Zero(t, secLog.Len())
}

func TestProbeCountsPerIP(t *testing.T) {
	r, _, secLog, _ := newProbeRouter(t)

	for i := 0; i < 9; i++ {
		probeRequest(r, "/admin", "41.58.0.9")
		probeRequest(r, "/admin", "102.89.32.17")
	}
	assert.Zero(t, secLog.Len())

	probeRequest(r, "/admin", "41.58.0.9")
	assert.Equal(t, 1, secLog.Len())
}

func TestSweepDropsStaleEntries(t *testing.T) {
	r, detector, _, clock := newProbeRouter(t)

	probeRequest(r, "/admin", "41.58.0.9")
	*clock = clock.Add(6 * time.Minute)
	detector.Sweep()

	detector.mu.Lock()
	defer detector.mu.Unlock()
	assert.Empty(t, detector.probes)
}
