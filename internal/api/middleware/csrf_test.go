package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/ridepulse/risk_service/pkg/logger"
	"github.com/ridepulse/risk_service/pkg/seclog"
)

func newCSRFRouter(t *testing.T, isProduction bool) (*gin.Engine, *seclog.Log) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	secLog := seclog.New(1000, nil)
	r := gin.New()
	r.Use(CSRFProtection(isProduction, secLog, logger.New("error", "development")))
	r.POST("/api/v1/auth/otp/request", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/risk/fraud/status", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, secLog
}

func csrfRequest(r *gin.Engine, method, path, origin, host string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	req.Host = host
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMatchingOriginAllowed(t *testing.T) {
	r, secLog := newCSRFRouter(t, true)

	w := csrfRequest(r, http.MethodPost, "/api/v1/auth/otp/request", "https://app.ridepulse.africa", "app.ridepulse.africa")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, secLog.Len())
}

func TestMatchingOriginIgnoresPort(t *testing.T) {
	r, _ := newCSRFRouter(t, true)

	w := csrfRequest(r, http.MethodPost, "/api/v1/auth/otp/request", "https://app.ridepulse.africa:443", "app.ridepulse.africa:8080")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMismatchedOriginRejectedInProduction(t *testing.T) {
	r, secLog := newCSRFRouter(t, true)

	w := csrfRequest(r, http.MethodPost, "/api/v1/auth/otp/request", "https://evil.example.com", "app.ridepulse.africa")
	assert.Equal(t, http.StatusForbidden, w.Code)

	stats := secLog.Stats()
	assert.Equal(t, 1, stats.EventsByType[seclog.EventCSRFRejected])
}

func TestMismatchedOriginLoggedButAllowedInDevelopment(t *testing.T) {
	r, secLog := newCSRFRouter(t, false)

	w := csrfRequest(r, http.MethodPost, "/api/v1/auth/otp/request", "http://localhost:3000", "localhost:8080")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, secLog.Len(), "same hostname on a different port is not a mismatch")

	w = csrfRequest(r, http.MethodPost, "/api/v1/auth/otp/request", "https://evil.example.com", "localhost:8080")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, secLog.Len())
}

func TestMissingOriginAllowed(t *testing.T) {
	r, _ := newCSRFRouter(t, true)

	w := csrfRequest(r, http.MethodPost, "/api/v1/auth/otp/request", "", "app.ridepulse.africa")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSafeMethodsSkipOriginCheck(t *testing.T) {
	r, secLog := newCSRFRouter(t, true)

	w := csrfRequest(r, http.MethodGet, "/api/v1/risk/fraud/status", "https://evil.example.com", "app.ridepulse.africa")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, secLog.Len())
}

func TestMalformedOriginRejectedInProduction(t *testing.T) {
	r, _ := newCSRFRouter(t, true)

	w := csrfRequest(r, http.MethodPost, "/api/v1/auth/otp/request", "not a url", "app.ridepulse.africa")
	assert.Equal(t, http.StatusForbidden, w.Code)
}
