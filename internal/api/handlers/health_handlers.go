package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/ridepulse/risk_service/pkg/health"
	"github.com/ridepulse/risk_service/pkg/logger"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checker *health.HealthChecker
	dbCheck *health.DatabaseChecker
	logger  *logger.Logger
}

// NewHealthHandler creates a new health handler. The redis client may be
// nil when the in-memory rate-window backend is configured.
func NewHealthHandler(db *sql.DB, redisClient redis.UniversalClient, log *logger.Logger) *HealthHandler {
	dbCheck := health.NewDatabaseChecker(db, 5*time.Second)

	checker := health.NewHealthChecker(10 * time.Second)
	checker.Register(dbCheck)
	if redisClient != nil {
		checker.Register(health.NewRedisChecker(redisClient, 3*time.Second))
	}

	return &HealthHandler{
		checker: checker,
		dbCheck: dbCheck,
		logger:  log,
	}
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    health.Status                 `json:"status"`
	Timestamp time.Time                     `json:"timestamp"`
	Uptime    time.Duration                 `json:"uptime"`
	Checks    map[string]health.CheckResult `json:"checks"`
}

var startTime = time.Now()

// Health performs comprehensive health checks
func (h *HealthHandler) Health(c *gin.Context) {
	status, checks := h.checker.Check(c.Request.Context())

	statusCode := http.StatusOK
	if status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Uptime:    time.Since(startTime),
		Checks:    checks,
	})
}

// Ready checks if the application is ready to serve traffic. Only the
// attempt ledger is load-bearing here; the guards fail open without redis.
func (h *HealthHandler) Ready(c *gin.Context) {
	result := h.dbCheck.Check(c.Request.Context())

	ready := result.Status == health.StatusHealthy
	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now(),
		"checks": map[string]interface{}{
			"database": result,
		},
	})
}

// Live checks if the application is alive
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now(),
		"uptime":    time.Since(startTime),
	})
}
