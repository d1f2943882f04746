package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ridepulse/risk_service/internal/domain/entities"
	"github.com/ridepulse/risk_service/pkg/logger"
	"github.com/ridepulse/risk_service/pkg/metrics"
	"github.com/ridepulse/risk_service/pkg/seclog"
)

// SecurityHandler exposes the in-memory security log and accepts
// browser CSP violation reports.
type SecurityHandler struct {
	secLog *seclog.Log
	logger *logger.Logger
}

// NewSecurityHandler creates a new security handler
func NewSecurityHandler(secLog *seclog.Log, logger *logger.Logger) *SecurityHandler {
	return &SecurityHandler{
		secLog: secLog,
		logger: logger,
	}
}

// cspReport is the body browsers POST on a CSP violation. Both the
// legacy wrapped format and the flat Reporting-API format appear in the
// wild, so all fields are optional.
type cspReport struct {
	Report struct {
		DocumentURI        string `json:"document-uri"`
		ViolatedDirective  string `json:"violated-directive"`
		EffectiveDirective string `json:"effective-directive"`
		BlockedURI         string `json:"blocked-uri"`
		SourceFile         string `json:"source-file"`
		LineNumber         int    `json:"line-number"`
	} `json:"csp-report"`
}

// GetSecurityLogs handles GET /v1/admin/security/logs
func (h *SecurityHandler) GetSecurityLogs(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondBadRequest(c, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  h.secLog.Logs(limit),
		"total": h.secLog.Len(),
	})
}

// GetSecurityStats handles GET /v1/admin/security/stats
func (h *SecurityHandler) GetSecurityStats(c *gin.Context) {
	stats := h.secLog.Stats()
	c.JSON(http.StatusOK, entities.SecurityStatsResponse{
		TotalEvents:    stats.TotalEvents,
		EventsByType:   stats.EventsByType,
		BlocksLastHour: stats.BlocksLastHour,
		GeneratedAt:    time.Now(),
	})
}

// CSPReport handles POST /v1/security/csp-report. It always answers 204;
// a reporting browser must never receive an error back.
func (h *SecurityHandler) CSPReport(c *gin.Context) {
	var report cspReport
	if err := c.ShouldBindJSON(&report); err != nil {
		h.logger.Debugw("Unparsable CSP report", "error", err)
		c.Status(http.StatusNoContent)
		return
	}

	h.secLog.Record(seclog.EventCSPViolation, c.ClientIP(), c.Request.UserAgent(), c.Request.URL.Path, c.Request.Method, map[string]string{
		"document_uri":       report.Report.DocumentURI,
		"violated_directive": report.Report.ViolatedDirective,
		"blocked_uri":        report.Report.BlockedURI,
	})
	metrics.PerimeterEventsTotal.WithLabelValues(seclog.EventCSPViolation).Inc()

	c.Status(http.StatusNoContent)
}
