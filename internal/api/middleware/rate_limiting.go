package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ridepulse/risk_service/internal/infrastructure/config"
	"github.com/ridepulse/risk_service/pkg/logger"
	"github.com/ridepulse/risk_service/pkg/metrics"
	"github.com/ridepulse/risk_service/pkg/ratewindow"
	"github.com/ridepulse/risk_service/pkg/seclog"
)

// botSignatures are lowercase User-Agent substrings of common scrapers
// and scanners. Matching requests are blocked outright in production.
var botSignatures = []string{
	"curl", "wget", "python-requests", "scrapy", "httpclient",
	"go-http-client", "java/", "libwww", "sqlmap", "nikto", "nmap",
	"masscan", "zgrab", "headlesschrome", "phantomjs", "selenium",
	"bot", "crawler", "spider",
}

func matchesBotSignature(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	if ua == "" {
		return true
	}
	for _, sig := range botSignatures {
		if strings.Contains(ua, sig) {
			return true
		}
	}
	return false
}

// LandingRateLimiter protects the public landing routes with a per-IP
// sliding window. Requests from bot-signature user agents skip the
// window logic and are denied immediately in production.
type LandingRateLimiter struct {
	window        ratewindow.RateWindow
	secLog        *seclog.Log
	log           *logger.Logger
	landingRoutes map[string]bool
	maxRequests   int
	blockDuration time.Duration
	isProduction  bool
}

// NewLandingRateLimiter creates the perimeter limiter from config
func NewLandingRateLimiter(cfg *config.Config, window ratewindow.RateWindow, secLog *seclog.Log, log *logger.Logger) *LandingRateLimiter {
	routes := make(map[string]bool, len(cfg.Perimeter.LandingRoutes))
	for _, r := range cfg.Perimeter.LandingRoutes {
		routes[r] = true
	}
	return &LandingRateLimiter{
		window:        window,
		secLog:        secLog,
		log:           log,
		landingRoutes: routes,
		maxRequests:   cfg.Perimeter.MaxRequestsPerWindow,
		blockDuration: time.Duration(cfg.Perimeter.BlockMinutes) * time.Minute,
		isProduction:  cfg.IsProduction(),
	}
}

// Handler returns the gin middleware. Non-landing routes pass through
// untouched; window state is never consulted for them.
func (rl *LandingRateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !rl.landingRoutes[path] {
			c.Next()
			return
		}

		ip := c.ClientIP()
		userAgent := c.Request.UserAgent()

		if matchesBotSignature(userAgent) {
			rl.secLog.Record(seclog.EventBotDetected, ip, userAgent, path, c.Request.Method, map[string]string{
				"signature_match": "true",
			})
			if rl.isProduction {
				metrics.PerimeterEventsTotal.WithLabelValues(seclog.EventBotDetected).Inc()
				c.JSON(http.StatusForbidden, gin.H{
					"error":      "Access denied",
					"request_id": c.GetString("request_id"),
				})
				c.Abort()
				return
			}
			c.Next()
			return
		}

		ctx := c.Request.Context()

		blocked, remaining, err := rl.window.IsBlocked(ctx, ip)
		if err != nil {
			rl.log.Warnw("Rate window lookup failed, failing open", "error", err, "ip", ip)
			metrics.GuardDecisionsTotal.WithLabelValues("perimeter", "fail_open").Inc()
			c.Next()
			return
		}
		if blocked {
			rl.deny(c, ip, userAgent, path, remaining)
			return
		}

		count, err := rl.window.Increment(ctx, ip)
		if err != nil {
			rl.log.Warnw("Rate window increment failed, failing open", "error", err, "ip", ip)
			metrics.GuardDecisionsTotal.WithLabelValues("perimeter", "fail_open").Inc()
			c.Next()
			return
		}

		if count > rl.maxRequests {
			if err := rl.window.Block(ctx, ip, rl.blockDuration); err != nil {
				rl.log.Errorw("Failed to record IP block", "error", err, "ip", ip)
			}
			rl.secLog.Record(seclog.EventRateLimitTriggered, ip, userAgent, path, c.Request.Method, map[string]string{
				"count": fmt.Sprintf("%d", count),
			})
			rl.secLog.Record(seclog.EventBlockedIP, ip, userAgent, path, c.Request.Method, map[string]string{
				"block_minutes": fmt.Sprintf("%.0f", rl.blockDuration.Minutes()),
			})
			metrics.PerimeterEventsTotal.WithLabelValues(seclog.EventRateLimitTriggered).Inc()
			rl.deny(c, ip, userAgent, path, rl.blockDuration)
			return
		}

		metrics.GuardDecisionsTotal.WithLabelValues("perimeter", "allow").Inc()
		c.Next()
	}
}

func (rl *LandingRateLimiter) deny(c *gin.Context, ip, userAgent, path string, retryAfter time.Duration) {
	seconds := int(retryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	metrics.GuardDecisionsTotal.WithLabelValues("perimeter", "deny").Inc()
	c.Header("Retry-After", fmt.Sprintf("%d", seconds))
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":       "Too many requests",
		"retry_after": seconds,
		"request_id":  c.GetString("request_id"),
	})
	c.Abort()
}
