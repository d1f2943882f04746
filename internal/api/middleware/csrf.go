package middleware

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/ridepulse/risk_service/pkg/logger"
	"github.com/ridepulse/risk_service/pkg/metrics"
	"github.com/ridepulse/risk_service/pkg/seclog"
)

// CSRFProtection rejects state-changing requests whose Origin hostname
// does not match the request Host. Enforcement is production-only;
// development logs the mismatch and continues so local frontends on
// other ports keep working.
func CSRFProtection(isProduction bool, secLog *seclog.Log, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		origin := c.GetHeader("Origin")
		if origin == "" {
			// Non-browser clients send no Origin; the chain's JWT check
			// covers them.
			c.Next()
			return
		}

		parsed, err := url.Parse(origin)
		mismatch := err != nil || parsed.Hostname() == "" || parsed.Hostname() != hostnameOf(c.Request.Host)

		if !mismatch {
			c.Next()
			return
		}

		secLog.Record(seclog.EventCSRFRejected, c.ClientIP(), c.Request.UserAgent(), c.Request.URL.Path, c.Request.Method, map[string]string{
			"origin": origin,
			"host":   c.Request.Host,
		})

		if !isProduction {
			log.Warnw("Origin/Host mismatch permitted outside production",
				"request_id", c.GetString("request_id"),
				"origin", origin,
				"host", c.Request.Host,
			)
			c.Next()
			return
		}

		metrics.PerimeterEventsTotal.WithLabelValues(seclog.EventCSRFRejected).Inc()
		c.JSON(http.StatusForbidden, gin.H{
			"error":      "Cross-origin request rejected",
			"request_id": c.GetString("request_id"),
		})
		c.Abort()
	}
}

// hostnameOf strips an optional port from a Host header value
func hostnameOf(host string) string {
	u := url.URL{Host: host}
	if h := u.Hostname(); h != "" {
		return h
	}
	return host
}
