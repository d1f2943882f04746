package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ridepulse/risk_service/internal/domain/services/fraud"
	"github.com/ridepulse/risk_service/pkg/logger"
)

// FraudEnforcement runs the fraud-status check for the authenticated
// user. A restricted account is denied with 403 only when the request
// path matches the guarded action set; on any other path the result is
// attached to the context and the request passes through. Requests
// without an authenticated user skip enforcement entirely.
func FraudEnforcement(svc *fraud.Service, matcher fraud.ActionMatcher, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDStr := c.GetString("user_id")
		if userIDStr == "" {
			c.Next()
			return
		}
		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			c.Next()
			return
		}

		status := svc.CheckFraudStatus(c.Request.Context(), userID)
		c.Set("fraud_score", status.FraudScore)
		c.Set("fraud_restricted", status.IsRestricted)

		if status.IsRestricted && matcher.Matches(c.Request.URL.Path) {
			log.Warnw("Restricted account denied on guarded action",
				"request_id", c.GetString("request_id"),
				"user_id", userIDStr,
				"fraud_score", status.FraudScore,
				"path", c.Request.URL.Path,
			)
			c.JSON(http.StatusForbidden, gin.H{
				"error":       "Account restricted pending review",
				"fraud_score": status.FraudScore,
				"request_id":  c.GetString("request_id"),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
