package handlers

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ridepulse/risk_service/internal/domain/entities"
	"github.com/ridepulse/risk_service/pkg/errors"
)

// getUserID extracts and validates user ID from context
func getUserID(c *gin.Context) (uuid.UUID, error) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, fmt.Errorf("user ID not found in context")
	}

	switch v := userIDVal.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		return uuid.Parse(v)
	default:
		return uuid.Nil, fmt.Errorf("invalid user ID type in context")
	}
}

// getRequestID extracts request ID from context
func getRequestID(c *gin.Context) string {
	if reqID, exists := c.Get("request_id"); exists {
		if id, ok := reqID.(string); ok {
			return id
		}
	}
	return ""
}

// deviceInfoFromRequest collects the device metadata every risk check wants
func deviceInfoFromRequest(c *gin.Context, deviceID string) entities.DeviceInfo {
	return entities.DeviceInfo{
		DeviceID:  deviceID,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Country:   c.GetHeader("CF-IPCountry"),
	}
}

// respondRiskError maps a service error onto the standard error envelope. Plain
// errors fall back to a 500 so internals never leak into responses.
func respondRiskError(c *gin.Context, err error) {
	var riskErr *errors.RiskError
	if stderrors.As(err, &riskErr) {
		respondError(c, riskErr.StatusCode, string(riskErr.Code), riskErr.Message)
		return
	}
	respondInternalError(c, "An unexpected error occurred")
}

// respondError sends a standardized error response
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, entities.ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: getRequestID(c),
	})
}

// respondUnauthorized sends an unauthorized error
func respondUnauthorized(c *gin.Context, message string) {
	respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

// respondBadRequest sends a bad request error
func respondBadRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, "INVALID_REQUEST", message)
}

// respondInternalError sends an internal server error
func respondInternalError(c *gin.Context, message string) {
	respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", message)
}
