package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ridepulse/risk_service/internal/domain/entities"
	"github.com/ridepulse/risk_service/internal/domain/services/otp"
	"github.com/ridepulse/risk_service/pkg/logger"
)

// OTPHandler serves the OTP request/verify endpoints behind the rate limiter
type OTPHandler struct {
	otpService *otp.Service
	logger     *logger.Logger
}

// NewOTPHandler creates a new OTP handler
func NewOTPHandler(otpService *otp.Service, logger *logger.Logger) *OTPHandler {
	return &OTPHandler{
		otpService: otpService,
		logger:     logger,
	}
}

// identifierFrom picks the identifier and its type from the request body.
// Phone wins when both are present.
func identifierFrom(phone, email string) (string, entities.IdentifierType) {
	if phone != "" {
		return phone, entities.IdentifierPhone
	}
	if email != "" {
		return email, entities.IdentifierEmail
	}
	return "", ""
}

// RequestOTP handles POST /v1/auth/otp/request
func (h *OTPHandler) RequestOTP(c *gin.Context) {
	var body entities.OTPRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	identifier, identifierType := identifierFrom(body.Phone, body.Email)
	if identifier == "" {
		respondBadRequest(c, "phone or email is required")
		return
	}

	info := deviceInfoFromRequest(c, body.DeviceID)
	info.DeviceHash = body.DeviceHash
	info.OS = body.OS
	info.Model = body.Model
	info.AppVersion = body.AppVersion

	result := h.otpService.CheckRateLimit(c.Request.Context(), identifier, identifierType, info)
	if !result.Allowed {
		c.Header("Retry-After", fmt.Sprintf("%d", result.RetryAfter))
		c.Header("X-RateLimit-Remaining-Minute", "0")
		c.Header("X-RateLimit-Remaining-Hour", "0")
		c.JSON(http.StatusTooManyRequests, entities.ErrorResponse{
			Error:      result.Reason,
			Code:       "OTP_RATE_LIMITED",
			RequestID:  getRequestID(c),
			RetryAfter: result.RetryAfter,
		})
		return
	}

	if err := h.otpService.IssueAndDeliver(c.Request.Context(), identifier, identifierType, info); err != nil {
		h.logger.Errorw("OTP delivery failed",
			"error", err,
			"request_id", getRequestID(c),
			"identifier_type", identifierType,
		)
		respondRiskError(c, err)
		return
	}

	c.Header("X-RateLimit-Remaining-Minute", fmt.Sprintf("%d", result.RemainingMinute-1))
	c.Header("X-RateLimit-Remaining-Hour", fmt.Sprintf("%d", result.RemainingHour-1))
	c.JSON(http.StatusOK, entities.OTPRequestResponse{
		Sent:            true,
		RemainingMinute: result.RemainingMinute - 1,
		RemainingHour:   result.RemainingHour - 1,
	})
}

// VerifyOTP handles POST /v1/auth/otp/verify
func (h *OTPHandler) VerifyOTP(c *gin.Context) {
	var body entities.OTPVerifyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	identifier, identifierType := identifierFrom(body.Phone, body.Email)
	if identifier == "" {
		respondBadRequest(c, "phone or email is required")
		return
	}

	info := deviceInfoFromRequest(c, body.DeviceID)

	verified := h.otpService.Verify(c.Request.Context(), identifier, identifierType, body.Code, info)
	if !verified {
		c.JSON(http.StatusUnauthorized, entities.OTPVerifyResponse{
			Verified: false,
			Reason:   "Invalid or expired code",
		})
		return
	}

	c.JSON(http.StatusOK, entities.OTPVerifyResponse{Verified: true})
}
