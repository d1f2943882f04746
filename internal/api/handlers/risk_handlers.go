package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ridepulse/risk_service/internal/domain/entities"
	"github.com/ridepulse/risk_service/internal/domain/services/device"
	"github.com/ridepulse/risk_service/internal/domain/services/fraud"
	"github.com/ridepulse/risk_service/pkg/logger"
)

// RiskHandler exposes the risk-introspection endpoints: fraud status,
// device validation, and GPS plausibility checks.
type RiskHandler struct {
	fraudService  *fraud.Service
	deviceService *device.Service
	logger        *logger.Logger
}

// NewRiskHandler creates a new risk handler
func NewRiskHandler(fraudService *fraud.Service, deviceService *device.Service, logger *logger.Logger) *RiskHandler {
	return &RiskHandler{
		fraudService:  fraudService,
		deviceService: deviceService,
		logger:        logger,
	}
}

// GetFraudStatus handles GET /v1/risk/fraud/status
func (h *RiskHandler) GetFraudStatus(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "Authentication required")
		return
	}

	status := h.fraudService.CheckFraudStatus(c.Request.Context(), userID)
	c.JSON(http.StatusOK, status)
}

// GetUserFraudProfile handles GET /v1/admin/risk/users/:id/fraud. Admin
// lookup of another account's current score and restriction state.
func (h *RiskHandler) GetUserFraudProfile(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_INPUT", "Invalid user id")
		return
	}

	status := h.fraudService.CheckFraudStatus(c.Request.Context(), userID)
	c.JSON(http.StatusOK, status)
}

// AuthorizeAction acks a guarded action that passed the fraud gate. The
// enforcement middleware has already denied restricted accounts; anything
// reaching this handler is cleared to proceed.
func (h *RiskHandler) AuthorizeAction(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"authorized": true,
		"fraudScore": c.GetInt("fraud_score"),
		"restricted": c.GetBool("fraud_restricted"),
		"request_id": getRequestID(c),
	})
}

// deviceValidateBody is the payload of POST /v1/risk/device/validate
type deviceValidateBody struct {
	DeviceID   string `json:"deviceId" binding:"required"`
	DeviceHash string `json:"deviceHash"`
	OS         string `json:"os"`
	Model      string `json:"model"`
	AppVersion string `json:"appVersion"`
}

// ValidateDevice handles POST /v1/risk/device/validate
func (h *RiskHandler) ValidateDevice(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "Authentication required")
		return
	}

	var body deviceValidateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "deviceId is required")
		return
	}

	info := deviceInfoFromRequest(c, body.DeviceID)
	info.DeviceHash = body.DeviceHash
	info.OS = body.OS
	info.Model = body.Model
	info.AppVersion = body.AppVersion

	result := h.deviceService.ValidateDeviceFingerprint(c.Request.Context(), userID, c.GetString("user_role"), body.DeviceID, info)
	if !result.Valid {
		c.JSON(http.StatusForbidden, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CheckLocation handles POST /v1/risk/location/check
func (h *RiskHandler) CheckLocation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "Authentication required")
		return
	}

	var body entities.GPSCheckBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "latitude and longitude are required")
		return
	}

	opts := entities.FraudEventOptions{}
	if deviceID := c.GetString("device_id"); deviceID != "" {
		opts.DeviceID = &deviceID
	}
	ip := c.ClientIP()
	opts.IPAddress = &ip
	if body.TripID != "" {
		if tripID, err := uuid.Parse(body.TripID); err == nil {
			opts.TripID = &tripID
		}
	}

	result := h.deviceService.ValidateGPSLocation(c.Request.Context(), userID, c.GetString("user_role"), body.Latitude, body.Longitude, opts)
	if !result.Valid {
		c.JSON(http.StatusForbidden, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListDevices handles GET /v1/risk/devices
func (h *RiskHandler) ListDevices(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondUnauthorized(c, "Authentication required")
		return
	}

	devices, err := h.deviceService.ListDevices(c.Request.Context(), userID)
	if err != nil {
		h.logger.Errorw("Failed to list devices",
			"error", err,
			"request_id", getRequestID(c),
			"user_id", userID,
		)
		respondInternalError(c, "Failed to list devices")
		return
	}

	c.JSON(http.StatusOK, gin.H{"devices": devices})
}
