package adapters

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SMSConfig holds SMS service configuration
type SMSConfig struct {
	Provider    string // "twilio", "mock"
	APIKey      string
	APISecret   string
	FromNumber  string
	Environment string // "development", "staging", "production"
}

// SMSService implements SMS delivery for OTP codes
type SMSService struct {
	logger   *zap.Logger
	config   SMSConfig
	mockMode bool
}

// NewSMSService creates a new SMS service
func NewSMSService(logger *zap.Logger, config SMSConfig) *SMSService {
	mockMode := config.Environment == "development" || config.APIKey == ""

	return &SMSService{
		logger:   logger,
		config:   config,
		mockMode: mockMode,
	}
}

// SendOTP sends a one-time code via SMS
func (s *SMSService) SendOTP(ctx context.Context, phone, code string) error {
	s.logger.Info("Sending OTP SMS",
		zap.String("phone", s.maskPhone(phone)))

	if s.mockMode {
		s.logger.Info("OTP SMS sent successfully (MOCK)",
			zap.String("to", s.maskPhone(phone)),
			zap.String("message", fmt.Sprintf("Your RidePulse verification code is: %s", code)))
		return nil
	}

	// TODO: Implement Twilio integration
	// For now, we'll use mock mode in development
	s.logger.Warn("SMS service not implemented - using mock mode",
		zap.String("provider", s.config.Provider),
		zap.String("phone", s.maskPhone(phone)))

	return nil
}

// ValidatePhoneNumber validates phone number format (E.164)
func (s *SMSService) ValidatePhoneNumber(phone string) error {
	if phone == "" {
		return fmt.Errorf("phone number is required")
	}

	// Basic E.164 validation: starts with +, followed by 7-15 digits
	if len(phone) < 8 || len(phone) > 16 {
		return fmt.Errorf("phone number must be 8-16 characters")
	}

	if phone[0] != '+' {
		return fmt.Errorf("phone number must start with +")
	}

	// Check if remaining characters are digits
	for i := 1; i < len(phone); i++ {
		if phone[i] < '0' || phone[i] > '9' {
			return fmt.Errorf("phone number must contain only digits after +")
		}
	}

	return nil
}

// NormalizePhoneNumber normalizes phone number to E.164 format
func (s *SMSService) NormalizePhoneNumber(phone string) string {
	// Remove all non-digit characters except +
	normalized := "+"
	for _, char := range phone {
		if char >= '0' && char <= '9' {
			normalized += string(char)
		}
	}

	// If no + was found, add it
	if normalized == "+" {
		normalized = "+" + phone
	}

	return normalized
}

// maskPhone masks phone number for logging (e.g., +1234567890 -> +123****890)
func (s *SMSService) maskPhone(phone string) string {
	if len(phone) < 7 {
		return "****"
	}

	if len(phone) <= 4 {
		return phone[:2] + "****"
	}

	return phone[:3] + "****" + phone[len(phone)-3:]
}

// HealthCheck checks SMS service health
func (s *SMSService) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if s.mockMode {
		s.logger.Debug("SMS service health check (mock mode)")
		return nil
	}

	// TODO: Implement actual health check for Twilio
	s.logger.Debug("SMS service health check (not implemented)")
	return nil
}
