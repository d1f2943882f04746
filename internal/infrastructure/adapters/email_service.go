package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// EmailServiceConfig holds email service configuration
type EmailServiceConfig struct {
	APIKey      string
	FromEmail   string
	FromName    string
	Environment string // "development", "staging", "production"
}

// EmailService implements email delivery for OTP codes
type EmailService struct {
	logger   *zap.Logger
	config   EmailServiceConfig
	client   *sendgrid.Client
	mockMode bool // Set to true in development/testing
}

// NewEmailService creates a new email service
func NewEmailService(logger *zap.Logger, config EmailServiceConfig) *EmailService {
	mockMode := config.Environment == "development" || config.APIKey == ""

	var client *sendgrid.Client
	if !mockMode {
		client = sendgrid.NewSendClient(config.APIKey)
	}

	return &EmailService{
		logger:   logger,
		config:   config,
		client:   client,
		mockMode: mockMode,
	}
}

// sendEmail is a helper method to send emails via SendGrid or mock
func (e *EmailService) sendEmail(ctx context.Context, to, subject, htmlContent, textContent string) error {
	if e.mockMode {
		e.logger.Info("Email sent successfully (MOCK)",
			zap.String("to", to),
			zap.String("subject", subject))
		return nil
	}

	from := mail.NewEmail(e.config.FromName, e.config.FromEmail)
	toEmail := mail.NewEmail("", to)
	message := mail.NewSingleEmail(from, subject, toEmail, textContent, htmlContent)

	// Add timeout to context
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	response, err := e.client.SendWithContext(ctxWithTimeout, message)
	if err != nil {
		e.logger.Error("Failed to send email",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	if response.StatusCode >= 400 {
		e.logger.Error("Email service returned error",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Int("status_code", response.StatusCode),
			zap.String("response_body", response.Body))
		return fmt.Errorf("email service error: status %d, body: %s", response.StatusCode, response.Body)
	}

	e.logger.Info("Email sent successfully",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("status_code", response.StatusCode))

	return nil
}

// SendOTP sends a one-time code via email
func (e *EmailService) SendOTP(ctx context.Context, email, code string) error {
	e.logger.Info("Sending OTP email",
		zap.String("email", email))

	subject := "Your RidePulse Verification Code"

	htmlContent := fmt.Sprintf(`
		<!DOCTYPE html>
		<html>
		<head>
			<title>Verification Code</title>
		</head>
		<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
			<div style="background-color: #f8f9fa; padding: 30px; border-radius: 8px; text-align: center;">
				<h1 style="color: #333; margin-bottom: 20px;">Your Verification Code</h1>
				<p style="color: #666; font-size: 16px; line-height: 1.5; margin-bottom: 30px;">
					Use the following code to complete your sign-in. The code expires in 5 minutes.
				</p>
				<div style="background-color: white; padding: 20px; border-radius: 8px; margin: 20px 0;">
					<span style="font-size: 32px; font-weight: bold; letter-spacing: 8px; color: #333;">%s</span>
				</div>
				<p style="color: #888; font-size: 12px; margin-top: 20px;">
					If you did not request this code, please ignore this email.
					Never share this code with anyone, including RidePulse staff.
				</p>
			</div>
		</body>
		</html>
	`, code)

	textContent := fmt.Sprintf(`
Your RidePulse Verification Code

Use the following code to complete your sign-in: %s

The code expires in 5 minutes.

If you did not request this code, please ignore this email.
Never share this code with anyone, including RidePulse staff.

Best regards,
The RidePulse Team
	`, code)

	return e.sendEmail(ctx, email, subject, htmlContent, textContent)
}

// HealthCheck checks email service health
func (e *EmailService) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if e.mockMode {
		e.logger.Debug("Email service health check (mock mode)")
		return nil
	}

	// SendGrid has no lightweight ping endpoint; a configured client is
	// considered healthy.
	e.logger.Debug("Email service health check")
	return nil
}
