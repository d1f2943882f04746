// Package otp enforces per-identifier OTP send quotas against the
// persistent attempt ledger and issues timed blocks when a quota is
// exhausted.
package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/ridepulse/risk_service/internal/domain/entities"
	"github.com/ridepulse/risk_service/internal/domain/repositories"
	apperrors "github.com/ridepulse/risk_service/pkg/errors"
	"github.com/ridepulse/risk_service/pkg/logger"
	"github.com/ridepulse/risk_service/pkg/metrics"
	"github.com/ridepulse/risk_service/pkg/retry"
)

// Default quotas. Blocks last 15 minutes once a quota is exhausted.
const (
	DefaultMaxPerMinute  = 3
	DefaultMaxPerHour    = 8
	DefaultBlockDuration = 15 * time.Minute
)

// SMSSender delivers an OTP code over SMS
type SMSSender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// EmailSender delivers an OTP code over email
type EmailSender interface {
	SendOTP(ctx context.Context, email, code string) error
}

// Service is the OTP rate limiter and issuance flow
type Service struct {
	attempts      repositories.AttemptRepository
	codes         *CodeIssuer
	sms           SMSSender
	email         EmailSender
	maxPerMinute  int
	maxPerHour    int
	blockDuration time.Duration
	log           *logger.Logger
	now           func() time.Time
}

// NewService creates the OTP service
func NewService(attempts repositories.AttemptRepository, codes *CodeIssuer, sms SMSSender, email EmailSender, maxPerMinute, maxPerHour, blockMinutes int, log *logger.Logger) *Service {
	if maxPerMinute <= 0 {
		maxPerMinute = DefaultMaxPerMinute
	}
	if maxPerHour <= 0 {
		maxPerHour = DefaultMaxPerHour
	}
	blockDuration := time.Duration(blockMinutes) * time.Minute
	if blockDuration <= 0 {
		blockDuration = DefaultBlockDuration
	}
	return &Service{
		attempts:      attempts,
		codes:         codes,
		sms:           sms,
		email:         email,
		maxPerMinute:  maxPerMinute,
		maxPerHour:    maxPerHour,
		blockDuration: blockDuration,
		log:           log,
		now:           time.Now,
	}
}

// WithClock overrides the clock, for tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CheckRateLimit decides whether an OTP send is allowed for the
// identifier. An unexpired block short-circuits to deny with the stored
// blocked-until; otherwise sends in the trailing minute and hour are
// counted and a fresh 15-minute block written when a quota is reached.
// An empty identifier skips enforcement; ledger failures fail open.
func (s *Service) CheckRateLimit(ctx context.Context, identifier string, identifierType entities.IdentifierType, info entities.DeviceInfo) entities.RateLimitResult {
	if identifier == "" {
		// Not applicable, not an error
		return entities.RateLimitResult{Allowed: true, RemainingMinute: s.maxPerMinute, RemainingHour: s.maxPerHour}
	}

	now := s.now()

	block, err := s.attempts.FindActiveBlock(ctx, identifier, identifierType, entities.AttemptOTPRequest, now)
	if err != nil {
		s.log.Warnw("Block lookup failed, failing open",
			"error", err,
			"identifier", identifier)
		metrics.GuardDecisionsTotal.WithLabelValues("otp", "fail_open").Inc()
		return entities.RateLimitResult{Allowed: true, RemainingMinute: s.maxPerMinute, RemainingHour: s.maxPerHour}
	}
	if block != nil {
		reason := "Too many OTP requests"
		if block.BlockReason != nil {
			reason = *block.BlockReason
		}
		metrics.GuardDecisionsTotal.WithLabelValues("otp", "deny").Inc()
		return s.denied(*block.BlockedUntil, reason, now)
	}

	minuteCount, err := s.attempts.CountSentSince(ctx, identifier, identifierType, now.Add(-time.Minute))
	if err != nil {
		s.log.Warnw("Minute-window count failed, failing open", "error", err, "identifier", identifier)
		metrics.GuardDecisionsTotal.WithLabelValues("otp", "fail_open").Inc()
		return entities.RateLimitResult{Allowed: true, RemainingMinute: s.maxPerMinute, RemainingHour: s.maxPerHour}
	}
	hourCount, err := s.attempts.CountSentSince(ctx, identifier, identifierType, now.Add(-time.Hour))
	if err != nil {
		s.log.Warnw("Hour-window count failed, failing open", "error", err, "identifier", identifier)
		metrics.GuardDecisionsTotal.WithLabelValues("otp", "fail_open").Inc()
		return entities.RateLimitResult{Allowed: true, RemainingMinute: s.maxPerMinute, RemainingHour: s.maxPerHour}
	}

	if minuteCount >= s.maxPerMinute {
		metrics.OTPBlocksTotal.WithLabelValues("minute").Inc()
		return s.issueBlock(ctx, identifier, identifierType, info,
			fmt.Sprintf("Exceeded %d OTP requests per minute", s.maxPerMinute), now)
	}
	if hourCount >= s.maxPerHour {
		metrics.OTPBlocksTotal.WithLabelValues("hour").Inc()
		return s.issueBlock(ctx, identifier, identifierType, info,
			fmt.Sprintf("Exceeded %d OTP requests per hour", s.maxPerHour), now)
	}

	metrics.GuardDecisionsTotal.WithLabelValues("otp", "allow").Inc()
	return entities.RateLimitResult{
		Allowed:         true,
		RemainingMinute: s.maxPerMinute - minuteCount,
		RemainingHour:   s.maxPerHour - hourCount,
	}
}

// issueBlock writes exactly one blocked ledger row and returns the denial
func (s *Service) issueBlock(ctx context.Context, identifier string, identifierType entities.IdentifierType, info entities.DeviceInfo, reason string, now time.Time) entities.RateLimitResult {
	blockedUntil := now.Add(s.blockDuration)
	sent := false

	record := &entities.AttemptRecord{
		Identifier:     identifier,
		IdentifierType: identifierType,
		AttemptType:    entities.AttemptOTPRequest,
		Success:        false,
		OTPSent:        &sent,
		IsBlocked:      true,
		BlockedUntil:   &blockedUntil,
		BlockReason:    &reason,
		CreatedAt:      now,
	}
	applyDeviceInfo(record, info)

	if err := s.attempts.Create(ctx, record); err != nil {
		s.log.Errorw("Failed to persist OTP block",
			"error", err,
			"identifier", identifier)
	}

	metrics.GuardDecisionsTotal.WithLabelValues("otp", "deny").Inc()
	return s.denied(blockedUntil, reason, now)
}

func (s *Service) denied(blockedUntil time.Time, reason string, now time.Time) entities.RateLimitResult {
	retryAfter := int(blockedUntil.Sub(now).Seconds())
	if retryAfter < 0 {
		retryAfter = 0
	}
	return entities.RateLimitResult{
		Allowed:      false,
		BlockedUntil: &blockedUntil,
		RetryAfter:   retryAfter,
		Reason:       reason,
	}
}

// RecordOTPRequest appends the outcome of an actual OTP send. The write is
// fire-and-forget from the guard's perspective but completes before the
// response; failures are logged, never raised.
func (s *Service) RecordOTPRequest(ctx context.Context, identifier string, identifierType entities.IdentifierType, sent bool, failureReason string, info entities.DeviceInfo) {
	record := &entities.AttemptRecord{
		Identifier:     identifier,
		IdentifierType: identifierType,
		AttemptType:    entities.AttemptOTPRequest,
		Success:        sent,
		OTPSent:        &sent,
		CreatedAt:      s.now(),
	}
	if failureReason != "" {
		record.FailureReason = &failureReason
	}
	applyDeviceInfo(record, info)

	if err := s.attempts.Create(ctx, record); err != nil {
		s.log.Errorw("Failed to record OTP request", "error", err, "identifier", identifier)
	}
}

// RecordOTPVerification appends the outcome of an OTP verification attempt
func (s *Service) RecordOTPVerification(ctx context.Context, identifier string, identifierType entities.IdentifierType, verified bool, failureReason string, info entities.DeviceInfo) {
	record := &entities.AttemptRecord{
		Identifier:     identifier,
		IdentifierType: identifierType,
		AttemptType:    entities.AttemptOTPVerify,
		Success:        verified,
		OTPVerified:    &verified,
		CreatedAt:      s.now(),
	}
	if failureReason != "" {
		record.FailureReason = &failureReason
	}
	applyDeviceInfo(record, info)

	if err := s.attempts.Create(ctx, record); err != nil {
		s.log.Errorw("Failed to record OTP verification", "error", err, "identifier", identifier)
	}
}

// IssueAndDeliver generates a code for the identifier and delivers it over
// the channel the identifier type implies, recording the send outcome.
func (s *Service) IssueAndDeliver(ctx context.Context, identifier string, identifierType entities.IdentifierType, info entities.DeviceInfo) error {
	code, err := s.codes.Generate(identifier, s.now())
	if err != nil {
		s.RecordOTPRequest(ctx, identifier, identifierType, false, "code generation failed", info)
		return fmt.Errorf("failed to generate OTP code: %w", err)
	}

	var deliver func() error
	switch identifierType {
	case entities.IdentifierPhone:
		deliver = func() error { return s.sms.SendOTP(ctx, identifier, code) }
	case entities.IdentifierEmail:
		deliver = func() error { return s.email.SendOTP(ctx, identifier, code) }
	default:
		err = apperrors.New(apperrors.ErrCodeInvalidInput, fmt.Sprintf("unsupported delivery channel %q", identifierType))
		s.RecordOTPRequest(ctx, identifier, identifierType, false, err.Error(), info)
		return err
	}

	err = retry.WithExponentialBackoff(ctx, retry.DeliveryDefaults(), deliver, retry.IsTemporaryError)

	if err != nil {
		s.RecordOTPRequest(ctx, identifier, identifierType, false, err.Error(), info)
		return apperrors.Wrap(err, apperrors.ErrCodeDependencyFailure, "Failed to deliver verification code")
	}

	s.RecordOTPRequest(ctx, identifier, identifierType, true, "", info)
	return nil
}

// Verify checks a submitted code and records the attempt
func (s *Service) Verify(ctx context.Context, identifier string, identifierType entities.IdentifierType, code string, info entities.DeviceInfo) bool {
	ok := s.codes.Validate(identifier, code, s.now())
	reason := ""
	if !ok {
		reason = "invalid or expired code"
	}
	s.RecordOTPVerification(ctx, identifier, identifierType, ok, reason, info)
	return ok
}

func applyDeviceInfo(record *entities.AttemptRecord, info entities.DeviceInfo) {
	if info.DeviceID != "" {
		record.DeviceID = &info.DeviceID
	}
	if info.IPAddress != "" {
		record.IPAddress = &info.IPAddress
	}
	if info.UserAgent != "" {
		record.UserAgent = &info.UserAgent
	}
	if info.Country != "" {
		record.Country = &info.Country
	}
}
