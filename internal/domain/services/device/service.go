// Package device validates device fingerprints against the per-user
// device cap and flags physically impossible movement between consecutive
// GPS samples.
package device

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ridepulse/risk_service/internal/domain/entities"
	"github.com/ridepulse/risk_service/internal/domain/repositories"
	"github.com/ridepulse/risk_service/pkg/geo"
	"github.com/ridepulse/risk_service/pkg/logger"
	"github.com/ridepulse/risk_service/pkg/metrics"
)

// Score impacts and bounds for the checks this package raises
const (
	MultiDeviceScoreImpact  = 10
	ImpossibleMoveImpact    = 25
	DefaultMaxActiveDevices = 2
	DefaultMaxJumpKm        = 5.0
	DefaultMinInterval      = 5 * time.Second
)

// FraudReporter is the slice of the fraud engine this checker needs
type FraudReporter interface {
	LogFraudEvent(ctx context.Context, userID uuid.UUID, userRole string, eventType entities.FraudEventType, description string, opts entities.FraudEventOptions) *entities.FraudScore
}

// Service is the device and location plausibility checker
type Service struct {
	deviceRepo  repositories.DeviceRepository
	fraudRepo   repositories.FraudRepository
	fraud       FraudReporter
	maxDevices  int
	maxJumpKm   float64
	minInterval time.Duration
	log         *logger.Logger
	now         func() time.Time
}

// NewService creates the device checker
func NewService(deviceRepo repositories.DeviceRepository, fraudRepo repositories.FraudRepository, fraud FraudReporter, maxDevices int, maxJumpKm float64, minInterval time.Duration, log *logger.Logger) *Service {
	if maxDevices <= 0 {
		maxDevices = DefaultMaxActiveDevices
	}
	if maxJumpKm <= 0 {
		maxJumpKm = DefaultMaxJumpKm
	}
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Service{
		deviceRepo:  deviceRepo,
		fraudRepo:   fraudRepo,
		fraud:       fraud,
		maxDevices:  maxDevices,
		maxJumpKm:   maxJumpKm,
		minInterval: minInterval,
		log:         log,
		now:         time.Now,
	}
}

// WithClock overrides the clock, for tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ValidateDeviceFingerprint records a device sighting. A known device is
// refreshed and denied only when explicitly blocked. An unknown device
// over the cap raises a multi_device_login event and a non-blocking
// warning; the fingerprint row is created regardless. Ledger failures
// fail open.
func (s *Service) ValidateDeviceFingerprint(ctx context.Context, userID uuid.UUID, userRole, deviceID string, info entities.DeviceInfo) entities.DeviceCheckResult {
	now := s.now()

	existing, err := s.deviceRepo.GetByUserAndDevice(ctx, userID, deviceID)
	if err != nil {
		s.log.Warnw("Device lookup failed, failing open",
			"error", err,
			"user_id", userID,
			"device_id", deviceID)
		metrics.GuardDecisionsTotal.WithLabelValues("device", "fail_open").Inc()
		return entities.DeviceCheckResult{Valid: true}
	}

	if existing != nil {
		if existing.IsBlocked {
			metrics.GuardDecisionsTotal.WithLabelValues("device", "deny").Inc()
			s.fraud.LogFraudEvent(ctx, userID, userRole, entities.EventBlockedDeviceLogin,
				"Login attempt from blocked device",
				entities.FraudEventOptions{
					Severity: entities.SeverityHigh,
					DeviceID: &deviceID,
				})
			return entities.DeviceCheckResult{Valid: false, Warning: "Device is blocked"}
		}
		if err := s.deviceRepo.Touch(ctx, userID, deviceID, info.IPAddress, info.AppVersion, now); err != nil {
			s.log.Warnw("Device touch failed", "error", err, "user_id", userID)
		}
		metrics.GuardDecisionsTotal.WithLabelValues("device", "allow").Inc()
		return entities.DeviceCheckResult{Valid: true}
	}

	warning := ""
	otherDevices, err := s.deviceRepo.CountActiveDevices(ctx, userID, deviceID)
	if err != nil {
		s.log.Warnw("Device count failed, skipping cap check", "error", err, "user_id", userID)
	} else if otherDevices >= s.maxDevices {
		whitelisted, wlErr := s.deviceRepo.IsWhitelisted(ctx, userID, deviceID, now)
		if wlErr != nil {
			s.log.Warnw("Whitelist lookup failed, skipping cap check", "error", wlErr, "user_id", userID)
		} else if !whitelisted {
			s.fraud.LogFraudEvent(ctx, userID, userRole, entities.EventMultiDeviceLogin,
				fmt.Sprintf("Login from device %d exceeding cap of %d", otherDevices+1, s.maxDevices),
				entities.FraudEventOptions{
					Severity:    entities.SeverityMedium,
					ScoreImpact: MultiDeviceScoreImpact,
					DeviceID:    &deviceID,
					IPAddress:   &info.IPAddress,
				})
			warning = "New device exceeds the allowed device count for this account"
		}
	}

	fp := &entities.DeviceFingerprint{
		UserID:      userID,
		UserRole:    userRole,
		DeviceID:    deviceID,
		DeviceHash:  info.DeviceHash,
		OS:          info.OS,
		Model:       info.Model,
		AppVersion:  info.AppVersion,
		IPAddress:   info.IPAddress,
		LastKnownIP: info.IPAddress,
		FirstSeenAt: now,
		LastSeenAt:  now,
		LoginCount:  1,
	}
	if err := s.deviceRepo.Create(ctx, fp); err != nil {
		s.log.Warnw("Device fingerprint create failed", "error", err, "user_id", userID)
	}

	metrics.GuardDecisionsTotal.WithLabelValues("device", "allow").Inc()
	return entities.DeviceCheckResult{Valid: true, IsNewDevice: true, Warning: warning}
}

// ValidateGPSLocation compares a new GPS sample to the user's most recent
// located fraud event. Covering more than the jump bound in under the
// minimum interval is an impossible movement: a high-severity event with
// auto-restriction is raised and the sample rejected. This is a pairwise
// heuristic, not a trajectory model.
func (s *Service) ValidateGPSLocation(ctx context.Context, userID uuid.UUID, userRole string, lat, lng float64, opts entities.FraudEventOptions) entities.LocationCheckResult {
	last, err := s.fraudRepo.LatestLocatedEvent(ctx, userID)
	if err != nil {
		s.log.Warnw("Located-event lookup failed, failing open",
			"error", err,
			"user_id", userID)
		metrics.GuardDecisionsTotal.WithLabelValues("gps", "fail_open").Inc()
		return entities.LocationCheckResult{Valid: true}
	}
	if last == nil || last.Latitude == nil || last.Longitude == nil {
		metrics.GuardDecisionsTotal.WithLabelValues("gps", "allow").Inc()
		return entities.LocationCheckResult{Valid: true}
	}

	distanceKm := geo.HaversineKm(*last.Latitude, *last.Longitude, lat, lng)
	elapsed := s.now().Sub(last.CreatedAt)

	if distanceKm > s.maxJumpKm && elapsed < s.minInterval {
		opts.Severity = entities.SeverityHigh
		opts.ScoreImpact = ImpossibleMoveImpact
		opts.AutoRestrict = true
		opts.Latitude = &lat
		opts.Longitude = &lng

		s.fraud.LogFraudEvent(ctx, userID, userRole, entities.EventImpossibleMovement,
			fmt.Sprintf("Moved %.1f km in %.1f seconds", distanceKm, elapsed.Seconds()),
			opts)

		metrics.GuardDecisionsTotal.WithLabelValues("gps", "deny").Inc()
		return entities.LocationCheckResult{
			Valid:  false,
			Reason: "Location change is physically impossible",
		}
	}

	metrics.GuardDecisionsTotal.WithLabelValues("gps", "allow").Inc()
	return entities.LocationCheckResult{Valid: true}
}

// ListDevices exposes a user's fingerprints for introspection endpoints
func (s *Service) ListDevices(ctx context.Context, userID uuid.UUID) ([]*entities.DeviceFingerprint, error) {
	return s.deviceRepo.ListByUser(ctx, userID)
}
