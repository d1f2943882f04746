// Package fraud maintains the per-user risk score and evaluates
// restriction status. Every lookup fails open: a risk-control outage
// degrades to "unprotected", never to "service down".
package fraud

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/ridepulse/risk_service/internal/domain/entities"
	"github.com/ridepulse/risk_service/internal/domain/repositories"
	"github.com/ridepulse/risk_service/pkg/circuitbreaker"
	"github.com/ridepulse/risk_service/pkg/logger"
	"github.com/ridepulse/risk_service/pkg/metrics"
)

// ThresholdSettingName is the settings-store key for the restriction threshold
const ThresholdSettingName = "fraud_score_threshold"

// Service is the fraud score engine
type Service struct {
	fraudRepo        repositories.FraudRepository
	settingsRepo     repositories.SettingsRepository
	settingsBreaker  *gobreaker.CircuitBreaker
	defaultThreshold int
	log              *logger.Logger
}

// NewService creates the fraud score engine
func NewService(fraudRepo repositories.FraudRepository, settingsRepo repositories.SettingsRepository, defaultThreshold int, log *logger.Logger) *Service {
	if defaultThreshold <= 0 {
		defaultThreshold = 70
	}
	return &Service{
		fraudRepo:        fraudRepo,
		settingsRepo:     settingsRepo,
		settingsBreaker:  circuitbreaker.New("settings-store", circuitbreaker.DefaultConfig()),
		defaultThreshold: defaultThreshold,
		log:              log,
	}
}

// Threshold returns the configured restriction threshold, falling back to
// the default when the settings store errors or the breaker is open.
func (s *Service) Threshold(ctx context.Context) int {
	value, err := s.settingsBreaker.Execute(func() (interface{}, error) {
		return s.settingsRepo.GetInt(ctx, ThresholdSettingName)
	})
	if err != nil {
		s.log.Warnw("Settings lookup failed, using default fraud threshold",
			"error", err,
			"default", s.defaultThreshold)
		return s.defaultThreshold
	}
	return value.(int)
}

// CheckFraudStatus evaluates whether a user's sensitive actions are
// allowed. A user with no score row is allowed with score 0; the check
// never creates rows. Dependency failures return the permissive default.
func (s *Service) CheckFraudStatus(ctx context.Context, userID uuid.UUID) entities.FraudStatus {
	score, err := s.fraudRepo.GetScore(ctx, userID)
	if err != nil {
		s.log.Warnw("Fraud score lookup failed, failing open",
			"error", err,
			"user_id", userID)
		metrics.GuardDecisionsTotal.WithLabelValues("fraud", "fail_open").Inc()
		return entities.FraudStatus{Allowed: true, FraudScore: 0, IsRestricted: false}
	}

	if score == nil {
		metrics.GuardDecisionsTotal.WithLabelValues("fraud", "allow").Inc()
		return entities.FraudStatus{Allowed: true, FraudScore: 0, IsRestricted: false}
	}

	restricted := score.IsRestricted || score.CurrentScore >= s.Threshold(ctx)
	status := entities.FraudStatus{
		Allowed:      !restricted,
		FraudScore:   score.CurrentScore,
		IsRestricted: restricted,
	}
	if restricted {
		status.Reason = "Account restricted pending review"
		if score.RestrictionReason != nil {
			status.Reason = *score.RestrictionReason
		}
		metrics.GuardDecisionsTotal.WithLabelValues("fraud", "deny").Inc()
	} else {
		metrics.GuardDecisionsTotal.WithLabelValues("fraud", "allow").Inc()
	}
	return status
}

// LogFraudEvent appends a fraud event and bumps the user's score when the
// event carries impact. Persistence errors are swallowed after logging;
// risk scoring must never break the primary user-facing operation.
func (s *Service) LogFraudEvent(ctx context.Context, userID uuid.UUID, userRole string, eventType entities.FraudEventType, description string, opts entities.FraudEventOptions) *entities.FraudScore {
	if opts.Severity == "" {
		opts.Severity = entities.SeverityLow
	}
	if opts.ScoreImpact < 0 {
		opts.ScoreImpact = 0
	}

	event := &entities.FraudEvent{
		UserID:              userID,
		UserRole:            userRole,
		EventType:           eventType,
		Severity:            opts.Severity,
		Description:         description,
		DeviceID:            opts.DeviceID,
		IPAddress:           opts.IPAddress,
		Latitude:            opts.Latitude,
		Longitude:           opts.Longitude,
		TripID:              opts.TripID,
		OrderID:             opts.OrderID,
		ParcelID:            opts.ParcelID,
		ScoreImpact:         opts.ScoreImpact,
		AutoRestrictApplied: opts.AutoRestrict,
		CreatedAt:           time.Now(),
	}

	updated, err := s.fraudRepo.AppendEvent(ctx, event, s.Threshold(ctx))
	if err != nil {
		s.log.Errorw("Failed to record fraud event, continuing",
			"error", err,
			"user_id", userID,
			"event_type", eventType)
		return nil
	}

	metrics.FraudEventsTotal.WithLabelValues(string(eventType), string(opts.Severity)).Inc()
	if updated != nil && updated.IsRestricted && updated.RestrictedAt != nil && updated.RestrictedAt.Equal(event.CreatedAt) {
		metrics.RestrictedUsersTotal.Inc()
		s.log.Warnw("User restricted by fraud engine",
			"user_id", userID,
			"score", updated.CurrentScore,
			"event_type", eventType)
	}

	return updated
}

// GetScore exposes the raw score row for introspection endpoints
func (s *Service) GetScore(ctx context.Context, userID uuid.UUID) (*entities.FraudScore, error) {
	return s.fraudRepo.GetScore(ctx, userID)
}
