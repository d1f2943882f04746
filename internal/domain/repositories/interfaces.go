package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ridepulse/risk_service/internal/domain/entities"
)

// AttemptRepository is the persistent attempt ledger. Rows are append-only;
// counting is done over trailing windows with strict boundaries
// (created_at >= now - window).
type AttemptRepository interface {
	// Create appends one attempt row
	Create(ctx context.Context, record *entities.AttemptRecord) error

	// CountSentSince counts successful OTP sends (otp_sent = true) for the
	// identifier since the given instant
	CountSentSince(ctx context.Context, identifier string, identifierType entities.IdentifierType, since time.Time) (int, error)

	// FindActiveBlock returns the most recent unexpired block row for the
	// identifier, or nil when none exists
	FindActiveBlock(ctx context.Context, identifier string, identifierType entities.IdentifierType, attemptType entities.AttemptType, now time.Time) (*entities.AttemptRecord, error)

	// DeleteOlderThan drops ledger rows past the retention horizon
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// FraudRepository persists fraud scores and events. AppendEvent must be
// atomic: the event insert and the score upsert succeed or fail together,
// and concurrent appends for one user serialize on the score row.
type FraudRepository interface {
	// GetScore returns the user's score row, or nil when none exists
	GetScore(ctx context.Context, userID uuid.UUID) (*entities.FraudScore, error)

	// AppendEvent inserts the event and, when event.ScoreImpact > 0 or
	// autoRestrict is set, upserts the score row under the given threshold.
	// Returns the resulting score row (nil when no score change applied).
	AppendEvent(ctx context.Context, event *entities.FraudEvent, threshold int) (*entities.FraudScore, error)

	// LatestLocatedEvent returns the user's most recent event carrying
	// coordinates, or nil when none exists
	LatestLocatedEvent(ctx context.Context, userID uuid.UUID) (*entities.FraudEvent, error)
}

// DeviceRepository persists device fingerprints and the whitelist
type DeviceRepository interface {
	// GetByUserAndDevice returns the fingerprint row, or nil when unseen
	GetByUserAndDevice(ctx context.Context, userID uuid.UUID, deviceID string) (*entities.DeviceFingerprint, error)

	// Create inserts the first sighting of a device for a user
	Create(ctx context.Context, fp *entities.DeviceFingerprint) error

	// Touch refreshes last_seen_at / last_known_ip / app_version and
	// increments login_count for a recognized device
	Touch(ctx context.Context, userID uuid.UUID, deviceID, lastKnownIP, appVersion string, seenAt time.Time) error

	// CountActiveDevices counts the user's non-blocked devices, excluding
	// the given device ID
	CountActiveDevices(ctx context.Context, userID uuid.UUID, excludeDeviceID string) (int, error)

	// IsWhitelisted reports whether an active, unexpired whitelist entry
	// covers the (user, device) pair
	IsWhitelisted(ctx context.Context, userID uuid.UUID, deviceID string, now time.Time) (bool, error)

	// ListByUser returns all fingerprints for a user, newest sighting first
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.DeviceFingerprint, error)
}

// SettingsRepository is the platform settings store. The fraud threshold is
// the only setting this service reads.
type SettingsRepository interface {
	// GetInt returns the named numeric setting
	GetInt(ctx context.Context, name string) (int, error)
}
