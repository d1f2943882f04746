package entities

import (
	"time"

	"github.com/google/uuid"
)

// IdentifierType classifies the subject of an attempt record
type IdentifierType string

const (
	IdentifierPhone    IdentifierType = "phone"
	IdentifierEmail    IdentifierType = "email"
	IdentifierDeviceID IdentifierType = "device_id"
	IdentifierIP       IdentifierType = "ip"
)

// AttemptType classifies a security-relevant attempt
type AttemptType string

const (
	AttemptOTPRequest AttemptType = "otp_request"
	AttemptOTPVerify  AttemptType = "otp_verify"
	AttemptLogin      AttemptType = "login"
)

// AttemptRecord is one row of the persistent attempt ledger. Rows are
// append-only; a blocked row with a future blocked_until is authoritative
// over any recomputed window count.
type AttemptRecord struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	Identifier     string         `json:"identifier" db:"identifier"`
	IdentifierType IdentifierType `json:"identifier_type" db:"identifier_type"`
	AttemptType    AttemptType    `json:"attempt_type" db:"attempt_type"`
	Success        bool           `json:"success" db:"success"`
	OTPSent        *bool          `json:"otp_sent,omitempty" db:"otp_sent"`
	OTPVerified    *bool          `json:"otp_verified,omitempty" db:"otp_verified"`
	FailureReason  *string        `json:"failure_reason,omitempty" db:"failure_reason"`
	DeviceID       *string        `json:"device_id,omitempty" db:"device_id"`
	IPAddress      *string        `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent      *string        `json:"user_agent,omitempty" db:"user_agent"`
	Country        *string        `json:"country,omitempty" db:"country"`
	IsBlocked      bool           `json:"is_blocked" db:"is_blocked"`
	BlockedUntil   *time.Time     `json:"blocked_until,omitempty" db:"blocked_until"`
	BlockReason    *string        `json:"block_reason,omitempty" db:"block_reason"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// DeviceInfo carries request-side device metadata into the ledger and
// the fingerprint checker.
type DeviceInfo struct {
	DeviceID   string `json:"device_id"`
	DeviceHash string `json:"device_hash"`
	OS         string `json:"os"`
	Model      string `json:"model"`
	AppVersion string `json:"app_version"`
	IPAddress  string `json:"ip_address"`
	UserAgent  string `json:"user_agent"`
	Country    string `json:"country"`
}

// RateLimitResult is the outcome of an OTP rate-limit check
type RateLimitResult struct {
	Allowed         bool       `json:"allowed"`
	RemainingMinute int        `json:"remainingMinute"`
	RemainingHour   int        `json:"remainingHour"`
	BlockedUntil    *time.Time `json:"blockedUntil,omitempty"`
	RetryAfter      int        `json:"retryAfter,omitempty"` // seconds
	Reason          string     `json:"reason,omitempty"`
}

// FraudScore is the running 0-100 risk score for a user. One row per user,
// created lazily on the first fraud event.
type FraudScore struct {
	ID                      uuid.UUID  `json:"id" db:"id"`
	UserID                  uuid.UUID  `json:"user_id" db:"user_id"`
	PreviousScore           int        `json:"previous_score" db:"previous_score"`
	CurrentScore            int        `json:"current_score" db:"current_score"`
	PeakScore               int        `json:"peak_score" db:"peak_score"`
	IsRestricted            bool       `json:"is_restricted" db:"is_restricted"`
	RestrictedAt            *time.Time `json:"restricted_at,omitempty" db:"restricted_at"`
	RestrictionReason       *string    `json:"restriction_reason,omitempty" db:"restriction_reason"`
	RequiresManualClearance bool       `json:"requires_manual_clearance" db:"requires_manual_clearance"`
	LastCalculatedAt        time.Time  `json:"last_calculated_at" db:"last_calculated_at"`
}

// FraudEventType enumerates the discrete suspicious occurrences the
// platform recognizes.
type FraudEventType string

const (
	EventMultiDeviceLogin   FraudEventType = "multi_device_login"
	EventImpossibleMovement FraudEventType = "impossible_movement"
	EventOTPAbuse           FraudEventType = "otp_abuse"
	EventBlockedDeviceLogin FraudEventType = "blocked_device_login"
)

// FraudSeverity grades a fraud event
type FraudSeverity string

const (
	SeverityLow      FraudSeverity = "low"
	SeverityMedium   FraudSeverity = "medium"
	SeverityHigh     FraudSeverity = "high"
	SeverityCritical FraudSeverity = "critical"
)

// FraudEvent is an append-only record of one suspicious occurrence.
// An event with ScoreImpact > 0 atomically bumps the user's FraudScore.
type FraudEvent struct {
	ID                  uuid.UUID      `json:"id" db:"id"`
	UserID              uuid.UUID      `json:"user_id" db:"user_id"`
	UserRole            string         `json:"user_role" db:"user_role"`
	EventType           FraudEventType `json:"event_type" db:"event_type"`
	Severity            FraudSeverity  `json:"severity" db:"severity"`
	Description         string         `json:"description" db:"description"`
	DeviceID            *string        `json:"device_id,omitempty" db:"device_id"`
	IPAddress           *string        `json:"ip_address,omitempty" db:"ip_address"`
	Latitude            *float64       `json:"latitude,omitempty" db:"latitude"`
	Longitude           *float64       `json:"longitude,omitempty" db:"longitude"`
	TripID              *uuid.UUID     `json:"trip_id,omitempty" db:"trip_id"`
	OrderID             *uuid.UUID     `json:"order_id,omitempty" db:"order_id"`
	ParcelID            *uuid.UUID     `json:"parcel_id,omitempty" db:"parcel_id"`
	ScoreImpact         int            `json:"score_impact" db:"score_impact"`
	AutoRestrictApplied bool           `json:"auto_restrict_applied" db:"auto_restrict_applied"`
	CreatedAt           time.Time      `json:"created_at" db:"created_at"`
}

// FraudEventOptions carries the optional fields of LogFraudEvent
type FraudEventOptions struct {
	Severity     FraudSeverity
	ScoreImpact  int
	AutoRestrict bool
	DeviceID     *string
	IPAddress    *string
	Latitude     *float64
	Longitude    *float64
	TripID       *uuid.UUID
	OrderID      *uuid.UUID
	ParcelID     *uuid.UUID
}

// FraudStatus is the outcome of a fraud-status check
type FraudStatus struct {
	Allowed      bool   `json:"allowed"`
	FraudScore   int    `json:"fraudScore"`
	IsRestricted bool   `json:"isRestricted"`
	Reason       string `json:"reason,omitempty"`
}

// DeviceFingerprint identifies one (user, device) pair. login_count
// increments monotonically on every recognized sighting.
type DeviceFingerprint struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	UserRole    string    `json:"user_role" db:"user_role"`
	DeviceID    string    `json:"device_id" db:"device_id"`
	DeviceHash  string    `json:"device_hash" db:"device_hash"`
	OS          string    `json:"os" db:"os"`
	Model       string    `json:"model" db:"model"`
	AppVersion  string    `json:"app_version" db:"app_version"`
	IPAddress   string    `json:"ip_address" db:"ip_address"`
	LastKnownIP string    `json:"last_known_ip" db:"last_known_ip"`
	FirstSeenAt time.Time `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at" db:"last_seen_at"`
	LoginCount  int       `json:"login_count" db:"login_count"`
	IsBlocked   bool      `json:"is_blocked" db:"is_blocked"`
}

// DeviceWhitelistEntry exempts a (user, device) pair from the device cap
type DeviceWhitelistEntry struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"user_id" db:"user_id"`
	DeviceID  string     `json:"device_id" db:"device_id"`
	Reason    *string    `json:"reason,omitempty" db:"reason"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// DeviceCheckResult is the outcome of a fingerprint validation. The check
// never denies by itself unless the device is explicitly blocked; it
// surfaces a warning and raises risk signal instead.
type DeviceCheckResult struct {
	Valid       bool   `json:"valid"`
	IsNewDevice bool   `json:"isNewDevice"`
	Warning     string `json:"warning,omitempty"`
}

// LocationCheckResult is the outcome of a GPS plausibility check
type LocationCheckResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}
