package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/ridepulse/risk_service/internal/domain/entities"
)

// DeviceRepository persists device fingerprints and the whitelist
type DeviceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(db *sql.DB, logger *zap.Logger) *DeviceRepository {
	return &DeviceRepository{db: db, logger: logger}
}

const fingerprintColumns = `
	id, user_id, user_role, device_id, device_hash, os, model, app_version,
	ip_address, last_known_ip, first_seen_at, last_seen_at, login_count, is_blocked`

// GetByUserAndDevice returns the fingerprint row, or nil when unseen
func (r *DeviceRepository) GetByUserAndDevice(ctx context.Context, userID uuid.UUID, deviceID string) (*entities.DeviceFingerprint, error) {
	query := `SELECT ` + fingerprintColumns + `
		FROM device_fingerprints
		WHERE user_id = $1 AND device_id = $2`

	fp := &entities.DeviceFingerprint{}
	err := r.db.QueryRowContext(ctx, query, userID, deviceID).Scan(
		&fp.ID,
		&fp.UserID,
		&fp.UserRole,
		&fp.DeviceID,
		&fp.DeviceHash,
		&fp.OS,
		&fp.Model,
		&fp.AppVersion,
		&fp.IPAddress,
		&fp.LastKnownIP,
		&fp.FirstSeenAt,
		&fp.LastSeenAt,
		&fp.LoginCount,
		&fp.IsBlocked,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get device fingerprint",
			zap.Error(err),
			zap.String("user_id", userID.String()),
			zap.String("device_id", deviceID))
		return nil, fmt.Errorf("failed to get device fingerprint: %w", err)
	}

	return fp, nil
}

// Create inserts the first sighting of a device for a user
func (r *DeviceRepository) Create(ctx context.Context, fp *entities.DeviceFingerprint) error {
	if fp.ID == uuid.Nil {
		fp.ID = uuid.New()
	}

	query := `
		INSERT INTO device_fingerprints (` + fingerprintColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.ExecContext(ctx, query,
		fp.ID,
		fp.UserID,
		fp.UserRole,
		fp.DeviceID,
		fp.DeviceHash,
		fp.OS,
		fp.Model,
		fp.AppVersion,
		fp.IPAddress,
		fp.LastKnownIP,
		fp.FirstSeenAt,
		fp.LastSeenAt,
		fp.LoginCount,
		fp.IsBlocked,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			// Lost a race with a concurrent first sighting; fold into a touch
			return r.Touch(ctx, fp.UserID, fp.DeviceID, fp.LastKnownIP, fp.AppVersion, fp.LastSeenAt)
		}
		r.logger.Error("Failed to create device fingerprint",
			zap.Error(err),
			zap.String("user_id", fp.UserID.String()),
			zap.String("device_id", fp.DeviceID))
		return fmt.Errorf("failed to create device fingerprint: %w", err)
	}

	return nil
}

// Touch refreshes sighting metadata and increments login_count
func (r *DeviceRepository) Touch(ctx context.Context, userID uuid.UUID, deviceID, lastKnownIP, appVersion string, seenAt time.Time) error {
	query := `
		UPDATE device_fingerprints SET
			last_seen_at = $3,
			last_known_ip = $4,
			app_version = CASE WHEN $5 <> '' THEN $5 ELSE app_version END,
			login_count = login_count + 1
		WHERE user_id = $1 AND device_id = $2`

	_, err := r.db.ExecContext(ctx, query, userID, deviceID, seenAt, lastKnownIP, appVersion)
	if err != nil {
		r.logger.Error("Failed to touch device fingerprint",
			zap.Error(err),
			zap.String("user_id", userID.String()),
			zap.String("device_id", deviceID))
		return fmt.Errorf("failed to touch device fingerprint: %w", err)
	}
	return nil
}

// CountActiveDevices counts the user's non-blocked devices excluding the
// given device ID
func (r *DeviceRepository) CountActiveDevices(ctx context.Context, userID uuid.UUID, excludeDeviceID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM device_fingerprints
		WHERE user_id = $1 AND device_id <> $2 AND is_blocked = false`

	var count int
	err := r.db.QueryRowContext(ctx, query, userID, excludeDeviceID).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count active devices",
			zap.Error(err),
			zap.String("user_id", userID.String()))
		return 0, fmt.Errorf("failed to count active devices: %w", err)
	}
	return count, nil
}

// IsWhitelisted reports whether an active, unexpired whitelist entry
// covers the (user, device) pair
func (r *DeviceRepository) IsWhitelisted(ctx context.Context, userID uuid.UUID, deviceID string, now time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM device_whitelist
			WHERE user_id = $1 AND device_id = $2
			  AND (expires_at IS NULL OR expires_at > $3)
		)`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, userID, deviceID, now).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check device whitelist",
			zap.Error(err),
			zap.String("user_id", userID.String()),
			zap.String("device_id", deviceID))
		return false, fmt.Errorf("failed to check device whitelist: %w", err)
	}
	return exists, nil
}

// ListByUser returns all fingerprints for a user, newest sighting first
func (r *DeviceRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.DeviceFingerprint, error) {
	query := `SELECT ` + fingerprintColumns + `
		FROM device_fingerprints
		WHERE user_id = $1
		ORDER BY last_seen_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list device fingerprints",
			zap.Error(err),
			zap.String("user_id", userID.String()))
		return nil, fmt.Errorf("failed to list device fingerprints: %w", err)
	}
	defer rows.Close()

	var out []*entities.DeviceFingerprint
	for rows.Next() {
		fp := &entities.DeviceFingerprint{}
		if err := rows.Scan(
			&fp.ID,
			&fp.UserID,
			&fp.UserRole,
			&fp.DeviceID,
			&fp.DeviceHash,
			&fp.OS,
			&fp.Model,
			&fp.AppVersion,
			&fp.IPAddress,
			&fp.LastKnownIP,
			&fp.FirstSeenAt,
			&fp.LastSeenAt,
			&fp.LoginCount,
			&fp.IsBlocked,
		); err != nil {
			return nil, fmt.Errorf("failed to scan device fingerprint: %w", err)
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}
