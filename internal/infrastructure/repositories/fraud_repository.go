package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ridepulse/risk_service/internal/domain/entities"
)

// FraudRepository persists fraud scores and events on PostgreSQL
type FraudRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFraudRepository creates a new fraud repository
func NewFraudRepository(db *sql.DB, logger *zap.Logger) *FraudRepository {
	return &FraudRepository{db: db, logger: logger}
}

// GetScore returns the user's score row, or nil when none exists. Reading
// never creates a row; only AppendEvent does.
func (r *FraudRepository) GetScore(ctx context.Context, userID uuid.UUID) (*entities.FraudScore, error) {
	query := `
		SELECT id, user_id, previous_score, current_score, peak_score,
		       is_restricted, restricted_at, restriction_reason,
		       requires_manual_clearance, last_calculated_at
		FROM fraud_scores
		WHERE user_id = $1`

	score := &entities.FraudScore{}
	var restrictedAt sql.NullTime
	var restrictionReason sql.NullString

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&score.ID,
		&score.UserID,
		&score.PreviousScore,
		&score.CurrentScore,
		&score.PeakScore,
		&score.IsRestricted,
		&restrictedAt,
		&restrictionReason,
		&score.RequiresManualClearance,
		&score.LastCalculatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get fraud score", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, fmt.Errorf("failed to get fraud score: %w", err)
	}

	if restrictedAt.Valid {
		score.RestrictedAt = &restrictedAt.Time
	}
	if restrictionReason.Valid {
		score.RestrictionReason = &restrictionReason.String
	}

	return score, nil
}

// AppendEvent inserts the event and bumps the score in one transaction.
// The clamp, peak, and restriction-transition logic all live in the upsert
// statement so concurrent events for the same user serialize on the row.
func (r *FraudRepository) AppendEvent(ctx context.Context, event *entities.FraudEvent, threshold int) (*entities.FraudScore, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertEvent := `
		INSERT INTO fraud_events (
			id, user_id, user_role, event_type, severity, description,
			device_id, ip_address, latitude, longitude,
			trip_id, order_id, parcel_id,
			score_impact, auto_restrict_applied, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)`

	_, err = tx.ExecContext(ctx, insertEvent,
		event.ID,
		event.UserID,
		event.UserRole,
		string(event.EventType),
		string(event.Severity),
		event.Description,
		event.DeviceID,
		event.IPAddress,
		event.Latitude,
		event.Longitude,
		event.TripID,
		event.OrderID,
		event.ParcelID,
		event.ScoreImpact,
		event.AutoRestrictApplied,
		event.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert fraud event",
			zap.Error(err),
			zap.String("user_id", event.UserID.String()),
			zap.String("event_type", string(event.EventType)))
		return nil, fmt.Errorf("failed to insert fraud event: %w", err)
	}

	var updated *entities.FraudScore
	if event.ScoreImpact > 0 || event.AutoRestrictApplied {
		updated, err = r.upsertScore(ctx, tx, event, threshold)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit fraud event: %w", err)
	}

	return updated, nil
}

func (r *FraudRepository) upsertScore(ctx context.Context, tx *sql.Tx, event *entities.FraudEvent, threshold int) (*entities.FraudScore, error) {
	reason := fmt.Sprintf("%s: %s", event.EventType, event.Description)

	// restricted_at and restriction_reason are set only on the transition
	// into the restricted state and never overwritten afterwards.
	query := `
		INSERT INTO fraud_scores (
			id, user_id, previous_score, current_score, peak_score,
			is_restricted, restricted_at, restriction_reason,
			requires_manual_clearance, last_calculated_at
		) VALUES (
			$1, $2, 0, LEAST(100, $3), LEAST(100, $3),
			(LEAST(100, $3) >= $4 OR $5),
			CASE WHEN (LEAST(100, $3) >= $4 OR $5) THEN $7 ELSE NULL END,
			CASE WHEN (LEAST(100, $3) >= $4 OR $5) THEN $6 ELSE NULL END,
			(LEAST(100, $3) >= $4 OR $5),
			$7
		)
		ON CONFLICT (user_id) DO UPDATE SET
			previous_score = fraud_scores.current_score,
			current_score = LEAST(100, fraud_scores.current_score + $3),
			peak_score = GREATEST(fraud_scores.peak_score, LEAST(100, fraud_scores.current_score + $3)),
			is_restricted = fraud_scores.is_restricted
				OR LEAST(100, fraud_scores.current_score + $3) >= $4
				OR $5,
			restricted_at = CASE
				WHEN NOT fraud_scores.is_restricted
				 AND (LEAST(100, fraud_scores.current_score + $3) >= $4 OR $5)
				THEN $7 ELSE fraud_scores.restricted_at END,
			restriction_reason = CASE
				WHEN NOT fraud_scores.is_restricted
				 AND (LEAST(100, fraud_scores.current_score + $3) >= $4 OR $5)
				THEN $6 ELSE fraud_scores.restriction_reason END,
			requires_manual_clearance = fraud_scores.is_restricted
				OR LEAST(100, fraud_scores.current_score + $3) >= $4
				OR $5,
			last_calculated_at = $7
		RETURNING id, user_id, previous_score, current_score, peak_score,
		          is_restricted, restricted_at, restriction_reason,
		          requires_manual_clearance, last_calculated_at`

	score := &entities.FraudScore{}
	var restrictedAt sql.NullTime
	var restrictionReason sql.NullString

	err := tx.QueryRowContext(ctx, query,
		uuid.New(),
		event.UserID,
		event.ScoreImpact,
		threshold,
		event.AutoRestrictApplied,
		reason,
		event.CreatedAt,
	).Scan(
		&score.ID,
		&score.UserID,
		&score.PreviousScore,
		&score.CurrentScore,
		&score.PeakScore,
		&score.IsRestricted,
		&restrictedAt,
		&restrictionReason,
		&score.RequiresManualClearance,
		&score.LastCalculatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert fraud score",
			zap.Error(err),
			zap.String("user_id", event.UserID.String()))
		return nil, fmt.Errorf("failed to upsert fraud score: %w", err)
	}

	if restrictedAt.Valid {
		score.RestrictedAt = &restrictedAt.Time
	}
	if restrictionReason.Valid {
		score.RestrictionReason = &restrictionReason.String
	}

	return score, nil
}

// LatestLocatedEvent returns the user's most recent event carrying
// coordinates, or nil when none exists
func (r *FraudRepository) LatestLocatedEvent(ctx context.Context, userID uuid.UUID) (*entities.FraudEvent, error) {
	query := `
		SELECT id, user_id, user_role, event_type, severity, description,
		       device_id, ip_address, latitude, longitude,
		       trip_id, order_id, parcel_id,
		       score_impact, auto_restrict_applied, created_at
		FROM fraud_events
		WHERE user_id = $1
		  AND latitude IS NOT NULL
		  AND longitude IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 1`

	event := &entities.FraudEvent{}
	var eventType, severity string
	var deviceID, ipAddress sql.NullString
	var latitude, longitude sql.NullFloat64
	var tripID, orderID, parcelID uuid.NullUUID

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&event.ID,
		&event.UserID,
		&event.UserRole,
		&eventType,
		&severity,
		&event.Description,
		&deviceID,
		&ipAddress,
		&latitude,
		&longitude,
		&tripID,
		&orderID,
		&parcelID,
		&event.ScoreImpact,
		&event.AutoRestrictApplied,
		&event.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get latest located event",
			zap.Error(err),
			zap.String("user_id", userID.String()))
		return nil, fmt.Errorf("failed to get latest located event: %w", err)
	}

	event.EventType = entities.FraudEventType(eventType)
	event.Severity = entities.FraudSeverity(severity)
	if deviceID.Valid {
		event.DeviceID = &deviceID.String
	}
	if ipAddress.Valid {
		event.IPAddress = &ipAddress.String
	}
	if latitude.Valid {
		event.Latitude = &latitude.Float64
	}
	if longitude.Valid {
		event.Longitude = &longitude.Float64
	}
	if tripID.Valid {
		event.TripID = &tripID.UUID
	}
	if orderID.Valid {
		event.OrderID = &orderID.UUID
	}
	if parcelID.Valid {
		event.ParcelID = &parcelID.UUID
	}

	return event, nil
}
