package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ridepulse/risk_service/internal/domain/entities"
	"github.com/ridepulse/risk_service/pkg/tracing"
)

// AttemptRepository implements the persistent attempt ledger on PostgreSQL
type AttemptRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAttemptRepository creates a new attempt ledger repository
func NewAttemptRepository(db *sql.DB, logger *zap.Logger) *AttemptRepository {
	return &AttemptRepository{db: db, logger: logger}
}

// Create appends one attempt row. Rows are never updated afterwards.
func (r *AttemptRepository) Create(ctx context.Context, record *entities.AttemptRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO attempt_records (
			id, identifier, identifier_type, attempt_type, success,
			otp_sent, otp_verified, failure_reason,
			device_id, ip_address, user_agent, country,
			is_blocked, blocked_until, block_reason, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)`

	err := tracing.TraceQuery(ctx, tracing.QuerySpan{
		Operation: "INSERT",
		Table:     "attempt_records",
	}, func(ctx context.Context) error {
		_, execErr := r.db.ExecContext(ctx, query,
			record.ID,
			record.Identifier,
			string(record.IdentifierType),
			string(record.AttemptType),
			record.Success,
			record.OTPSent,
			record.OTPVerified,
			record.FailureReason,
			record.DeviceID,
			record.IPAddress,
			record.UserAgent,
			record.Country,
			record.IsBlocked,
			record.BlockedUntil,
			record.BlockReason,
			record.CreatedAt,
		)
		return execErr
	})

	if err != nil {
		r.logger.Error("Failed to create attempt record",
			zap.Error(err),
			zap.String("identifier", record.Identifier),
			zap.String("attempt_type", string(record.AttemptType)))
		return fmt.Errorf("failed to create attempt record: %w", err)
	}

	return nil
}

// CountSentSince counts successful OTP sends for the identifier with a
// strict window boundary (created_at >= since).
func (r *AttemptRepository) CountSentSince(ctx context.Context, identifier string, identifierType entities.IdentifierType, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM attempt_records
		WHERE identifier = $1
		  AND identifier_type = $2
		  AND attempt_type = $3
		  AND otp_sent = true
		  AND created_at >= $4`

	var count int
	err := r.db.QueryRowContext(ctx, query, identifier, string(identifierType), string(entities.AttemptOTPRequest), since).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count OTP sends",
			zap.Error(err),
			zap.String("identifier", identifier))
		return 0, fmt.Errorf("failed to count OTP sends: %w", err)
	}
	return count, nil
}

// FindActiveBlock returns the most recent unexpired block row, or nil.
// A block, once issued, is authoritative until it expires.
func (r *AttemptRepository) FindActiveBlock(ctx context.Context, identifier string, identifierType entities.IdentifierType, attemptType entities.AttemptType, now time.Time) (*entities.AttemptRecord, error) {
	query := `
		SELECT id, identifier, identifier_type, attempt_type, success,
		       otp_sent, otp_verified, failure_reason,
		       device_id, ip_address, user_agent, country,
		       is_blocked, blocked_until, block_reason, created_at
		FROM attempt_records
		WHERE identifier = $1
		  AND identifier_type = $2
		  AND attempt_type = $3
		  AND is_blocked = true
		  AND blocked_until > $4
		ORDER BY created_at DESC
		LIMIT 1`

	record := &entities.AttemptRecord{}
	var identType, attType string
	var otpSent, otpVerified sql.NullBool
	var failureReason, deviceID, ipAddress, userAgent, country, blockReason sql.NullString
	var blockedUntil sql.NullTime

	err := r.db.QueryRowContext(ctx, query, identifier, string(identifierType), string(attemptType), now).Scan(
		&record.ID,
		&record.Identifier,
		&identType,
		&attType,
		&record.Success,
		&otpSent,
		&otpVerified,
		&failureReason,
		&deviceID,
		&ipAddress,
		&userAgent,
		&country,
		&record.IsBlocked,
		&blockedUntil,
		&blockReason,
		&record.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to look up active block",
			zap.Error(err),
			zap.String("identifier", identifier))
		return nil, fmt.Errorf("failed to look up active block: %w", err)
	}

	record.IdentifierType = entities.IdentifierType(identType)
	record.AttemptType = entities.AttemptType(attType)
	if otpSent.Valid {
		record.OTPSent = &otpSent.Bool
	}
	if otpVerified.Valid {
		record.OTPVerified = &otpVerified.Bool
	}
	if failureReason.Valid {
		record.FailureReason = &failureReason.String
	}
	if deviceID.Valid {
		record.DeviceID = &deviceID.String
	}
	if ipAddress.Valid {
		record.IPAddress = &ipAddress.String
	}
	if userAgent.Valid {
		record.UserAgent = &userAgent.String
	}
	if country.Valid {
		record.Country = &country.String
	}
	if blockedUntil.Valid {
		record.BlockedUntil = &blockedUntil.Time
	}
	if blockReason.Valid {
		record.BlockReason = &blockReason.String
	}

	return record, nil
}

// DeleteOlderThan drops ledger rows past the retention horizon
func (r *AttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM attempt_records WHERE created_at < $1`, cutoff)
	if err != nil {
		r.logger.Error("Failed to prune attempt ledger", zap.Error(err))
		return 0, fmt.Errorf("failed to prune attempt ledger: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return rows, nil
}
