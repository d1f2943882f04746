package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// SettingsRepository reads named numeric settings from the platform
// settings table
type SettingsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *sql.DB, logger *zap.Logger) *SettingsRepository {
	return &SettingsRepository{db: db, logger: logger}
}

// GetInt returns the named numeric setting
func (r *SettingsRepository) GetInt(ctx context.Context, name string) (int, error) {
	var value int
	err := r.db.QueryRowContext(ctx, `SELECT value FROM platform_settings WHERE name = $1`, name).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("setting %q not found", name)
		}
		r.logger.Error("Failed to read setting", zap.Error(err), zap.String("name", name))
		return 0, fmt.Errorf("failed to read setting %q: %w", name, err)
	}
	return value, nil
}
