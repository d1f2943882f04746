package health

import (
	"context"
	"database/sql"
	"time"
)

// DatabaseChecker checks attempt-ledger database connectivity
type DatabaseChecker struct {
	db      *sql.DB
	timeout time.Duration
}

// NewDatabaseChecker creates a new database health checker
func NewDatabaseChecker(db *sql.DB, timeout time.Duration) *DatabaseChecker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &DatabaseChecker{db: db, timeout: timeout}
}

// Check performs the database health check
func (c *DatabaseChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.db.PingContext(ctx); err != nil {
		return NewUnhealthyResult("database", err).WithDuration(time.Since(start))
	}

	stats := c.db.Stats()
	return NewHealthyResult("database", "connected").
		WithDuration(time.Since(start)).
		WithMetadata("open_connections", stats.OpenConnections).
		WithMetadata("in_use", stats.InUse).
		WithMetadata("idle", stats.Idle)
}

// Name returns the checker name
func (c *DatabaseChecker) Name() string {
	return "database"
}
