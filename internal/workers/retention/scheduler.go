// Package retention prunes aged rows from the attempt ledger on a cron
// schedule. The ledger is append-only; this job is the only deleter.
package retention

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ridepulse/risk_service/internal/domain/repositories"
)

// Config holds the retention schedule and horizon
type Config struct {
	// Cron expression for when to run (default: daily at 3 AM)
	Schedule string

	// Rows older than this many days are deleted
	RetentionDays int
}

// Scheduler runs the ledger pruning job
type Scheduler struct {
	cron     *cron.Cron
	attempts repositories.AttemptRepository
	config   Config
	logger   *zap.Logger

	mu      sync.RWMutex
	running bool
	lastRun time.Time
}

// NewScheduler creates the retention scheduler
func NewScheduler(attempts repositories.AttemptRepository, config Config, logger *zap.Logger) *Scheduler {
	if config.Schedule == "" {
		config.Schedule = "0 3 * * *"
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = 90
	}
	return &Scheduler{
		cron:     cron.New(),
		attempts: attempts,
		config:   config,
		logger:   logger,
	}
}

// Start registers the cron entry and begins scheduling
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("retention scheduler already running")
	}

	if _, err := s.cron.AddFunc(s.config.Schedule, s.runOnce); err != nil {
		return fmt.Errorf("failed to schedule retention job: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("Retention scheduler started",
		zap.String("schedule", s.config.Schedule),
		zap.Int("retention_days", s.config.RetentionDays))
	return nil
}

// Stop halts scheduling and waits for a running job to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info("Retention scheduler stopped")
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)
	deleted, err := s.attempts.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("Attempt ledger pruning failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()

	s.logger.Info("Attempt ledger pruned",
		zap.Int64("rows_deleted", deleted),
		zap.Time("cutoff", cutoff))
}

// LastRun reports the completion time of the most recent successful run
func (s *Scheduler) LastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}
