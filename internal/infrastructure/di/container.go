// Package di wires the risk service's dependency graph: repositories on
// the shared database handle, the guard services, the in-memory
// perimeter state, and outbound delivery adapters.
package di

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ridepulse/risk_service/internal/api/middleware"
	"github.com/ridepulse/risk_service/internal/domain/services/device"
	"github.com/ridepulse/risk_service/internal/domain/services/fraud"
	"github.com/ridepulse/risk_service/internal/domain/services/otp"
	"github.com/ridepulse/risk_service/internal/infrastructure/adapters"
	"github.com/ridepulse/risk_service/internal/infrastructure/config"
	"github.com/ridepulse/risk_service/internal/infrastructure/repositories"
	"github.com/ridepulse/risk_service/pkg/logger"
	"github.com/ridepulse/risk_service/pkg/ratewindow"
	"github.com/ridepulse/risk_service/pkg/seclog"
)

// Container holds the wired dependency graph
type Container struct {
	Config *config.Config
	DB     *sql.DB
	Logger *logger.Logger
	ZapLog *zap.Logger

	// Repositories
	AttemptRepo  *repositories.AttemptRepository
	FraudRepo    *repositories.FraudRepository
	DeviceRepo   *repositories.DeviceRepository
	SettingsRepo *repositories.SettingsRepository

	// Delivery adapters
	SMSService   *adapters.SMSService
	EmailService *adapters.EmailService

	// Guard services
	OTPService    *otp.Service
	FraudService  *fraud.Service
	DeviceService *device.Service

	// Perimeter state
	RedisClient    *redis.Client
	SecurityLog    *seclog.Log
	LandingWindow  ratewindow.RateWindow
	ProbeDetector  *middleware.NotFoundProbeDetector
	LandingLimiter *middleware.LandingRateLimiter

	sweepStop     chan struct{}
	memoryWindows []*ratewindow.MemoryWindow
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config, db *sql.DB, log *logger.Logger) (*Container, error) {
	zapLog := log.Zap()

	c := &Container{
		Config:    cfg,
		DB:        db,
		Logger:    log,
		ZapLog:    zapLog,
		sweepStop: make(chan struct{}),
	}

	// Repositories
	c.AttemptRepo = repositories.NewAttemptRepository(db, zapLog)
	c.FraudRepo = repositories.NewFraudRepository(db, zapLog)
	c.DeviceRepo = repositories.NewDeviceRepository(db, zapLog)
	c.SettingsRepo = repositories.NewSettingsRepository(db, zapLog)

	// Delivery adapters
	c.SMSService = adapters.NewSMSService(zapLog, adapters.SMSConfig{
		Provider:    cfg.Delivery.SMSProvider,
		APIKey:      cfg.Delivery.SMSAPIKey,
		FromNumber:  cfg.Delivery.SMSFromNumber,
		Environment: cfg.Environment,
	})
	c.EmailService = adapters.NewEmailService(zapLog, adapters.EmailServiceConfig{
		APIKey:      cfg.Delivery.SendgridAPIKey,
		FromEmail:   cfg.Delivery.EmailFrom,
		FromName:    cfg.Delivery.EmailFromName,
		Environment: cfg.Environment,
	})

	// Guard services
	codes := otp.NewCodeIssuer(cfg.OTP.IssuerSecretSeed)
	c.OTPService = otp.NewService(
		c.AttemptRepo, codes, c.SMSService, c.EmailService,
		cfg.OTP.MaxPerMinute, cfg.OTP.MaxPerHour, cfg.OTP.BlockMinutes, log,
	)
	c.FraudService = fraud.NewService(c.FraudRepo, c.SettingsRepo, cfg.Fraud.DefaultThreshold, log)
	c.DeviceService = device.NewService(
		c.DeviceRepo, c.FraudRepo, c.FraudService,
		cfg.Device.MaxActiveDevices,
		cfg.Device.GPSMaxJumpKm,
		time.Duration(cfg.Device.GPSMinIntervalSeconds)*time.Second,
		log,
	)

	// Perimeter state
	c.SecurityLog = seclog.New(cfg.Perimeter.SecurityLogCapacity, zapLog)

	window := time.Duration(cfg.Perimeter.WindowMinutes) * time.Minute
	sweepInterval := time.Duration(cfg.Perimeter.SweepSeconds) * time.Second

	switch cfg.Perimeter.RateLimitBackend {
	case "redis":
		c.RedisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.LandingWindow = ratewindow.NewRedisWindow(c.RedisClient, window, "perimeter", zapLog)
	default:
		mem := ratewindow.NewMemoryWindow(window)
		mem.StartSweep(sweepInterval)
		c.memoryWindows = append(c.memoryWindows, mem)
		c.LandingWindow = mem
	}

	c.ProbeDetector = middleware.NewNotFoundProbeDetector(cfg.Perimeter.ProbeThreshold, c.SecurityLog)
	c.ProbeDetector.StartSweep(sweepInterval, c.sweepStop)

	c.LandingLimiter = middleware.NewLandingRateLimiter(cfg, c.LandingWindow, c.SecurityLog, log)

	return c, nil
}

// Shutdown stops background sweeps and closes external connections
func (c *Container) Shutdown() error {
	close(c.sweepStop)
	for _, w := range c.memoryWindows {
		w.Stop()
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			return fmt.Errorf("failed to close redis client: %w", err)
		}
	}
	return nil
}
