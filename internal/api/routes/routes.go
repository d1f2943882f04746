package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ridepulse/risk_service/internal/api/handlers"
	"github.com/ridepulse/risk_service/internal/api/middleware"
	"github.com/ridepulse/risk_service/internal/domain/services/fraud"
	"github.com/ridepulse/risk_service/internal/infrastructure/di"
	"github.com/ridepulse/risk_service/pkg/tracing"
)

// SetupRoutes configures the guard chain and all application routes.
// The perimeter middleware runs first on every request; the DB-backed
// guards only run behind authentication.
func SetupRoutes(container *di.Container) *gin.Engine {
	router := gin.New()

	// Global middleware - order matters for security
	router.Use(tracing.HTTPMiddleware())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.Logger(container.Logger))
	router.Use(middleware.Recovery(container.Logger))
	router.Use(middleware.CORS(container.Config))
	router.Use(middleware.SecurityHeaders(container.Config.IsProduction()))
	router.Use(container.LandingLimiter.Handler())
	router.Use(container.ProbeDetector.Handler())
	router.Use(middleware.CSRFProtection(container.Config.IsProduction(), container.SecurityLog, container.Logger))

	// Initialize handlers with services from DI container
	healthHandler := handlers.NewHealthHandler(container.DB, container.RedisClient, container.Logger)
	otpHandler := handlers.NewOTPHandler(container.OTPService, container.Logger)
	riskHandler := handlers.NewRiskHandler(container.FraudService, container.DeviceService, container.Logger)
	securityHandler := handlers.NewSecurityHandler(container.SecurityLog, container.Logger)

	// Health checks and operational endpoints (no auth required)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/live", healthHandler.Live)
	router.GET("/version", handlers.VersionHandler())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// OTP endpoints (no auth; the rate limiter is the gate)
		auth := v1.Group("/auth")
		{
			auth.POST("/otp/request", otpHandler.RequestOTP)
			auth.POST("/otp/verify", otpHandler.VerifyOTP)
		}

		// Browser CSP violation reports (no auth)
		v1.POST("/security/csp-report", securityHandler.CSPReport)

		// Risk introspection (auth required)
		risk := v1.Group("/risk")
		risk.Use(middleware.Authentication(container.Config, container.Logger))
		{
			risk.GET("/fraud/status", riskHandler.GetFraudStatus)
			risk.POST("/device/validate", riskHandler.ValidateDevice)
			risk.POST("/location/check", riskHandler.CheckLocation)
			risk.GET("/devices", riskHandler.ListDevices)
		}

		// Guarded business endpoints. The platform proxies sensitive
		// mutating actions through these groups so the fraud gate runs
		// with the matcher fitting each action family.
		guarded := v1.Group("/")
		guarded.Use(middleware.Authentication(container.Config, container.Logger))
		{
			rides := guarded.Group("/rides")
			rides.Use(middleware.FraudEnforcement(container.FraudService, fraud.RideRequestActions, container.Logger))
			{
				rides.POST("/request", riskHandler.AuthorizeAction)
			}

			parcels := guarded.Group("/parcels")
			parcels.Use(middleware.FraudEnforcement(container.FraudService, fraud.ParcelRequestActions, container.Logger))
			{
				parcels.POST("/request", riskHandler.AuthorizeAction)
			}

			orders := guarded.Group("/orders")
			orders.Use(middleware.FraudEnforcement(container.FraudService, fraud.FoodOrderActions, container.Logger))
			{
				orders.POST("/place", riskHandler.AuthorizeAction)
			}

			payments := guarded.Group("/payments")
			payments.Use(middleware.FraudEnforcement(container.FraudService, fraud.CODPaymentActions, container.Logger))
			{
				payments.POST("/cod/confirm", riskHandler.AuthorizeAction)
			}

			deliveries := guarded.Group("/deliveries")
			deliveries.Use(middleware.FraudEnforcement(container.FraudService, fraud.DeliveryAcceptActions, container.Logger))
			{
				deliveries.POST("/accept", riskHandler.AuthorizeAction)
			}

			partner := guarded.Group("/partner")
			partner.Use(middleware.FraudEnforcement(container.FraudService, fraud.PartnerOpsActions, container.Logger))
			{
				partner.POST("/go-online", riskHandler.AuthorizeAction)
			}
		}

		// Admin introspection (admin auth required)
		admin := v1.Group("/admin")
		admin.Use(middleware.Authentication(container.Config, container.Logger))
		admin.Use(middleware.RoleBasedAccessControl([]string{"admin", "super_admin"}, container.Logger))
		{
			admin.GET("/security/logs", securityHandler.GetSecurityLogs)
			admin.GET("/security/stats", securityHandler.GetSecurityStats)
			admin.GET("/risk/users/:id/fraud", riskHandler.GetUserFraudProfile)
		}
	}

	return router
}
