package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the risk service
type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	JWT         JWTConfig       `mapstructure:"jwt"`
	OTP         OTPConfig       `mapstructure:"otp"`
	Fraud       FraudConfig     `mapstructure:"fraud"`
	Device      DeviceConfig    `mapstructure:"device"`
	Perimeter   PerimeterConfig `mapstructure:"perimeter"`
	Delivery    DeliveryConfig  `mapstructure:"delivery"`
	Retention   RetentionConfig `mapstructure:"retention"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	Host           string   `mapstructure:"host"`
	ReadTimeout    int      `mapstructure:"read_timeout"`
	WriteTimeout   int      `mapstructure:"write_timeout"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// OTPConfig carries the OTP limiter quotas and issuance settings.
// Defaults match platform policy: 3 sends/minute, 8/hour, 15-minute block.
type OTPConfig struct {
	MaxPerMinute     int    `mapstructure:"max_per_minute"`
	MaxPerHour       int    `mapstructure:"max_per_hour"`
	BlockMinutes     int    `mapstructure:"block_minutes"`
	CodeLength       int    `mapstructure:"code_length"`
	CodeTTLSeconds   int    `mapstructure:"code_ttl_seconds"`
	IssuerSecretSeed string `mapstructure:"issuer_secret_seed"`
}

type FraudConfig struct {
	DefaultThreshold int `mapstructure:"default_threshold"`
}

type DeviceConfig struct {
	MaxActiveDevices      int     `mapstructure:"max_active_devices"`
	GPSMaxJumpKm          float64 `mapstructure:"gps_max_jump_km"`
	GPSMinIntervalSeconds int     `mapstructure:"gps_min_interval_seconds"`
}

// PerimeterConfig carries the public-route guard settings
type PerimeterConfig struct {
	LandingRoutes        []string `mapstructure:"landing_routes"`
	WindowMinutes        int      `mapstructure:"window_minutes"`
	MaxRequestsPerWindow int      `mapstructure:"max_requests_per_window"`
	BlockMinutes         int      `mapstructure:"block_minutes"`
	SweepSeconds         int      `mapstructure:"sweep_seconds"`
	ProbeThreshold       int      `mapstructure:"probe_threshold"`
	SecurityLogCapacity  int      `mapstructure:"security_log_capacity"`
	RateLimitBackend     string   `mapstructure:"rate_limit_backend"` // memory or redis
}

type DeliveryConfig struct {
	SMSProvider    string `mapstructure:"sms_provider"`
	SMSAPIKey      string `mapstructure:"sms_api_key"`
	SMSFromNumber  string `mapstructure:"sms_from_number"`
	SendgridAPIKey string `mapstructure:"sendgrid_api_key"`
	EmailFrom      string `mapstructure:"email_from"`
	EmailFromName  string `mapstructure:"email_from_name"`
}

type RetentionConfig struct {
	AttemptLedgerDays int    `mapstructure:"attempt_ledger_days"`
	CronSpec          string `mapstructure:"cron_spec"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "risk_service")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	// JWT
	viper.SetDefault("jwt.issuer", "risk_service")

	// OTP limiter
	viper.SetDefault("otp.max_per_minute", 3)
	viper.SetDefault("otp.max_per_hour", 8)
	viper.SetDefault("otp.block_minutes", 15)
	viper.SetDefault("otp.code_length", 6)
	viper.SetDefault("otp.code_ttl_seconds", 300)

	// Fraud engine
	viper.SetDefault("fraud.default_threshold", 70)

	// Device and location checks
	viper.SetDefault("device.max_active_devices", 2)
	viper.SetDefault("device.gps_max_jump_km", 5)
	viper.SetDefault("device.gps_min_interval_seconds", 5)

	// Perimeter guard
	viper.SetDefault("perimeter.landing_routes", []string{
		"/", "/pricing", "/drivers", "/business", "/about", "/contact", "/support", "/careers",
	})
	viper.SetDefault("perimeter.window_minutes", 5)
	viper.SetDefault("perimeter.max_requests_per_window", 100)
	viper.SetDefault("perimeter.block_minutes", 15)
	viper.SetDefault("perimeter.sweep_seconds", 60)
	viper.SetDefault("perimeter.probe_threshold", 10)
	viper.SetDefault("perimeter.security_log_capacity", 10000)
	viper.SetDefault("perimeter.rate_limit_backend", "memory")

	// Delivery
	viper.SetDefault("delivery.email_from", "no-reply@ridepulse.app")
	viper.SetDefault("delivery.email_from_name", "RidePulse")

	// Retention
	viper.SetDefault("retention.attempt_ledger_days", 90)
	viper.SetDefault("retention.cron_spec", "0 3 * * *")
}

func overrideFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("server.port", p)
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}
	if redisURL := os.Getenv("REDIS_HOST"); redisURL != "" {
		viper.Set("redis.host", redisURL)
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		viper.Set("jwt.secret", jwtSecret)
	}
	if seed := os.Getenv("OTP_ISSUER_SECRET_SEED"); seed != "" {
		viper.Set("otp.issuer_secret_seed", seed)
	}
	if key := os.Getenv("SENDGRID_API_KEY"); key != "" {
		viper.Set("delivery.sendgrid_api_key", key)
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		viper.Set("server.allowed_origins", strings.Split(origins, ","))
	}
}

func validate(cfg *Config) error {
	if cfg.Environment == "production" {
		if cfg.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if cfg.OTP.IssuerSecretSeed == "" {
			return fmt.Errorf("otp.issuer_secret_seed is required in production")
		}
	}
	if cfg.Perimeter.RateLimitBackend != "memory" && cfg.Perimeter.RateLimitBackend != "redis" {
		return fmt.Errorf("perimeter.rate_limit_backend must be memory or redis, got %q", cfg.Perimeter.RateLimitBackend)
	}
	return nil
}

// IsProduction reports whether the service runs with production hardening
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
