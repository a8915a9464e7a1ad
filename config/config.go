package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ledger-backend/logger"
)

// Config is the process configuration, read from the environment (and .env when present).
type Config struct {
	// Database
	DBDriver     string // postgres | sqlite
	DatabaseURL  string
	DBHost       string
	DBPort       string
	DBUser       string
	DBPassword   string
	DBName       string
	DBSSLMode    string
	DBTimeZone   string
	ReadAttempts int

	// HTTP
	Port             string
	BodyLimitBytes   int
	RateLimitMax     int
	RateLimitWindow  time.Duration
	AllowedOrigins   string
	RequestTimeout   time.Duration
	JWTSecret        string
	BusinessTimezone string

	// Background jobs
	OverdueSweepInterval time.Duration

	// PDF renderer
	RendererURL     string
	RendererTimeout time.Duration

	// Logging
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	bodyLimit := getEnvInt("BODY_LIMIT_BYTES", 0)
	if bodyLimit <= 0 {
		bodyLimit = getEnvInt("BODY_LIMIT_MB", 4) * 1024 * 1024
	}

	secret := getEnv("JWT_SECRET_KEY", "")
	if secret == "" {
		secret = getEnv("JWT_SECRET", "")
	}

	cfg := &Config{
		DBDriver:     strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		DBHost:       getEnv("DB_HOST", "db"),
		DBPort:       getEnv("DB_PORT", "5432"),
		DBUser:       getEnv("DB_USER", ""),
		DBPassword:   getEnv("DB_PASSWORD", ""),
		DBName:       getEnv("DB_NAME", ""),
		DBSSLMode:    getEnv("DB_SSLMODE", "disable"),
		DBTimeZone:   getEnv("DB_TIMEZONE", "UTC"),
		ReadAttempts: getEnvInt("READ_RETRY_ATTEMPTS", 3),

		Port:             getEnv("PORT", "8080"),
		BodyLimitBytes:   bodyLimit,
		RateLimitMax:     getEnvInt("RATE_LIMIT_MAX", 60),
		RateLimitWindow:  time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		AllowedOrigins:   getEnv("ALLOWED_ORIGINS", "*"),
		RequestTimeout:   time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
		JWTSecret:        secret,
		BusinessTimezone: getEnv("BUSINESS_TIMEZONE", "Asia/Dubai"),

		OverdueSweepInterval: getEnvDuration("OVERDUE_SWEEP_INTERVAL", time.Hour),

		RendererURL:     getEnv("RENDERER_URL", ""),
		RendererTimeout: time.Duration(getEnvInt("RENDERER_TIMEOUT_SECONDS", 20)) * time.Second,

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		LogTimeFormat: getEnv("LOG_TIME_FORMAT", time.RFC3339),
		LogOutput:     getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.DBDriver == "sqlite" && c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for the sqlite driver")
	}
	if c.ReadAttempts < 1 {
		return errors.New("READ_RETRY_ATTEMPTS must be at least 1")
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		return errors.New("rate limit settings must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT_SECONDS must be positive")
	}
	if c.OverdueSweepInterval < 0 {
		return errors.New("OVERDUE_SWEEP_INTERVAL must not be negative")
	}
	if _, err := time.LoadLocation(c.BusinessTimezone); err != nil {
		return fmt.Errorf("BUSINESS_TIMEZONE: %w", err)
	}
	return nil
}

// RequireJWTSecret fails when no signing secret is configured.
func (c *Config) RequireJWTSecret() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT secret not configured (set JWT_SECRET_KEY or JWT_SECRET)")
	}
	return nil
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode, c.DBTimeZone)
}

// Location is the business timezone used to decide "today" for due dates and reports.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := getEnv(key, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := getEnv(key, ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
