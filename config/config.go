package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tradejournal/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Database
	DBPath string

	// Logging
	LogLevel      logger.LogLevel // Use the LogLevel type from the logger adapter
	LogFile       string          // Optional; enables the rotated file sink
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// Fees
	FeeSchedulePath string // Optional YAML replacing the built-in fee tables

	// Accounts
	AccountTimezone string         // Fallback for accounts without their own timezone
	Location        *time.Location // Loaded from AccountTimezone
	DefaultUserID   string

	// HTTP
	HTTPAddr string
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/trading_journal.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package
	cfg.LogFile = getEnv("LOG_FILE", "")

	cfg.LogMaxSizeMB, err = getEnvAsIntRequired("LOG_MAX_SIZE_MB", 50)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LOG_MAX_SIZE_MB: %v", err))
	} else if cfg.LogMaxSizeMB <= 0 {
		errs = append(errs, "LOG_MAX_SIZE_MB must be positive")
	}
	cfg.LogMaxBackups = getEnvAsInt("LOG_MAX_BACKUPS", 5)
	if cfg.LogMaxBackups < 0 {
		errs = append(errs, "LOG_MAX_BACKUPS cannot be negative")
	}
	cfg.LogMaxAgeDays = getEnvAsInt("LOG_MAX_AGE_DAYS", 30)
	if cfg.LogMaxAgeDays < 0 {
		errs = append(errs, "LOG_MAX_AGE_DAYS cannot be negative")
	}

	// Fees
	cfg.FeeSchedulePath = getEnv("FEE_SCHEDULE_PATH", "")
	if cfg.FeeSchedulePath != "" {
		if _, statErr := os.Stat(cfg.FeeSchedulePath); statErr != nil {
			errs = append(errs, fmt.Sprintf("FEE_SCHEDULE_PATH is not readable: %v", statErr))
		}
	}

	// Accounts
	cfg.AccountTimezone = getEnv("ACCOUNT_TIMEZONE", "UTC")
	cfg.Location, err = time.LoadLocation(cfg.AccountTimezone)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ACCOUNT_TIMEZONE %q: %v", cfg.AccountTimezone, err))
	}
	cfg.DefaultUserID = strings.TrimSpace(getEnv("DEFAULT_USER_ID", "default"))
	if cfg.DefaultUserID == "" {
		errs = append(errs, "DEFAULT_USER_ID must not be blank")
	}

	// HTTP
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}
