package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the stock ledger processes.
type Config struct {
	DatabaseURL     string
	DBMaxConns      int
	ServerPort      int
	AllowedOrigins  string
	JWTSecret       string
	LogLevel        string
	LogEncoding     string
	LockTimeout     time.Duration
	RetryAttempts   int
	RetryBackoff    time.Duration
	MetricsPrefix   string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. Callers load .env files (godotenv) before calling it.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	maxConns, err := getInt("DB_MAX_CONNS", 10)
	if err != nil || maxConns < 1 {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: must be a positive integer")
	}

	port, err := getInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	logEncoding := getStr("LOG_ENCODING", "json")
	if logEncoding != "json" && logEncoding != "console" {
		return nil, fmt.Errorf("invalid LOG_ENCODING: %q, must be json or console", logEncoding)
	}

	lockTimeout, err := getDuration("LOCK_TIMEOUT", 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid LOCK_TIMEOUT: %w", err)
	}

	attempts, err := getInt("RETRY_MAX_ATTEMPTS", 3)
	if err != nil || attempts < 1 {
		return nil, fmt.Errorf("invalid RETRY_MAX_ATTEMPTS: must be a positive integer")
	}

	backoff, err := getDuration("RETRY_BACKOFF", 25*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_BACKOFF: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		DatabaseURL:     dbURL,
		DBMaxConns:      maxConns,
		ServerPort:      port,
		AllowedOrigins:  os.Getenv("ALLOWED_ORIGINS"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		LogLevel:        logLevel,
		LogEncoding:     logEncoding,
		LockTimeout:     lockTimeout,
		RetryAttempts:   attempts,
		RetryBackoff:    backoff,
		MetricsPrefix:   getStr("METRICS_PREFIX", "stockledger"),
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
