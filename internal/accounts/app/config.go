package app

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseFile string // Optional: path to SQLite database file (default: ./sandcastle.db)

	LogoutWindow time.Duration // Inactivity before a session expires (default: 60s)
	DeleteWindow time.Duration // Further inactivity before the account is deleted (default: 120s)

	AutoDelete        bool // Delete fully idle accounts (default: true)
	CheckRemoteLogout bool // Report sessions superseded by a newer login (default: true)

	AdminName     string // Name of the recreated admin account (default: admin)
	AdminPassword string // Password of the recreated admin account (default: admin)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
	SweepInterval       time.Duration // Background lifecycle sweep interval (default: 1m)
}

func LoadConfig() Config {
	return Config{
		DatabaseFile: getEnvOrDefault("SANDCASTLE_DATABASE_FILE", "sandcastle.db"),

		LogoutWindow: getEnvDurationOrDefault("SANDCASTLE_LOGOUT_WINDOW", 60*time.Second),
		DeleteWindow: getEnvDurationOrDefault("SANDCASTLE_DELETE_WINDOW", 120*time.Second),

		AutoDelete:        getEnvBoolOrDefault("SANDCASTLE_AUTO_DELETE", true),
		CheckRemoteLogout: getEnvBoolOrDefault("SANDCASTLE_CHECK_REMOTE_LOGOUT", true),

		AdminName:     getEnvOrDefault("SANDCASTLE_ADMIN_NAME", "admin"),
		AdminPassword: getEnvOrDefault("SANDCASTLE_ADMIN_PASSWORD", "admin"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		SweepInterval:       getEnvDurationOrDefault("SANDCASTLE_SWEEP_INTERVAL", time.Minute),
	}
}

// Validate rejects configurations the lifecycle engine cannot run with.
func (cfg Config) Validate() error {
	if cfg.LogoutWindow <= 0 {
		return fmt.Errorf("logout window must be positive, got %s", cfg.LogoutWindow)
	}
	if cfg.DeleteWindow < 0 {
		return fmt.Errorf("delete window must not be negative, got %s", cfg.DeleteWindow)
	}
	if cfg.AdminName == "" {
		return fmt.Errorf("admin name must not be empty")
	}
	if cfg.AdminPassword == "" {
		return fmt.Errorf("admin password must not be empty")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
