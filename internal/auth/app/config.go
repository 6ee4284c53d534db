package app

import (
	"os"
	"strconv"
	"time"

	"github.com/shelfkeeper/shelfkeeper/pkg/jwtx"
)

type Config struct {
	Issuer    string // Required: issuer claim for tokens
	MFAIssuer string // Optional: issuer label in authenticator apps (default: Shelfkeeper)

	Algorithm    string // Optional: JWT signing algorithm (EdDSA, ES256) (default: EdDSA)
	NumKeys      int    // Optional: number of signing keys to generate (default: 3)
	DatabaseFile string // Optional: path to SQLite database file (default: ./auth.db)
	PepperFile   string // Optional: path to the password hashing pepper file (default: ./pepper)

	AccessTokenTTL  time.Duration // Access token lifetime (default: 30m)
	RefreshTokenTTL time.Duration // Refresh token lifetime (default: 168h)
	ChallengeTTL    time.Duration // Pending MFA challenge lifetime (default: 5m)

	LoginAttemptLimit  int           // Failed login budget per identifier (default: 5)
	LoginAttemptWindow time.Duration // Window for the login budget (default: 5m)
	RedisAddr          string        // Optional: redis backend for login counters; empty = in-process

	// Optional: seed a super_admin account at startup when none exists.
	// All three must be set for seeding to happen.
	AdminUsername string
	AdminEmail    string
	AdminPassword string

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping sweep interval (default: 1h)
	AuditRetention       time.Duration // How long audit events are kept (default: 2160h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:    os.Getenv("AUTH_ISSUER"),
		MFAIssuer: getEnvOrDefault("AUTH_MFA_ISSUER", "Shelfkeeper"),

		Algorithm:    getEnvOrDefault("AUTH_ALGORITHM", "EdDSA"),
		NumKeys:      getEnvIntOrDefault("AUTH_NUM_KEYS", 0),
		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PepperFile:   getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),

		AccessTokenTTL:  getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTokenTTL: getEnvDurationOrDefault("AUTH_REFRESH_TOKEN_TTL", jwtx.DefaultRefreshTokenTTL),
		ChallengeTTL:    getEnvDurationOrDefault("AUTH_CHALLENGE_TTL", 5*time.Minute),

		LoginAttemptLimit:  getEnvIntOrDefault("AUTH_LOGIN_ATTEMPT_LIMIT", 5),
		LoginAttemptWindow: getEnvDurationOrDefault("AUTH_LOGIN_ATTEMPT_WINDOW", 5*time.Minute),
		RedisAddr:          os.Getenv("AUTH_REDIS_ADDR"),

		AdminUsername: os.Getenv("AUTH_ADMIN_USERNAME"),
		AdminEmail:    os.Getenv("AUTH_ADMIN_EMAIL"),
		AdminPassword: os.Getenv("AUTH_ADMIN_PASSWORD"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),
		AuditRetention:       getEnvDurationOrDefault("AUDIT_RETENTION", 90*24*time.Hour),
	}

	if cfg.Issuer == "" {
		cfg.Issuer = "shelfkeeper-auth"
	}

	return cfg
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

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
