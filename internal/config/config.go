package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DevSessionSecret is the fallback used when SESSION_SECRET is not configured.
// Running with it is a documented degraded mode, never a startup failure.
const DevSessionSecret = "dev-secret-change-me"

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port string
	Env  string
}

type AuthConfig struct {
	// SessionSecret signs the session-state cookie. Optional; absence selects
	// the dev fallback and SessionSecretConfigured stays false so the degraded
	// mode can be logged.
	SessionSecret           string
	SessionSecretConfigured bool

	// MFAEncryptionKey protects MFA secrets at rest. Optional; absence selects
	// plaintext storage (degraded, logged).
	MFAEncryptionKey string

	Issuer string // label for TOTP provisioning URIs

	MaxFailedAttempts int
	LockoutWindow     time.Duration
	LockoutDuration   time.Duration

	TrustDuration time.Duration // trusted-device lifetime
	SessionTTL    time.Duration // session row expiry
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	sessionSecret := getEnv("SESSION_SECRET", "")
	configured := sessionSecret != ""
	if !configured {
		sessionSecret = DevSessionSecret
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "authcore"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Auth: AuthConfig{
			SessionSecret:           sessionSecret,
			SessionSecretConfigured: configured,
			MFAEncryptionKey:        getEnv("MFA_SECRET_KEY", ""),
			Issuer:                  getEnv("MFA_ISSUER", "Catkeep"),
			MaxFailedAttempts:       getEnvAsInt("AUTH_MAX_FAILED_ATTEMPTS", 5),
			LockoutWindow:           getEnvAsDuration("AUTH_LOCKOUT_WINDOW", 15*time.Minute),
			LockoutDuration:         getEnvAsDuration("AUTH_LOCKOUT_DURATION", 15*time.Minute),
			TrustDuration:           getEnvAsDuration("AUTH_DEVICE_TRUST_DURATION", 30*24*time.Hour),
			SessionTTL:              getEnvAsDuration("AUTH_SESSION_TTL", 90*24*time.Hour),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	return cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
