package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the backend configuration
type Config struct {
	// Database connection string (DSN)
	DatabaseURL string

	// Server bind address (host:port)
	ServerAddr string

	// Public base URL of this API
	ServerURL string

	// Origin of the web application; password-reset links must point here
	AppOrigin string

	// Maximum database connection pool size
	MaxDBConnections int

	// Enable debug logging
	Debug bool

	// Session token configuration
	Auth AuthConfig

	// Sign-up saga reconciliation
	Provisioning ProvisioningConfig

	// Allowed browser origins for CORS
	CORSAllowedOrigins []string

	Logging       LoggingConfig
	Observability ObservabilityConfig
}

// AuthConfig controls token issuance.
type AuthConfig struct {
	// SigningKey is the HMAC key for session JWTs. When empty a random key is
	// generated at startup and every restart invalidates issued sessions.
	SigningKey string

	// SessionTTL bounds the lifetime of a session token
	SessionTTL time.Duration

	// ResetTokenTTL bounds the lifetime of a password-reset link
	ResetTokenTTL time.Duration

	// AutoConfirm issues a session at sign-up. When false the caller must
	// sign in separately.
	AutoConfirm bool
}

// ProvisioningConfig controls the background backfill of profiles and
// default roles for accounts whose sign-up follow-up did not finish.
type ProvisioningConfig struct {
	Interval    time.Duration
	Grace       time.Duration
	MaxAttempts int
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
	Output string // stdout, stderr
}

// ObservabilityConfig configures OpenTelemetry export. An empty endpoint
// disables telemetry.
type ObservabilityConfig struct {
	OTLPEndpoint   string
	OTLPProtocol   string
	OTLPInsecure   bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	// SampleRatio is the fraction of root traces kept, 0 to 1.
	SampleRatio float64
}

// Load reads configuration from environment variables with fallback defaults
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", "file:estate.db?cache=shared"),
		ServerAddr:       getEnv("SERVER_ADDR", "localhost:8080"),
		ServerURL:        getEnv("SERVER_URL", "http://localhost:8080"),
		AppOrigin:        getEnv("APP_ORIGIN", "http://localhost:5173"),
		MaxDBConnections: getEnvInt("MAX_DB_CONNECTIONS", 25),
		Debug:            getEnvBool("DEBUG", false),
		Auth: AuthConfig{
			SigningKey:    getEnv("JWT_SIGNING_KEY", ""),
			SessionTTL:    getEnvDuration("SESSION_TTL", time.Hour),
			ResetTokenTTL: getEnvDuration("RESET_TOKEN_TTL", 30*time.Minute),
			AutoConfirm:   getEnvBool("AUTH_AUTO_CONFIRM", true),
		},
		Provisioning: ProvisioningConfig{
			Interval:    getEnvDuration("PROVISIONING_INTERVAL", time.Minute),
			Grace:       getEnvDuration("PROVISIONING_GRACE", 2*time.Minute),
			MaxAttempts: getEnvInt("PROVISIONING_MAX_ATTEMPTS", 10),
		},
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Observability: ObservabilityConfig{
			OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPProtocol:   getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", "http/protobuf"),
			OTLPInsecure:   getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "estateapi"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			Environment:    getEnv("DEPLOYMENT_ENVIRONMENT", "development"),
			SampleRatio:    getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}

	if cfg.Debug {
		cfg.Logging.Level = "debug"
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("SERVER_URL is required")
	}

	if _, err := url.ParseRequestURI(cfg.AppOrigin); err != nil {
		return nil, fmt.Errorf("APP_ORIGIN must be an absolute URL: %w", err)
	}

	if cfg.Auth.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive")
	}

	if cfg.Auth.SigningKey != "" && len(cfg.Auth.SigningKey) < 32 {
		return nil, fmt.Errorf("JWT_SIGNING_KEY must be at least 32 bytes")
	}

	if r := cfg.Observability.SampleRatio; r < 0 || r > 1 {
		return nil, fmt.Errorf("OTEL_TRACES_SAMPLER_ARG must be between 0 and 1, got %v", r)
	}

	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{cfg.AppOrigin}
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (e.g. "15m") or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
