package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/inkwell-io/inkwell/pkg/auth"
	"github.com/inkwell-io/inkwell/pkg/observability"
	"github.com/inkwell-io/inkwell/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Auth          AuthConfig
	Storage       storage.Config
	SMTP          SMTPConfig
	Google        GoogleConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// AuthConfig holds the authentication tunables. The access-token TTL and
// the reset-ticket TTL are independent knobs, not derived from each other.
type AuthConfig struct {
	TokenSecret  string
	TokenTTL     time.Duration
	ResetTTL     time.Duration
	ResetURLBase string

	// ResetSweepSchedule is the cron expression for clearing lapsed reset
	// tickets.
	ResetSweepSchedule string
}

// SMTPConfig holds the outbound email transport configuration.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// GoogleConfig holds the federated identity provider configuration.
type GoogleConfig struct {
	Enabled      bool
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Auth:          loadAuthConfig(),
		Storage:       loadStorageConfig(),
		SMTP:          loadSMTPConfig(),
		Google:        loadGoogleConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("INKWELL_HOST", "0.0.0.0"),
		Port:            getEnv("INKWELL_PORT", "8080"),
		ReadTimeout:     getEnvDuration("INKWELL_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("INKWELL_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("INKWELL_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("INKWELL_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("INKWELL_HEALTH_PORT", "9090"),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		TokenSecret:        getEnv("INKWELL_TOKEN_SECRET", ""),
		TokenTTL:           getEnvDuration("INKWELL_TOKEN_TTL", time.Hour),
		ResetTTL:           getEnvDuration("INKWELL_RESET_TTL", auth.DefaultResetTTL),
		ResetURLBase:       getEnv("INKWELL_RESET_URL_BASE", "http://localhost:5173/reset-password"),
		ResetSweepSchedule: getEnv("INKWELL_RESET_SWEEP_SCHEDULE", "*/10 * * * *"),
	}
}

func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if pgURL := getEnv("INKWELL_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if maxConns := getEnvInt("INKWELL_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("INKWELL_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("INKWELL_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	if redisURL := getEnv("INKWELL_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("INKWELL_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if cacheEnabled := getEnv("INKWELL_CACHE_ENABLED", ""); cacheEnabled != "" {
		cfg.CacheEnabled = strings.ToLower(cacheEnabled) == "true"
	}
	if cacheTTL := getEnvDuration("INKWELL_CACHE_TTL", 0); cacheTTL > 0 {
		cfg.CacheTTL = cacheTTL
	}

	if s3Endpoint := getEnv("INKWELL_S3_ENDPOINT", ""); s3Endpoint != "" {
		cfg.S3Endpoint = s3Endpoint
	}
	if s3Region := getEnv("INKWELL_S3_REGION", ""); s3Region != "" {
		cfg.S3Region = s3Region
	}
	if s3Bucket := getEnv("INKWELL_S3_BUCKET", ""); s3Bucket != "" {
		cfg.S3Bucket = s3Bucket
	}
	if s3AccessKey := getEnv("INKWELL_S3_ACCESS_KEY", ""); s3AccessKey != "" {
		cfg.S3AccessKey = s3AccessKey
	}
	if s3SecretKey := getEnv("INKWELL_S3_SECRET_KEY", ""); s3SecretKey != "" {
		cfg.S3SecretKey = s3SecretKey
	}
	if s3UsePathStyle := getEnv("INKWELL_S3_USE_PATH_STYLE", ""); s3UsePathStyle != "" {
		cfg.S3UsePathStyle = strings.ToLower(s3UsePathStyle) == "true"
	}

	return cfg
}

func loadSMTPConfig() SMTPConfig {
	return SMTPConfig{
		Host:     getEnv("INKWELL_SMTP_HOST", ""),
		Port:     getEnvInt("INKWELL_SMTP_PORT", 587),
		Username: getEnv("INKWELL_SMTP_USERNAME", ""),
		Password: getEnv("INKWELL_SMTP_PASSWORD", ""),
		From:     getEnv("INKWELL_SMTP_FROM", ""),
	}
}

func loadGoogleConfig() GoogleConfig {
	return GoogleConfig{
		Enabled:      getEnvBool("INKWELL_GOOGLE_ENABLED", false),
		IssuerURL:    getEnv("INKWELL_GOOGLE_ISSUER_URL", "https://accounts.google.com"),
		ClientID:     getEnv("INKWELL_GOOGLE_CLIENT_ID", ""),
		ClientSecret: getEnv("INKWELL_GOOGLE_CLIENT_SECRET", ""),
		RedirectURL:  getEnv("INKWELL_GOOGLE_REDIRECT_URL", ""),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("INKWELL_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("INKWELL_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("INKWELL_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("INKWELL_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("INKWELL_OTEL_SERVICE_NAME", "inkwell-auth"),
		OTelServiceVersion: getEnv("INKWELL_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("INKWELL_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("INKWELL_TOKEN_SECRET is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.Auth.ResetTTL <= 0 {
		return fmt.Errorf("reset TTL must be positive")
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("INKWELL_POSTGRES_URL is required")
	}

	if c.Google.Enabled {
		if c.Google.ClientID == "" || c.Google.ClientSecret == "" || c.Google.RedirectURL == "" {
			return fmt.Errorf("google client ID, secret and redirect URL are required when google login is enabled")
		}
	}

	if c.Observability.OTelEnabled && c.Observability.OTelEndpoint == "" {
		return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
