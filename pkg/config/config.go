package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the optional YAML file read before the environment
const ConfigFileEnv = "AUTHGATE_CONFIG_FILE"

// FrontendCallbackPath is appended to the frontend base URL for the final redirect
const FrontendCallbackPath = "/sso/google/callback"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	SSO           SSOConfig           `yaml:"sso"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	JWT           JWTConfig           `yaml:"jwt"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig selects the account store
type DatabaseConfig struct {
	Driver   string        `yaml:"driver"`
	URL      string        `yaml:"url"`
	MaxConns int           `yaml:"max_conns"`
	MinConns int           `yaml:"min_conns"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SSOConfig holds the Google client and state token settings
type SSOConfig struct {
	GoogleClientID     string        `yaml:"google_client_id"`
	GoogleClientSecret string        `yaml:"google_client_secret"`
	GoogleRedirectURI  string        `yaml:"google_redirect_uri"`
	FrontendBaseURL    string        `yaml:"frontend_base_url"`
	StateSecret        string        `yaml:"state_secret"`
	StateTTL           time.Duration `yaml:"state_ttl"`
	HTTPTimeout        time.Duration `yaml:"http_timeout"`
}

// FrontendCallbackURL is where the browser lands after the callback
func (c SSOConfig) FrontendCallbackURL() string {
	return strings.TrimSuffix(c.FrontendBaseURL, "/") + FrontendCallbackPath
}

// GoogleConfigured reports whether both Google client credentials are set
func (c SSOConfig) GoogleConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// RateLimitConfig holds the rate gate settings
type RateLimitConfig struct {
	// RedisURL selects the shared backend; empty keeps counters in process
	RedisURL          string        `yaml:"redis_url"`
	TrustForwardedFor bool          `yaml:"trust_forwarded_for"`
	StartLimit        int           `yaml:"start_limit"`
	StartWindow       time.Duration `yaml:"start_window"`
	CallbackLimit     int           `yaml:"callback_limit"`
	CallbackWindow    time.Duration `yaml:"callback_window"`
	MemoryCapacity    int           `yaml:"memory_capacity"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
}

// JWTConfig holds access token settings
type JWTConfig struct {
	Secret    string        `yaml:"secret"`
	AccessTTL time.Duration `yaml:"access_ttl"`
	Issuer    string        `yaml:"issuer"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			Driver:   "postgres",
			MaxConns: 20,
			MinConns: 2,
			Timeout:  5 * time.Second,
		},
		SSO: SSOConfig{
			GoogleRedirectURI: "http://localhost:8000/api/auth/sso/google/callback",
			FrontendBaseURL:   "http://localhost:3000",
			StateTTL:          10 * time.Minute,
			HTTPTimeout:       10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			StartLimit:      30,
			StartWindow:     5 * time.Minute,
			CallbackLimit:   60,
			CallbackWindow:  10 * time.Minute,
			MemoryCapacity:  100_000,
			CleanupInterval: time.Minute,
		},
		JWT: JWTConfig{
			AccessTTL: time.Hour,
			Issuer:    "authgate",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			LogFormat:          "json",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "authgate",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig loads configuration from the optional YAML file named by
// AUTHGATE_CONFIG_FILE, then from environment variables, which take precedence.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() {
	c.Server = ServerConfig{
		Host:            getEnv("AUTHGATE_HOST", c.Server.Host),
		Port:            getEnv("AUTHGATE_PORT", c.Server.Port),
		ReadTimeout:     getEnvDuration("AUTHGATE_READ_TIMEOUT", c.Server.ReadTimeout),
		WriteTimeout:    getEnvDuration("AUTHGATE_WRITE_TIMEOUT", c.Server.WriteTimeout),
		IdleTimeout:     getEnvDuration("AUTHGATE_IDLE_TIMEOUT", c.Server.IdleTimeout),
		ShutdownTimeout: getEnvDuration("AUTHGATE_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout),
		HealthPort:      getEnv("AUTHGATE_HEALTH_PORT", c.Server.HealthPort),
	}

	c.Database = DatabaseConfig{
		Driver:   getEnv("DATABASE_DRIVER", c.Database.Driver),
		URL:      getEnv("DATABASE_URL", c.Database.URL),
		MaxConns: getEnvInt("DATABASE_MAX_CONNS", c.Database.MaxConns),
		MinConns: getEnvInt("DATABASE_MIN_CONNS", c.Database.MinConns),
		Timeout:  getEnvDuration("DATABASE_TIMEOUT", c.Database.Timeout),
	}

	c.JWT = JWTConfig{
		Secret:    getEnv("JWT_SECRET", c.JWT.Secret),
		AccessTTL: getEnvDuration("JWT_ACCESS_TTL", c.JWT.AccessTTL),
		Issuer:    getEnv("JWT_ISSUER", c.JWT.Issuer),
	}

	c.SSO = SSOConfig{
		GoogleClientID:     getEnv("GOOGLE_OAUTH_CLIENT_ID", c.SSO.GoogleClientID),
		GoogleClientSecret: getEnv("GOOGLE_OAUTH_CLIENT_SECRET", c.SSO.GoogleClientSecret),
		GoogleRedirectURI:  getEnv("GOOGLE_OAUTH_REDIRECT_URI", c.SSO.GoogleRedirectURI),
		FrontendBaseURL:    getEnv("FRONTEND_BASE_URL", c.SSO.FrontendBaseURL),
		StateSecret:        getEnv("SSO_STATE_SECRET", c.SSO.StateSecret),
		StateTTL:           getEnvDuration("SSO_STATE_TTL", c.SSO.StateTTL),
		HTTPTimeout:        getEnvDuration("SSO_HTTP_TIMEOUT", c.SSO.HTTPTimeout),
	}
	if c.SSO.StateSecret == "" {
		c.SSO.StateSecret = c.JWT.Secret
	}

	c.RateLimit = RateLimitConfig{
		RedisURL:          getEnv("REDIS_URL", c.RateLimit.RedisURL),
		TrustForwardedFor: getEnvBool("AUTHGATE_TRUST_FORWARDED_FOR", c.RateLimit.TrustForwardedFor),
		StartLimit:        getEnvInt("SSO_START_RATE_LIMIT", c.RateLimit.StartLimit),
		StartWindow:       getEnvDuration("SSO_START_RATE_WINDOW", c.RateLimit.StartWindow),
		CallbackLimit:     getEnvInt("SSO_CALLBACK_RATE_LIMIT", c.RateLimit.CallbackLimit),
		CallbackWindow:    getEnvDuration("SSO_CALLBACK_RATE_WINDOW", c.RateLimit.CallbackWindow),
		MemoryCapacity:    getEnvInt("RATE_LIMIT_MEMORY_CAPACITY", c.RateLimit.MemoryCapacity),
		CleanupInterval:   getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", c.RateLimit.CleanupInterval),
	}

	c.Observability = ObservabilityConfig{
		LogLevel:           strings.ToLower(getEnv("AUTHGATE_LOG_LEVEL", c.Observability.LogLevel)),
		LogFormat:          strings.ToLower(getEnv("AUTHGATE_LOG_FORMAT", c.Observability.LogFormat)),
		MetricsEnabled:     getEnvBool("AUTHGATE_METRICS_ENABLED", c.Observability.MetricsEnabled),
		OTelEnabled:        getEnvBool("AUTHGATE_OTEL_ENABLED", c.Observability.OTelEnabled),
		OTelEndpoint:       getEnv("AUTHGATE_OTEL_ENDPOINT", c.Observability.OTelEndpoint),
		OTelServiceName:    getEnv("AUTHGATE_OTEL_SERVICE_NAME", c.Observability.OTelServiceName),
		OTelServiceVersion: getEnv("AUTHGATE_OTEL_SERVICE_VERSION", c.Observability.OTelServiceVersion),
		OTelInsecure:       getEnvBool("AUTHGATE_OTEL_INSECURE", c.Observability.OTelInsecure),
		OTelSampleRatio:    getEnvFloat("AUTHGATE_OTEL_SAMPLE_RATIO", c.Observability.OTelSampleRatio),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if c.Server.HealthPort == "" {
		return errors.New("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return errors.New("server port and health port must be different")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return errors.New("database URL is required")
	}

	if c.JWT.Secret == "" {
		return errors.New("JWT secret is required")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT access TTL must be positive")
	}

	frontend, err := url.Parse(c.SSO.FrontendBaseURL)
	if err != nil || frontend.Scheme == "" || frontend.Host == "" {
		return fmt.Errorf("frontend base URL must be an absolute URL: %q", c.SSO.FrontendBaseURL)
	}
	if c.SSO.StateTTL <= 0 {
		return errors.New("SSO state TTL must be positive")
	}
	if c.SSO.HTTPTimeout <= 0 {
		return errors.New("SSO HTTP timeout must be positive")
	}

	if c.RateLimit.StartLimit <= 0 || c.RateLimit.CallbackLimit <= 0 {
		return errors.New("rate limits must be positive")
	}
	if c.RateLimit.StartWindow <= 0 || c.RateLimit.CallbackWindow <= 0 {
		return errors.New("rate limit windows must be positive")
	}
	if c.RateLimit.MemoryCapacity <= 0 {
		return errors.New("rate limit memory capacity must be positive")
	}
	if c.RateLimit.CleanupInterval <= 0 {
		return errors.New("rate limit cleanup interval must be positive")
	}

	if _, err := logrus.ParseLevel(c.Observability.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Observability.LogLevel)
	}
	switch c.Observability.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Observability.LogFormat)
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return errors.New("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return errors.New("OpenTelemetry service name is required when OTel is enabled")
		}
	}
	if c.Observability.OTelSampleRatio < 0 || c.Observability.OTelSampleRatio > 1 {
		return errors.New("OpenTelemetry sample ratio must be between 0 and 1")
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
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
