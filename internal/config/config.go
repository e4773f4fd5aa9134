// Package config provides configuration management for the gateway.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/netopscore/netops-gateway/internal/security"
)

// Config holds all configuration for the gateway.
type Config struct {
	// Discovery and transport
	DirectoryURL      string `json:"directory_url"`
	RedisURL          string `json:"redis_url"`
	GatewayPort       int    `json:"gateway_port"`
	DirectoryAuthMode string `json:"directory_auth_mode"` // none, bearer, basic
	DirectoryToken    string `json:"directory_token,omitempty"`
	DirectoryUsername string `json:"directory_username,omitempty"`
	DirectoryPassword string `json:"directory_password,omitempty"`

	// Intelligence core
	CorrelationWindowSeconds int     `json:"correlation_window_seconds"`
	AnomalySensitivity       float64 `json:"anomaly_sensitivity"`
	EventBufferCapacity      int     `json:"event_buffer_capacity"`
	RCATemplateFile          string  `json:"rca_template_file,omitempty"`

	// Routing
	RefreshInterval time.Duration `json:"refresh_interval"`
	ForwardTimeout  time.Duration `json:"forward_timeout"`

	// HTTP client (directory)
	Timeout         time.Duration `json:"timeout"`
	MaxRetries      int           `json:"max_retries"`
	RetryWaitMin    time.Duration `json:"retry_wait_min"`
	RetryWaitMax    time.Duration `json:"retry_wait_max"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	IdleConnTimeout time.Duration `json:"idle_conn_timeout"`

	// Rate limiting (outbound directory calls)
	RateLimit       int  `json:"rate_limit"`
	RateLimitBurst  int  `json:"rate_limit_burst"`
	EnableRateLimit bool `json:"enable_rate_limit"`

	// Observability
	EnableTracing   bool `json:"enable_tracing"`
	EnableAuditLog  bool `json:"enable_audit_log"`
	MetricsEndpoint bool `json:"metrics_endpoint"`

	// Lifecycle
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`

	// Logging
	LogLevel    string `json:"log_level"`
	Environment string `json:"environment"`
}

// Load builds the configuration from defaults, an optional JSON file named
// by CONFIG_FILE, and environment variables, in that order of precedence.
func Load() (*Config, error) {
	cfg := &Config{
		DirectoryURL:      "http://localhost:8888",
		RedisURL:          "redis://localhost:6379/0",
		GatewayPort:       8000,
		DirectoryAuthMode: "none",

		CorrelationWindowSeconds: 300,
		AnomalySensitivity:       0.85,
		EventBufferCapacity:      10000,

		RefreshInterval: 60 * time.Second,
		ForwardTimeout:  60 * time.Second,

		Timeout:         15 * time.Second,
		MaxRetries:      3,
		RetryWaitMin:    1 * time.Second,
		RetryWaitMax:    30 * time.Second,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,

		RateLimit:       100,
		RateLimitBurst:  20,
		EnableRateLimit: true,

		EnableTracing:   false,
		EnableAuditLog:  true,
		MetricsEndpoint: true,

		ShutdownTimeout: 5 * time.Second,

		LogLevel:    "info",
		Environment: "development",
	}

	if configFile := os.Getenv("CONFIG_FILE"); configFile != "" {
		if err := loadFromFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("invalid file path: path traversal detected")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 -- path is validated above
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return json.Unmarshal(data, cfg)
}

func loadFromEnv(cfg *Config) {
	if v := os.Getenv("DIRECTORY_URL"); v != "" {
		cfg.DirectoryURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("GATEWAY_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.GatewayPort = port
		}
	}
	if v := os.Getenv("DIRECTORY_AUTH_MODE"); v != "" {
		cfg.DirectoryAuthMode = strings.ToLower(v)
	}
	if v := os.Getenv("DIRECTORY_TOKEN"); v != "" {
		cfg.DirectoryToken = v
	}
	if v := os.Getenv("DIRECTORY_USERNAME"); v != "" {
		cfg.DirectoryUsername = v
	}
	if v := os.Getenv("DIRECTORY_PASSWORD"); v != "" {
		cfg.DirectoryPassword = v
	}
	if v := os.Getenv("CORRELATION_WINDOW_SECONDS"); v != "" {
		var window int
		if _, err := fmt.Sscanf(v, "%d", &window); err == nil {
			cfg.CorrelationWindowSeconds = window
		}
	}
	if v := os.Getenv("ANOMALY_SENSITIVITY"); v != "" {
		var sensitivity float64
		if _, err := fmt.Sscanf(v, "%f", &sensitivity); err == nil {
			cfg.AnomalySensitivity = sensitivity
		}
	}
	if v := os.Getenv("EVENT_BUFFER_CAPACITY"); v != "" {
		var capacity int
		if _, err := fmt.Sscanf(v, "%d", &capacity); err == nil {
			cfg.EventBufferCapacity = capacity
		}
	}
	if v := os.Getenv("RCA_TEMPLATE_FILE"); v != "" {
		cfg.RCATemplateFile = v
	}
	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RefreshInterval = d
		}
	}
	if v := os.Getenv("FORWARD_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ForwardTimeout = d
		}
	}
	if v := os.Getenv("DIRECTORY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = d
		}
	}
	if v := os.Getenv("MAX_RETRIES"); v != "" {
		var retries int
		if _, err := fmt.Sscanf(v, "%d", &retries); err == nil {
			cfg.MaxRetries = retries
		}
	}
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		var limit int
		if _, err := fmt.Sscanf(v, "%d", &limit); err == nil {
			cfg.RateLimit = limit
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		var burst int
		if _, err := fmt.Sscanf(v, "%d", &burst); err == nil {
			cfg.RateLimitBurst = burst
		}
	}
	if v := os.Getenv("ENABLE_RATE_LIMIT"); v != "" {
		cfg.EnableRateLimit = v == "true" || v == "1"
	}
	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		cfg.EnableTracing = v == "true" || v == "1"
	}
	if v := os.Getenv("ENABLE_AUDIT_LOG"); v != "" {
		cfg.EnableAuditLog = v == "true" || v == "1"
	}
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		cfg.MetricsEndpoint = v == "true" || v == "1"
	}
	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.DirectoryURL == "" {
		return errors.New("DIRECTORY_URL is required")
	}
	if c.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	if c.GatewayPort <= 0 || c.GatewayPort > 65535 {
		return fmt.Errorf("invalid gateway port: %d", c.GatewayPort)
	}
	if c.CorrelationWindowSeconds < 30 || c.CorrelationWindowSeconds > 3600 {
		return fmt.Errorf("correlation window must be 30-3600 seconds, got %d", c.CorrelationWindowSeconds)
	}
	if c.AnomalySensitivity < 0 || c.AnomalySensitivity > 1 {
		return fmt.Errorf("anomaly sensitivity must be 0.0-1.0, got %g", c.AnomalySensitivity)
	}
	if c.EventBufferCapacity <= 0 {
		return errors.New("event buffer capacity must be positive")
	}
	if c.RefreshInterval <= 0 {
		return errors.New("refresh interval must be positive")
	}
	if c.ForwardTimeout <= 0 {
		return errors.New("forward timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("max_retries must be non-negative")
	}
	if c.RateLimit <= 0 && c.EnableRateLimit {
		return errors.New("rate_limit must be positive when rate limiting is enabled")
	}

	switch c.DirectoryAuthMode {
	case "none", "":
	case "bearer":
		if c.DirectoryToken == "" {
			return errors.New("DIRECTORY_TOKEN is required for bearer auth")
		}
	case "basic":
		if c.DirectoryUsername == "" || c.DirectoryPassword == "" {
			return errors.New("DIRECTORY_USERNAME and DIRECTORY_PASSWORD are required for basic auth")
		}
	default:
		return fmt.Errorf("invalid directory auth mode: %s", c.DirectoryAuthMode)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	return nil
}

// Redact returns a copy of the config with sensitive data masked.
func (c *Config) Redact() *Config {
	redacted := *c
	redacted.RedisURL = security.MaskURLCredentials(redacted.RedisURL)
	redacted.DirectoryToken = security.MaskToken(redacted.DirectoryToken)
	redacted.DirectoryPassword = security.MaskToken(redacted.DirectoryPassword)
	return &redacted
}
