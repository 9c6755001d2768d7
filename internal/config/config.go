// ABOUTME: Configuration loading and parsing for the silverfox relay
// ABOUTME: Supports YAML files with environment variable expansion, defaults and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied to fields left empty in the config file.
const (
	DefaultHTTPAddr            = "0.0.0.0:3456"
	DefaultDatabasePath        = "./data/silverfox.db"
	DefaultOpenClawURL         = "http://localhost:8080"
	DefaultSessionKey          = "agent:main:main"
	DefaultRequestTimeout      = 10 * time.Second
	DefaultReplyTimeout        = 30 * time.Second
	DefaultPollInterval        = time.Second
	DefaultHistoryLimit        = 5
	DefaultFingerprintCapacity = 1000
	DefaultMaxContentLength    = 10000
	DefaultStatusInterval      = 5 * time.Second
	DefaultMetricsPath         = "/metrics"
)

// Config represents the complete silverfox configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	OpenClaw  OpenClawConfig  `yaml:"openclaw"`
	Relay     RelayConfig     `yaml:"relay"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// OpenClawConfig describes the agent runtime the relay talks to
type OpenClawConfig struct {
	URL        string `yaml:"url"`
	SessionKey string `yaml:"session_key"`

	RequestTimeout    time.Duration `yaml:"-"`
	RequestTimeoutRaw string        `yaml:"request_timeout"`
}

// RelayConfig holds reply correlation tuning
type RelayConfig struct {
	ReplyTimeout   time.Duration `yaml:"-"`
	PollInterval   time.Duration `yaml:"-"`
	StatusInterval time.Duration `yaml:"-"`

	HistoryLimit        int `yaml:"history_limit"`
	FingerprintCapacity int `yaml:"fingerprint_capacity"`
	MaxContentLength    int `yaml:"max_content_length"`

	// Raw string values for YAML unmarshaling
	ReplyTimeoutRaw   string `yaml:"reply_timeout"`
	PollIntervalRaw   string `yaml:"poll_interval"`
	StatusIntervalRaw string `yaml:"status_interval"`
}

// WebSocketConfig holds viewer channel settings
type WebSocketConfig struct {
	// AllowedOrigins restricts browser origins; empty allows any
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values and defaults fill empty fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from raw YAML bytes.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a fully populated configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.OpenClaw.URL == "" {
		c.OpenClaw.URL = DefaultOpenClawURL
	}
	if c.OpenClaw.SessionKey == "" {
		c.OpenClaw.SessionKey = DefaultSessionKey
	}
	if c.OpenClaw.RequestTimeout == 0 {
		c.OpenClaw.RequestTimeout = DefaultRequestTimeout
	}
	if c.Relay.ReplyTimeout == 0 {
		c.Relay.ReplyTimeout = DefaultReplyTimeout
	}
	if c.Relay.PollInterval == 0 {
		c.Relay.PollInterval = DefaultPollInterval
	}
	if c.Relay.StatusInterval == 0 {
		c.Relay.StatusInterval = DefaultStatusInterval
	}
	if c.Relay.HistoryLimit == 0 {
		c.Relay.HistoryLimit = DefaultHistoryLimit
	}
	if c.Relay.FingerprintCapacity == 0 {
		c.Relay.FingerprintCapacity = DefaultFingerprintCapacity
	}
	if c.Relay.MaxContentLength == 0 {
		c.Relay.MaxContentLength = DefaultMaxContentLength
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	u, err := url.Parse(c.OpenClaw.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("openclaw.url must be an http(s) URL, got %q", c.OpenClaw.URL)
	}
	if c.OpenClaw.SessionKey == "" {
		return fmt.Errorf("openclaw.session_key is required")
	}
	if c.OpenClaw.RequestTimeout < 0 {
		return fmt.Errorf("openclaw.request_timeout must be positive")
	}

	if c.Relay.ReplyTimeout < 0 {
		return fmt.Errorf("relay.reply_timeout must be positive")
	}
	if c.Relay.PollInterval < 0 {
		return fmt.Errorf("relay.poll_interval must be positive")
	}
	if c.Relay.PollInterval > c.Relay.ReplyTimeout {
		return fmt.Errorf("relay.poll_interval (%s) must not exceed relay.reply_timeout (%s)",
			c.Relay.PollInterval, c.Relay.ReplyTimeout)
	}
	if c.Relay.StatusInterval < 0 {
		return fmt.Errorf("relay.status_interval must be positive")
	}
	if c.Relay.HistoryLimit < 0 {
		return fmt.Errorf("relay.history_limit must be positive")
	}
	if c.Relay.FingerprintCapacity < 0 {
		return fmt.Errorf("relay.fingerprint_capacity must be positive")
	}
	if c.Relay.MaxContentLength < 0 {
		return fmt.Errorf("relay.max_content_length must be positive")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}

	if c.Metrics.Enabled && (c.Metrics.Path == "" || c.Metrics.Path[0] != '/') {
		return fmt.Errorf("metrics.path must start with '/', got %q", c.Metrics.Path)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"openclaw.request_timeout", cfg.OpenClaw.RequestTimeoutRaw, &cfg.OpenClaw.RequestTimeout},
		{"relay.reply_timeout", cfg.Relay.ReplyTimeoutRaw, &cfg.Relay.ReplyTimeout},
		{"relay.poll_interval", cfg.Relay.PollIntervalRaw, &cfg.Relay.PollInterval},
		{"relay.status_interval", cfg.Relay.StatusIntervalRaw, &cfg.Relay.StatusInterval},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
