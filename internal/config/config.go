// ABOUTME: Configuration loading and parsing for agent-hub
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete agent-hub configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Auth      AuthConfig      `yaml:"auth"`
	Agents    AgentsConfig    `yaml:"agents"`
	Backend   BackendConfig   `yaml:"backend"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	HTTPS     bool   `yaml:"https"`  // Serve HTTPS with Tailscale-provisioned certs
	Funnel    bool   `yaml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// AuthConfig holds authentication configuration. An empty jwt_secret
// disables handshake token checks entirely.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// AgentsConfig holds agent-related timing and history configuration
type AgentsConfig struct {
	HeartbeatInterval time.Duration `yaml:"-"`
	HeartbeatTimeout  time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	HeartbeatIntervalRaw string `yaml:"heartbeat_interval"`
	HeartbeatTimeoutRaw  string `yaml:"heartbeat_timeout"`

	// HistoryLimit caps the retained per-user message history. Zero means
	// the built-in default.
	HistoryLimit int `yaml:"history_limit"`
}

// Backend modes.
const (
	BackendModeLocal = "local"
	BackendModeHTTP  = "http"
)

// BackendConfig selects and configures the capability backend
type BackendConfig struct {
	// Mode is "local" (bundled SQLite backend) or "http" (remote service).
	Mode string `yaml:"mode"`
	// URL of the remote capability service. Required in http mode.
	URL string `yaml:"url"`
	// DatabasePath for the local backend's SQLite file.
	DatabasePath string `yaml:"database_path"`

	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
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
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

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

	if cfg.Backend.Mode == "" {
		cfg.Backend.Mode = BackendModeLocal
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// A listen address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	switch c.Backend.Mode {
	case BackendModeLocal:
		if c.Backend.DatabasePath == "" {
			return fmt.Errorf("backend.database_path is required in local mode")
		}
	case BackendModeHTTP:
		if c.Backend.URL == "" {
			return fmt.Errorf("backend.url is required in http mode")
		}
	default:
		return fmt.Errorf("backend.mode must be %q or %q, got %q",
			BackendModeLocal, BackendModeHTTP, c.Backend.Mode)
	}

	if c.Agents.HeartbeatInterval < 0 || c.Agents.HeartbeatTimeout < 0 {
		return fmt.Errorf("agent heartbeat durations must not be negative")
	}
	if c.Agents.HistoryLimit < 0 {
		return fmt.Errorf("agents.history_limit must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Agents.HeartbeatIntervalRaw != "" {
		cfg.Agents.HeartbeatInterval, err = time.ParseDuration(cfg.Agents.HeartbeatIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing heartbeat_interval %q: %w", cfg.Agents.HeartbeatIntervalRaw, err)
		}
	}

	if cfg.Agents.HeartbeatTimeoutRaw != "" {
		cfg.Agents.HeartbeatTimeout, err = time.ParseDuration(cfg.Agents.HeartbeatTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing heartbeat_timeout %q: %w", cfg.Agents.HeartbeatTimeoutRaw, err)
		}
	}

	if cfg.Backend.TimeoutRaw != "" {
		cfg.Backend.Timeout, err = time.ParseDuration(cfg.Backend.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing backend timeout %q: %w", cfg.Backend.TimeoutRaw, err)
		}
	}

	return nil
}
