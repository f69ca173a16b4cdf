package config

import "context"

// Package config provides configuration management for the fraudlens client.
//
// Responsibilities:
//   - Load configuration from YAML files and environment variables
//   - Validate configuration on startup
//   - Provide runtime access to all configuration
//   - Support configuration reloading via file watching
//   - Establish reasonable defaults
//
// Configuration Sources (priority order, high to low):
//   1. Environment variables (FRAUDLENS_* prefix)
//   2. YAML config file (default: /etc/fraudlens/config.yaml)
//   3. Built-in defaults (lowest priority)
//
// Main Configuration Sections:
//
//   1. Backend
//      - base_url: Investigation backend base URL
//      - stream_transport: "sse" | "websocket"
//      - timeout: HTTP timeout in seconds (snapshot reads)
//
//   2. Journal
//      - enabled: Keep a local SQLite journal of finished runs
//      - sqlite_path: Path to the SQLite file
//
//   3. Logging
//      - level: "debug" | "info" | "warn" | "error"
//      - format: "json" | "text"
//      - audit_log_path / app_log_path: Log file locations
//      - max_size_mb / max_backups / max_age_days / compress: Rotation policy
//
//   4. Metrics
//      - enabled: Expose a Prometheus /metrics listener
//      - listen: Listen address for the metrics endpoint

// Config struct contains all configuration fields
type Config struct {
	// Backend configuration
	Backend struct {
		BaseURL         string // REST + stream base URL (e.g. http://localhost:8000)
		StreamTransport string // "sse" or "websocket"
		Timeout         int    // seconds
	}

	// Journal configuration
	Journal struct {
		Enabled    bool
		SQLitePath string
	}

	// Logging configuration
	Logging struct {
		Level        string
		Format       string
		AuditLogPath string
		AppLogPath   string
		MaxSizeMB    int
		MaxBackups   int
		MaxAgeDays   int
		Compress     bool
	}

	// Metrics configuration
	Metrics struct {
		Enabled bool
		Listen  string
	}
}

// ConfigManager defines the interface for configuration access.
type ConfigManager interface {
	// Load loads configuration from all sources.
	Load(ctx context.Context) error

	// Get returns the current configuration.
	Get(ctx context.Context) *Config

	// Validate validates configuration is correct and complete.
	Validate(ctx context.Context) error

	// Watch watches for configuration changes and reloads.
	Watch(ctx context.Context) <-chan Config

	// Reload reloads configuration from sources.
	Reload(ctx context.Context) error
}

// NewConfigManager creates a new configuration manager.
func NewConfigManager(configPath string) (ConfigManager, error) {
	mgr := &viperConfigManager{
		configPath: configPath,
		config:     DefaultConfig(),
		watchChan:  make(chan Config, 1),
	}
	return mgr, nil
}

// NewConfigManagerWithDefaults creates a config manager with default config path.
func NewConfigManagerWithDefaults() (ConfigManager, error) {
	return NewConfigManager("/etc/fraudlens/config.yaml")
}
