package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// viperConfigManager implements ConfigManager using Viper.
type viperConfigManager struct {
	configPath string
	config     *Config
	viper      *viper.Viper
	watchChan  chan Config
}

// Load loads configuration from all sources.
func (m *viperConfigManager) Load(ctx context.Context) error {
	// Initialize viper
	m.viper = viper.New()

	// Set config file path
	m.viper.SetConfigFile(m.configPath)
	m.viper.SetConfigType("yaml")

	// Set environment variable prefix
	m.viper.SetEnvPrefix("FRAUDLENS")
	m.viper.AutomaticEnv()
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	m.setDefaults()

	// Try to read config file (optional)
	if err := m.viper.ReadInConfig(); err != nil {
		// Config file not found is OK, we'll use defaults + env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// File not found via viper - OK, use defaults
		} else if os.IsNotExist(err) {
			// File not found via os - OK, use defaults
		} else {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal into config struct
	if err := m.unmarshalConfig(); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Apply environment variable overrides
	m.applyEnvOverrides()

	return nil
}

// Get returns the current configuration.
func (m *viperConfigManager) Get(ctx context.Context) *Config {
	return m.config
}

// Validate validates configuration is correct and complete.
func (m *viperConfigManager) Validate(ctx context.Context) error {
	errs := m.config.Validate()
	if len(errs) > 0 {
		// Combine all errors into a single error message
		var errMsgs []string
		for _, err := range errs {
			errMsgs = append(errMsgs, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errMsgs, "\n  - "))
	}
	return nil
}

// Watch watches for configuration changes and reloads.
func (m *viperConfigManager) Watch(ctx context.Context) <-chan Config {
	// Start watching config file
	m.viper.WatchConfig()
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		// Reload config
		if err := m.unmarshalConfig(); err != nil {
			// Log error but don't send to channel
			return
		}
		// Send updated config to channel
		select {
		case m.watchChan <- *m.config:
		default:
			// Channel full, skip this update
		}
	})

	return m.watchChan
}

// Reload reloads configuration from sources.
func (m *viperConfigManager) Reload(ctx context.Context) error {
	// Re-read config file
	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal into config struct
	if err := m.unmarshalConfig(); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Apply environment variable overrides
	m.applyEnvOverrides()

	return nil
}

// setDefaults sets default values in viper.
func (m *viperConfigManager) setDefaults() {
	defaults := DefaultConfig()

	// Backend defaults
	m.viper.SetDefault("backend.base_url", defaults.Backend.BaseURL)
	m.viper.SetDefault("backend.stream_transport", defaults.Backend.StreamTransport)
	m.viper.SetDefault("backend.timeout", defaults.Backend.Timeout)

	// Journal defaults
	m.viper.SetDefault("journal.enabled", defaults.Journal.Enabled)
	m.viper.SetDefault("journal.sqlite_path", defaults.Journal.SQLitePath)

	// Logging defaults
	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.format", defaults.Logging.Format)
	m.viper.SetDefault("logging.audit_log_path", defaults.Logging.AuditLogPath)
	m.viper.SetDefault("logging.app_log_path", defaults.Logging.AppLogPath)
	m.viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	m.viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	m.viper.SetDefault("logging.max_age_days", defaults.Logging.MaxAgeDays)
	m.viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Metrics defaults
	m.viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	m.viper.SetDefault("metrics.listen", defaults.Metrics.Listen)
}

// unmarshalConfig unmarshals viper config into Config struct.
func (m *viperConfigManager) unmarshalConfig() error {
	cfg := &Config{}

	// Backend
	cfg.Backend.BaseURL = m.viper.GetString("backend.base_url")
	cfg.Backend.StreamTransport = m.viper.GetString("backend.stream_transport")
	cfg.Backend.Timeout = m.viper.GetInt("backend.timeout")

	// Journal
	cfg.Journal.Enabled = m.viper.GetBool("journal.enabled")
	cfg.Journal.SQLitePath = m.viper.GetString("journal.sqlite_path")

	// Logging
	cfg.Logging.Level = m.viper.GetString("logging.level")
	cfg.Logging.Format = m.viper.GetString("logging.format")
	cfg.Logging.AuditLogPath = m.viper.GetString("logging.audit_log_path")
	cfg.Logging.AppLogPath = m.viper.GetString("logging.app_log_path")
	cfg.Logging.MaxSizeMB = m.viper.GetInt("logging.max_size_mb")
	cfg.Logging.MaxBackups = m.viper.GetInt("logging.max_backups")
	cfg.Logging.MaxAgeDays = m.viper.GetInt("logging.max_age_days")
	cfg.Logging.Compress = m.viper.GetBool("logging.compress")

	// Metrics
	cfg.Metrics.Enabled = m.viper.GetBool("metrics.enabled")
	cfg.Metrics.Listen = m.viper.GetString("metrics.listen")

	m.config = cfg
	return nil
}

// applyEnvOverrides applies environment variable overrides for settings
// that are commonly set outside the config file.
func (m *viperConfigManager) applyEnvOverrides() {
	// Backend base URL from environment
	if baseURL := os.Getenv("FRAUDLENS_BACKEND_URL"); baseURL != "" {
		m.config.Backend.BaseURL = baseURL
	}

	// Stream transport from environment
	if transport := os.Getenv("FRAUDLENS_STREAM_TRANSPORT"); transport != "" {
		m.config.Backend.StreamTransport = transport
	}

	// Journal path from environment
	if path := os.Getenv("FRAUDLENS_JOURNAL_PATH"); path != "" {
		m.config.Journal.SQLitePath = path
	}
}
