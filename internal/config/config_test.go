package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Test backend defaults
	assert.Equal(t, "http://localhost:8000", cfg.Backend.BaseURL)
	assert.Equal(t, "sse", cfg.Backend.StreamTransport)
	assert.Equal(t, 30, cfg.Backend.Timeout)

	// Test journal defaults
	assert.True(t, cfg.Journal.Enabled)
	assert.NotEmpty(t, cfg.Journal.SQLitePath)

	// Test logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.NotEmpty(t, cfg.Logging.AuditLogPath)

	// Test metrics defaults
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Listen)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		modifyFn  func(*Config)
		wantError bool
		errorMsg  string
	}{
		{
			name:      "valid default config",
			modifyFn:  func(cfg *Config) {},
			wantError: false,
		},
		{
			name: "missing base URL",
			modifyFn: func(cfg *Config) {
				cfg.Backend.BaseURL = ""
			},
			wantError: true,
			errorMsg:  "base_url cannot be empty",
		},
		{
			name: "base URL without scheme",
			modifyFn: func(cfg *Config) {
				cfg.Backend.BaseURL = "localhost:8000"
			},
			wantError: true,
			errorMsg:  "must include scheme and host",
		},
		{
			name: "invalid stream transport",
			modifyFn: func(cfg *Config) {
				cfg.Backend.StreamTransport = "carrier-pigeon"
			},
			wantError: true,
			errorMsg:  "invalid transport",
		},
		{
			name: "websocket transport is accepted",
			modifyFn: func(cfg *Config) {
				cfg.Backend.StreamTransport = "websocket"
			},
			wantError: false,
		},
		{
			name: "zero timeout",
			modifyFn: func(cfg *Config) {
				cfg.Backend.Timeout = 0
			},
			wantError: true,
			errorMsg:  "timeout must be at least 1 second",
		},
		{
			name: "journal enabled without path",
			modifyFn: func(cfg *Config) {
				cfg.Journal.Enabled = true
				cfg.Journal.SQLitePath = ""
			},
			wantError: true,
			errorMsg:  "sqlite_path is required",
		},
		{
			name: "journal disabled without path is fine",
			modifyFn: func(cfg *Config) {
				cfg.Journal.Enabled = false
				cfg.Journal.SQLitePath = ""
			},
			wantError: false,
		},
		{
			name: "invalid log level",
			modifyFn: func(cfg *Config) {
				cfg.Logging.Level = "loud"
			},
			wantError: true,
			errorMsg:  "invalid log level",
		},
		{
			name: "invalid log format",
			modifyFn: func(cfg *Config) {
				cfg.Logging.Format = "xml"
			},
			wantError: true,
			errorMsg:  "invalid log format",
		},
		{
			name: "negative log size",
			modifyFn: func(cfg *Config) {
				cfg.Logging.MaxSizeMB = -1
			},
			wantError: true,
			errorMsg:  "max_size_mb cannot be negative",
		},
		{
			name: "metrics enabled with bad listen address",
			modifyFn: func(cfg *Config) {
				cfg.Metrics.Enabled = true
				cfg.Metrics.Listen = "not-an-address"
			},
			wantError: true,
			errorMsg:  "must be host:port",
		},
		{
			name: "metrics disabled ignores listen address",
			modifyFn: func(cfg *Config) {
				cfg.Metrics.Enabled = false
				cfg.Metrics.Listen = "not-an-address"
			},
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modifyFn(cfg)

			errs := cfg.Validate()

			if tt.wantError {
				assert.NotEmpty(t, errs, "expected validation errors but got none")
				if tt.errorMsg != "" {
					found := false
					for _, err := range errs {
						if strings.Contains(err.Error(), tt.errorMsg) {
							found = true
							break
						}
					}
					assert.True(t, found, "expected error message containing '%s', got: %v", tt.errorMsg, errs)
				}
			} else {
				assert.Empty(t, errs, "expected no validation errors but got: %v", errs)
			}
		})
	}
}

func TestConfigManagerLoad(t *testing.T) {
	// Create temp directory for config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Create minimal valid config file
	configContent := `
backend:
  base_url: "http://fraud-backend:8000"
  stream_transport: "websocket"
  timeout: 60

journal:
  enabled: true
  sqlite_path: "` + filepath.Join(tmpDir, "journal.db") + `"

logging:
  level: "debug"
  format: "text"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	// Create config manager
	mgr, err := NewConfigManager(configPath)
	require.NoError(t, err)

	// Load config
	ctx := context.Background()
	err = mgr.Load(ctx)
	require.NoError(t, err)

	// Get config
	cfg := mgr.Get(ctx)
	require.NotNil(t, cfg)

	// Verify loaded values
	assert.Equal(t, "http://fraud-backend:8000", cfg.Backend.BaseURL)
	assert.Equal(t, "websocket", cfg.Backend.StreamTransport)
	assert.Equal(t, 60, cfg.Backend.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.True(t, cfg.Journal.Enabled)
}

func TestConfigManagerEnvironmentOverrides(t *testing.T) {
	// Set environment variables
	os.Setenv("FRAUDLENS_BACKEND_URL", "http://env-backend:9999")
	os.Setenv("FRAUDLENS_STREAM_TRANSPORT", "websocket")
	defer func() {
		os.Unsetenv("FRAUDLENS_BACKEND_URL")
		os.Unsetenv("FRAUDLENS_STREAM_TRANSPORT")
	}()

	// Create temp directory for config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Create config file with different values
	configContent := `
backend:
  base_url: "http://file-backend:8000"
  stream_transport: "sse"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	// Create config manager and load
	mgr, err := NewConfigManager(configPath)
	require.NoError(t, err)

	ctx := context.Background()
	err = mgr.Load(ctx)
	require.NoError(t, err)

	cfg := mgr.Get(ctx)

	// Environment variables should override config file
	assert.Equal(t, "http://env-backend:9999", cfg.Backend.BaseURL, "base URL should be overridden by environment variable")
	assert.Equal(t, "websocket", cfg.Backend.StreamTransport, "transport should be overridden by environment variable")
}

func TestConfigManagerMissingFile(t *testing.T) {
	// Use non-existent config file path
	configPath := "/tmp/nonexistent-config.yaml"

	mgr, err := NewConfigManager(configPath)
	require.NoError(t, err)

	ctx := context.Background()
	err = mgr.Load(ctx)
	// Should not error - should use defaults
	require.NoError(t, err)

	cfg := mgr.Get(ctx)
	assert.NotNil(t, cfg)
	// Should have default values
	assert.Equal(t, "http://localhost:8000", cfg.Backend.BaseURL)
}

func TestConfigManagerValidation(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Create invalid config file (missing required fields)
	configContent := `
backend:
  base_url: ""
  stream_transport: "smoke-signal"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	mgr, err := NewConfigManager(configPath)
	require.NoError(t, err)

	ctx := context.Background()
	err = mgr.Load(ctx)
	require.NoError(t, err)

	// Validation should fail
	err = mgr.Validate(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}
