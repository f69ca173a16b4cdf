package config

// DefaultConfig returns a configuration with all default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Backend defaults
	cfg.Backend.BaseURL = "http://localhost:8000"
	cfg.Backend.StreamTransport = "sse"
	cfg.Backend.Timeout = 30

	// Journal defaults
	cfg.Journal.Enabled = true
	cfg.Journal.SQLitePath = "/var/lib/fraudlens/fraudlens.db"

	// Logging defaults
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.AuditLogPath = "logs/audit.log"
	cfg.Logging.AppLogPath = "logs/app.log"
	cfg.Logging.MaxSizeMB = 100
	cfg.Logging.MaxBackups = 10
	cfg.Logging.MaxAgeDays = 30
	cfg.Logging.Compress = true

	// Metrics defaults
	cfg.Metrics.Enabled = false
	cfg.Metrics.Listen = "127.0.0.1:9464"

	return cfg
}
