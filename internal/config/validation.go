package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validate checks the configuration for consistency and returns all
// problems found. An empty slice means the configuration is usable.
func (c *Config) Validate() []error {
	var errs []error

	// Validate backend configuration
	if c.Backend.BaseURL == "" {
		errs = append(errs, &ValidationError{
			Field:   "backend.base_url",
			Message: "base_url cannot be empty",
		})
	} else if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, &ValidationError{
			Field:   "backend.base_url",
			Message: fmt.Sprintf("invalid URL '%s', must include scheme and host", c.Backend.BaseURL),
		})
	}

	validTransports := map[string]bool{
		"sse":       true,
		"websocket": true,
	}
	if !validTransports[strings.ToLower(c.Backend.StreamTransport)] {
		errs = append(errs, &ValidationError{
			Field:   "backend.stream_transport",
			Message: fmt.Sprintf("invalid transport '%s', must be one of: sse, websocket", c.Backend.StreamTransport),
		})
	}

	if c.Backend.Timeout < 1 {
		errs = append(errs, &ValidationError{
			Field:   "backend.timeout",
			Message: fmt.Sprintf("timeout must be at least 1 second, got %d", c.Backend.Timeout),
		})
	}

	// Validate journal configuration
	if c.Journal.Enabled && c.Journal.SQLitePath == "" {
		errs = append(errs, &ValidationError{
			Field:   "journal.sqlite_path",
			Message: "sqlite_path is required when the journal is enabled",
		})
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, &ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, &ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format '%s', must be one of: json, text", c.Logging.Format),
		})
	}

	if c.Logging.MaxSizeMB < 0 {
		errs = append(errs, &ValidationError{
			Field:   "logging.max_size_mb",
			Message: fmt.Sprintf("max_size_mb cannot be negative, got %d", c.Logging.MaxSizeMB),
		})
	}

	// Validate metrics configuration
	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			errs = append(errs, &ValidationError{
				Field:   "metrics.listen",
				Message: fmt.Sprintf("invalid listen address '%s', must be host:port", c.Metrics.Listen),
			})
		}
	}

	return errs
}
