package audit

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewLogger(t *testing.T) {
	tmpDir := t.TempDir()

	config := &Config{
		AuditLogPath: filepath.Join(tmpDir, "audit.log"),
		AppLogPath:   filepath.Join(tmpDir, "app.log"),
		MaxSize:      10,
		MaxBackups:   3,
		MaxAge:       7,
		Compress:     false,
		LogLevel:     "info",
	}

	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	if logger == nil {
		t.Fatal("Expected logger to be non-nil")
	}
}

func TestNewLoggerWithInvalidLevel(t *testing.T) {
	tmpDir := t.TempDir()

	config := &Config{
		AuditLogPath: filepath.Join(tmpDir, "audit.log"),
		AppLogPath:   filepath.Join(tmpDir, "app.log"),
		LogLevel:     "invalid",
	}

	_, err := NewLogger(config)
	if err == nil {
		t.Fatal("Expected error for invalid log level")
	}

	if !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("Expected 'invalid log level' error, got: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.AuditLogPath != "logs/audit.log" {
		t.Errorf("Expected audit log path 'logs/audit.log', got %s", config.AuditLogPath)
	}

	if config.AppLogPath != "logs/app.log" {
		t.Errorf("Expected app log path 'logs/app.log', got %s", config.AppLogPath)
	}

	if config.MaxSize != 100 {
		t.Errorf("Expected max size 100, got %d", config.MaxSize)
	}

	if config.MaxBackups != 10 {
		t.Errorf("Expected max backups 10, got %d", config.MaxBackups)
	}

	if config.LogLevel != "info" {
		t.Errorf("Expected log level 'info', got %s", config.LogLevel)
	}
}

func TestLogEvent(t *testing.T) {
	tmpDir := t.TempDir()

	config := &Config{
		AuditLogPath: filepath.Join(tmpDir, "audit.log"),
		AppLogPath:   filepath.Join(tmpDir, "app.log"),
		MaxSize:      10,
		MaxBackups:   3,
		LogLevel:     "info",
	}

	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	ctx := context.Background()
	event := NewEvent(EventInvestigationStarted).
		WithCorrelationID("test-123").
		WithUser("user-9").
		WithInvestigation("inv-1").
		WithResult(ResultSuccess)

	if err := logger.Log(ctx, event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	// Force flush
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	// Verify log file was created
	if _, err := os.Stat(config.AuditLogPath); os.IsNotExist(err) {
		t.Fatal("Audit log file was not created")
	}

	// Read and verify log content
	content, err := os.ReadFile(config.AuditLogPath)
	if err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}

	logContent := string(content)
	if !strings.Contains(logContent, "test-123") {
		t.Error("Log does not contain correlation ID")
	}

	if !strings.Contains(logContent, "investigation.started") {
		t.Error("Log does not contain event type")
	}

	if !strings.Contains(logContent, "user-9") {
		t.Error("Log does not contain user")
	}
}

func TestLogInvestigationLifecycle(t *testing.T) {
	tmpDir := t.TempDir()

	config := &Config{
		AuditLogPath: filepath.Join(tmpDir, "audit.log"),
		AppLogPath:   filepath.Join(tmpDir, "app.log"),
		LogLevel:     "info",
	}

	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	ctx := context.Background()
	investigationID := "inv-456"

	if err := logger.LogInvestigationStarted(ctx, investigationID, "user-7"); err != nil {
		t.Fatalf("LogInvestigationStarted failed: %v", err)
	}

	if err := logger.LogInvestigationCompleted(ctx, investigationID, 5*time.Second); err != nil {
		t.Fatalf("LogInvestigationCompleted failed: %v", err)
	}

	if err := logger.LogInvestigationFailed(ctx, investigationID, errors.New("Connection lost")); err != nil {
		t.Fatalf("LogInvestigationFailed failed: %v", err)
	}

	if err := logger.LogInvestigationResumed(ctx, investigationID, "user-7"); err != nil {
		t.Fatalf("LogInvestigationResumed failed: %v", err)
	}

	// Force flush
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	// Verify log content
	content, err := os.ReadFile(config.AuditLogPath)
	if err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}

	logContent := string(content)
	if !strings.Contains(logContent, investigationID) {
		t.Error("Log does not contain investigation ID")
	}

	if !strings.Contains(logContent, "investigation.started") {
		t.Error("Log does not contain started event")
	}

	if !strings.Contains(logContent, "investigation.completed") {
		t.Error("Log does not contain completed event")
	}

	if !strings.Contains(logContent, "investigation.failed") {
		t.Error("Log does not contain failed event")
	}

	if !strings.Contains(logContent, "investigation.resumed") {
		t.Error("Log does not contain resumed event")
	}

	if !strings.Contains(logContent, "Connection lost") {
		t.Error("Log does not contain failure message")
	}
}

func TestBufferAutoFlush(t *testing.T) {
	tmpDir := t.TempDir()

	config := &Config{
		AuditLogPath: filepath.Join(tmpDir, "audit.log"),
		AppLogPath:   filepath.Join(tmpDir, "app.log"),
		LogLevel:     "info",
	}

	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	ctx := context.Background()

	// Log multiple events
	for i := 0; i < 5; i++ {
		event := NewEvent(EventStreamConnected).
			WithCorrelationID("test").
			WithResult(ResultSuccess)

		if err := logger.Log(ctx, event); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	// Wait for auto-flush (1 second ticker)
	time.Sleep(1500 * time.Millisecond)

	// Verify log file was created and has content
	content, err := os.ReadFile(config.AuditLogPath)
	if err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}

	if len(content) == 0 {
		t.Error("Audit log is empty after auto-flush")
	}
}

func TestBufferFullFlush(t *testing.T) {
	tmpDir := t.TempDir()

	config := &Config{
		AuditLogPath: filepath.Join(tmpDir, "audit.log"),
		AppLogPath:   filepath.Join(tmpDir, "app.log"),
		LogLevel:     "info",
	}

	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	ctx := context.Background()

	// Log 100+ events to trigger buffer flush
	for i := 0; i < 105; i++ {
		event := NewEvent(EventStreamConnected).
			WithCorrelationID("test").
			WithResult(ResultSuccess)

		if err := logger.Log(ctx, event); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	// Sync to ensure flush
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	// Verify log file has all events
	content, err := os.ReadFile(config.AuditLogPath)
	if err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}

	// Count number of events (each event is a JSON line)
	lines := strings.Split(string(content), "\n")
	eventCount := 0
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			eventCount++
		}
	}

	if eventCount < 105 {
		t.Errorf("Expected at least 105 events, got %d", eventCount)
	}
}

func TestCorrelationID(t *testing.T) {
	// Test GenerateCorrelationID
	id1 := GenerateCorrelationID()
	id2 := GenerateCorrelationID()

	if id1 == id2 {
		t.Error("Generated correlation IDs should be unique")
	}

	// Test context functions
	ctx := context.Background()

	// Without correlation ID
	if id := GetCorrelationID(ctx); id != "" {
		t.Errorf("Expected empty correlation ID, got %s", id)
	}

	// With correlation ID
	ctx = WithCorrelationID(ctx, "test-correlation-id")
	if id := GetCorrelationID(ctx); id != "test-correlation-id" {
		t.Errorf("Expected 'test-correlation-id', got %s", id)
	}
}

func TestEventBuilderChain(t *testing.T) {
	event := NewEvent(EventSnapshotLoaded).
		WithCorrelationID("corr-123").
		WithUser("user-42").
		WithInvestigation("inv-9").
		WithDescription("Resumed from snapshot").
		WithResult(ResultSuccess).
		WithDuration(3 * time.Second).
		WithMetadata("source", "latest")

	if event.CorrelationID != "corr-123" {
		t.Errorf("Expected correlation ID 'corr-123', got %s", event.CorrelationID)
	}

	if event.UserID != "user-42" {
		t.Errorf("Expected user 'user-42', got %s", event.UserID)
	}

	if event.InvestigationID != "inv-9" {
		t.Errorf("Expected investigation 'inv-9', got %s", event.InvestigationID)
	}

	if event.Result != ResultSuccess {
		t.Errorf("Expected result 'success', got %s", event.Result)
	}

	if event.DurationMs != 3000 {
		t.Errorf("Expected duration 3000ms, got %d", event.DurationMs)
	}

	if source, ok := event.Metadata["source"].(string); !ok || source != "latest" {
		t.Errorf("Expected metadata source 'latest', got %v", event.Metadata["source"])
	}
}

func TestEventJSONSerialization(t *testing.T) {
	event := NewEvent(EventInvestigationStarted).
		WithCorrelationID("inv-789").
		WithUser("system").
		WithResult(ResultSuccess)

	// Serialize to JSON
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Failed to marshal event: %v", err)
	}

	// Deserialize from JSON
	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal event: %v", err)
	}

	// Verify fields
	if decoded.CorrelationID != "inv-789" {
		t.Errorf("Expected correlation ID 'inv-789', got %s", decoded.CorrelationID)
	}

	if decoded.UserID != "system" {
		t.Errorf("Expected user 'system', got %s", decoded.UserID)
	}

	if decoded.EventType != EventInvestigationStarted {
		t.Errorf("Expected event type 'investigation.started', got %s", decoded.EventType)
	}

	if decoded.Result != ResultSuccess {
		t.Errorf("Expected result 'success', got %s", decoded.Result)
	}
}
