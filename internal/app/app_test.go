package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T, baseURL string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := fmt.Sprintf(`
backend:
  base_url: "%s"
  stream_transport: "sse"
  timeout: 5

journal:
  enabled: true
  sqlite_path: "%s"

logging:
  level: "error"
  format: "json"
  audit_log_path: "%s"
  app_log_path: "%s"

metrics:
  enabled: false
`, baseURL,
		filepath.Join(tmpDir, "journal.db"),
		filepath.Join(tmpDir, "audit.log"),
		filepath.Join(tmpDir, "app.log"))

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func TestNewAppAndClose(t *testing.T) {
	configPath := writeTestConfig(t, "http://127.0.0.1:1")

	a, err := New(context.Background(), configPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	// Startup and shutdown leave an audit trail.
	auditPath := filepath.Join(filepath.Dir(configPath), "audit.log")
	content, err := os.ReadFile(auditPath)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	for _, want := range []string{"config.loaded", "system.client_started", "system.client_shutdown"} {
		if !strings.Contains(string(content), want) {
			t.Errorf("audit log missing %s event", want)
		}
	}
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	bad := `
backend:
  base_url: ""
  stream_transport: "smoke-signal"
`
	if err := os.WriteFile(configPath, []byte(bad), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := New(context.Background(), configPath); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestHistoryEmptyJournal(t *testing.T) {
	configPath := writeTestConfig(t, "http://127.0.0.1:1")

	a, err := New(context.Background(), configPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if err := a.History(context.Background(), "", 10); err != nil {
		t.Errorf("History on empty journal: %v", err)
	}
}

func TestResumeTreatsUnreachableBackendAsMiss(t *testing.T) {
	// Port 1 refuses connections; the resume path must degrade to a miss,
	// not fail.
	configPath := writeTestConfig(t, "http://127.0.0.1:1")

	a, err := New(context.Background(), configPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if err := a.Resume(context.Background(), "user-1", false); err != nil {
		t.Errorf("Resume should degrade gracefully, got: %v", err)
	}
}
