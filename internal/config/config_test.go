package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"telegram": {"token": "t", "alert_chat": "-100", "owner_user_ids": [1]},
		"logging": {"level": "INFO", "console": true},
		"monitor": {"endpoint": "https://example.test/api", "total_pages": 3, "interval": "2s"}
	}`)

	m := NewConfigManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "t" || cfg.Monitor.TotalPages != 3 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if got := m.Get(); got != cfg {
		t.Fatalf("Get should return committed config")
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
telegram:
  token: t
  alert_chat: "-100"
logging:
  level: DEBUG
  console: true
monitor:
  endpoint: https://example.test/api
  max_alerts_per_item: 2
`)

	m := NewConfigManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Monitor.MaxAlertsPerItem != 2 {
		t.Fatalf("unexpected monitor config: %+v", cfg.Monitor)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeFile(t, "config.json", `{"telegram": {"token": "t"}, "bogus": 1}`)
	if _, err := NewConfigManager(path).Load(); err == nil {
		t.Fatalf("expected unknown-field error")
	}
}

func TestLoadRejectsTrailingData(t *testing.T) {
	path := writeFile(t, "config.json", `{"telegram": {"token": "t"}}{"again": true}`)
	if _, err := NewConfigManager(path).Load(); err == nil {
		t.Fatalf("expected trailing-data error")
	}
}

func TestParseDurationField(t *testing.T) {
	if d, err := ParseDurationField("x", "1500ms"); err != nil || d != 1500*time.Millisecond {
		t.Fatalf("got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatalf("expected error for negative duration")
	}
	if _, err := ParseDurationField("x", "nope"); err == nil {
		t.Fatalf("expected error for garbage duration")
	}
	if d, err := ParseDurationOrDefault("x", "", 3*time.Second); err != nil || d != 3*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
}
