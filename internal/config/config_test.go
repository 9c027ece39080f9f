package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Scheduler.SweepInterval != 30*time.Second {
		t.Errorf("SweepInterval = %s, want 30s", cfg.Scheduler.SweepInterval)
	}
	if cfg.Restart.WarningMinutes != 5 {
		t.Errorf("WarningMinutes = %d, want 5", cfg.Restart.WarningMinutes)
	}
	if cfg.Restart.ChatCommand != "say" {
		t.Errorf("ChatCommand = %q, want %q", cfg.Restart.ChatCommand, "say")
	}
	if cfg.Restart.PendingTimeout != 10*time.Minute {
		t.Errorf("PendingTimeout = %s, want 10m", cfg.Restart.PendingTimeout)
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Scheduler.SweepInterval != 30*time.Second {
		t.Errorf("expected default config, got SweepInterval = %s", cfg.Scheduler.SweepInterval)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := "restart:\n  chat_command: \"/message\"\n  warning_minutes: 3\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Restart.ChatCommand != "/message" {
		t.Errorf("ChatCommand = %q, want %q", cfg.Restart.ChatCommand, "/message")
	}
	if cfg.Restart.WarningMinutes != 3 {
		t.Errorf("WarningMinutes = %d, want 3", cfg.Restart.WarningMinutes)
	}
	// Untouched sections keep their defaults.
	if cfg.Scheduler.SweepInterval != 30*time.Second {
		t.Errorf("SweepInterval = %s, want default 30s", cfg.Scheduler.SweepInterval)
	}
}

func TestDiff(t *testing.T) {
	old := defaultConfig()
	updated := defaultConfig()
	updated.Restart.WarningMinutes = 2
	updated.Webhook.URL = "https://example.test/hook"

	changes := Diff(old, updated)
	if len(changes) != 2 {
		t.Fatalf("Diff() = %v, want 2 entries", changes)
	}
}
