package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Sync.Enabled {
		t.Error("expected sync enabled by default")
	}
	if cfg.Persistence.SaveWindow() != time.Second {
		t.Errorf("expected 1s save window, got %v", cfg.Persistence.SaveWindow())
	}
	if cfg.Persistence.TTL() != 24*time.Hour {
		t.Errorf("expected 24h TTL, got %v", cfg.Persistence.TTL())
	}
	if cfg.Server.Enabled {
		t.Error("expected remote sync disabled without a URL")
	}
	if cfg.Agents.MergeWindow() != 250*time.Millisecond {
		t.Errorf("expected 250ms merge window, got %v", cfg.Agents.MergeWindow())
	}
	if cfg.Dashboard.MaxRetries != 3 {
		t.Errorf("expected 3 max retries, got %d", cfg.Dashboard.MaxRetries)
	}
}

func TestLoadPartialFileBackfillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[sync]
enabled = false

[server]
url = "https://hud.example.com"
enabled = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sync.Enabled {
		t.Error("expected sync disabled from file")
	}
	if cfg.Sync.Channel != "hud:dashboard" {
		t.Errorf("expected default channel backfilled, got %q", cfg.Sync.Channel)
	}
	if cfg.Server.URL != "https://hud.example.com" {
		t.Errorf("unexpected server URL %q", cfg.Server.URL)
	}
	if cfg.Server.SyncWindow() != 5*time.Second {
		t.Errorf("expected default sync window backfilled, got %v", cfg.Server.SyncWindow())
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[sync\nbroken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed TOML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HUD_SERVER_URL", "https://env.example.com")
	t.Setenv("HUD_SERVER_TOKEN", "env-token")
	t.Setenv("HUD_REDIS_URL", "redis://env:6379/1")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.URL != "https://env.example.com" {
		t.Errorf("expected env server URL, got %q", cfg.Server.URL)
	}
	if !cfg.Server.Enabled {
		t.Error("expected server enabled when URL set via env")
	}
	if cfg.Server.Token != "env-token" {
		t.Errorf("expected env token, got %q", cfg.Server.Token)
	}
	if cfg.Sync.RedisURL != "redis://env:6379/1" {
		t.Errorf("expected env redis URL, got %q", cfg.Sync.RedisURL)
	}
}

func TestDefaultPathUsesXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	if got := DefaultPath(); got != "/tmp/xdg-test/hud/config.toml" {
		t.Errorf("unexpected default path %q", got)
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[sync]\nenabled = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var latest *Config
	stop, err := Watch(path, func(cfg *Config) {
		mu.Lock()
		latest = cfg
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stop()

	if err := os.WriteFile(path, []byte("[sync]\nenabled = false\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		cfg := latest
		mu.Unlock()
		if cfg != nil {
			if cfg.Sync.Enabled {
				t.Error("expected reloaded config with sync disabled")
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
