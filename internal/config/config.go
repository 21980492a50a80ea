// Package config loads the hud configuration from TOML, with defaults
// for every value and environment variable overrides for credentials
// and endpoints.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the main hud configuration.
type Config struct {
	Sync        SyncConfig        `toml:"sync"`
	Persistence PersistenceConfig `toml:"persistence"`
	Server      ServerConfig      `toml:"server"`
	Agents      AgentsConfig      `toml:"agents"`
	Dashboard   DashboardConfig   `toml:"dashboard"`
}

// SyncConfig controls cross-instance state broadcast.
type SyncConfig struct {
	Enabled  bool   `toml:"enabled"`
	RedisURL string `toml:"redis_url"` // redis://host:port/db
	Channel  string `toml:"channel"`
	TTLHours int    `toml:"ttl_hours"` // snapshots older than this are ignored
}

// TTL returns the snapshot freshness window.
func (c SyncConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// DefaultSyncConfig returns cross-instance sync defaults.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Enabled:  true,
		RedisURL: "redis://localhost:6379/0",
		Channel:  "hud:dashboard",
		TTLHours: 24,
	}
}

// PersistenceConfig controls local state snapshots.
type PersistenceConfig struct {
	Dir                 string `toml:"dir"` // empty means the XDG data dir
	SaveWindowMS        int    `toml:"save_window_ms"`
	TTLHours            int    `toml:"ttl_hours"`
	CompressThresholdKB int    `toml:"compress_threshold_kb"`
}

// SaveWindow returns the write debounce window.
func (c PersistenceConfig) SaveWindow() time.Duration {
	return time.Duration(c.SaveWindowMS) * time.Millisecond
}

// TTL returns the maximum age of a restorable snapshot.
func (c PersistenceConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// CompressThreshold returns the size in bytes above which snapshots are
// gzipped.
func (c PersistenceConfig) CompressThreshold() int {
	return c.CompressThresholdKB * 1024
}

// DefaultPersistenceConfig returns persistence defaults.
func DefaultPersistenceConfig() PersistenceConfig {
	return PersistenceConfig{
		SaveWindowMS:        1000,
		TTLHours:            24,
		CompressThresholdKB: 50,
	}
}

// ServerConfig controls remote state sync.
type ServerConfig struct {
	Enabled      bool   `toml:"enabled"`
	URL          string `toml:"url"`
	Token        string `toml:"token"`
	SyncWindowMS int    `toml:"sync_window_ms"`
}

// SyncWindow returns the remote push debounce window.
func (c ServerConfig) SyncWindow() time.Duration {
	return time.Duration(c.SyncWindowMS) * time.Millisecond
}

// DefaultServerConfig returns remote sync defaults. Remote sync is off
// until a URL is configured.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{SyncWindowMS: 5000}
}

// AgentsConfig controls the agent update feed.
type AgentsConfig struct {
	MergeWindowMS int `toml:"merge_window_ms"`
}

// MergeWindow returns the update coalescing window.
func (c AgentsConfig) MergeWindow() time.Duration {
	return time.Duration(c.MergeWindowMS) * time.Millisecond
}

// DefaultAgentsConfig returns agent feed defaults.
func DefaultAgentsConfig() AgentsConfig {
	return AgentsConfig{MergeWindowMS: 250}
}

// DashboardConfig controls TUI appearance and behavior.
type DashboardConfig struct {
	Theme      string `toml:"theme"` // "mocha" or "plain"
	MaxRetries int    `toml:"max_retries"`
}

// DefaultDashboardConfig returns dashboard defaults.
func DefaultDashboardConfig() DashboardConfig {
	return DashboardConfig{Theme: "mocha", MaxRetries: 3}
}

// Default returns the full default configuration.
func Default() *Config {
	return &Config{
		Sync:        DefaultSyncConfig(),
		Persistence: DefaultPersistenceConfig(),
		Server:      DefaultServerConfig(),
		Agents:      DefaultAgentsConfig(),
		Dashboard:   DefaultDashboardConfig(),
	}
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "hud", "config.toml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "hud", "config.toml")
}

// Load loads configuration from a file. A missing file yields the
// defaults; a malformed file is an error. Environment variables
// HUD_SERVER_URL, HUD_SERVER_TOKEN and HUD_REDIS_URL override their
// file counterparts.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

// applyDefaults backfills zero values left by a partial config file.
func applyDefaults(cfg *Config) {
	if cfg.Sync.Channel == "" {
		cfg.Sync.Channel = DefaultSyncConfig().Channel
	}
	if cfg.Sync.RedisURL == "" {
		cfg.Sync.RedisURL = DefaultSyncConfig().RedisURL
	}
	if cfg.Sync.TTLHours == 0 {
		cfg.Sync.TTLHours = DefaultSyncConfig().TTLHours
	}
	if cfg.Persistence.SaveWindowMS == 0 {
		cfg.Persistence.SaveWindowMS = DefaultPersistenceConfig().SaveWindowMS
	}
	if cfg.Persistence.TTLHours == 0 {
		cfg.Persistence.TTLHours = DefaultPersistenceConfig().TTLHours
	}
	if cfg.Persistence.CompressThresholdKB == 0 {
		cfg.Persistence.CompressThresholdKB = DefaultPersistenceConfig().CompressThresholdKB
	}
	if cfg.Server.SyncWindowMS == 0 {
		cfg.Server.SyncWindowMS = DefaultServerConfig().SyncWindowMS
	}
	if cfg.Agents.MergeWindowMS == 0 {
		cfg.Agents.MergeWindowMS = DefaultAgentsConfig().MergeWindowMS
	}
	if cfg.Dashboard.Theme == "" {
		cfg.Dashboard.Theme = DefaultDashboardConfig().Theme
	}
	if cfg.Dashboard.MaxRetries == 0 {
		cfg.Dashboard.MaxRetries = DefaultDashboardConfig().MaxRetries
	}
}

// applyEnv applies environment overrides.
func applyEnv(cfg *Config) {
	if url := os.Getenv("HUD_SERVER_URL"); url != "" {
		cfg.Server.URL = url
		cfg.Server.Enabled = true
	}
	if token := os.Getenv("HUD_SERVER_TOKEN"); token != "" {
		cfg.Server.Token = token
	}
	if url := os.Getenv("HUD_REDIS_URL"); url != "" {
		cfg.Sync.RedisURL = url
	}
}
