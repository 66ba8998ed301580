// Package config provides configuration loading and defaults for the timecord daemon.
//
// Configuration is loaded from a TOML file in the user's data directory.
// The package handles session store credentials, tracking behavior, privacy
// controls, and logging with sensible defaults. The two store secrets are the
// only required values; the daemon refuses to start without them.
package config

//go:generate go run ../../cmd/genconfig

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/timecord/internal/atomicfile"
	"tools.zach/dev/timecord/internal/fault"
	"tools.zach/dev/timecord/internal/migrate"
	"tools.zach/dev/timecord/internal/paths"
)

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Version is the config schema version used for migrations.
	Version int `toml:"version"`
	// Store holds session store connection settings.
	Store StoreConfig `toml:"store"`
	// Identity holds identity provider settings.
	Identity IdentityConfig `toml:"identity"`
	// Tracking holds session lifecycle and idle settings.
	Tracking TrackingConfig `toml:"tracking"`
	// Workspace holds workspace label resolution settings.
	Workspace WorkspaceConfig `toml:"workspace"`
	// Privacy holds workspace-hiding settings.
	Privacy PrivacyConfig `toml:"privacy"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// StoreConfig holds session store connection settings. URL and Key are
// required; the daemon blocks startup until both are configured.
type StoreConfig struct {
	// URL is the base URL of the session store's REST endpoint.
	URL string `toml:"url"`
	// Key is the API key sent with every store request.
	Key string `toml:"key"`
	// RetryMax is the transport-level retry count for store requests.
	// Zero disables transport retries entirely.
	RetryMax int `toml:"retry_max"`
	// TimeoutSeconds is the per-request timeout for store calls.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// IdentityConfig holds identity provider settings.
type IdentityConfig struct {
	// APIBaseURL is the identity provider's API base, overridable for tests
	// and GitHub Enterprise deployments.
	APIBaseURL string `toml:"api_base_url"`
}

// TrackingConfig holds session lifecycle and idle settings.
type TrackingConfig struct {
	// IdleTimeoutMinutes is the inactivity duration after which an active
	// session auto-stops.
	IdleTimeoutMinutes int `toml:"idle_timeout_minutes"`
	// DashboardEntryLimit is how many recent entries the dashboard loads.
	DashboardEntryLimit int `toml:"dashboard_entry_limit"`
}

// WorkspaceConfig holds workspace label resolution settings. The label
// fallback chain is: Name, then the first folder's name, then the basename
// of the first folder's path, then the basename of RootPath, then a literal
// fallback label.
type WorkspaceConfig struct {
	// Name is an explicit workspace label. Takes precedence over everything.
	Name string `toml:"name,omitempty"`
	// Folders lists workspace folders, first entry wins.
	Folders []Folder `toml:"folders,omitempty"`
	// RootPath is the workspace root used as the last path-derived fallback.
	RootPath string `toml:"root_path,omitempty"`
}

// Folder is one workspace folder. Name is an optional display label; Path
// is the folder location on disk.
type Folder struct {
	Name string `toml:"name,omitempty"`
	Path string `toml:"path,omitempty"`
}

// PrivacyConfig holds workspace-hiding settings.
type PrivacyConfig struct {
	// Ignore is a list of glob patterns; workspace paths matching any pattern
	// have their label replaced by HiddenWorkspaceText before persisting.
	Ignore []string `toml:"ignore"`
	// HiddenWorkspaceText is the replacement label for ignored workspaces.
	HiddenWorkspaceText string `toml:"hidden_workspace_text"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with sensible defaults.
// Store URL and Key have no defaults; users must supply their own.
func DefaultConfig() *Config {
	return &Config{
		Version: migrate.Config.CurrentVersion,
		Store: StoreConfig{
			RetryMax:       2,
			TimeoutSeconds: 10,
		},
		Identity: IdentityConfig{
			APIBaseURL: "https://api.github.com",
		},
		Tracking: TrackingConfig{
			IdleTimeoutMinutes:  5,
			DashboardEntryLimit: 20,
		},
		Privacy: PrivacyConfig{
			Ignore:              []string{},
			HiddenWorkspaceText: "a private workspace",
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ExampleConfig returns a Config suitable for generating config.default.toml.
// The store secrets carry placeholder text so the generated file shows where
// they go.
func ExampleConfig() *Config {
	cfg := DefaultConfig()
	cfg.Store.URL = "https://YOUR-PROJECT.supabase.co"
	cfg.Store.Key = "YOUR-SERVICE-KEY"
	return cfg
}

// ///////////////////////////////////////////////
// PeekVersion
// ///////////////////////////////////////////////

// PeekVersion reads just the version field from raw TOML bytes.
// Returns 1 if the version field is missing or zero.
func PeekVersion(data []byte) int {
	var v struct {
		Version int `toml:"version"`
	}
	if err := toml.Unmarshal(data, &v); err != nil {
		return 1
	}
	if v.Version == 0 {
		return 1
	}
	return v.Version
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads and parses the configuration file from dataDir/config.toml.
// If the file doesn't exist, returns DefaultConfig. Load does not check the
// required store secrets; call [Config.Validate] for that so callers decide
// whether a missing secret is fatal.
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, paths.ConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	version := PeekVersion(data)

	shouldMigrate := migrate.Config.NeedsMigration(version)
	if shouldMigrate {
		// Write backup before migration
		if backupErr := os.WriteFile(path+".bak", data, 0o644); backupErr != nil {
			slog.Warn("failed to write config backup", "error", backupErr)
		}
		var migrateErr error
		data, _, migrateErr = migrate.Config.Run(data, version)
		if migrateErr != nil {
			return nil, fmt.Errorf("migrate config: %w", migrateErr)
		}
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Version = migrate.Config.CurrentVersion

	if shouldMigrate {
		if err := cfg.Save(path); err != nil {
			slog.Warn("failed to save migrated config", "error", err)
		}
	}

	return cfg, nil
}

// Save writes the config to disk as TOML using atomic file write.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes(), 0o600)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all configuration values are within acceptable ranges
// and that the required store secrets are present. Missing secrets return a
// [fault.Validation] error carrying a remediation hint naming the keys.
func (c *Config) Validate() error {
	var missing []string
	if c.Store.URL == "" {
		missing = append(missing, "store.url")
	}
	if c.Store.Key == "" {
		missing = append(missing, "store.key")
	}
	if len(missing) > 0 {
		keys := strings.Join(missing, " and ")
		return fault.Newf(fault.Validation, "config.validate", "missing required configuration: %s", keys).
			WithHint(fmt.Sprintf("Set %s in %s to use time tracking", keys, paths.ConfigFile))
	}

	if _, err := url.ParseRequestURI(c.Store.URL); err != nil {
		return fault.Newf(fault.Validation, "config.validate", "invalid store.url %q: %v", c.Store.URL, err).
			WithHint("store.url must be an absolute URL, e.g. https://your-project.supabase.co")
	}

	if c.Store.RetryMax < 0 {
		return fmt.Errorf("store.retry_max must be >= 0, got %d", c.Store.RetryMax)
	}
	if c.Store.TimeoutSeconds <= 0 {
		return fmt.Errorf("store.timeout_seconds must be > 0, got %d", c.Store.TimeoutSeconds)
	}
	if c.Tracking.IdleTimeoutMinutes <= 0 {
		return fmt.Errorf("tracking.idle_timeout_minutes must be > 0, got %d", c.Tracking.IdleTimeoutMinutes)
	}
	if c.Tracking.DashboardEntryLimit <= 0 {
		return fmt.Errorf("tracking.dashboard_entry_limit must be > 0, got %d", c.Tracking.DashboardEntryLimit)
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be debug, info, warn, or error", c.Log.Level)
	}

	return nil
}

// ///////////////////////////////////////////////
// Derived Values
// ///////////////////////////////////////////////

// IdleTimeout returns the configured idle timeout as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Tracking.IdleTimeoutMinutes) * time.Minute
}

// StoreTimeout returns the per-request store timeout as a duration.
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.Store.TimeoutSeconds) * time.Second
}

// ///////////////////////////////////////////////
// Privacy Helpers
// ///////////////////////////////////////////////

// IsIgnored reports whether path matches any of the configured ignore patterns.
func (c *Config) IsIgnored(path string) bool {
	for _, pattern := range c.Privacy.Ignore {
		matched, err := doublestar.Match(pattern, path)
		if err != nil {
			slog.Warn("invalid glob pattern", "pattern", pattern, "error", err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
