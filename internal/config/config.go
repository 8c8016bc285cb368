package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/remote"
	"github.com/Veraticus/finsync/internal/snapshot"
	"github.com/Veraticus/finsync/internal/syncer"
)

// Default locations, expanded with ExpandPath.
const (
	DefaultDatabasePath = "$HOME/.local/share/finsync/finsync.db"
	DefaultSnapshotPath = "$HOME/.local/share/finsync/fallback.db"
)

// Config is the resolved application configuration.
type Config struct {
	Logging  LoggingConfig
	Database DatabaseConfig
	Remote   RemoteConfig
	Snapshot SnapshotConfig
	Sync     SyncConfig
}

// DatabaseConfig locates the local store.
type DatabaseConfig struct {
	Path string
}

// SnapshotConfig locates the fallback snapshot. An empty path disables it.
type SnapshotConfig struct {
	Path  string
	Limit int
}

// RemoteConfig holds the remote store endpoint and credentials.
type RemoteConfig struct {
	URL         string
	APIKey      string
	AccessToken string
	UserID      string
}

// SyncConfig tunes the sync processor and the runner.
type SyncConfig struct {
	ItemTimeout       time.Duration
	ProbeInterval     time.Duration
	ReconcileInterval time.Duration
	MaxAttempts       int
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("snapshot.path", DefaultSnapshotPath)
	v.SetDefault("snapshot.limit", snapshot.DefaultLimit)
	v.SetDefault("sync.item_timeout", syncer.DefaultItemTimeout)
	v.SetDefault("sync.max_attempts", 0)
	v.SetDefault("sync.probe_interval", 30*time.Second)
	v.SetDefault("sync.reconcile_interval", time.Duration(0))
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load reads the configuration from v. It follows this precedence:
// 1. Viper configuration (flags, FINSYNC_ env vars, config file)
// 2. Direct environment variables (SUPABASE_URL, SUPABASE_ANON_KEY)
// 3. Default values
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Path: ExpandPath(v.GetString("database.path")),
		},
		Snapshot: SnapshotConfig{
			Path:  ExpandPath(v.GetString("snapshot.path")),
			Limit: v.GetInt("snapshot.limit"),
		},
		Remote: RemoteConfig{
			URL:         v.GetString("remote.url"),
			APIKey:      v.GetString("remote.api_key"),
			AccessToken: v.GetString("remote.access_token"),
			UserID:      v.GetString("remote.user_id"),
		},
		Sync: SyncConfig{
			ItemTimeout:       v.GetDuration("sync.item_timeout"),
			MaxAttempts:       v.GetInt("sync.max_attempts"),
			ProbeInterval:     v.GetDuration("sync.probe_interval"),
			ReconcileInterval: v.GetDuration("sync.reconcile_interval"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	// Fall back to the variables the hosted project hands out
	if cfg.Remote.URL == "" {
		cfg.Remote.URL = os.Getenv("SUPABASE_URL")
	}
	if cfg.Remote.APIKey == "" {
		cfg.Remote.APIKey = os.Getenv("SUPABASE_ANON_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that can never work.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", common.ErrMissingConfig)
	}
	if c.Snapshot.Limit < 0 {
		return fmt.Errorf("%w: snapshot.limit must not be negative", common.ErrInvalidConfig)
	}
	if c.Sync.ItemTimeout <= 0 {
		return fmt.Errorf("%w: sync.item_timeout must be positive", common.ErrInvalidConfig)
	}
	if c.Sync.MaxAttempts < 0 {
		return fmt.Errorf("%w: sync.max_attempts must not be negative", common.ErrInvalidConfig)
	}
	if c.Sync.ProbeInterval < 0 || c.Sync.ReconcileInterval < 0 {
		return fmt.Errorf("%w: sync intervals must not be negative", common.ErrInvalidConfig)
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: logging.format %q", common.ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}

// RemoteConfigured reports whether a remote store can be reached at all.
func (c *Config) RemoteConfigured() bool {
	return c.Remote.URL != "" && c.Remote.APIKey != ""
}

// ClientConfig converts the remote section into a remote.Config.
func (c *Config) ClientConfig() remote.Config {
	return remote.Config{
		URL:         c.Remote.URL,
		APIKey:      c.Remote.APIKey,
		AccessToken: c.Remote.AccessToken,
		Timeout:     c.Sync.ItemTimeout,
	}
}
