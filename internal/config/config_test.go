package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/finsync/internal/common"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_ANON_KEY", "")

	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	v := newViper(t)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/home/tester/.local/share/finsync/finsync.db", cfg.Database.Path)
	assert.Equal(t, "/home/tester/.local/share/finsync/fallback.db", cfg.Snapshot.Path)
	assert.Equal(t, 200, cfg.Snapshot.Limit)
	assert.Equal(t, 15*time.Second, cfg.Sync.ItemTimeout)
	assert.Equal(t, 30*time.Second, cfg.Sync.ProbeInterval)
	assert.Zero(t, cfg.Sync.ReconcileInterval)
	assert.Zero(t, cfg.Sync.MaxAttempts)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.RemoteConfigured())
}

func TestLoad_ConfigFile(t *testing.T) {
	v := newViper(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /tmp/finsync-test.db
remote:
  url: https://example.supabase.co
  api_key: anon-key
  access_token: session-token
  user_id: user-1
sync:
  item_timeout: 5s
  max_attempts: 8
  reconcile_interval: 10m
logging:
  level: debug
  format: json
`), 0o600))

	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/finsync-test.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.Sync.ItemTimeout)
	assert.Equal(t, 8, cfg.Sync.MaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Sync.ReconcileInterval)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.RemoteConfigured())

	client := cfg.ClientConfig()
	assert.Equal(t, "https://example.supabase.co", client.URL)
	assert.Equal(t, "session-token", client.AccessToken)
	assert.Equal(t, 5*time.Second, client.Timeout)
	require.NoError(t, client.Validate())
}

func TestLoad_EnvironmentFallback(t *testing.T) {
	v := newViper(t)
	t.Setenv("SUPABASE_URL", "https://env.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "env-key")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "https://env.supabase.co", cfg.Remote.URL)
	assert.Equal(t, "env-key", cfg.Remote.APIKey)

	// Explicit configuration wins.
	v.Set("remote.url", "https://explicit.supabase.co")
	cfg, err = Load(v)
	require.NoError(t, err)
	assert.Equal(t, "https://explicit.supabase.co", cfg.Remote.URL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value any
		want  error
	}{
		{"database.path", "", common.ErrMissingConfig},
		{"snapshot.limit", -1, common.ErrInvalidConfig},
		{"sync.item_timeout", "0s", common.ErrInvalidConfig},
		{"sync.max_attempts", -2, common.ErrInvalidConfig},
		{"sync.probe_interval", "-1s", common.ErrInvalidConfig},
		{"logging.level", "verbose", common.ErrInvalidConfig},
		{"logging.format", "xml", common.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v := newViper(t)
			v.Set(tt.key, tt.value)

			_, err := Load(v)
			require.ErrorIs(t, err, tt.want)
		})
	}
}
