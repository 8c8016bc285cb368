package common

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	_, err = ParseLevel("verbose")
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	require.NoError(t, SetupLogger(slog.LevelInfo, "json", &buf))

	ComponentLogger("syncer").Info("pass complete", "synced", 2)
	assert.Contains(t, buf.String(), `"component":"syncer"`)
	assert.Contains(t, buf.String(), `"synced":2`)

	buf.Reset()
	slog.Debug("hidden")
	assert.Empty(t, buf.String())

	require.ErrorIs(t, SetupLogger(slog.LevelInfo, "xml", &buf), ErrInvalidConfig)
}
