// Package config loads finsync settings from viper: config file, FINSYNC_*
// environment variables and bound command-line flags.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// memoryPath is SQLite's in-memory database name and is never expanded.
const memoryPath = ":memory:"

// ExpandPath resolves the file locations finsync reads from configuration
// (database.path, snapshot.path and --config). A leading ~ becomes the home
// directory, then $VAR references are substituted. SQLite's :memory: name
// passes through untouched.
func ExpandPath(path string) string {
	if path == "" || path == memoryPath {
		return path
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return os.ExpandEnv(path)
}
