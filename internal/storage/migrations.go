package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Veraticus/finsync/internal/model"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			var queries []string
			for _, table := range model.TrackedTables {
				queries = append(queries, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
					id TEXT PRIMARY KEY,
					doc TEXT NOT NULL,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`, table))
			}

			queries = append(queries,
				`CREATE TABLE IF NOT EXISTS sync_queue (
					seq INTEGER PRIMARY KEY AUTOINCREMENT,
					table_name TEXT NOT NULL,
					entity_id TEXT NOT NULL,
					action TEXT NOT NULL CHECK (action IN ('INSERT', 'UPDATE', 'DELETE')),
					timestamp INTEGER NOT NULL
				)`,
				`CREATE INDEX idx_sync_queue_entity ON sync_queue(table_name, entity_id)`,
			)
			return execAll(tx, queries)
		},
	},
	{
		Version:     2,
		Description: "Track sync attempts and dead letters",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`ALTER TABLE sync_queue ADD COLUMN attempts INTEGER NOT NULL DEFAULT 0`,
				`ALTER TABLE sync_queue ADD COLUMN last_error TEXT NOT NULL DEFAULT ''`,
				`CREATE TABLE IF NOT EXISTS sync_dead_letters (
					seq INTEGER PRIMARY KEY,
					table_name TEXT NOT NULL,
					entity_id TEXT NOT NULL,
					action TEXT NOT NULL,
					timestamp INTEGER NOT NULL,
					attempts INTEGER NOT NULL DEFAULT 0,
					last_error TEXT NOT NULL DEFAULT '',
					reason TEXT NOT NULL DEFAULT '',
					dead_at DATETIME NOT NULL
				)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Index transactions by account and date",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(json_extract(doc, '$.account'))`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(json_extract(doc, '$.date'))`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Debug("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the current schema version of the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
