package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/finsync/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// QueueTable is the change-feed name used when the mutation queue changes.
// It is not a tracked entity table.
const QueueTable model.Table = "sync_queue"

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStorage is the durable local store. Every tracked table holds JSON
// documents keyed by entity id; writes publish change notifications after
// they commit.
type SQLiteStorage struct {
	db     *sql.DB
	hub    *Hub
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes local writes and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
		hub:    NewHub(),
	}, nil
}

// Close closes the database connection and every open subscription.
func (s *SQLiteStorage) Close() error {
	s.hub.Close()
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// Subscribe registers for change notifications on the given tables.
// No tables means every table, including QueueTable.
func (s *SQLiteStorage) Subscribe(tables ...model.Table) *Subscription {
	return s.hub.Subscribe(tables...)
}

// Update runs fn inside a single database transaction. Entity writes and
// queue appends made through tx commit together; subscribers are notified
// only after a successful commit.
func (s *SQLiteStorage) Update(ctx context.Context, fn func(tx *Tx) error) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	tx := &Tx{tx: sqlTx, changed: make(map[model.Table]struct{})}
	if err := fn(tx); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.publish(tx.changed)
	return nil
}

func (s *SQLiteStorage) publish(changed map[model.Table]struct{}) {
	if len(changed) == 0 {
		return
	}
	now := time.Now()
	for table := range changed {
		s.hub.Publish(model.Change{Table: table, At: now})
	}
}

// GetDoc returns the document stored under id, or common.ErrNotFound.
func (s *SQLiteStorage) GetDoc(ctx context.Context, table model.Table, id string) ([]byte, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getDoc(ctx, s.db, table, id)
}

// ScanDocs returns every document of a table ordered by id.
func (s *SQLiteStorage) ScanDocs(ctx context.Context, table model.Table) ([]Record, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return scanDocs(ctx, s.db, table)
}

// IDs returns every id of a table.
func (s *SQLiteStorage) IDs(ctx context.Context, table model.Table) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listIDs(ctx, s.db, table)
}

// Count returns the number of rows in a table.
func (s *SQLiteStorage) Count(ctx context.Context, table model.Table) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return countDocs(ctx, s.db, table)
}

// PutDocs upserts documents in one transaction.
func (s *SQLiteStorage) PutDocs(ctx context.Context, table model.Table, records []Record) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.PutDocs(ctx, table, records)
	})
}

// DeleteDocs removes documents by id in one transaction.
func (s *SQLiteStorage) DeleteDocs(ctx context.Context, table model.Table, ids ...string) (int, error) {
	var deleted int
	err := s.Update(ctx, func(tx *Tx) error {
		n, err := tx.DeleteDocs(ctx, table, ids...)
		deleted = n
		return err
	})
	return deleted, err
}
