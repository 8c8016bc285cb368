// Package testutil provides test utilities for the finsync project: isolated
// local stores and fluent fixtures for seeding them.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/finsync/internal/model"
	"github.com/Veraticus/finsync/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database.
// It automatically handles migrations and cleanup.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// SetupTestDBWithBuilder creates a test database seeded by a fixture builder.
// Seeded rows are written without queue entries.
//
// Example:
//
//	db := testutil.SetupTestDBWithBuilder(t, func(b *testutil.Builder) *testutil.Builder {
//		return b.WithAccount("acc-a", 500).WithPaidExpense("t-1", "acc-a", 100)
//	})
func SetupTestDBWithBuilder(t *testing.T, configure func(*Builder) *Builder) *TestDB {
	t.Helper()

	db := SetupTestDB(t)
	builder := NewBuilder(t)
	if configure != nil {
		builder = configure(builder)
	}
	if err := builder.Build(context.Background(), db.Storage); err != nil {
		t.Fatalf("failed to seed fixtures: %v", err)
	}
	return db
}

// MustAccount returns the stored account or fails the test.
func (db *TestDB) MustAccount(id string) model.Account {
	db.t.Helper()
	acc, err := storage.Get[model.Account](context.Background(), db.Storage, id)
	if err != nil {
		db.t.Fatalf("account %q: %v", id, err)
	}
	return acc
}

// MustTransaction returns the stored transaction or fails the test.
func (db *TestDB) MustTransaction(id string) model.Transaction {
	db.t.Helper()
	txn, err := storage.Get[model.Transaction](context.Background(), db.Storage, id)
	if err != nil {
		db.t.Fatalf("transaction %q: %v", id, err)
	}
	return txn
}

// QueueItems returns the pending queue or fails the test.
func (db *TestDB) QueueItems() []model.QueueItem {
	db.t.Helper()
	items, err := db.Storage.QueueItems(context.Background())
	if err != nil {
		db.t.Fatalf("failed to read queue: %v", err)
	}
	return items
}

// IDs returns the stored ids of a table or fails the test.
func (db *TestDB) IDs(table model.Table) []string {
	db.t.Helper()
	ids, err := db.Storage.IDs(context.Background(), table)
	if err != nil {
		db.t.Fatalf("failed to list %s: %v", table, err)
	}
	return ids
}

// Snapshot returns every document of every tracked table, for before/after
// comparisons.
func (db *TestDB) Snapshot() map[model.Table][]storage.Record {
	db.t.Helper()
	out := make(map[model.Table][]storage.Record, len(model.TrackedTables))
	for _, table := range model.TrackedTables {
		records, err := db.Storage.ScanDocs(context.Background(), table)
		if err != nil {
			db.t.Fatalf("failed to scan %s: %v", table, err)
		}
		out[table] = records
	}
	return out
}
