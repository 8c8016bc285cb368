// Package service defines the interfaces between the local store, the sync
// engine and the remote store.
package service

import (
	"context"

	"github.com/Veraticus/finsync/internal/model"
	"github.com/Veraticus/finsync/internal/storage"
	"github.com/Veraticus/finsync/internal/wire"
)

// LocalStore is the subset of the local store used by the sync engine and
// the ledger.
type LocalStore interface {
	storage.Reader

	// Update runs fn in one local transaction.
	Update(ctx context.Context, fn func(tx *storage.Tx) error) error

	// Queue operations
	QueueLen(ctx context.Context) (int, error)
	QueueItems(ctx context.Context) ([]model.QueueItem, error)
	RemoveQueueItem(ctx context.Context, seq int64) error
	RecordQueueFailure(ctx context.Context, seq int64, reason string) (int, error)
	DeadLetter(ctx context.Context, item model.QueueItem, reason string) error
	DeadLetterLen(ctx context.Context) (int, error)
}

// RemoteStore is the authoritative store the queue drains into.
type RemoteStore interface {
	// BulkUpsert writes rows keyed by id. Replaying the same rows is a no-op.
	BulkUpsert(ctx context.Context, table model.Table, rows []wire.Row) error
	// Delete removes a row by id and returns remote.ErrNotFound when no row matched.
	Delete(ctx context.Context, table model.Table, id string) error
	// SelectAll returns every row of a table owned by userID.
	SelectAll(ctx context.Context, table model.Table, userID string) ([]wire.Row, error)
	Pinger
}

// Pinger checks that the remote store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Connectivity reports the current online state.
type Connectivity interface {
	Online() bool
}

// SyncTrigger asks for a sync pass without waiting for it.
type SyncTrigger interface {
	Trigger(reason model.Trigger)
}

// SyncTriggerFunc adapts a function to SyncTrigger.
type SyncTriggerFunc func(reason model.Trigger)

// Trigger implements SyncTrigger.
func (f SyncTriggerFunc) Trigger(reason model.Trigger) { f(reason) }

var _ LocalStore = (*storage.SQLiteStorage)(nil)
