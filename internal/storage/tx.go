package storage

import (
	"context"
	"database/sql"

	"github.com/Veraticus/finsync/internal/model"
)

// Tx is a local store transaction handed out by SQLiteStorage.Update.
// It must not be used after the callback returns.
type Tx struct {
	tx      *sql.Tx
	changed map[model.Table]struct{}
}

func (t *Tx) touch(table model.Table) {
	t.changed[table] = struct{}{}
}

// GetDoc returns the document stored under id, or common.ErrNotFound.
func (t *Tx) GetDoc(ctx context.Context, table model.Table, id string) ([]byte, error) {
	return getDoc(ctx, t.tx, table, id)
}

// ScanDocs returns every document of a table ordered by id.
func (t *Tx) ScanDocs(ctx context.Context, table model.Table) ([]Record, error) {
	return scanDocs(ctx, t.tx, table)
}

// IDs returns every id of a table.
func (t *Tx) IDs(ctx context.Context, table model.Table) ([]string, error) {
	return listIDs(ctx, t.tx, table)
}

// Count returns the number of rows in a table.
func (t *Tx) Count(ctx context.Context, table model.Table) (int, error) {
	return countDocs(ctx, t.tx, table)
}

// PutDocs upserts documents.
func (t *Tx) PutDocs(ctx context.Context, table model.Table, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := putDocs(ctx, t.tx, table, records); err != nil {
		return err
	}
	t.touch(table)
	return nil
}

// DeleteDocs removes documents by id and reports how many existed.
func (t *Tx) DeleteDocs(ctx context.Context, table model.Table, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := deleteDocs(ctx, t.tx, table, ids)
	if err != nil {
		return n, err
	}
	if n > 0 {
		t.touch(table)
	}
	return n, nil
}

// Enqueue appends a mutation to the outbound queue.
func (t *Tx) Enqueue(ctx context.Context, table model.Table, entityID string, action model.Action) (model.QueueItem, error) {
	item, err := enqueue(ctx, t.tx, table, entityID, action)
	if err != nil {
		return model.QueueItem{}, err
	}
	t.touch(QueueTable)
	return item, nil
}

// QueueLen returns the number of pending queue items.
func (t *Tx) QueueLen(ctx context.Context) (int, error) {
	return queueLen(ctx, t.tx)
}

// DeadLetterLen returns the number of dead-lettered items.
func (t *Tx) DeadLetterLen(ctx context.Context) (int, error) {
	return deadLetterLen(ctx, t.tx)
}
