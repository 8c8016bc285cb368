package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/model"
)

func enqueue(ctx context.Context, q queryer, table model.Table, entityID string, action model.Action) (model.QueueItem, error) {
	if err := validateTable(table); err != nil {
		return model.QueueItem{}, err
	}
	if err := validateString(entityID, "entityID"); err != nil {
		return model.QueueItem{}, err
	}
	if !action.Valid() {
		return model.QueueItem{}, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	item := model.QueueItem{
		Table:     table,
		EntityID:  entityID,
		Action:    action,
		Timestamp: time.Now().UnixMilli(),
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO sync_queue (table_name, entity_id, action, timestamp)
		VALUES (?, ?, ?, ?)
	`, string(table), entityID, string(action), item.Timestamp)
	if err != nil {
		return model.QueueItem{}, fmt.Errorf("failed to enqueue %s %s %s: %w", action, table, entityID, err)
	}

	item.Seq, err = res.LastInsertId()
	if err != nil {
		return model.QueueItem{}, fmt.Errorf("failed to read queue sequence: %w", err)
	}
	return item, nil
}

func queueLen(ctx context.Context, q queryer) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return n, nil
}

func deadLetterLen(ctx context.Context, q queryer) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_dead_letters`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count dead letters: %w", err)
	}
	return n, nil
}

// Enqueue appends a single mutation to the outbound queue.
func (s *SQLiteStorage) Enqueue(ctx context.Context, table model.Table, entityID string, action model.Action) (model.QueueItem, error) {
	var item model.QueueItem
	err := s.Update(ctx, func(tx *Tx) error {
		var err error
		item, err = tx.Enqueue(ctx, table, entityID, action)
		return err
	})
	return item, err
}

// QueueLen returns the number of pending queue items.
func (s *SQLiteStorage) QueueLen(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return queueLen(ctx, s.db)
}

// DeadLetterLen returns the number of dead-lettered items.
func (s *SQLiteStorage) DeadLetterLen(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return deadLetterLen(ctx, s.db)
}

// QueueItems returns a snapshot of the queue in insertion order.
func (s *SQLiteStorage) QueueItems(ctx context.Context) ([]model.QueueItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, table_name, entity_id, action, timestamp, attempts, last_error
		FROM sync_queue
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.QueueItem
	for rows.Next() {
		var (
			item   model.QueueItem
			table  string
			action string
		)
		if err := rows.Scan(&item.Seq, &table, &item.EntityID, &action, &item.Timestamp, &item.Attempts, &item.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		item.Table = model.Table(table)
		item.Action = model.Action(action)
		items = append(items, item)
	}
	return items, rows.Err()
}

// RemoveQueueItem deletes a queue item. Removing an item that is already
// gone is not an error.
func (s *SQLiteStorage) RemoveQueueItem(ctx context.Context, seq int64) error {
	return s.Update(ctx, func(tx *Tx) error {
		if _, err := tx.tx.ExecContext(ctx, `DELETE FROM sync_queue WHERE seq = ?`, seq); err != nil {
			return fmt.Errorf("failed to remove queue item %d: %w", seq, err)
		}
		tx.touch(QueueTable)
		return nil
	})
}

// RecordQueueFailure increments an item's attempt counter and stores the
// last error. It returns the new attempt count.
func (s *SQLiteStorage) RecordQueueFailure(ctx context.Context, seq int64, reason string) (int, error) {
	var attempts int
	err := s.Update(ctx, func(tx *Tx) error {
		err := tx.tx.QueryRowContext(ctx, `
			UPDATE sync_queue SET attempts = attempts + 1, last_error = ?
			WHERE seq = ?
			RETURNING attempts
		`, reason, seq).Scan(&attempts)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("queue item %d: %w", seq, common.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to record failure for queue item %d: %w", seq, err)
		}
		tx.touch(QueueTable)
		return nil
	})
	return attempts, err
}

// DeadLetter moves a queue item into the dead-letter table.
func (s *SQLiteStorage) DeadLetter(ctx context.Context, item model.QueueItem, reason string) error {
	return s.Update(ctx, func(tx *Tx) error {
		res, err := tx.tx.ExecContext(ctx, `DELETE FROM sync_queue WHERE seq = ?`, item.Seq)
		if err != nil {
			return fmt.Errorf("failed to remove queue item %d: %w", item.Seq, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("queue item %d: %w", item.Seq, common.ErrNotFound)
		}

		_, err = tx.tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO sync_dead_letters
				(seq, table_name, entity_id, action, timestamp, attempts, last_error, reason, dead_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, item.Seq, string(item.Table), item.EntityID, string(item.Action), item.Timestamp,
			item.Attempts, item.LastError, reason, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to dead-letter queue item %d: %w", item.Seq, err)
		}
		tx.touch(QueueTable)
		return nil
	})
}

// DeadLetters returns every dead-lettered item, oldest first.
func (s *SQLiteStorage) DeadLetters(ctx context.Context) ([]model.DeadLetter, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, table_name, entity_id, action, timestamp, attempts, last_error, reason, dead_at
		FROM sync_dead_letters
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var letters []model.DeadLetter
	for rows.Next() {
		var (
			dl     model.DeadLetter
			table  string
			action string
		)
		if err := rows.Scan(&dl.Seq, &table, &dl.EntityID, &action, &dl.Timestamp,
			&dl.Attempts, &dl.LastError, &dl.Reason, &dl.DeadAt); err != nil {
			return nil, fmt.Errorf("failed to scan dead letter: %w", err)
		}
		dl.Table = model.Table(table)
		dl.Action = model.Action(action)
		letters = append(letters, dl)
	}
	return letters, rows.Err()
}

// RequeueDeadLetters moves every dead letter back onto the queue with a
// fresh attempt counter and returns how many were moved.
func (s *SQLiteStorage) RequeueDeadLetters(ctx context.Context) (int, error) {
	letters, err := s.DeadLetters(ctx)
	if err != nil {
		return 0, err
	}
	if len(letters) == 0 {
		return 0, nil
	}

	err = s.Update(ctx, func(tx *Tx) error {
		for _, dl := range letters {
			if _, err := tx.Enqueue(ctx, dl.Table, dl.EntityID, dl.Action); err != nil {
				return err
			}
			if _, err := tx.tx.ExecContext(ctx, `DELETE FROM sync_dead_letters WHERE seq = ?`, dl.Seq); err != nil {
				return fmt.Errorf("failed to clear dead letter %d: %w", dl.Seq, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(letters), nil
}
