package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/model"
)

// Record is a raw stored document together with its id.
type Record struct {
	ID  string
	Doc json.RawMessage
}

// Reader is the read side of the local store, implemented by both
// *SQLiteStorage and *Tx.
type Reader interface {
	GetDoc(ctx context.Context, table model.Table, id string) ([]byte, error)
	ScanDocs(ctx context.Context, table model.Table) ([]Record, error)
	IDs(ctx context.Context, table model.Table) ([]string, error)
	Count(ctx context.Context, table model.Table) (int, error)
}

// Writer adds document mutation to Reader.
type Writer interface {
	Reader
	PutDocs(ctx context.Context, table model.Table, records []Record) error
	DeleteDocs(ctx context.Context, table model.Table, ids ...string) (int, error)
}

var (
	_ Writer = (*SQLiteStorage)(nil)
	_ Writer = (*Tx)(nil)
)

func getDoc(ctx context.Context, q queryer, table model.Table, id string) ([]byte, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var doc string
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE id = ?`, table)
	err := q.QueryRowContext(ctx, query, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", table, id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", table, id, err)
	}
	return []byte(doc), nil
}

func scanDocs(ctx context.Context, q queryer, table model.Table) ([]Record, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, doc FROM %s ORDER BY id`, table)
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("failed to read %s row: %w", table, err)
		}
		records = append(records, Record{ID: id, Doc: json.RawMessage(doc)})
	}
	return records, rows.Err()
}

func listIDs(ctx context.Context, q queryer, table model.Table) ([]string, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id FROM %s ORDER BY id`, table)
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s ids: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to read %s id: %w", table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func countDocs(ctx context.Context, q queryer, table model.Table) (int, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)
	if err := q.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

func putDocs(ctx context.Context, q queryer, table model.Table, records []Record) error {
	if err := validateTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, doc, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at
	`, table)

	for _, rec := range records {
		if err := validateRecord(rec); err != nil {
			return fmt.Errorf("%s: %w", table, err)
		}
		if _, err := q.ExecContext(ctx, query, rec.ID, string(rec.Doc)); err != nil {
			return fmt.Errorf("failed to put %s %s: %w", table, rec.ID, err)
		}
	}
	return nil
}

// deleteBatchSize keeps IN lists well below SQLite's variable limit.
const deleteBatchSize = 500

func deleteDocs(ctx context.Context, q queryer, table model.Table, ids []string) (int, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	var deleted int
	for start := 0; start < len(ids); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(ids))
		batch := ids[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}

		query := fmt.Sprintf(`DELETE FROM %s WHERE id IN (%s)`, table, placeholders)
		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return deleted, fmt.Errorf("failed to delete from %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return deleted, fmt.Errorf("failed to count deleted %s rows: %w", table, err)
		}
		deleted += int(n)
	}
	return deleted, nil
}
