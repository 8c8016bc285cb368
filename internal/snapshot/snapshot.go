// Package snapshot keeps a bounded fallback copy of the local store in a
// bbolt file. It is only read to bootstrap an unexpectedly empty local store.
package snapshot

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/model"
	"github.com/Veraticus/finsync/internal/storage"
)

const (
	bucketMeta = "meta" // key: "saved_at" -> RFC3339 time, "user_id" -> owner

	keySavedAt = "saved_at"
	keyUserID  = "user_id"

	// DefaultLimit bounds the records kept per table.
	DefaultLimit = 200
)

// Snapshot is the decoded content of the fallback file.
type Snapshot struct {
	SavedAt time.Time
	Tables  map[model.Table][]storage.Record
	UserID  string
}

// Store is a bbolt-backed snapshot file.
type Store struct {
	db    *bbolt.DB
	path  string
	limit int
}

// Open opens or creates the snapshot file at path.
func Open(path string, limit int) (*Store, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot %s: %w", path, err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketMeta))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize snapshot: %w", err)
	}

	return &Store{db: db, path: path, limit: limit}, nil
}

// Close closes the snapshot file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the snapshot file path.
func (s *Store) Path() string {
	return s.path
}

// Save replaces the snapshot with a bounded subset of tables.
func (s *Store) Save(ctx context.Context, userID string, tables map[model.Table][]storage.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, table := range model.TrackedTables {
			name := []byte(table)
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return fmt.Errorf("failed to clear %s: %w", table, err)
				}
			}

			bucket, err := tx.CreateBucket(name)
			if err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", table, err)
			}
			for _, rec := range bound(table, tables[table], s.limit) {
				if err := bucket.Put([]byte(rec.ID), rec.Doc); err != nil {
					return fmt.Errorf("failed to store %s %s: %w", table, rec.ID, err)
				}
			}
		}

		meta := tx.Bucket([]byte(bucketMeta))
		if err := meta.Put([]byte(keySavedAt), []byte(time.Now().UTC().Format(time.RFC3339Nano))); err != nil {
			return err
		}
		return meta.Put([]byte(keyUserID), []byte(userID))
	})
}

// Load reads the whole snapshot. It returns common.ErrNotFound when nothing
// has been saved yet.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := &Snapshot{Tables: make(map[model.Table][]storage.Record)}
	err := s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket([]byte(bucketMeta))
		savedAt := meta.Get([]byte(keySavedAt))
		if savedAt == nil {
			return fmt.Errorf("snapshot: %w", common.ErrNotFound)
		}

		t, err := time.Parse(time.RFC3339Nano, string(savedAt))
		if err != nil {
			return fmt.Errorf("invalid snapshot timestamp: %w", err)
		}
		snap.SavedAt = t
		snap.UserID = string(meta.Get([]byte(keyUserID)))

		for _, table := range model.TrackedTables {
			bucket := tx.Bucket([]byte(table))
			if bucket == nil {
				continue
			}
			// Values are only valid inside the transaction.
			err := bucket.ForEach(func(k, v []byte) error {
				snap.Tables[table] = append(snap.Tables[table], storage.Record{
					ID:  string(k),
					Doc: json.RawMessage(slices.Clone(v)),
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Exists reports whether a snapshot has been saved.
func (s *Store) Exists() (bool, error) {
	_, err := s.Load(context.Background())
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// bound keeps at most limit records. Transactions keep the most recent by
// date; other tables keep the first records by id.
func bound(table model.Table, records []storage.Record, limit int) []storage.Record {
	if len(records) <= limit {
		return records
	}

	sorted := slices.Clone(records)
	if table == model.TableTransactions {
		dates := make(map[string]string, len(sorted))
		for _, rec := range sorted {
			var probe struct {
				Date string `json:"date"`
			}
			_ = json.Unmarshal(rec.Doc, &probe)
			dates[rec.ID] = probe.Date
		}
		slices.SortFunc(sorted, func(a, b storage.Record) int {
			if c := cmp.Compare(dates[b.ID], dates[a.ID]); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
	} else {
		slices.SortFunc(sorted, func(a, b storage.Record) int {
			return cmp.Compare(a.ID, b.ID)
		})
	}
	return sorted[:limit]
}
