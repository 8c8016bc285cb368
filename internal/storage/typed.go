package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Veraticus/finsync/internal/model"
)

func tableOf[T model.Entity]() model.Table {
	var zero T
	return zero.EntityTable()
}

// Get loads one entity by id.
func Get[T model.Entity](ctx context.Context, r Reader, id string) (T, error) {
	var out T
	doc, err := r.GetDoc(ctx, tableOf[T](), id)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(doc, &out); err != nil {
		return out, fmt.Errorf("failed to decode %s %s: %w", tableOf[T](), id, err)
	}
	return out, nil
}

// Exists reports whether an entity with id is stored.
func Exists[T model.Entity](ctx context.Context, r Reader, id string) (bool, error) {
	_, err := r.GetDoc(ctx, tableOf[T](), id)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// All loads every entity of a table ordered by id.
func All[T model.Entity](ctx context.Context, r Reader) ([]T, error) {
	records, err := r.ScanDocs(ctx, tableOf[T]())
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(records))
	for _, rec := range records {
		var v T
		if err := json.Unmarshal(rec.Doc, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s %s: %w", tableOf[T](), rec.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Put upserts one or more entities.
func Put[T model.Entity](ctx context.Context, w Writer, entities ...T) error {
	if len(entities) == 0 {
		return nil
	}

	records := make([]Record, 0, len(entities))
	for _, e := range entities {
		doc, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s: %w", e.EntityTable(), e.EntityID(), err)
		}
		records = append(records, Record{ID: e.EntityID(), Doc: doc})
	}
	return w.PutDocs(ctx, tableOf[T](), records)
}

// Delete removes entities by id and returns how many existed.
func Delete[T model.Entity](ctx context.Context, w Writer, ids ...string) (int, error) {
	return w.DeleteDocs(ctx, tableOf[T](), ids...)
}

// Modify loads an entity, applies fn and stores the result.
func Modify[T model.Entity](ctx context.Context, w Writer, id string, fn func(*T) error) (T, error) {
	v, err := Get[T](ctx, w, id)
	if err != nil {
		return v, err
	}
	if err := fn(&v); err != nil {
		return v, err
	}
	if v.EntityID() != id {
		return v, fmt.Errorf("%w: id of %s %s cannot change", ErrInvalidRecord, tableOf[T](), id)
	}
	if err := Put(ctx, w, v); err != nil {
		return v, err
	}
	return v, nil
}

// Watch streams the full contents of T's table: once immediately and again
// after every committed change. The channel closes when ctx is done or the
// store is closed.
func Watch[T model.Entity](ctx context.Context, s *SQLiteStorage) (<-chan []T, error) {
	sub := s.Subscribe(tableOf[T]())
	initial, err := All[T](ctx, s)
	if err != nil {
		sub.Close()
		return nil, err
	}

	out := make(chan []T, 1)
	out <- initial

	go func() {
		defer close(out)
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.C:
				if !ok {
					return
				}
				view, err := All[T](ctx, s)
				if err != nil {
					return
				}
				select {
				case out <- view:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
