package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/model"
	"github.com/Veraticus/finsync/internal/service"
	"github.com/Veraticus/finsync/internal/storage"
	"github.com/Veraticus/finsync/internal/wire"
)

// SnapshotSaver persists the bounded fallback copy after a clean pass.
type SnapshotSaver interface {
	Save(ctx context.Context, userID string, tables map[model.Table][]storage.Record) error
}

// ReconcilerOptions configures a Reconciler.
type ReconcilerOptions struct {
	// Snapshot is optional.
	Snapshot SnapshotSaver
	UserID   string
}

// ReconcileResult reports per-table changes made by one pass.
type ReconcileResult struct {
	Pruned   map[model.Table]int
	Upserted map[model.Table]int
	Duration time.Duration
}

// TotalPruned returns the number of local orphans deleted.
func (r ReconcileResult) TotalPruned() int {
	var n int
	for _, c := range r.Pruned {
		n += c
	}
	return n
}

// TotalUpserted returns the number of remote rows written locally.
func (r ReconcileResult) TotalUpserted() int {
	var n int
	for _, c := range r.Upserted {
		n += c
	}
	return n
}

// Reconciler makes the local store match the remote store. It only runs
// when the mutation queue and the dead-letter table are both empty, so no
// optimistic write is overwritten.
type Reconciler struct {
	store  service.LocalStore
	remote service.RemoteStore
	conn   service.Connectivity
	guard  *Guard
	logger *slog.Logger
	opts   ReconcilerOptions
}

// NewReconciler creates a reconciler sharing guard with the Processor.
func NewReconciler(store service.LocalStore, rs service.RemoteStore, conn service.Connectivity, guard *Guard, opts ReconcilerOptions) *Reconciler {
	return &Reconciler{
		store:  store,
		remote: rs,
		conn:   conn,
		guard:  guard,
		opts:   opts,
		logger: common.ComponentLogger("reconciler"),
	}
}

// Reconcile fetches every tracked table, prunes local orphans and upserts
// the remote rows. A failed fetch leaves the local store untouched.
func (r *Reconciler) Reconcile(ctx context.Context) (ReconcileResult, error) {
	result := ReconcileResult{
		Pruned:   make(map[model.Table]int),
		Upserted: make(map[model.Table]int),
	}

	if r.opts.UserID == "" {
		return result, fmt.Errorf("%w: reconciliation needs a user id", common.ErrMissingConfig)
	}
	if !r.conn.Online() {
		return result, common.ErrOffline
	}
	if !r.guard.TryAcquire() {
		return result, common.ErrPassInProgress
	}
	defer r.guard.Release()

	start := time.Now()

	if err := checkUnsynced(ctx, r.store); err != nil {
		return result, err
	}

	fetched, err := r.fetchAll(ctx)
	if err != nil {
		return result, fmt.Errorf("reconciliation aborted: %w", err)
	}

	err = r.store.Update(ctx, func(tx *storage.Tx) error {
		// Writes made while fetching must survive.
		if err := checkUnsynced(ctx, tx); err != nil {
			return err
		}

		for _, table := range model.TrackedTables {
			records := fetched[table]
			remoteIDs := make(map[string]struct{}, len(records))
			for _, rec := range records {
				remoteIDs[rec.ID] = struct{}{}
			}

			localIDs, err := tx.IDs(ctx, table)
			if err != nil {
				return err
			}
			var orphans []string
			for _, id := range localIDs {
				if _, ok := remoteIDs[id]; !ok {
					orphans = append(orphans, id)
				}
			}

			pruned, err := tx.DeleteDocs(ctx, table, orphans...)
			if err != nil {
				return err
			}
			if err := tx.PutDocs(ctx, table, records); err != nil {
				return err
			}
			result.Pruned[table] = pruned
			result.Upserted[table] = len(records)
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	result.Duration = time.Since(start)
	r.logger.Info("Reconciliation complete",
		"pruned", result.TotalPruned(),
		"upserted", result.TotalUpserted(),
		"duration", result.Duration)

	if r.opts.Snapshot != nil {
		if err := r.opts.Snapshot.Save(ctx, r.opts.UserID, fetched); err != nil {
			r.logger.Warn("Failed to save fallback snapshot", "error", err)
		}
	}
	return result, nil
}

// unsyncedCounter is satisfied by both the store and an open transaction.
type unsyncedCounter interface {
	QueueLen(ctx context.Context) (int, error)
	DeadLetterLen(ctx context.Context) (int, error)
}

// checkUnsynced fails with ErrQueueNotEmpty while any local write has not
// reached the remote store. Dead letters count: their entities exist only
// locally and would otherwise be pruned.
func checkUnsynced(ctx context.Context, c unsyncedCounter) error {
	pending, err := c.QueueLen(ctx)
	if err != nil {
		return err
	}
	dead, err := c.DeadLetterLen(ctx)
	if err != nil {
		return err
	}
	if pending > 0 || dead > 0 {
		return fmt.Errorf("%w: %d pending, %d dead-lettered", common.ErrQueueNotEmpty, pending, dead)
	}
	return nil
}

// fetchAll loads every tracked table concurrently. Any failure fails the
// whole fetch.
func (r *Reconciler) fetchAll(ctx context.Context) (map[model.Table][]storage.Record, error) {
	results := make([][]storage.Record, len(model.TrackedTables))

	g, gctx := errgroup.WithContext(ctx)
	for i, table := range model.TrackedTables {
		g.Go(func() error {
			rows, err := r.remote.SelectAll(gctx, table, r.opts.UserID)
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", table, err)
			}

			records := make([]storage.Record, 0, len(rows))
			for _, row := range rows {
				id, ok := row.ID()
				if !ok {
					return fmt.Errorf("%w: %s row without id", common.ErrInvalidEntity, table)
				}
				doc, err := wire.FromRemote(table, row)
				if err != nil {
					return fmt.Errorf("failed to convert %s %s: %w", table, id, err)
				}
				records = append(records, storage.Record{ID: id, Doc: doc})
			}
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fetched := make(map[model.Table][]storage.Record, len(results))
	for i, table := range model.TrackedTables {
		fetched[table] = results[i]
	}
	return fetched, nil
}
