package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Veraticus/finsync/internal/connectivity"
	"github.com/Veraticus/finsync/internal/model"
	"github.com/Veraticus/finsync/internal/remote"
	"github.com/Veraticus/finsync/internal/storage"
	"github.com/Veraticus/finsync/internal/testutil"
	"github.com/Veraticus/finsync/internal/wire"
)

const testUser = "user-1"

type harness struct {
	db         *testutil.TestDB
	remote     *remote.Memory
	monitor    *connectivity.Monitor
	guard      *Guard
	processor  *Processor
	reconciler *Reconciler
}

func newHarness(t *testing.T, online bool, opts ProcessorOptions) *harness {
	t.Helper()
	return newHarnessWithDB(t, testutil.SetupTestDB(t), online, opts)
}

func newHarnessWithDB(t *testing.T, db *testutil.TestDB, online bool, opts ProcessorOptions) *harness {
	t.Helper()

	if opts.UserID == "" {
		opts.UserID = testUser
	}
	if opts.ItemTimeout == 0 {
		opts.ItemTimeout = time.Second
	}

	h := &harness{
		db:      db,
		remote:  remote.NewMemory(),
		monitor: connectivity.NewMonitor(online),
		guard:   &Guard{},
	}
	h.processor = NewProcessor(db.Storage, h.remote, h.monitor, h.guard, opts)
	h.reconciler = NewReconciler(db.Storage, h.remote, h.monitor, h.guard, ReconcilerOptions{UserID: testUser})
	t.Cleanup(h.processor.Close)
	return h
}

// write stores entities and enqueues one action per entity, as the ledger does.
func write[T model.Entity](t *testing.T, s *storage.SQLiteStorage, action model.Action, entities ...T) {
	t.Helper()
	ctx := context.Background()
	err := s.Update(ctx, func(tx *storage.Tx) error {
		if err := storage.Put(ctx, tx, entities...); err != nil {
			return err
		}
		for _, e := range entities {
			if _, err := tx.Enqueue(ctx, e.EntityTable(), e.EntityID(), action); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

// remoteRow builds the row the remote store holds for a local entity.
func remoteRow(t *testing.T, s *storage.SQLiteStorage, table model.Table, id string) wire.Row {
	t.Helper()
	doc, err := s.GetDoc(context.Background(), table, id)
	require.NoError(t, err)
	row, err := wire.ToRemote(table, doc, testUser)
	require.NoError(t, err)
	return row
}

func seedRemoteGoal(h *harness, ids ...string) {
	for _, id := range ids {
		h.remote.Seed(model.TableGoals, wire.Row{
			"id":      id,
			"title":   "Remote " + id,
			"target":  1000.0,
			"current": 0.0,
			"user_id": testUser,
		})
	}
}
