package ledger

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/connectivity"
	"github.com/Veraticus/finsync/internal/model"
	"github.com/Veraticus/finsync/internal/remote"
	"github.com/Veraticus/finsync/internal/service"
	"github.com/Veraticus/finsync/internal/syncer"
	"github.com/Veraticus/finsync/internal/testutil"
	"github.com/Veraticus/finsync/internal/wire"
)

type countingTrigger struct {
	calls atomic.Int32
}

func (c *countingTrigger) Trigger(model.Trigger) { c.calls.Add(1) }

func newTestLedger(t *testing.T, db *testutil.TestDB) (*Ledger, *countingTrigger) {
	t.Helper()
	trigger := &countingTrigger{}
	l := New(db.Storage, trigger)
	l.newID = sequentialIDs()
	l.now = func() time.Time { return time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC) }
	return l, trigger
}

func queueSummary(items []model.QueueItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, string(item.Action)+" "+string(item.Table)+" "+item.EntityID)
	}
	return out
}

func TestLedger_CreateAndSyncEndToEnd(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDBWithBuilder(t, func(b *testutil.Builder) *testutil.Builder {
		return b.WithAccount("acc-a", 500)
	})

	monitor := connectivity.NewMonitor(true)
	rs := remote.NewMemory()
	processor := syncer.NewProcessor(db.Storage, rs, monitor, &syncer.Guard{}, syncer.ProcessorOptions{UserID: "user-1"})
	t.Cleanup(processor.Close)

	// No background trigger so the queue can be inspected first.
	l := New(db.Storage, nil)
	txn, err := l.CreateTransaction(ctx, testutil.Expense("", "acc-a", 100, true))
	require.NoError(t, err)
	require.NotEmpty(t, txn.ID)

	assert.InDelta(t, 400, db.MustAccount("acc-a").Balance, 0.001)
	assert.Equal(t, []string{
		"INSERT transactions " + txn.ID,
		"UPDATE accounts acc-a",
	}, queueSummary(db.QueueItems()))

	result, err := processor.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Synced)
	assert.Empty(t, db.QueueItems())

	for _, ref := range []struct {
		table model.Table
		id    string
	}{{model.TableTransactions, txn.ID}, {model.TableAccounts, "acc-a"}} {
		doc, err := db.Storage.GetDoc(ctx, ref.table, ref.id)
		require.NoError(t, err)
		want, err := wire.ToRemote(ref.table, doc, "user-1")
		require.NoError(t, err)

		got, ok := rs.Row(ref.table, ref.id)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestLedger_RevertApplyAcrossAccounts(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDBWithBuilder(t, func(b *testutil.Builder) *testutil.Builder {
		return b.
			WithAccount("acc-a", 500).
			WithAccount("acc-b", 200).
			WithPaidExpense("t-1", "acc-a", 100)
	})
	l, _ := newTestLedger(t, db)

	moved := db.MustTransaction("t-1")
	moved.Account = "acc-b"
	moved.Amount = 150
	_, err := l.UpdateTransaction(ctx, moved)
	require.NoError(t, err)

	assert.InDelta(t, 600, db.MustAccount("acc-a").Balance, 0.001)
	assert.InDelta(t, 50, db.MustAccount("acc-b").Balance, 0.001)
	assert.Equal(t, []string{
		"UPDATE transactions t-1",
		"UPDATE accounts acc-a",
		"UPDATE accounts acc-b",
	}, queueSummary(db.QueueItems()))
}

func TestLedger_UpdateWithoutBalanceChange(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDBWithBuilder(t, func(b *testutil.Builder) *testutil.Builder {
		return b.WithAccount("acc-a", 400).WithPaidExpense("t-1", "acc-a", 100)
	})
	l, _ := newTestLedger(t, db)

	txn := db.MustTransaction("t-1")
	txn.Description = "Renamed"
	txn.Category = "Lazer"
	_, err := l.UpdateTransaction(ctx, txn)
	require.NoError(t, err)

	assert.InDelta(t, 400, db.MustAccount("acc-a").Balance, 0.001)
	assert.Equal(t, []string{"UPDATE transactions t-1"}, queueSummary(db.QueueItems()))
}

func TestLedger_UnpaidTransactionsNeverMoveBalances(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDBWithBuilder(t, func(b *testutil.Builder) *testutil.Builder {
		return b.WithAccount("acc-a", 0)
	})
	l, _ := newTestLedger(t, db)

	txn, err := l.CreateTransaction(ctx, testutil.Expense("t-1", "acc-a", 100, false))
	require.NoError(t, err)
	txn.Amount = 300
	_, err = l.UpdateTransaction(ctx, txn)
	require.NoError(t, err)
	require.NoError(t, l.DeleteTransaction(ctx, "t-1"))

	assert.Zero(t, db.MustAccount("acc-a").Balance)
	assert.Equal(t, []string{
		"INSERT transactions t-1",
		"UPDATE transactions t-1",
		"DELETE transactions t-1",
	}, queueSummary(db.QueueItems()))
}

func TestLedger_TransfersCarryNoDelta(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDBWithBuilder(t, func(b *testutil.Builder) *testutil.Builder {
		return b.WithAccount("acc-a", 100)
	})
	l, _ := newTestLedger(t, db)

	transfer := testutil.Expense("t-1", "acc-a", 50, true)
	transfer.Type = model.TypeTransfer
	_, err := l.CreateTransaction(ctx, transfer)
	require.NoError(t, err)

	assert.InDelta(t, 100, db.MustAccount("acc-a").Balance, 0.001)
	assert.Len(t, db.QueueItems(), 1)
}

func TestLedger_SetPaidAndDelete(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDBWithBuilder(t, func(b *testutil.Builder) *testutil.Builder {
		return b.WithAccount("acc-a", 0)
	})
	l, trigger := newTestLedger(t, db)

	_, err := l.CreateTransaction(ctx, testutil.Income("salary", "acc-a", 3000, false))
	require.NoError(t, err)

	paid, err := l.SetPaid(ctx, "salary", true)
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	assert.Equal(t, "2026-03-20", paid.PaymentDate)
	assert.InDelta(t, 3000, db.MustAccount("acc-a").Balance, 0.001)

	// Paying twice is a no-op for the balance.
	_, err = l.SetPaid(ctx, "salary", true)
	require.NoError(t, err)
	assert.InDelta(t, 3000, db.MustAccount("acc-a").Balance, 0.001)

	require.NoError(t, l.DeleteTransaction(ctx, "salary"))
	assert.Zero(t, db.MustAccount("acc-a").Balance)
	assert.Equal(t, int32(4), trigger.calls.Load())

	err = l.DeleteTransaction(ctx, "salary")
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, int32(4), trigger.calls.Load(), "failed mutations do not trigger")
}

func TestLedger_MissingAccountIsSkipped(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	l, _ := newTestLedger(t, db)

	_, err := l.CreateTransaction(ctx, testutil.Expense("t-1", "gone", 10, true))
	require.NoError(t, err)

	assert.Equal(t, []string{"INSERT transactions t-1"}, queueSummary(db.QueueItems()))
	assert.Empty(t, db.IDs(model.TableAccounts))
}

func TestLedger_AddTransactionExpandsAtomically(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDBWithBuilder(t, func(b *testutil.Builder) *testutil.Builder {
		return b.WithAccount("acc-a", 1000)
	})
	l, trigger := newTestLedger(t, db)

	txn := testutil.Expense("", "acc-a", 200, true)
	txn.Recurrence = model.RecurrenceInstallment
	txn.InstallmentCount = 4

	out, err := l.AddTransaction(ctx, txn)
	require.NoError(t, err)
	require.Len(t, out, 4)

	assert.Len(t, db.IDs(model.TableTransactions), 4)
	assert.InDelta(t, 800, db.MustAccount("acc-a").Balance, 0.001, "only the first installment is paid")
	assert.Len(t, db.QueueItems(), 5)
	assert.Equal(t, int32(1), trigger.calls.Load())
}

func TestLedger_RejectsInvalidTransactions(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	l, _ := newTestLedger(t, db)

	tests := []struct {
		name   string
		mutate func(*model.Transaction)
	}{
		{"negative amount", func(txn *model.Transaction) { txn.Amount = -1 }},
		{"unknown type", func(txn *model.Transaction) { txn.Type = "refund" }},
		{"bad date", func(txn *model.Transaction) { txn.Date = "20/03/2026" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := testutil.Expense("bad", "acc-a", 10, true)
			tt.mutate(&txn)
			_, err := l.CreateTransaction(ctx, txn)
			require.ErrorIs(t, err, common.ErrInvalidEntity)
		})
	}

	assert.Empty(t, db.QueueItems())

	// Ids are never reused.
	_, err := l.CreateTransaction(ctx, testutil.Expense("dup", "acc-a", 10, false))
	require.NoError(t, err)
	_, err = l.CreateTransaction(ctx, testutil.Expense("dup", "acc-a", 10, false))
	require.ErrorIs(t, err, common.ErrInvalidEntity)
	assert.Len(t, db.QueueItems(), 1)
}

func TestSaveAndRemove(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	l, _ := newTestLedger(t, db)

	goal := model.Goal{ID: "g-1", Title: "Reserva", Target: 10000}
	require.NoError(t, Save(ctx, l, goal))
	goal.Current = 2500
	require.NoError(t, Save(ctx, l, goal))
	require.NoError(t, Remove[model.Goal](ctx, l, "g-1"))

	assert.Equal(t, []string{
		"INSERT goals g-1",
		"UPDATE goals g-1",
		"DELETE goals g-1",
	}, queueSummary(db.QueueItems()))

	err := Remove[model.Goal](ctx, l, "g-1")
	require.ErrorIs(t, err, common.ErrNotFound)

	err = Save(ctx, l, testutil.Expense("t-1", "acc-a", 1, true))
	require.ErrorIs(t, err, common.ErrInvalidEntity)
	err = Remove[model.Transaction](ctx, l, "t-1")
	require.ErrorIs(t, err, common.ErrInvalidEntity)

	err = Save(ctx, l, model.Tag{Name: "no id"})
	require.ErrorIs(t, err, common.ErrInvalidEntity)
}

func TestLedger_TriggerDrivesProcessor(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDBWithBuilder(t, func(b *testutil.Builder) *testutil.Builder {
		return b.WithAccount("acc-a", 500)
	})

	rs := remote.NewMemory()
	processor := syncer.NewProcessor(db.Storage, rs, connectivity.NewMonitor(true), &syncer.Guard{}, syncer.ProcessorOptions{UserID: "user-1"})
	t.Cleanup(processor.Close)

	var trigger service.SyncTrigger = processor
	l := New(db.Storage, trigger)

	_, err := l.CreateTransaction(ctx, testutil.Expense("t-1", "acc-a", 100, true))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		n, err := db.Storage.QueueLen(ctx)
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)

	row, ok := rs.Row(model.TableAccounts, "acc-a")
	require.True(t, ok)
	assert.Equal(t, json.Number("400"), row["balance"])
}
