package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/model"
	"github.com/Veraticus/finsync/internal/storage"
	"github.com/Veraticus/finsync/internal/testutil"
)

func TestSignedAmount(t *testing.T) {
	tests := []struct {
		txnType model.TransactionType
		want    string
	}{
		{model.TypeExpense, "-12.34"},
		{model.TypeIncome, "12.34"},
		{model.TypeTransfer, "0"},
	}

	for _, tt := range tests {
		t.Run(string(tt.txnType), func(t *testing.T) {
			got := SignedAmount(model.Transaction{Type: tt.txnType, Amount: 12.34})
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

// assertBalancesMatch checks every account against its paid transactions.
func assertBalancesMatch(t *testing.T, db *testutil.TestDB, step int) {
	t.Helper()
	ctx := context.Background()

	txns, err := storage.All[model.Transaction](ctx, db.Storage)
	require.NoError(t, err)
	accounts, err := storage.All[model.Account](ctx, db.Storage)
	require.NoError(t, err)

	for _, acc := range accounts {
		var want float64
		for _, txn := range txns {
			if !txn.IsPaid || txn.Account != acc.ID {
				continue
			}
			switch txn.Type {
			case model.TypeExpense:
				want -= txn.Amount
			case model.TypeIncome:
				want += txn.Amount
			}
		}
		assert.InDelta(t, want, acc.Balance, 0.01, "account %s after step %d", acc.ID, step)
	}
}

func TestLedger_BalanceInvariantOverRandomSequences(t *testing.T) {
	accounts := []string{"acc-a", "acc-b", "acc-c"}
	types := []model.TransactionType{model.TypeExpense, model.TypeIncome, model.TypeTransfer}

	for seed := uint64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			ctx := context.Background()
			rng := rand.New(rand.NewPCG(seed, seed*7919))
			db := testutil.SetupTestDBWithBuilder(t, func(b *testutil.Builder) *testutil.Builder {
				for _, id := range accounts {
					b = b.WithAccount(id, 0)
				}
				return b
			})
			l, _ := newTestLedger(t, db)

			var live []string
			randomAmount := func() float64 {
				return float64(rng.IntN(100000)) / 100
			}

			for step := range 200 {
				switch op := rng.IntN(4); {
				case op == 0 || len(live) == 0:
					txn := testutil.Expense("", accounts[rng.IntN(len(accounts))], randomAmount(), rng.IntN(2) == 0)
					txn.Type = types[rng.IntN(len(types))]
					created, err := l.CreateTransaction(ctx, txn)
					require.NoError(t, err)
					live = append(live, created.ID)

				case op == 1:
					txn := db.MustTransaction(live[rng.IntN(len(live))])
					txn.Amount = randomAmount()
					txn.Account = accounts[rng.IntN(len(accounts))]
					txn.Type = types[rng.IntN(len(types))]
					txn.IsPaid = rng.IntN(2) == 0
					_, err := l.UpdateTransaction(ctx, txn)
					require.NoError(t, err)

				case op == 2:
					id := live[rng.IntN(len(live))]
					_, err := l.SetPaid(ctx, id, rng.IntN(2) == 0)
					require.NoError(t, err)

				default:
					i := rng.IntN(len(live))
					require.NoError(t, l.DeleteTransaction(ctx, live[i]))
					live = append(live[:i], live[i+1:]...)
				}

				assertBalancesMatch(t, db, step)
			}

			// Incremental maintenance leaves nothing for a full recompute to fix.
			report, err := l.RecalculateBalances(ctx)
			require.NoError(t, err)
			assert.Empty(t, report.Corrections)
		})
	}
}

func TestLedger_RecalculateBalances(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDBWithBuilder(t, func(b *testutil.Builder) *testutil.Builder {
		return b.
			WithAccount("acc-a", 999).
			WithAccount("acc-b", -49.995).
			WithAccount("acc-c", 0).
			WithPaidExpense("t-1", "acc-a", 100).
			WithTransaction(testutil.Income("t-2", "acc-a", 1000, true)).
			WithTransaction(testutil.Expense("t-3", "acc-a", 5000, false)).
			WithPaidExpense("t-4", "acc-b", 50)
	})
	l, trigger := newTestLedger(t, db)

	report, err := l.RecalculateBalances(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Accounts)
	require.Len(t, report.Corrections, 1, "drift within a cent is tolerated")
	correction := report.Corrections[0]
	assert.Equal(t, "acc-a", correction.AccountID)
	assert.InDelta(t, 999, correction.Cached, 0.001)
	assert.InDelta(t, 900, correction.Computed, 0.001)
	assert.InDelta(t, -99, correction.Divergence(), 0.001)

	assert.InDelta(t, 900, db.MustAccount("acc-a").Balance, 0.001)
	assert.InDelta(t, -49.995, db.MustAccount("acc-b").Balance, 0.0001)
	assert.Equal(t, []string{"UPDATE accounts acc-a"}, queueSummary(db.QueueItems()))
	assert.Equal(t, int32(1), trigger.calls.Load())

	// A second run finds nothing to do.
	report, err = l.RecalculateBalances(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Corrections)
	assert.Equal(t, int32(1), trigger.calls.Load())
}

func TestLedger_RecalculateBalancesReportsUserError(t *testing.T) {
	db := testutil.SetupTestDB(t)
	l, _ := newTestLedger(t, db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.RecalculateBalances(ctx)
	require.Error(t, err)

	var userErr *common.UserError
	require.True(t, errors.As(err, &userErr))
	assert.Equal(t, "Failed to recalculate balances", userErr.UserMessage)
}
