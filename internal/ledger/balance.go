package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/model"
	"github.com/Veraticus/finsync/internal/storage"
)

// BalanceEpsilon is the largest divergence tolerated between a cached
// account balance and the sum of its paid transactions.
var BalanceEpsilon = decimal.NewFromFloat(0.01)

// SignedAmount returns the effect of a paid transaction on its account:
// expenses are negative, income positive and transfers zero.
func SignedAmount(txn model.Transaction) decimal.Decimal {
	amount := decimal.NewFromFloat(txn.Amount)
	switch txn.Type {
	case model.TypeExpense:
		return amount.Neg()
	case model.TypeIncome:
		return amount
	default:
		return decimal.Zero
	}
}

// affectsBalance reports whether an update from old to updated can move a
// balance.
func affectsBalance(old, updated model.Transaction) bool {
	if !old.IsPaid && !updated.IsPaid {
		return false
	}
	return old.Amount != updated.Amount ||
		old.Account != updated.Account ||
		old.Type != updated.Type ||
		old.IsPaid != updated.IsPaid
}

// balanceDeltas accumulates per-account changes for one local transaction so
// each account is written and enqueued once.
type balanceDeltas map[string]decimal.Decimal

func (d balanceDeltas) apply(txn model.Transaction) {
	if !txn.IsPaid || txn.Account == "" {
		return
	}
	d[txn.Account] = d[txn.Account].Add(SignedAmount(txn))
}

func (d balanceDeltas) revert(txn model.Transaction) {
	if !txn.IsPaid || txn.Account == "" {
		return
	}
	d[txn.Account] = d[txn.Account].Sub(SignedAmount(txn))
}

// commit writes the accumulated deltas and enqueues an account update for
// each changed account. Accounts missing locally are skipped.
func (d balanceDeltas) commit(ctx context.Context, tx *storage.Tx, logger *slog.Logger) error {
	for _, id := range slices.Sorted(maps.Keys(d)) {
		delta := d[id]
		if delta.IsZero() {
			continue
		}

		_, err := storage.Modify(ctx, tx, id, func(acc *model.Account) error {
			acc.Balance = decimal.NewFromFloat(acc.Balance).Add(delta).Round(2).InexactFloat64()
			return nil
		})
		if storage.IsNotFound(err) {
			logger.Warn("Skipping balance adjustment for missing account",
				"account", id,
				"delta", delta.StringFixed(2))
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to adjust balance of %s: %w", id, err)
		}

		if _, err := tx.Enqueue(ctx, model.TableAccounts, id, model.ActionUpdate); err != nil {
			return err
		}
	}
	return nil
}

// BalanceCorrection describes one account whose cached balance was fixed.
type BalanceCorrection struct {
	AccountID string
	Name      string
	Cached    float64
	Computed  float64
}

// Divergence returns the corrected amount.
func (c BalanceCorrection) Divergence() float64 {
	return decimal.NewFromFloat(c.Computed).Sub(decimal.NewFromFloat(c.Cached)).Round(2).InexactFloat64()
}

// BalanceReport is the outcome of RecalculateBalances.
type BalanceReport struct {
	Corrections []BalanceCorrection
	Accounts    int
}

// RecalculateBalances recomputes every account balance from its paid
// transactions and rewrites the accounts that diverge by more than
// BalanceEpsilon. Failures are returned as a *common.UserError.
func (l *Ledger) RecalculateBalances(ctx context.Context) (BalanceReport, error) {
	var report BalanceReport

	err := l.store.Update(ctx, func(tx *storage.Tx) error {
		accounts, err := storage.All[model.Account](ctx, tx)
		if err != nil {
			return err
		}
		txns, err := storage.All[model.Transaction](ctx, tx)
		if err != nil {
			return err
		}

		sums := make(map[string]decimal.Decimal, len(accounts))
		for _, txn := range txns {
			if txn.IsPaid {
				sums[txn.Account] = sums[txn.Account].Add(SignedAmount(txn))
			}
		}

		report.Accounts = len(accounts)
		for _, acc := range accounts {
			computed := sums[acc.ID].Round(2)
			if computed.Sub(decimal.NewFromFloat(acc.Balance)).Abs().LessThanOrEqual(BalanceEpsilon) {
				continue
			}

			report.Corrections = append(report.Corrections, BalanceCorrection{
				AccountID: acc.ID,
				Name:      acc.Name,
				Cached:    acc.Balance,
				Computed:  computed.InexactFloat64(),
			})

			acc.Balance = computed.InexactFloat64()
			if err := storage.Put(ctx, tx, acc); err != nil {
				return err
			}
			if _, err := tx.Enqueue(ctx, model.TableAccounts, acc.ID, model.ActionUpdate); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return BalanceReport{}, common.NewUserError("Failed to recalculate balances", err)
	}

	for _, c := range report.Corrections {
		l.logger.Info("Corrected account balance",
			"account", c.AccountID,
			"cached", c.Cached,
			"computed", c.Computed)
	}
	if len(report.Corrections) > 0 {
		l.notify()
	}
	return report, nil
}
