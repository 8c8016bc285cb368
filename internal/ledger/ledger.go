// Package ledger is the write surface callers use to change local data.
//
// Every mutation writes the local store and appends the matching queue
// entries in one local transaction, keeps account balances consistent with
// paid transactions, and then asks for a sync pass without waiting for it.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/model"
	"github.com/Veraticus/finsync/internal/service"
	"github.com/Veraticus/finsync/internal/storage"
)

// Ledger applies user mutations to the local store.
type Ledger struct {
	store   service.LocalStore
	trigger service.SyncTrigger
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// New creates a ledger. trigger may be nil when nothing drains the queue
// in the background.
func New(store service.LocalStore, trigger service.SyncTrigger) *Ledger {
	return &Ledger{
		store:   store,
		trigger: trigger,
		logger:  common.ComponentLogger("ledger"),
		now:     time.Now,
		newID:   NewID,
	}
}

// NewID returns a fresh entity id.
func NewID() string {
	return uuid.NewString()
}

func (l *Ledger) notify() {
	if l.trigger != nil {
		l.trigger.Trigger(model.TriggerEnqueue)
	}
}

func (l *Ledger) mutate(ctx context.Context, fn func(tx *storage.Tx) error) error {
	if err := l.store.Update(ctx, fn); err != nil {
		return err
	}
	l.notify()
	return nil
}

func validateTransaction(txn model.Transaction) error {
	if txn.ID == "" {
		return fmt.Errorf("%w: transaction without id", common.ErrInvalidEntity)
	}
	if decimal.NewFromFloat(txn.Amount).IsNegative() {
		return fmt.Errorf("%w: transaction %s has negative amount", common.ErrInvalidEntity, txn.ID)
	}
	switch txn.Type {
	case model.TypeIncome, model.TypeExpense, model.TypeTransfer:
	default:
		return fmt.Errorf("%w: transaction %s has unknown type %q", common.ErrInvalidEntity, txn.ID, txn.Type)
	}
	if _, err := time.Parse(model.DateLayout, txn.Date); err != nil {
		return fmt.Errorf("%w: transaction %s has bad date %q", common.ErrInvalidEntity, txn.ID, txn.Date)
	}
	return nil
}

// CreateTransaction stores a single transaction, assigning an id when it has
// none, and applies it to its account when paid.
func (l *Ledger) CreateTransaction(ctx context.Context, txn model.Transaction) (model.Transaction, error) {
	if txn.ID == "" {
		txn.ID = l.newID()
	}
	if txn.Recurrence == "" {
		txn.Recurrence = model.RecurrenceOneTime
	}
	if err := validateTransaction(txn); err != nil {
		return txn, err
	}

	err := l.mutate(ctx, func(tx *storage.Tx) error {
		return l.insertTransactions(ctx, tx, txn)
	})
	if err != nil {
		return txn, fmt.Errorf("failed to create transaction: %w", err)
	}
	return txn, nil
}

// AddTransaction expands txn by its recurrence and stores every occurrence
// in one local transaction.
func (l *Ledger) AddTransaction(ctx context.Context, txn model.Transaction) ([]model.Transaction, error) {
	if txn.Recurrence == "" {
		txn.Recurrence = model.RecurrenceOneTime
	}
	if txn.Date == "" {
		txn.Date = l.now().Format(model.DateLayout)
	}

	occurrences, err := Expand(txn, l.newID)
	if err != nil {
		return nil, err
	}
	for _, occ := range occurrences {
		if err := validateTransaction(occ); err != nil {
			return nil, err
		}
	}

	err = l.mutate(ctx, func(tx *storage.Tx) error {
		return l.insertTransactions(ctx, tx, occurrences...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add transaction: %w", err)
	}

	l.logger.Debug("Added transaction",
		"recurrence", txn.Recurrence,
		"occurrences", len(occurrences))
	return occurrences, nil
}

func (l *Ledger) insertTransactions(ctx context.Context, tx *storage.Tx, txns ...model.Transaction) error {
	deltas := make(balanceDeltas)
	for _, txn := range txns {
		exists, err := storage.Exists[model.Transaction](ctx, tx, txn.ID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: transaction %s already exists", common.ErrInvalidEntity, txn.ID)
		}

		if err := storage.Put(ctx, tx, txn); err != nil {
			return err
		}
		if _, err := tx.Enqueue(ctx, model.TableTransactions, txn.ID, model.ActionInsert); err != nil {
			return err
		}
		deltas.apply(txn)
	}
	return deltas.commit(ctx, tx, l.logger)
}

// UpdateTransaction replaces a stored transaction. When the amount, account,
// type or paid flag changed, the old effect is reverted and the new one
// applied.
func (l *Ledger) UpdateTransaction(ctx context.Context, txn model.Transaction) (model.Transaction, error) {
	if err := validateTransaction(txn); err != nil {
		return txn, err
	}

	err := l.mutate(ctx, func(tx *storage.Tx) error {
		return l.replaceTransaction(ctx, tx, txn)
	})
	if err != nil {
		return txn, fmt.Errorf("failed to update transaction %s: %w", txn.ID, err)
	}
	return txn, nil
}

// SetPaid marks a transaction paid or unpaid. Paying stamps today's payment
// date unless one is already set.
func (l *Ledger) SetPaid(ctx context.Context, id string, paid bool) (model.Transaction, error) {
	var updated model.Transaction

	err := l.mutate(ctx, func(tx *storage.Tx) error {
		txn, err := storage.Get[model.Transaction](ctx, tx, id)
		if err != nil {
			return err
		}

		txn.IsPaid = paid
		switch {
		case paid && txn.PaymentDate == "":
			txn.PaymentDate = l.now().Format(model.DateLayout)
		case !paid:
			txn.PaymentDate = ""
		}

		updated = txn
		return l.replaceTransaction(ctx, tx, txn)
	})
	if err != nil {
		return updated, fmt.Errorf("failed to mark transaction %s: %w", id, err)
	}
	return updated, nil
}

func (l *Ledger) replaceTransaction(ctx context.Context, tx *storage.Tx, txn model.Transaction) error {
	old, err := storage.Get[model.Transaction](ctx, tx, txn.ID)
	if err != nil {
		return err
	}

	if err := storage.Put(ctx, tx, txn); err != nil {
		return err
	}
	if _, err := tx.Enqueue(ctx, model.TableTransactions, txn.ID, model.ActionUpdate); err != nil {
		return err
	}

	if !affectsBalance(old, txn) {
		return nil
	}
	deltas := make(balanceDeltas)
	deltas.revert(old)
	deltas.apply(txn)
	return deltas.commit(ctx, tx, l.logger)
}

// DeleteTransaction removes a transaction and reverts its effect when it
// was paid.
func (l *Ledger) DeleteTransaction(ctx context.Context, id string) error {
	err := l.mutate(ctx, func(tx *storage.Tx) error {
		old, err := storage.Get[model.Transaction](ctx, tx, id)
		if err != nil {
			return err
		}

		if _, err := storage.Delete[model.Transaction](ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.Enqueue(ctx, model.TableTransactions, id, model.ActionDelete); err != nil {
			return err
		}

		deltas := make(balanceDeltas)
		deltas.revert(old)
		return deltas.commit(ctx, tx, l.logger)
	})
	if err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	return nil
}

// Save stores entities of any non-transaction table, enqueuing an insert for
// new ids and an update for existing ones. Transactions go through the
// transaction methods so balances stay consistent.
func Save[T model.Entity](ctx context.Context, l *Ledger, entities ...T) error {
	var zero T
	table := zero.EntityTable()
	if table == model.TableTransactions {
		return fmt.Errorf("%w: save transactions with CreateTransaction or UpdateTransaction", common.ErrInvalidEntity)
	}
	if len(entities) == 0 {
		return nil
	}

	err := l.mutate(ctx, func(tx *storage.Tx) error {
		for _, e := range entities {
			if e.EntityID() == "" {
				return fmt.Errorf("%w: %s without id", common.ErrInvalidEntity, table)
			}

			exists, err := storage.Exists[T](ctx, tx, e.EntityID())
			if err != nil {
				return err
			}
			action := model.ActionInsert
			if exists {
				action = model.ActionUpdate
			}

			if err := storage.Put(ctx, tx, e); err != nil {
				return err
			}
			if _, err := tx.Enqueue(ctx, table, e.EntityID(), action); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", table, err)
	}
	return nil
}

// Remove deletes entities of any non-transaction table and enqueues their
// remote deletion. Every id must exist locally.
func Remove[T model.Entity](ctx context.Context, l *Ledger, ids ...string) error {
	var zero T
	table := zero.EntityTable()
	if table == model.TableTransactions {
		return fmt.Errorf("%w: delete transactions with DeleteTransaction", common.ErrInvalidEntity)
	}
	if len(ids) == 0 {
		return nil
	}

	err := l.mutate(ctx, func(tx *storage.Tx) error {
		for _, id := range ids {
			n, err := storage.Delete[T](ctx, tx, id)
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("%s %s: %w", table, id, common.ErrNotFound)
			}
			if _, err := tx.Enqueue(ctx, table, id, model.ActionDelete); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", table, err)
	}
	return nil
}
