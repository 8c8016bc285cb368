package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/Veraticus/finsync/internal/model"
	"github.com/Veraticus/finsync/internal/storage"
)

// FixtureDate is the date given to fixture transactions.
const FixtureDate = "2026-03-15"

// Builder provides a fluent interface for seeding a local store.
type Builder struct {
	t            *testing.T
	accounts     []model.Account
	transactions []model.Transaction
	goals        []model.Goal
	tags         []model.Tag
}

// NewBuilder creates a new fixture builder for the given test.
func NewBuilder(t *testing.T) *Builder {
	t.Helper()
	return &Builder{t: t}
}

// WithAccount adds a checking account with the given cached balance.
func (b *Builder) WithAccount(id string, balance float64) *Builder {
	b.accounts = append(b.accounts, Account(id, balance))
	return b
}

// WithTransaction adds a transaction as-is. Account balances are not adjusted.
func (b *Builder) WithTransaction(txn model.Transaction) *Builder {
	b.transactions = append(b.transactions, txn)
	return b
}

// WithPaidExpense adds a paid expense. Account balances are not adjusted.
func (b *Builder) WithPaidExpense(id, accountID string, amount float64) *Builder {
	return b.WithTransaction(Expense(id, accountID, amount, true))
}

// WithGoals adds goals with the given ids.
func (b *Builder) WithGoals(ids ...string) *Builder {
	for _, id := range ids {
		b.goals = append(b.goals, model.Goal{ID: id, Title: "Goal " + id, Target: 1000})
	}
	return b
}

// WithTags adds tags with the given ids.
func (b *Builder) WithTags(ids ...string) *Builder {
	for _, id := range ids {
		b.tags = append(b.tags, model.Tag{ID: id, Name: "Tag " + id, Color: "#336699"})
	}
	return b
}

// Build writes every fixture in one local transaction without enqueuing.
func (b *Builder) Build(ctx context.Context, s *storage.SQLiteStorage) error {
	return s.Update(ctx, func(tx *storage.Tx) error {
		if err := storage.Put(ctx, tx, b.accounts...); err != nil {
			return fmt.Errorf("accounts: %w", err)
		}
		if err := storage.Put(ctx, tx, b.transactions...); err != nil {
			return fmt.Errorf("transactions: %w", err)
		}
		if err := storage.Put(ctx, tx, b.goals...); err != nil {
			return fmt.Errorf("goals: %w", err)
		}
		if err := storage.Put(ctx, tx, b.tags...); err != nil {
			return fmt.Errorf("tags: %w", err)
		}
		return nil
	})
}

// Account returns a checking account fixture.
func Account(id string, balance float64) model.Account {
	return model.Account{
		ID:      id,
		Name:    "Account " + id,
		Type:    model.AccountChecking,
		BankID:  "nubank",
		Color:   "#820ad1",
		Balance: balance,
	}
}

// Expense returns a one-time expense fixture.
func Expense(id, accountID string, amount float64, paid bool) model.Transaction {
	return model.Transaction{
		ID:          id,
		Description: "Expense " + id,
		Amount:      amount,
		Date:        FixtureDate,
		Category:    "Alimentação",
		Type:        model.TypeExpense,
		Account:     accountID,
		Recurrence:  model.RecurrenceOneTime,
		IsPaid:      paid,
	}
}

// Income returns a one-time income fixture.
func Income(id, accountID string, amount float64, paid bool) model.Transaction {
	txn := Expense(id, accountID, amount, paid)
	txn.Description = "Income " + id
	txn.Category = "Salário"
	txn.Type = model.TypeIncome
	return txn
}
