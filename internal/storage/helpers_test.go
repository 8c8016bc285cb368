package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Veraticus/finsync/internal/model"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func testAccount(id string, balance float64) model.Account {
	return model.Account{
		ID:      id,
		Name:    "Account " + id,
		Type:    model.AccountChecking,
		BankID:  "itau",
		Balance: balance,
	}
}

func testTransaction(id, accountID, date string, amount float64) model.Transaction {
	return model.Transaction{
		ID:          id,
		Description: "Transaction " + id,
		Date:        date,
		Category:    "Food",
		Type:        model.TypeExpense,
		Account:     accountID,
		Recurrence:  model.RecurrenceOneTime,
		Amount:      amount,
		IsPaid:      true,
	}
}
