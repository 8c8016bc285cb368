package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Veraticus/finsync/internal/model"
)

// TransactionsByAccount returns the transactions that reference accountID,
// newest first.
func (s *SQLiteStorage) TransactionsByAccount(ctx context.Context, accountID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM transactions
		WHERE json_extract(doc, '$.account') = ?
		ORDER BY json_extract(doc, '$.date') DESC, id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for account %s: %w", accountID, err)
	}
	return decodeTransactions(rows)
}

// RecentTransactions returns at most limit transactions, newest first.
func (s *SQLiteStorage) RecentTransactions(ctx context.Context, limit int) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM transactions
		ORDER BY json_extract(doc, '$.date') DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent transactions: %w", err)
	}
	return decodeTransactions(rows)
}

type docRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

func decodeTransactions(rows docRows) ([]model.Transaction, error) {
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		var txn model.Transaction
		if err := json.Unmarshal([]byte(doc), &txn); err != nil {
			return nil, fmt.Errorf("failed to decode transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}
