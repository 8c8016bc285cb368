// Package model defines the core domain models used throughout the application.
package model

import "fmt"

// Table names a locally stored, remotely synchronized entity table.
type Table string

// Tracked tables.
const (
	TableTransactions  Table = "transactions"
	TableAccounts      Table = "accounts"
	TableGoals         Table = "goals"
	TableTags          Table = "tags"
	TableBudgets       Table = "budgets"
	TableCustomBudgets Table = "custom_budgets"
	TableDebts         Table = "debts"
)

// TrackedTables lists every table that is queued, synced and reconciled.
var TrackedTables = []Table{
	TableTransactions,
	TableAccounts,
	TableGoals,
	TableTags,
	TableBudgets,
	TableCustomBudgets,
	TableDebts,
}

// Valid reports whether t is one of the tracked tables.
func (t Table) Valid() bool {
	for _, tracked := range TrackedTables {
		if t == tracked {
			return true
		}
	}
	return false
}

func (t Table) String() string {
	return string(t)
}

// ParseTable converts a table name into a Table.
func ParseTable(name string) (Table, error) {
	t := Table(name)
	if !t.Valid() {
		return "", fmt.Errorf("unknown table %q", name)
	}
	return t, nil
}

// Entity is implemented by every record stored in a tracked table.
type Entity interface {
	EntityID() string
	EntityTable() Table
}
