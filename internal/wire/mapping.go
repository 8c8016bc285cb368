// Package wire translates local documents to and from the remote column format.
//
// Each tracked table has exactly one Mapping. The same mapping drives both
// directions, so the local and remote representations cannot drift apart.
package wire

import (
	"fmt"

	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/model"
)

// UserColumn is the remote ownership column every table carries.
const UserColumn = "user_id"

// Row is a single remote record keyed by column name.
type Row map[string]any

// ID returns the row's primary key.
func (r Row) ID() (string, bool) {
	id, ok := r["id"].(string)
	return id, ok && id != ""
}

// Field pairs a local attribute with a remote column. Local may be a dotted
// path into a nested object; the remote side is always flat.
type Field struct {
	Local  string
	Remote string
}

// Mapping describes how one table is represented remotely.
type Mapping struct {
	Table       model.Table
	RemoteTable string
	Fields      []Field
	// LocalOnly keys are never sent to the remote store.
	LocalOnly []string
	// RemoteOnly columns are dropped when a row is brought back locally.
	RemoteOnly []string
}

var mappings = map[model.Table]Mapping{
	model.TableTransactions: {
		Table:       model.TableTransactions,
		RemoteTable: "transactions",
		Fields: []Field{
			{Local: "account", Remote: "account_id"},
			{Local: "subCategory", Remote: "sub_category"},
			{Local: "paymentMethod", Remote: "payment_method"},
			{Local: "isPaid", Remote: "is_paid"},
			{Local: "installmentCount", Remote: "installment_count"},
			{Local: "installmentTotal", Remote: "installment_total"},
			{Local: "installmentNumber", Remote: "installment_number"},
			{Local: "tags", Remote: "tag_ids"},
			{Local: "ignoreInStatistics", Remote: "ignore_in_statistics"},
			{Local: "ignoreInBudgets", Remote: "ignore_in_budgets"},
			{Local: "ignoreInTotals", Remote: "ignore_in_totals"},
			{Local: "dueDate", Remote: "due_date"},
			{Local: "paymentDate", Remote: "payment_date"},
			{Local: "createdBy", Remote: "created_by"},
		},
		RemoteOnly: []string{"created_at", "updated_at"},
	},
	model.TableAccounts: {
		Table:       model.TableAccounts,
		RemoteTable: "accounts",
		Fields: []Field{
			{Local: "bankId", Remote: "bank_id"},
			{Local: "isCredit", Remote: "is_credit"},
			{Local: "credit.limit", Remote: "credit_limit"},
			{Local: "credit.closingDay", Remote: "closing_day"},
			{Local: "credit.dueDay", Remote: "due_day"},
		},
		RemoteOnly: []string{"created_at", "updated_at"},
	},
	model.TableGoals: {
		Table:       model.TableGoals,
		RemoteTable: "goals",
		RemoteOnly:  []string{"created_at", "updated_at"},
	},
	model.TableTags: {
		Table:       model.TableTags,
		RemoteTable: "tags",
		Fields: []Field{
			{Local: "userId", Remote: UserColumn},
		},
		RemoteOnly: []string{"created_at"},
	},
	model.TableBudgets: {
		Table:       model.TableBudgets,
		RemoteTable: "budgets",
		Fields: []Field{
			{Local: "userId", Remote: UserColumn},
		},
		RemoteOnly: []string{"created_at", "updated_at"},
	},
	model.TableCustomBudgets: {
		Table:       model.TableCustomBudgets,
		RemoteTable: "custom_budgets",
		Fields: []Field{
			{Local: "userId", Remote: UserColumn},
			{Local: "limitType", Remote: "limit_type"},
			{Local: "limitValue", Remote: "limit_value"},
		},
		LocalOnly:  []string{"spent", "percentage"},
		RemoteOnly: []string{"created_at"},
	},
	model.TableDebts: {
		Table:       model.TableDebts,
		RemoteTable: "debts",
		Fields: []Field{
			{Local: "userId", Remote: UserColumn},
			{Local: "totalContracted", Remote: "total_contracted"},
			{Local: "currentBalance", Remote: "current_balance"},
			{Local: "interestRateMonthly", Remote: "interest_rate_monthly"},
			{Local: "totalInstallments", Remote: "total_installments"},
			{Local: "remainingInstallments", Remote: "remaining_installments"},
			{Local: "installmentValue", Remote: "installment_value"},
			{Local: "startDate", Remote: "start_date"},
			{Local: "endDate", Remote: "end_date"},
			{Local: "amortizationType", Remote: "amortization_type"},
			{Local: "linkedTransactionId", Remote: "linked_transaction_id"},
			{Local: "createdAt", Remote: "created_at"},
		},
	},
}

// For returns the mapping of a tracked table.
func For(table model.Table) (Mapping, error) {
	m, ok := mappings[table]
	if !ok {
		return Mapping{}, fmt.Errorf("%w: %s", common.ErrUnknownTable, table)
	}
	return m, nil
}

// RemoteTable returns the remote name of a tracked table.
func RemoteTable(table model.Table) (string, error) {
	m, err := For(table)
	if err != nil {
		return "", err
	}
	return m.RemoteTable, nil
}
