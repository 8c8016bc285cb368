package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/finsync/internal/ledger"
	"github.com/Veraticus/finsync/internal/model"
	"github.com/Veraticus/finsync/internal/syncer"
)

func TestRenderTable_AlignsColumns(t *testing.T) {
	out := RenderTable(
		[]string{"ID", "NAME"},
		[][]string{{"acc-a", "Main"}, {"b", "Savings account"}},
	)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)

	// The second column starts at the same offset on every line.
	offsets := make([]int, 0, len(lines))
	for i, line := range lines {
		word := []string{"NAME", "Main", "Savings account"}[i]
		idx := strings.Index(line, word)
		require.GreaterOrEqual(t, idx, 0, line)
		offsets = append(offsets, lipgloss.Width(line[:idx]))
	}
	assert.Equal(t, offsets[0], offsets[1])
	assert.Equal(t, offsets[0], offsets[2])
}

func TestFormatQueue(t *testing.T) {
	assert.Contains(t, FormatQueue(nil), "Queue is empty")

	out := FormatQueue([]model.QueueItem{{
		Seq:       7,
		Table:     model.TableTransactions,
		EntityID:  "t-1",
		Action:    model.ActionInsert,
		Timestamp: time.Date(2026, 3, 15, 10, 0, 0, 0, time.Local).UnixMilli(),
		Attempts:  2,
		LastError: strings.Repeat("x", 100),
	}})
	assert.Contains(t, out, "INSERT")
	assert.Contains(t, out, "t-1")
	assert.Contains(t, out, "2026-03-15 10:00:00")
	assert.Contains(t, out, "…")
}

func TestFormatTransactions(t *testing.T) {
	out := FormatTransactions([]model.Transaction{
		{ID: "t-1", Date: "2026-03-15", Description: "Mercado", Type: model.TypeExpense, Amount: 80.5, Account: "acc-a", IsPaid: true},
		{ID: "t-2", Date: "2026-03-16", Description: "Salário", Type: model.TypeIncome, Amount: 3000, Account: "acc-a"},
	})
	assert.Contains(t, out, "R$ -80.50")
	assert.Contains(t, out, "R$ 3000.00")
	assert.Contains(t, out, "paid")
	assert.Contains(t, out, "pending")
}

func TestFormatBalanceReport(t *testing.T) {
	assert.Contains(t, FormatBalanceReport(ledger.BalanceReport{Accounts: 1}), "All 1 account consistent")

	out := FormatBalanceReport(ledger.BalanceReport{
		Accounts: 2,
		Corrections: []ledger.BalanceCorrection{
			{AccountID: "acc-a", Name: "Main", Cached: 999, Computed: 900},
		},
	})
	assert.Contains(t, out, "Corrected 1 account")
	assert.Contains(t, out, "R$ -99.00")
}

func TestFormatPassAndReconcileResults(t *testing.T) {
	pass := FormatPassResult(syncer.PassResult{Synced: 3, Ghosts: 1, Failed: 2, Remaining: 2})
	assert.Contains(t, pass, "Synced: 3")
	assert.Contains(t, pass, "Still queued: 2")

	rec := FormatReconcileResult(syncer.ReconcileResult{
		Pruned:   map[model.Table]int{model.TableGoals: 1},
		Upserted: map[model.Table]int{model.TableGoals: 3},
	})
	assert.Contains(t, rec, "goals")
	assert.Contains(t, rec, "custom_budgets")
}

func TestSyncProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewSyncProgress(&buf, true)

	item := model.QueueItem{Table: model.TableGoals, EntityID: "g-1"}
	p.Update(1, 2, item, model.OutcomeSynced)
	p.Update(2, 2, item, model.OutcomeFailed)
	p.Finish()

	assert.Equal(t, 1, p.Failed())
	assert.Contains(t, buf.String(), "2/2")

	quiet := NewSyncProgress(&buf, false)
	quiet.Update(1, 1, item, model.OutcomeFailed)
	quiet.Finish()
	assert.Equal(t, 1, quiet.Failed())
}

func TestPlural(t *testing.T) {
	assert.Equal(t, "1 change", Plural(1, "change"))
	assert.Equal(t, "0 changes", Plural(0, "change"))
	assert.Equal(t, "5 accounts", Plural(5, "account"))
}
