package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/finsync/internal/ledger"
	"github.com/Veraticus/finsync/internal/model"
	"github.com/Veraticus/finsync/internal/syncer"
)

// RenderTable lays out rows under headers with aligned columns.
func RenderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	var b strings.Builder
	line := func(cells []string, style lipgloss.Style) {
		rendered := make([]string, len(widths))
		for i := range widths {
			var cell string
			if i < len(cells) {
				cell = cells[i]
			}
			// Padding is part of the style, so width includes it.
			rendered[i] = style.Width(widths[i] + style.GetPaddingRight()).Render(cell)
		}
		b.WriteString(strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, rendered...), " "))
		b.WriteString("\n")
	}

	line(headers, TableHeaderStyle)
	for _, row := range rows {
		line(row, TableCellStyle)
	}
	return b.String()
}

// FormatQueue renders pending queue items.
func FormatQueue(items []model.QueueItem) string {
	if len(items) == 0 {
		return FormatSuccess("Queue is empty")
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.Seq),
			string(item.Action),
			string(item.Table),
			item.EntityID,
			time.UnixMilli(item.Timestamp).Format(time.DateTime),
			fmt.Sprintf("%d", item.Attempts),
			truncate(item.LastError, 48),
		})
	}
	return RenderTable([]string{"SEQ", "ACTION", "TABLE", "ID", "QUEUED", "ATTEMPTS", "LAST ERROR"}, rows)
}

// FormatDeadLetters renders dead-lettered queue items.
func FormatDeadLetters(items []model.DeadLetter) string {
	if len(items) == 0 {
		return FormatSuccess("No dead-lettered items")
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			string(item.Action),
			string(item.Table),
			item.EntityID,
			fmt.Sprintf("%d", item.Attempts),
			item.DeadAt.Format(time.DateTime),
			truncate(item.Reason, 60),
		})
	}
	return RenderTable([]string{"ACTION", "TABLE", "ID", "ATTEMPTS", "DEAD AT", "REASON"}, rows)
}

// FormatTransactions renders transactions newest first, as given.
func FormatTransactions(txns []model.Transaction) string {
	if len(txns) == 0 {
		return SubtleStyle.Render("No transactions")
	}

	rows := make([][]string, 0, len(txns))
	for _, txn := range txns {
		status := WarningStyle.Render("pending")
		if txn.IsPaid {
			status = SuccessStyle.Render("paid")
		}
		rows = append(rows, []string{
			txn.Date,
			truncate(txn.Description, 32),
			string(txn.Type),
			FormatMoney(ledger.SignedAmount(txn).InexactFloat64()),
			txn.Account,
			status,
			txn.ID,
		})
	}
	return RenderTable([]string{"DATE", "DESCRIPTION", "TYPE", "AMOUNT", "ACCOUNT", "STATUS", "ID"}, rows)
}

// FormatAccounts renders accounts with their cached balances.
func FormatAccounts(accounts []model.Account) string {
	if len(accounts) == 0 {
		return SubtleStyle.Render("No accounts")
	}

	rows := make([][]string, 0, len(accounts))
	for _, acc := range accounts {
		rows = append(rows, []string{
			acc.ID,
			acc.Name,
			string(acc.Type),
			acc.BankID,
			FormatMoney(acc.Balance),
		})
	}
	return RenderTable([]string{"ID", "NAME", "TYPE", "BANK", "BALANCE"}, rows)
}

// FormatPassResult summarizes a sync pass.
func FormatPassResult(result syncer.PassResult) string {
	summary := fmt.Sprintf("  • Synced: %d\n", result.Synced) +
		fmt.Sprintf("  • Already resolved: %d\n", result.Ghosts) +
		fmt.Sprintf("  • Failed: %d\n", result.Failed) +
		fmt.Sprintf("  • Dead-lettered: %d\n", result.DeadLettered) +
		fmt.Sprintf("  • Still queued: %d\n", result.Remaining) +
		fmt.Sprintf("  • Time taken: %s", result.Duration.Round(time.Millisecond))
	return RenderBox(SyncIcon+" Sync Pass", summary)
}

// FormatReconcileResult summarizes a reconciliation pass per table.
func FormatReconcileResult(result syncer.ReconcileResult) string {
	rows := make([][]string, 0, len(model.TrackedTables))
	for _, table := range model.TrackedTables {
		rows = append(rows, []string{
			string(table),
			fmt.Sprintf("%d", result.Upserted[table]),
			fmt.Sprintf("%d", result.Pruned[table]),
		})
	}
	return RenderTable([]string{"TABLE", "UPSERTED", "PRUNED"}, rows) +
		SubtleStyle.Render(fmt.Sprintf("Completed in %s", result.Duration.Round(time.Millisecond)))
}

// FormatBalanceReport renders the outcome of a balance recalculation.
func FormatBalanceReport(report ledger.BalanceReport) string {
	if len(report.Corrections) == 0 {
		return FormatSuccess(fmt.Sprintf("All %s consistent", Plural(report.Accounts, "account")))
	}

	rows := make([][]string, 0, len(report.Corrections))
	for _, c := range report.Corrections {
		rows = append(rows, []string{
			c.AccountID,
			c.Name,
			FormatMoney(c.Cached),
			FormatMoney(c.Computed),
			FormatMoney(c.Divergence()),
		})
	}
	return FormatWarning(fmt.Sprintf("Corrected %s", Plural(len(report.Corrections), "account"))) + "\n" +
		RenderTable([]string{"ID", "NAME", "CACHED", "COMPUTED", "DIFFERENCE"}, rows)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
