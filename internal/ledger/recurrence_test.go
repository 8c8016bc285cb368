package ledger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/model"
)

func sequentialIDs() func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name   string
		date   string
		months int
		want   string
	}{
		{"same month", "2026-03-15", 0, "2026-03-15"},
		{"next month", "2026-03-15", 1, "2026-04-15"},
		{"clamps to february", "2026-01-31", 1, "2026-02-28"},
		{"clamps to leap february", "2028-01-31", 1, "2028-02-29"},
		{"clamps to 30 day month", "2026-03-31", 1, "2026-04-30"},
		{"crosses year", "2026-11-30", 3, "2027-02-28"},
		{"keeps day after clamp month", "2026-01-31", 2, "2026-03-31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AddMonths(tt.date, tt.months)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := AddMonths("15/03/2026", 1)
	require.ErrorIs(t, err, common.ErrInvalidEntity)
}

func TestExpand_OneTime(t *testing.T) {
	txn := model.Transaction{Description: "Mercado", Amount: 80, Date: "2026-03-15", Recurrence: model.RecurrenceOneTime, IsPaid: true}

	out, err := Expand(txn, sequentialIDs())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "id-1", out[0].ID)
	assert.Equal(t, "2026-03-15", out[0].DueDate)
	assert.True(t, out[0].IsPaid)
}

func TestExpand_Fixed(t *testing.T) {
	txn := model.Transaction{
		Description: "Aluguel",
		Amount:      2200,
		Date:        "2026-01-31",
		DueDate:     "2026-02-05",
		Recurrence:  model.RecurrenceFixed,
		IsPaid:      true,
		PaymentDate: "2026-01-31",
	}

	out, err := Expand(txn, sequentialIDs())
	require.NoError(t, err)
	require.Len(t, out, FixedOccurrences)

	assert.True(t, out[0].IsPaid)
	assert.Equal(t, "2026-01-31", out[0].PaymentDate)
	for i, occ := range out[1:] {
		assert.False(t, occ.IsPaid, "occurrence %d", i+1)
		assert.Empty(t, occ.PaymentDate)
		assert.Equal(t, "Aluguel", occ.Description)
	}
	assert.Equal(t, "2026-02-28", out[1].Date)
	assert.Equal(t, "2026-03-05", out[1].DueDate)
	assert.Equal(t, "2026-12-31", out[11].Date)
	assert.Equal(t, "id-12", out[11].ID)
}

func TestExpand_Installment(t *testing.T) {
	txn := model.Transaction{
		Description:      "Notebook",
		Amount:           500,
		Date:             "2026-03-10",
		Recurrence:       model.RecurrenceInstallment,
		InstallmentCount: 3,
		InstallmentTotal: 1500,
		IsPaid:           true,
	}

	out, err := Expand(txn, sequentialIDs())
	require.NoError(t, err)
	require.Len(t, out, 3)

	for i, occ := range out {
		assert.Equal(t, fmt.Sprintf("Notebook (%d/3)", i+1), occ.Description)
		assert.Equal(t, i+1, occ.InstallmentNumber)
		assert.Equal(t, 3, occ.InstallmentCount)
		assert.InDelta(t, 500, occ.Amount, 0.001)
	}
	assert.True(t, out[0].IsPaid)
	assert.False(t, out[2].IsPaid)
	assert.Equal(t, "2026-05-10", out[2].Date)
}

func TestExpand_SingleInstallmentIsOneTransaction(t *testing.T) {
	txn := model.Transaction{Description: "Avulso", Date: "2026-03-10", Recurrence: model.RecurrenceInstallment, InstallmentCount: 1}

	out, err := Expand(txn, sequentialIDs())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Avulso", out[0].Description)
}
