package ledger

import (
	"fmt"
	"time"

	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/model"
)

// FixedOccurrences is how many monthly copies a fixed transaction expands into.
const FixedOccurrences = 12

// AddMonths shifts a YYYY-MM-DD date by n months, clamping the day to the
// last day of the target month (Jan 31 + 1 month is Feb 28 or 29).
func AddMonths(date string, n int) (string, error) {
	t, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: bad date %q", common.ErrInvalidEntity, date)
	}

	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	day := min(t.Day(), last)
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC).Format(model.DateLayout), nil
}

// Expand turns a requested transaction into the stored occurrences.
//
// Fixed transactions repeat monthly for FixedOccurrences months. Installment
// transactions with a count above one become one transaction per installment,
// described as "description (i/N)". Only the first occurrence keeps the
// requested paid flag. Everything else yields the transaction unchanged.
// Every occurrence gets an id from newID.
func Expand(txn model.Transaction, newID func() string) ([]model.Transaction, error) {
	if txn.DueDate == "" {
		txn.DueDate = txn.Date
	}

	var count int
	switch txn.Recurrence {
	case model.RecurrenceFixed:
		count = FixedOccurrences
	case model.RecurrenceInstallment:
		if txn.InstallmentCount > 1 {
			count = txn.InstallmentCount
		}
	}

	if count == 0 {
		if txn.ID == "" {
			txn.ID = newID()
		}
		return []model.Transaction{txn}, nil
	}

	out := make([]model.Transaction, 0, count)
	for i := range count {
		occ := txn
		occ.ID = newID()

		date, err := AddMonths(txn.Date, i)
		if err != nil {
			return nil, err
		}
		due, err := AddMonths(txn.DueDate, i)
		if err != nil {
			return nil, err
		}
		occ.Date = date
		occ.DueDate = due

		if i > 0 {
			occ.IsPaid = false
			occ.PaymentDate = ""
		}
		if txn.Recurrence == model.RecurrenceInstallment {
			occ.Description = fmt.Sprintf("%s (%d/%d)", txn.Description, i+1, count)
			occ.InstallmentNumber = i + 1
		}
		out = append(out, occ)
	}
	return out, nil
}
