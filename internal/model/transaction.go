package model

// TransactionType indicates the direction of money movement.
type TransactionType string

// Transaction type constants.
const (
	TypeIncome   TransactionType = "income"
	TypeExpense  TransactionType = "expense"
	TypeTransfer TransactionType = "transfer"
)

// Recurrence describes how a transaction repeats when it is created.
type Recurrence string

// Recurrence constants.
const (
	RecurrenceOneTime     Recurrence = "one_time"
	RecurrenceFixed       Recurrence = "fixed"
	RecurrenceInstallment Recurrence = "installment"
)

// DateLayout is the calendar date format used by transaction dates.
const DateLayout = "2006-01-02"

// Transaction represents a single income, expense or transfer entry.
type Transaction struct {
	ID                 string          `json:"id"`
	Description        string          `json:"description"`
	Date               string          `json:"date"`
	DueDate            string          `json:"dueDate,omitempty"`
	Category           string          `json:"category"`
	SubCategory        string          `json:"subCategory,omitempty"`
	Type               TransactionType `json:"type"`
	Account            string          `json:"account"` // Account ID
	Recurrence         Recurrence      `json:"recurrence"`
	PaymentMethod      string          `json:"paymentMethod,omitempty"`
	PaymentDate        string          `json:"paymentDate,omitempty"`
	Attachment         string          `json:"attachment,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	CreatedBy          string          `json:"createdBy,omitempty"`
	Tags               []string        `json:"tags,omitempty"` // Tag IDs
	Amount             float64         `json:"amount"`
	InstallmentTotal   int             `json:"installmentTotal,omitempty"`
	InstallmentCount   int             `json:"installmentCount,omitempty"`
	InstallmentNumber  int             `json:"installmentNumber,omitempty"`
	IsPaid             bool            `json:"isPaid"`
	IgnoreInStatistics bool            `json:"ignoreInStatistics,omitempty"`
	IgnoreInBudgets    bool            `json:"ignoreInBudgets,omitempty"`
	IgnoreInTotals     bool            `json:"ignoreInTotals,omitempty"`
}

// EntityID implements Entity.
func (t Transaction) EntityID() string { return t.ID }

// EntityTable implements Entity.
func (t Transaction) EntityTable() Table { return TableTransactions }
