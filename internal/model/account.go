package model

// AccountType classifies an account.
type AccountType string

// Account type constants.
const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountInvestment AccountType = "investment"
	AccountCredit     AccountType = "credit"
)

// Account holds money. Balance is a cached value derived from paid transactions.
type Account struct {
	Credit   *CreditDetails `json:"credit,omitempty"`
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Type     AccountType    `json:"type"`
	BankID   string         `json:"bankId"`
	Color    string         `json:"color,omitempty"`
	Balance  float64        `json:"balance"`
	IsCredit bool           `json:"isCredit,omitempty"`
}

// CreditDetails carries the credit-card specific fields of an account.
type CreditDetails struct {
	Limit      float64 `json:"limit"`
	ClosingDay int     `json:"closingDay"`
	DueDay     int     `json:"dueDay"`
}

// EntityID implements Entity.
func (a Account) EntityID() string { return a.ID }

// EntityTable implements Entity.
func (a Account) EntityTable() Table { return TableAccounts }
