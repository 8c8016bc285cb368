package model

// Goal is a savings target.
type Goal struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Deadline string  `json:"deadline"`
	Category string  `json:"category"`
	Icon     string  `json:"icon,omitempty"`
	Target   float64 `json:"target"`
	Current  float64 `json:"current"`
}

// EntityID implements Entity.
func (g Goal) EntityID() string { return g.ID }

// EntityTable implements Entity.
func (g Goal) EntityTable() Table { return TableGoals }

// Tag is a user-defined label attached to transactions.
type Tag struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	UserID string `json:"userId,omitempty"`
}

// EntityID implements Entity.
func (t Tag) EntityID() string { return t.ID }

// EntityTable implements Entity.
func (t Tag) EntityTable() Table { return TableTags }

// Budget is a monthly spending limit for a category.
type Budget struct {
	ID       string  `json:"id"`
	UserID   string  `json:"userId,omitempty"`
	Category string  `json:"category"`
	Month    string  `json:"month,omitempty"` // YYYY-MM
	Amount   float64 `json:"amount"`
}

// EntityID implements Entity.
func (b Budget) EntityID() string { return b.ID }

// EntityTable implements Entity.
func (b Budget) EntityTable() Table { return TableBudgets }

// LimitType selects how a custom budget limit is interpreted.
type LimitType string

// Limit type constants.
const (
	LimitValue      LimitType = "value"
	LimitPercentage LimitType = "percentage"
)

// CustomBudget groups several categories under one limit.
type CustomBudget struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId,omitempty"`
	Name       string    `json:"name"`
	LimitType  LimitType `json:"limitType"`
	Categories []string  `json:"categories"`
	LimitValue float64   `json:"limitValue"`
}

// EntityID implements Entity.
func (c CustomBudget) EntityID() string { return c.ID }

// EntityTable implements Entity.
func (c CustomBudget) EntityTable() Table { return TableCustomBudgets }

// Debt tracks a loan or financing contract.
type Debt struct {
	ID                    string  `json:"id"`
	UserID                string  `json:"userId,omitempty"`
	Name                  string  `json:"name"`
	Type                  string  `json:"type"`
	Creditor              string  `json:"creditor"`
	StartDate             string  `json:"startDate"`
	EndDate               string  `json:"endDate"`
	AmortizationType      string  `json:"amortizationType"`
	Reason                string  `json:"reason,omitempty"`
	Classification        string  `json:"classification,omitempty"`
	LinkedTransactionID   string  `json:"linkedTransactionId,omitempty"`
	CreatedAt             string  `json:"createdAt,omitempty"`
	TotalContracted       float64 `json:"totalContracted"`
	CurrentBalance        float64 `json:"currentBalance"`
	InterestRateMonthly   float64 `json:"interestRateMonthly,omitempty"`
	InstallmentValue      float64 `json:"installmentValue"`
	TotalInstallments     int     `json:"totalInstallments"`
	RemainingInstallments int     `json:"remainingInstallments"`
}

// EntityID implements Entity.
func (d Debt) EntityID() string { return d.ID }

// EntityTable implements Entity.
func (d Debt) EntityTable() Table { return TableDebts }
