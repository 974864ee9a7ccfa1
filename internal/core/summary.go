package core

import "time"

// ChartPoint is one bucket of a value-over-time series.
type ChartPoint struct {
	Date  Date   `json:"date"`
	Value Amount `json:"value"`
}

// DayGroup holds the transactions posted on a single calendar day.
type DayGroup struct {
	Date         Date          `json:"date"`
	Total        Amount        `json:"total"`
	Transactions []Transaction `json:"transactions"`
}

// PeriodTotals are the income/expense sums of one period in the report
// currency. Expense is reported as a negative amount.
type PeriodTotals struct {
	Income  Amount `json:"income"`
	Expense Amount `json:"expense"`
}

// Comparison carries a current value and its previous-period counterpart.
// Percentage is nil when the previous value is zero.
type Comparison struct {
	Current    Amount   `json:"current"`
	Previous   Amount   `json:"previous"`
	Percentage *float64 `json:"percentage"`
}

// NewComparison computes the percentage change from previous to current.
func NewComparison(current, previous Amount) Comparison {
	c := Comparison{Current: current, Previous: previous}
	if previous != 0 {
		p := float64(current-previous) / float64(previous.Abs()) * 100
		c.Percentage = &p
	}
	return c
}

// CategoryTotal is the summed amount of one category within a period.
type CategoryTotal struct {
	CategoryID string          `json:"categoryId"`
	Name       string          `json:"name"`
	TypeID     TransactionType `json:"typeId"`
	Color      string          `json:"color,omitempty"`
	Total      Amount          `json:"total"`
}

// ReportPeriod echoes the resolved period and its comparison window.
type ReportPeriod struct {
	Period   string   `json:"period"`
	Previous string   `json:"previous,omitempty"`
	Interval Interval `json:"interval"`
}

// AccountReport is the account screen: paged day groups, value chart and
// previous-period comparisons.
type AccountReport struct {
	AccountID  string       `json:"accountId"`
	CurrencyID string       `json:"currencyId"`
	Period     ReportPeriod `json:"period"`
	Page       int          `json:"page"`
	HasMore    bool         `json:"hasMore"`
	Days       []DayGroup   `json:"days"`
	Chart      []ChartPoint `json:"chart"`
	Value      Comparison   `json:"value"`
	Income     Comparison   `json:"income"`
	Expense    Comparison   `json:"expense"`
}

// UserReport aggregates every account a user can see, converted into the
// user's main currency.
type UserReport struct {
	UserID     string       `json:"userId"`
	CurrencyID string       `json:"currencyId"`
	Period     ReportPeriod `json:"period"`
	Page       int          `json:"page"`
	HasMore    bool         `json:"hasMore"`
	Days       []DayGroup   `json:"days"`
	Chart      []ChartPoint `json:"chart"`
	Value      Comparison   `json:"value"`
	Income     Comparison   `json:"income"`
	Expense    Comparison   `json:"expense"`
}

// CategoryChart is the per-category income/expense breakdown.
type CategoryChart struct {
	CurrencyID string          `json:"currencyId"`
	Period     string          `json:"period"`
	Income     []CategoryTotal `json:"income"`
	Expense    []CategoryTotal `json:"expense"`
}

// LedgerEntry is one row mirrored to the external audit ledger.
type LedgerEntry struct {
	Event         string    `json:"event"`
	TransactionID string    `json:"transactionId"`
	AccountID     string    `json:"accountId"`
	UserID        string    `json:"userId"`
	Type          string    `json:"type"`
	Date          Date      `json:"date"`
	Amount        Amount    `json:"amount"`
	CurrencyID    string    `json:"currencyId"`
	Rate          string    `json:"rate,omitempty"`
	Description   string    `json:"description,omitempty"`
	RecordedAt    time.Time `json:"recordedAt"`
}
