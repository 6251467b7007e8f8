package core

import "time"

// Currencies the household actually holds money in. Anything else that shows
// up in source data is passed through unconverted (see Converter.Convert).
const (
	AUD Currency = "AUD"
	GBP Currency = "GBP"
)

type (
	Currency string

	// Account is one bank/product holding. Balances are kept in the
	// account's native currency; converted figures are derived at read time.
	Account struct {
		Name            string
		Bank            string
		User            string
		Purpose         string
		Type            string // checking, savings, credit
		NativeCurrency  Currency
		NativeBalance   float64
		PreviousBalance float64
		Balance         float64 // converted to display currency
		Change          float64 // converted (current - previous)
		LastUpdate      *time.Time
	}

	// Transaction is a single ledger entry. A nil Date means the source row
	// had no parsable date; such entries never participate in date-bounded
	// aggregation but are still listed.
	Transaction struct {
		Date             *time.Time
		Description      string
		Amount           float64 // native currency, positive = inflow
		BalanceAfter     float64
		Category         string
		Account          string
		Bank             string
		User             string
		Currency         Currency
		Notes            string
		ConvertedAmount  float64
		ConvertedBalance float64
	}

	// Bill is a recurring obligation. Amount is always the absolute outflow.
	Bill struct {
		Name      string
		Amount    float64
		Currency  Currency
		Frequency string // Weekly, Fortnightly, Monthly, Quarterly, Yearly
		Account   string
		NextDue   *time.Time
		Status    string // Active, Due Soon, Overdue, Cancelled
	}

	SavingsGoal struct {
		Name        string
		Description string
		Target      float64
		Current     float64
		Currency    Currency
		Priority    string
	}

	WageEntry struct {
		Date      *time.Time
		DayOfWeek string
		User      string
		Amount    float64
		Currency  Currency
		Account   string
	}

	// HistoryEntry is one row of the upstream monthly-history sheet.
	HistoryEntry struct {
		Month    string // YYYY-MM
		Income   float64
		Bills    float64
		Spending float64
		Saved    float64
		Kind     string // Actual or Projected
	}

	// MonthlyProjection is one row of the upstream projections sheet:
	// server-computed forward estimates per month.
	MonthlyProjection struct {
		Month    string // YYYY-MM
		Income   float64
		Bills    float64
		Spending float64
		Savings  float64
	}

	// ExchangeRate is the process-wide GBP/AUD pair, refreshed on each full
	// fetch. Both directions are carried as configured upstream rather than
	// derived from one another.
	ExchangeRate struct {
		GBPToAUD float64    `json:"gbpToAud"`
		AUDToGBP float64    `json:"audToGbp"`
		Date     *time.Time `json:"date"`
	}
)

// FallbackRate is used whenever the upstream bundle omits an exchange rate.
var FallbackRate = ExchangeRate{GBPToAUD: 1.95, AUDToGBP: 0.513}

// Progress returns the goal completion percentage, capped at 100. A target
// of zero or less is treated as 1 so pathological rows never divide by zero.
func (g SavingsGoal) Progress() float64 {
	target := g.Target
	if target <= 0 {
		target = 1
	}
	pc := g.Current / target * 100
	if pc > 100 {
		return 100
	}
	return pc
}

// Symbol returns the display symbol for a currency. The household only deals
// in dollars and pounds; unknown codes fall back to the dollar sign.
func (c Currency) Symbol() string {
	if c == GBP {
		return "£"
	}
	return "$"
}
