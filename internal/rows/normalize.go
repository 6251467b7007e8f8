package rows

import (
	"math"
	"strings"

	"homeledger/internal/core"
)

// Normalizer builds typed entities from rows, resolving omitted currencies
// through the account registry.
type Normalizer struct {
	reg *core.Registry
}

func NewNormalizer(reg *core.Registry) *Normalizer {
	if reg == nil {
		reg = core.DefaultRegistry()
	}
	return &Normalizer{reg: reg}
}

// currency resolves the row's currency: explicit column first, then the
// owning account's configured native currency, then AUD.
func (n *Normalizer) currency(r Row, accountKey string) core.Currency {
	if c := strings.ToUpper(r.String("Currency")); c != "" {
		return core.Currency(c)
	}
	return n.reg.Currency(r.String(accountKey))
}

// Account maps one accounts-sheet row. Static attributes missing from the
// row are backfilled from the registry.
func (n *Normalizer) Account(r Row) core.Account {
	name := r.String("Account Name")
	a := core.Account{
		Name:            name,
		Bank:            r.String("Bank"),
		User:            r.String("User"),
		Purpose:         r.String("Purpose"),
		Type:            r.String("Type"),
		NativeCurrency:  n.currency(r, "Account Name"),
		NativeBalance:   r.Float("Current Balance"),
		PreviousBalance: r.Float("Previous Balance"),
		LastUpdate:      r.Date("Last Updated"),
	}
	if info, ok := n.reg.Lookup(name); ok {
		if a.Bank == "" {
			a.Bank = info.Bank
		}
		if a.User == "" {
			a.User = info.User
		}
		if a.Purpose == "" {
			a.Purpose = info.Purpose
		}
		if a.Type == "" {
			a.Type = info.Type
		}
	}
	return a
}

// Transaction maps one ledger row. Converted fields are left zero; the
// ledger fills them at read time against the current display currency.
func (n *Normalizer) Transaction(r Row) core.Transaction {
	return core.Transaction{
		Date:         r.Date("Date"),
		Description:  r.String("Description"),
		Amount:       r.Float("Amount"),
		BalanceAfter: r.Float("Balance After"),
		Category:     r.String("Category"),
		Account:      r.String("Account"),
		Bank:         r.String("Bank"),
		User:         r.String("User"),
		Currency:     n.currency(r, "Account"),
		Notes:        r.String("Notes"),
	}
}

// Bill maps one bills-sheet row. Amounts are recorded as absolute outflows
// whatever their sign in the source; status and frequency default to Active
// and Monthly.
func (n *Normalizer) Bill(r Row) core.Bill {
	b := core.Bill{
		Name:      r.String("Bill Name"),
		Amount:    math.Abs(r.Float("Amount")),
		Currency:  n.currency(r, "Account"),
		Frequency: r.String("Frequency"),
		Account:   r.String("Account"),
		NextDue:   r.Date("Next Due Date"),
		Status:    r.String("Status"),
	}
	if b.Frequency == "" {
		b.Frequency = "Monthly"
	}
	if b.Status == "" {
		b.Status = "Active"
	}
	return b
}

// SavingsGoal maps one goals-sheet row. Goal amounts are display-agnostic by
// convention; no currency conversion is applied downstream.
func (n *Normalizer) SavingsGoal(r Row) core.SavingsGoal {
	return core.SavingsGoal{
		Name:        r.String("Goal Name"),
		Description: r.String("Description"),
		Target:      r.Float("Target Amount"),
		Current:     r.Float("Current Amount"),
		Currency:    n.currency(r, "Account"),
		Priority:    r.String("Priority"),
	}
}

// WageEntry maps one wages-sheet row.
func (n *Normalizer) WageEntry(r Row) core.WageEntry {
	return core.WageEntry{
		Date:      r.Date("Date"),
		DayOfWeek: r.String("Day of Week"),
		User:      r.String("User"),
		Amount:    r.Float("Amount"),
		Currency:  n.currency(r, "Account"),
		Account:   r.String("Account"),
	}
}

// HistoryEntry maps one monthly-history row.
func (n *Normalizer) HistoryEntry(r Row) core.HistoryEntry {
	return core.HistoryEntry{
		Month:    r.String("Month"),
		Income:   r.Float("Total Income"),
		Bills:    r.Float("Total Bills"),
		Spending: r.Float("Total Spending"),
		Saved:    r.Float("Total Saved"),
		Kind:     r.String("Type"),
	}
}

// MonthlyProjection maps one projections-sheet row.
func (n *Normalizer) MonthlyProjection(r Row) core.MonthlyProjection {
	return core.MonthlyProjection{
		Month:    r.String("Month"),
		Income:   r.Float("Projected Income"),
		Bills:    r.Float("Projected Bills"),
		Spending: r.Float("Projected Spending"),
		Savings:  r.Float("Projected Savings"),
	}
}

// Transactions maps a whole collection.
func (n *Normalizer) Transactions(rs []Row) []core.Transaction {
	out := make([]core.Transaction, 0, len(rs))
	for _, r := range rs {
		out = append(out, n.Transaction(r))
	}
	return out
}

// DashboardMetric finds a named metric in the dashboard collection,
// returning zero when absent.
func DashboardMetric(rs []Row, name string) float64 {
	for _, r := range rs {
		if r.String("Metric") == name {
			return r.Float("Value")
		}
	}
	return 0
}
