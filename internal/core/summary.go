package core

import (
	"sort"
	"time"
)

// Totals is an income/expense summary over a set of transactions, in the
// display currency.
type Totals struct {
	Income   float64
	Expenses float64
	Count    int
}

// SavingsRate returns the percentage of income kept, and false when there is
// no income to divide by, in which case callers render a placeholder.
func (t Totals) SavingsRate() (float64, bool) {
	if t.Income <= 0 {
		return 0, false
	}
	return (t.Income - t.Expenses) / t.Income * 100, true
}

// Summarize totals converted amounts by sign. Zero amounts are neither
// income nor expense by convention.
func Summarize(txns []Transaction) Totals {
	t := Totals{Count: len(txns)}
	for _, tx := range txns {
		switch {
		case tx.Amount > 0:
			t.Income += tx.ConvertedAmount
		case tx.Amount < 0:
			t.Expenses += -tx.ConvertedAmount
		}
	}
	return t
}

// SortByDateDesc orders transactions newest first. Undated entries compare
// as the zero time, so they always sort to the end.
func SortByDateDesc(txns []Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		return txTime(txns[i]).After(txTime(txns[j]))
	})
}

func txTime(t Transaction) time.Time {
	if t.Date == nil {
		return time.Time{}
	}
	return *t.Date
}

// FilterByPeriod keeps transactions dated on or after local midnight
// days ago. days <= 0 is the "no filtering" sentinel. Undated entries are
// excluded from any date-bounded view.
func FilterByPeriod(txns []Transaction, days int, now time.Time) []Transaction {
	if days <= 0 {
		return txns
	}
	y, m, d := now.AddDate(0, 0, -days).Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	out := make([]Transaction, 0, len(txns))
	for _, t := range txns {
		if t.Date == nil {
			continue
		}
		if !t.Date.Before(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

// Health score weighting: four factors worth 25 points each, linearly scaled
// against their targets and clamped so pathological inputs can never push a
// factor outside [0,25] or the total outside [0,100].
const (
	healthFactorMax     = 25.0
	emergencyMonthsGoal = 6.0
	savingsRateGoal     = 20.0 // percent
	debtRatioCeiling    = 0.30
)

// HealthInput is everything the health score needs, already converted to the
// display currency.
type HealthInput struct {
	SavingsBalance  float64 // sum of savings-type account balances
	CreditOwed      float64 // absolute outstanding credit balance
	MonthlyIncome   float64
	MonthlyExpenses float64
	Goals           []SavingsGoal
}

// HealthScore is the 0-100 composite with its per-factor breakdown.
type HealthScore struct {
	Score         float64 `json:"score"`
	EmergencyFund float64 `json:"emergencyFund"`
	SavingsRate   float64 `json:"savingsRate"`
	DebtRatio     float64 `json:"debtRatio"`
	GoalProgress  float64 `json:"goalProgress"`
}

// ComputeHealthScore builds the composite financial health score.
func ComputeHealthScore(in HealthInput) HealthScore {
	var hs HealthScore

	// Emergency fund: months of expenses held in savings, 6-month target.
	// With no expenses to cover, any savings at all counts as fully covered.
	switch {
	case in.MonthlyExpenses > 0:
		months := in.SavingsBalance / in.MonthlyExpenses
		hs.EmergencyFund = clamp(months/emergencyMonthsGoal, 0, 1) * healthFactorMax
	case in.SavingsBalance > 0:
		hs.EmergencyFund = healthFactorMax
	}

	// Savings rate against a 20% target.
	if in.MonthlyIncome > 0 {
		rate := (in.MonthlyIncome - in.MonthlyExpenses) / in.MonthlyIncome * 100
		hs.SavingsRate = clamp(rate/savingsRateGoal, 0, 1) * healthFactorMax
	}

	// Debt ratio: inverse of credit owed over monthly income, 30% ceiling.
	// No income and no debt is fine; debt with no income is the worst case.
	switch {
	case in.MonthlyIncome > 0:
		ratio := in.CreditOwed / in.MonthlyIncome
		hs.DebtRatio = (1 - clamp(ratio/debtRatioCeiling, 0, 1)) * healthFactorMax
	case in.CreditOwed <= 0:
		hs.DebtRatio = healthFactorMax
	}

	// Average goal completion.
	if len(in.Goals) > 0 {
		var sum float64
		for _, g := range in.Goals {
			sum += clamp(g.Progress(), 0, 100)
		}
		hs.GoalProgress = sum / float64(len(in.Goals)) / 100 * healthFactorMax
	}

	hs.Score = clamp(hs.EmergencyFund+hs.SavingsRate+hs.DebtRatio+hs.GoalProgress, 0, 100)
	return hs
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Wage cadence classification thresholds, in days of average gap between
// consecutive payments.
const (
	CadenceWeekly      = "weekly"
	CadenceFortnightly = "fortnightly"
	CadenceMonthly     = "monthly"
)

// WageForecast projects a user's upcoming pay from historical cadence.
type WageForecast struct {
	User           string  `json:"user"`
	Cadence        string  `json:"cadence"`
	AverageGapDays float64 `json:"averageGapDays"`
	AverageAmount  float64 `json:"averageAmount"`
	Occurrences    int     `json:"occurrences"`
	ProjectedTotal float64 `json:"projectedTotal"`
}

// ForecastWages predicts pay for one user's wage history over the next
// horizonDays. Amounts must already be converted to the display currency.
// Fewer than two dated entries yields no forecast at all.
func ForecastWages(entries []WageEntry, horizonDays int, now time.Time) (WageForecast, bool) {
	dated := make([]WageEntry, 0, len(entries))
	for _, e := range entries {
		if e.Date != nil {
			dated = append(dated, e)
		}
	}
	if len(dated) < 2 || horizonDays <= 0 {
		return WageForecast{}, false
	}
	sort.Slice(dated, func(i, j int) bool { return dated[i].Date.Before(*dated[j].Date) })

	var gapSum, amountSum float64
	for i, e := range dated {
		amountSum += e.Amount
		if i > 0 {
			gapSum += e.Date.Sub(*dated[i-1].Date).Hours() / 24
		}
	}
	avgGap := gapSum / float64(len(dated)-1)
	avgAmount := amountSum / float64(len(dated))

	f := WageForecast{
		User:           dated[0].User,
		AverageGapDays: avgGap,
		AverageAmount:  avgAmount,
	}
	switch {
	case avgGap <= 8:
		f.Cadence = CadenceWeekly
	case avgGap <= 16:
		f.Cadence = CadenceFortnightly
	default:
		f.Cadence = CadenceMonthly
	}

	limit := now.AddDate(0, 0, horizonDays)
	next := *dated[len(dated)-1].Date
	for {
		next = nextPayDate(next, f.Cadence)
		if next.After(limit) {
			break
		}
		f.Occurrences++
		f.ProjectedTotal += avgAmount
	}
	return f, true
}

func nextPayDate(from time.Time, cadence string) time.Time {
	switch cadence {
	case CadenceWeekly:
		return from.AddDate(0, 0, 7)
	case CadenceFortnightly:
		return from.AddDate(0, 0, 14)
	default:
		return from.AddDate(0, 1, 0)
	}
}
