package core

import "time"

// Transfer suggestion tuning: bills due within the lookahead window create
// demand against their paying account, and only accounts holding more than
// the donor floor may cover another account's shortfall.
const (
	transferLookaheadDays = 30
	transferDonorFloor    = 500.0
)

// defaultBillAccount absorbs bill rows with no paying account; unassigned
// bills come out of the joint CBA account by household convention.
const defaultBillAccount = "Joint (Commonwealth)"

// TransferSuggestion recommends moving money between the household's own
// accounts so a paying account can cover its upcoming bills. All figures are
// in the display currency.
type TransferSuggestion struct {
	From   string
	To     string
	Amount float64 // shortfall to move
	Needed float64 // total upcoming bill demand on the receiving account
}

// BillDemand sums upcoming bill outflows per paying account over the next
// month, converted through convert (native amount and currency in, display
// amount out). Bills with no due date, already past due, or due beyond the
// window are skipped.
func BillDemand(bills []Bill, now time.Time, convert func(float64, Currency) float64) map[string]float64 {
	horizon := now.AddDate(0, 0, transferLookaheadDays)
	demand := make(map[string]float64)
	for _, b := range bills {
		if b.NextDue == nil || b.NextDue.Before(now) || b.NextDue.After(horizon) {
			continue
		}
		acct := b.Account
		if acct == "" {
			acct = defaultBillAccount
		}
		demand[acct] += convert(b.Amount, b.Currency)
	}
	return demand
}

// SuggestTransfers recommends a donor for every account whose balance cannot
// cover its upcoming bill demand. Accounts and demand figures must share the
// display currency. The richest account above the donor floor covers each
// shortfall; with no eligible donor the shortfall goes unreported rather
// than suggesting a transfer that cannot be made.
func SuggestTransfers(accounts []Account, demand map[string]float64) []TransferSuggestion {
	var out []TransferSuggestion
	for _, a := range accounts {
		needed := demand[a.Name]
		if needed <= 0 || a.Balance >= needed {
			continue
		}
		var donor *Account
		for i := range accounts {
			d := &accounts[i]
			if d.Name == a.Name || d.Balance <= transferDonorFloor {
				continue
			}
			if donor == nil || d.Balance > donor.Balance {
				donor = d
			}
		}
		if donor == nil {
			continue
		}
		out = append(out, TransferSuggestion{
			From:   donor.Name,
			To:     a.Name,
			Amount: needed - a.Balance,
			Needed: needed,
		})
	}
	return out
}
