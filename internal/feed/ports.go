package feed

import (
	"context"
	"time"

	"homeledger/internal/core"
	"homeledger/internal/rows"
)

// Bundle is one full upstream snapshot: every collection as raw rows plus
// the exchange-rate pair. Collections are replaced wholesale; nothing in a
// bundle is ever mutated after fetch.
type Bundle struct {
	Accounts     []rows.Row
	Transactions []rows.Row
	Bills        []rows.Row
	Wages        []rows.Row
	Savings      []rows.Row
	History      []rows.Row
	Projections  []rows.Row
	Dashboard    []rows.Row
	ExchangeRate *core.ExchangeRate
	FetchedAt    time.Time
}

// Ports for upstream adapters.
type (
	// SnapshotFetcher retrieves the full bundle in one call.
	SnapshotFetcher interface {
		FetchAll(ctx context.Context) (*Bundle, error)
	}

	// StatementFetcher retrieves transactions only, optionally scoped to a
	// month ("YYYY-MM") and/or a subset of account names.
	StatementFetcher interface {
		FetchTransactions(ctx context.Context, month string, accounts []string) ([]rows.Row, error)
	}
)
