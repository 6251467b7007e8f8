// Package sheets reads dashboard collections straight from the household
// spreadsheet with the Sheets API, bypassing the Apps Script web app. Each
// collection lives on its own tab with a header row naming the columns.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"homeledger/internal/core"
	"homeledger/internal/feed"
	"homeledger/internal/rows"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

var (
	_ feed.SnapshotFetcher  = (*Client)(nil)
	_ feed.StatementFetcher = (*Client)(nil)
)

// Tab names for each collection. The rates tab holds a single row with
// "GBP to AUD", "AUD to GBP", and "Date" columns.
const (
	accountsSheet     = "Accounts"
	transactionsSheet = "Transactions"
	billsSheet        = "Bills"
	wagesSheet        = "Wages"
	savingsSheet      = "Savings"
	historySheet      = "History"
	projectionsSheet  = "Projections"
	dashboardSheet    = "Dashboard"
	ratesSheet        = "Rates"
)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID. Credentials come from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	credentialsJSON, err := loadCredentials()
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func loadCredentials() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// FetchAll reads every collection tab concurrently and assembles a bundle.
func (c *Client) FetchAll(ctx context.Context) (*feed.Bundle, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}

	b := &feed.Bundle{FetchedAt: time.Now()}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	read := func(tab string, dst *[]rows.Row) {
		g.Go(func() error {
			rs, err := c.readTab(gctx, tab)
			if err != nil {
				return err
			}
			*dst = rs
			return nil
		})
	}
	read(accountsSheet, &b.Accounts)
	read(transactionsSheet, &b.Transactions)
	read(billsSheet, &b.Bills)
	read(wagesSheet, &b.Wages)
	read(savingsSheet, &b.Savings)
	read(historySheet, &b.History)
	read(projectionsSheet, &b.Projections)
	read(dashboardSheet, &b.Dashboard)

	var rateRows []rows.Row
	g.Go(func() error {
		rs, err := c.readTab(gctx, ratesSheet)
		if err != nil {
			// The rates tab is optional; the fallback pair covers its absence.
			slog.WarnContext(gctx, "rates tab unreadable, using fallback rate", "error", err)
			return nil
		}
		rateRows = rs
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(rateRows) > 0 {
		r := rateRows[0]
		rate := core.ExchangeRate{
			GBPToAUD: r.Float("GBP to AUD"),
			AUDToGBP: r.Float("AUD to GBP"),
			Date:     r.Date("Date"),
		}
		if rate.GBPToAUD > 0 && rate.AUDToGBP > 0 {
			b.ExchangeRate = &rate
		}
	}
	return b, nil
}

// FetchTransactions reads the transactions tab and filters it by month and
// account names, mirroring the web app's transactions_all action.
func (c *Client) FetchTransactions(ctx context.Context, month string, accounts []string) ([]rows.Row, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	all, err := c.readTab(ctx, transactionsSheet)
	if err != nil {
		return nil, err
	}

	wanted := map[string]bool{}
	for _, a := range accounts {
		if a = strings.TrimSpace(a); a != "" {
			wanted[a] = true
		}
	}

	out := make([]rows.Row, 0, len(all))
	for _, r := range all {
		if month != "" {
			d := r.Date("Date")
			if d == nil || d.Format("2006-01") != month {
				continue
			}
		}
		if len(wanted) > 0 && !wanted[r.String("Account")] {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// readTab fetches a whole tab and zips each data row with the header row.
// Short rows are padded implicitly: absent cells simply never make it into
// the map, which downstream reads as the field's default.
func (c *Client) readTab(ctx context.Context, tab string) ([]rows.Row, error) {
	rng := fmt.Sprintf("%s!A1:Z", tab)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) < 2 {
		return nil, nil
	}

	headers := make([]string, len(resp.Values[0]))
	for i, h := range resp.Values[0] {
		headers[i] = strings.TrimSpace(fmt.Sprint(h))
	}

	out := make([]rows.Row, 0, len(resp.Values)-1)
	for _, raw := range resp.Values[1:] {
		row := rows.Row{}
		empty := true
		for i, cell := range raw {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			if s := strings.TrimSpace(fmt.Sprint(cell)); s != "" {
				empty = false
			}
			row[headers[i]] = cell
		}
		if !empty {
			out = append(out, row)
		}
	}
	return out, nil
}
