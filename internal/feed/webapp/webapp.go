// Package webapp fetches dashboard bundles from the Apps Script web app
// that fronts the household spreadsheet. It is the primary production
// backend.
package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"homeledger/internal/core"
	"homeledger/internal/feed"
	"homeledger/internal/rows"
)

const maxBodyBytes = 8 << 20 // the full bundle for a year stays well under this

type Client struct {
	baseURL string
	http    *http.Client
}

var (
	_ feed.SnapshotFetcher  = (*Client)(nil)
	_ feed.StatementFetcher = (*Client)(nil)
)

func New(baseURL string) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("missing webapp URL")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid webapp URL: %w", err)
	}
	return &Client{baseURL: baseURL, http: newHTTPClient()}, nil
}

// newHTTPClient builds a client with pooling and timeouts tuned for the
// Apps Script endpoint, which is slow to cold-start but cheap to keep warm.
func newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   15 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   5,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: 45 * time.Second,
	}
}

// payload mirrors the webapp's JSON bundle. Every collection arrives as
// loosely-typed rows; a populated error field marks the whole response bad.
type payload struct {
	Accounts     []rows.Row         `json:"accounts"`
	Transactions []rows.Row         `json:"transactions"`
	Bills        []rows.Row         `json:"bills"`
	Wages        []rows.Row         `json:"wages"`
	Savings      []rows.Row         `json:"savings"`
	History      []rows.Row         `json:"history"`
	Projections  []rows.Row         `json:"projections"`
	Dashboard    []rows.Row         `json:"dashboard"`
	ExchangeRate *core.ExchangeRate `json:"exchangeRate"`
	Data         []rows.Row         `json:"data"`
	Error        string             `json:"error"`
}

// FetchAll requests the full bundle (?action=all).
func (c *Client) FetchAll(ctx context.Context) (*feed.Bundle, error) {
	p, err := c.get(ctx, url.Values{"action": {"all"}})
	if err != nil {
		return nil, err
	}
	return &feed.Bundle{
		Accounts:     p.Accounts,
		Transactions: p.Transactions,
		Bills:        p.Bills,
		Wages:        p.Wages,
		Savings:      p.Savings,
		History:      p.History,
		Projections:  p.Projections,
		Dashboard:    p.Dashboard,
		ExchangeRate: p.ExchangeRate,
		FetchedAt:    time.Now(),
	}, nil
}

// FetchTransactions requests a scoped ledger (?action=transactions_all).
func (c *Client) FetchTransactions(ctx context.Context, month string, accounts []string) ([]rows.Row, error) {
	q := url.Values{"action": {"transactions_all"}}
	if month != "" {
		q.Set("month", month)
	}
	if len(accounts) > 0 {
		q.Set("accounts", strings.Join(accounts, ","))
	}
	p, err := c.get(ctx, q)
	if err != nil {
		return nil, err
	}
	return p.Data, nil
}

func (c *Client) get(ctx context.Context, q url.Values) (*payload, error) {
	u := c.baseURL
	if strings.Contains(u, "?") {
		u += "&" + q.Encode()
	} else {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webapp request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("webapp request: HTTP %d", resp.StatusCode)
	}

	var p payload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode webapp response: %w", err)
	}
	if p.Error != "" {
		return nil, fmt.Errorf("webapp error: %s", p.Error)
	}

	slog.DebugContext(ctx, "webapp fetch completed",
		"action", q.Get("action"),
		"duration_ms", time.Since(start).Milliseconds())
	return &p, nil
}
