// Package memory provides an in-process feed backend: deterministic bundles
// for tests and demo mode, plus the placeholder snapshot installed when the
// first fetch ever fails.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"homeledger/internal/core"
	"homeledger/internal/feed"
	"homeledger/internal/rows"
)

// Store implements both feed ports over a seeded bundle.
type Store struct {
	mu     sync.Mutex
	bundle *feed.Bundle
	err    error
}

var (
	_ feed.SnapshotFetcher  = (*Store)(nil)
	_ feed.StatementFetcher = (*Store)(nil)
)

func New(b *feed.Bundle) *Store {
	if b == nil {
		b = Placeholder(core.DefaultRegistry())
	}
	return &Store{bundle: b}
}

// SetBundle swaps the served bundle.
func (s *Store) SetBundle(b *feed.Bundle) {
	s.mu.Lock()
	s.bundle = b
	s.mu.Unlock()
}

// Fail makes every subsequent fetch return err; nil restores normal service.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Store) FetchAll(_ context.Context) (*feed.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.bundle == nil {
		return nil, errors.New("no bundle seeded")
	}
	b := *s.bundle
	b.FetchedAt = time.Now()
	return &b, nil
}

func (s *Store) FetchTransactions(_ context.Context, month string, accounts []string) ([]rows.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.bundle == nil {
		return nil, errors.New("no bundle seeded")
	}
	wanted := map[string]bool{}
	for _, a := range accounts {
		if a = strings.TrimSpace(a); a != "" {
			wanted[a] = true
		}
	}
	var out []rows.Row
	for _, r := range s.bundle.Transactions {
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

// Placeholder builds the built-in demo snapshot: every configured account at
// a zero balance and every other collection empty. The dashboard degrades to
// this rather than fabricating figures.
func Placeholder(reg *core.Registry) *feed.Bundle {
	accounts := reg.All()
	b := &feed.Bundle{
		Accounts:  make([]rows.Row, 0, len(accounts)),
		FetchedAt: time.Now(),
	}
	for _, a := range accounts {
		b.Accounts = append(b.Accounts, rows.Row{
			"Account Name":     a.Name,
			"Bank":             a.Bank,
			"User":             a.User,
			"Purpose":          a.Purpose,
			"Type":             a.Type,
			"Currency":         string(a.Currency),
			"Current Balance":  0.0,
			"Previous Balance": 0.0,
		})
	}
	return b
}
