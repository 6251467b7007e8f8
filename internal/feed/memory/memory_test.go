package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"homeledger/internal/core"
	"homeledger/internal/feed"
	"homeledger/internal/rows"
)

func TestPlaceholder(t *testing.T) {
	reg := core.DefaultRegistry()
	b := Placeholder(reg)

	if len(b.Accounts) != len(reg.All()) {
		t.Fatalf("placeholder has %d accounts, want %d", len(b.Accounts), len(reg.All()))
	}
	for _, r := range b.Accounts {
		if r.Float("Current Balance") != 0 || r.Float("Previous Balance") != 0 {
			t.Errorf("account %q balances not zero", r.String("Account Name"))
		}
		if r.String("Currency") == "" {
			t.Errorf("account %q missing currency", r.String("Account Name"))
		}
	}
	if len(b.Transactions) != 0 || len(b.Bills) != 0 {
		t.Error("placeholder should have no transactions or bills")
	}
}

func TestStore_FailRestores(t *testing.T) {
	s := New(nil)

	if _, err := s.FetchAll(context.Background()); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	s.Fail(errors.New("injected"))
	if _, err := s.FetchAll(context.Background()); err == nil {
		t.Fatal("FetchAll() = nil error after Fail, want failure")
	}

	s.Fail(nil)
	if _, err := s.FetchAll(context.Background()); err != nil {
		t.Errorf("FetchAll() error = %v after clearing failure", err)
	}
}

func TestStore_FetchTransactionsWithoutBundle(t *testing.T) {
	s := New(&feed.Bundle{})
	s.SetBundle(nil)

	if _, err := s.FetchTransactions(context.Background(), "", nil); err == nil {
		t.Error("FetchTransactions() = nil error with no bundle, want failure")
	}
	if _, err := s.FetchAll(context.Background()); err == nil {
		t.Error("FetchAll() = nil error with no bundle, want failure")
	}
}

func TestStore_FetchTransactionsFilters(t *testing.T) {
	feb := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	s := New(&feed.Bundle{
		Transactions: []rows.Row{
			{"Date": feb.Format("2006-01-02"), "Description": "feb joint", "Account": "Joint (Commonwealth)"},
			{"Date": mar.Format("2006-01-02"), "Description": "mar joint", "Account": "Joint (Commonwealth)"},
			{"Date": mar.Format("2006-01-02"), "Description": "mar katie", "Account": "Katie Personal (Starling)"},
		},
	})

	got, err := s.FetchTransactions(context.Background(), "2026-03", []string{"Joint (Commonwealth)"})
	if err != nil {
		t.Fatalf("FetchTransactions() error = %v", err)
	}
	if len(got) != 1 || got[0].String("Description") != "mar joint" {
		t.Errorf("rows = %+v, want only mar joint", got)
	}

	all, err := s.FetchTransactions(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("FetchTransactions() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("unfiltered rows = %d, want 3", len(all))
	}
}
