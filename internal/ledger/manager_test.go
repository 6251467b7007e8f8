package ledger

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"homeledger/internal/core"
	"homeledger/internal/feed"
	"homeledger/internal/feed/memory"
	"homeledger/internal/rows"
)

func testBundle(now time.Time) *feed.Bundle {
	day := func(offset int) string {
		return now.AddDate(0, 0, offset).Format("2006-01-02")
	}
	return &feed.Bundle{
		Accounts: []rows.Row{
			{"Account Name": "Joint (Commonwealth)", "Current Balance": 100.0, "Previous Balance": 80.0},
			{"Account Name": "Joint Saver (Commonwealth)", "Current Balance": 6000.0, "Previous Balance": 6000.0},
			{"Account Name": "Katie Personal (Starling)", "Current Balance": 200.0, "Previous Balance": 210.0},
			{"Account Name": "Credit Card (Capital One)", "Current Balance": -150.0, "Previous Balance": -100.0},
		},
		Transactions: []rows.Row{
			{"Date": day(0), "Description": "Salary", "Amount": 1000.0, "Account": "Joint (Commonwealth)"},
			{"Date": day(-1), "Description": "Groceries", "Amount": -100.0, "Account": "Joint (Commonwealth)"},
			{"Date": day(-2), "Description": "Beem payment", "Amount": -50.0, "Account": "Joint (Commonwealth)"},
			{"Description": "undated adjustment", "Amount": -999.0, "Account": "Joint (Commonwealth)"},
		},
		Wages: []rows.Row{
			{"Date": day(0), "User": "Katie", "Amount": 1000.0, "Account": "Joint (Commonwealth)"},
			{"Date": day(-7), "User": "Katie", "Amount": 1000.0, "Account": "Joint (Commonwealth)"},
		},
		Savings: []rows.Row{
			{"Goal Name": "House Deposit", "Target Amount": 1000.0, "Current Amount": 500.0},
		},
		Bills: []rows.Row{
			{"Bill Name": "Rent", "Amount": 900.0, "Account": "Joint (Commonwealth)", "Next Due Date": day(5)},
		},
		Projections: []rows.Row{
			{"Month": "2026-09", "Projected Income": 5200.0, "Projected Bills": 1800.0, "Projected Spending": 1500.0, "Projected Savings": 1900.0},
		},
		ExchangeRate: &core.ExchangeRate{GBPToAUD: 2.0, AUDToGBP: 0.5},
		FetchedAt:    now,
	}
}

func newTestManager(store *memory.Store) *Manager {
	return New(Config{
		Fetcher:    store,
		Statements: store,
		Display:    core.AUD,
	})
}

func TestManager_RefreshSuccess(t *testing.T) {
	now := time.Now()
	m := newTestManager(memory.New(testBundle(now)))

	if m.Source() != SourceLoading {
		t.Fatalf("Source before refresh = %s, want loading", m.Source())
	}
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if m.Source() != SourceLive {
		t.Errorf("Source = %s, want live", m.Source())
	}

	accounts := m.Accounts()
	if len(accounts) != 4 {
		t.Fatalf("len(Accounts) = %d, want 4", len(accounts))
	}
	// GBP account converted to the AUD display at the bundle's 2.0 rate.
	katie := accounts[2]
	if katie.NativeBalance != 200 || katie.Balance != 400 {
		t.Errorf("Katie balances = %v native, %v display, want 200/400", katie.NativeBalance, katie.Balance)
	}
	if katie.Change != -20 {
		t.Errorf("Katie change = %v, want -20 (native delta converted)", katie.Change)
	}

	txns := m.Transactions()
	if len(txns) != 4 {
		t.Fatalf("len(Transactions) = %d, want 4", len(txns))
	}
	if txns[0].Description != "Salary" {
		t.Errorf("newest transaction = %q, want Salary", txns[0].Description)
	}
	if txns[len(txns)-1].Date != nil {
		t.Error("undated transaction should sort last")
	}
}

func TestManager_FirstFetchFailureServesPlaceholder(t *testing.T) {
	store := memory.New(nil)
	store.Fail(errors.New("upstream down"))
	m := newTestManager(store)

	if err := m.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() = nil error, want failure reported")
	}

	if m.Source() != SourceMock {
		t.Errorf("Source = %s, want mock", m.Source())
	}
	accounts := m.Accounts()
	if len(accounts) == 0 {
		t.Fatal("placeholder has no accounts, want every configured account")
	}
	for _, a := range accounts {
		if a.Balance != 0 || a.NativeBalance != 0 {
			t.Errorf("placeholder account %q balance = %v/%v, want zeros", a.Name, a.NativeBalance, a.Balance)
		}
	}
	if txns := m.Transactions(); len(txns) != 0 {
		t.Errorf("placeholder has %d transactions, want 0", len(txns))
	}

	// Derived figures must degrade, not explode.
	totals := m.Totals(30, true)
	if _, ok := totals.SavingsRate(); ok {
		t.Error("SavingsRate ok with no income, want unavailable")
	}
	hs := m.HealthScore()
	if hs.Score < 0 || hs.Score > 100 {
		t.Errorf("HealthScore = %v, want within [0,100]", hs.Score)
	}
}

func TestManager_LaterFailureKeepsLastSnapshot(t *testing.T) {
	now := time.Now()
	store := memory.New(testBundle(now))
	m := newTestManager(store)

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	store.Fail(errors.New("flaky network"))
	if err := m.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() = nil error, want failure reported")
	}

	if m.Source() != SourceLive {
		t.Errorf("Source = %s after transient failure, want live (stale data kept)", m.Source())
	}
	if len(m.Accounts()) != 4 {
		t.Errorf("accounts lost after transient failure")
	}
}

func TestManager_DisplayToggleNeedsNoRefetch(t *testing.T) {
	now := time.Now()
	store := memory.New(testBundle(now))
	m := newTestManager(store)

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	// Upstream becomes unreachable; the toggle must still work because
	// conversion happens at read time against cached data.
	store.Fail(errors.New("offline"))

	joint := m.Accounts()[0]
	if joint.Balance != 100 {
		t.Fatalf("Joint AUD balance = %v, want 100 in AUD display", joint.Balance)
	}

	m.SetDisplayCurrency(core.GBP)
	joint = m.Accounts()[0]
	if joint.Balance != 50 {
		t.Errorf("Joint balance = %v in GBP display, want 50 at the 0.5 rate", joint.Balance)
	}

	m.SetDisplayCurrency(core.AUD)
	if got := m.Accounts()[0].Balance; got != 100 {
		t.Errorf("Joint balance = %v back in AUD, want 100", got)
	}
}

func TestManager_Totals(t *testing.T) {
	now := time.Now()
	m := newTestManager(memory.New(testBundle(now)))
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	t.Run("real only excludes transfers", func(t *testing.T) {
		got := m.Totals(30, true)
		if got.Income != 1000 || got.Expenses != 100 {
			t.Errorf("Totals = %+v, want income 1000 expenses 100 (Beem excluded)", got)
		}
	})

	t.Run("everything includes transfers", func(t *testing.T) {
		got := m.Totals(30, false)
		if got.Expenses != 150 {
			t.Errorf("Expenses = %v, want 150 with the Beem transfer", got.Expenses)
		}
	})

	t.Run("undated rows never join bounded windows", func(t *testing.T) {
		got := m.Totals(30, false)
		if got.Expenses > 150 {
			t.Errorf("Expenses = %v includes the undated adjustment, want it excluded", got.Expenses)
		}
	})
}

func TestManager_WageForecast(t *testing.T) {
	now := time.Now()
	m := newTestManager(memory.New(testBundle(now)))
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	f, ok := m.WageForecast("Katie", 7)
	if !ok {
		t.Fatal("expected a forecast for Katie")
	}
	if f.Cadence != core.CadenceWeekly {
		t.Errorf("Cadence = %q, want weekly", f.Cadence)
	}
	if f.ProjectedTotal != 1000 {
		t.Errorf("ProjectedTotal = %v, want 1000 over one week", f.ProjectedTotal)
	}

	if _, ok := m.WageForecast("Bailey", 7); ok {
		t.Error("got a forecast for a user with no wage history")
	}
}

func TestManager_Statement(t *testing.T) {
	now := time.Now()
	store := memory.New(testBundle(now))
	m := newTestManager(store)
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	month := now.Format("2006-01")
	got := m.Statement(context.Background(), month, nil)
	if len(got) == 0 {
		t.Fatal("Statement returned nothing for the current month")
	}

	// A failing upstream serves the cached statement, and an uncached
	// query degrades to empty rather than erroring the page.
	store.Fail(errors.New("down"))
	if cached := m.Statement(context.Background(), month, nil); len(cached) != len(got) {
		t.Errorf("cached statement = %d rows, want %d", len(cached), len(got))
	}
	if cold := m.Statement(context.Background(), "1999-01", nil); len(cold) != 0 {
		t.Errorf("failed uncached statement = %d rows, want 0", len(cold))
	}
}

func TestManager_Projections(t *testing.T) {
	now := time.Now()
	m := newTestManager(memory.New(testBundle(now)))
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	got := m.Projections()
	if len(got) != 1 {
		t.Fatalf("len(Projections) = %d, want 1", len(got))
	}
	p := got[0]
	if p.Month != "2026-09" || p.Income != 5200 || p.Bills != 1800 || p.Spending != 1500 || p.Savings != 1900 {
		t.Errorf("projection = %+v, want the upstream row mapped through", p)
	}
}

func TestManager_TransferSuggestions(t *testing.T) {
	now := time.Now()
	m := newTestManager(memory.New(testBundle(now)))
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	got := m.TransferSuggestions()
	if len(got) != 1 {
		t.Fatalf("suggestions = %+v, want 1 (rent exceeds the joint balance)", got)
	}
	s := got[0]
	if s.From != "Joint Saver (Commonwealth)" || s.To != "Joint (Commonwealth)" {
		t.Errorf("route = %s -> %s, want saver -> joint", s.From, s.To)
	}
	if s.Amount != 800 || s.Needed != 900 {
		t.Errorf("amount/needed = %v/%v, want 800/900", s.Amount, s.Needed)
	}
}

func TestManager_StatementCacheIgnoresAccountOrder(t *testing.T) {
	now := time.Now()
	store := memory.New(testBundle(now))
	m := newTestManager(store)
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	month := now.Format("2006-01")
	accounts := []string{"Joint (Commonwealth)", "Katie Personal (Starling)"}
	got := m.Statement(context.Background(), month, accounts)
	if len(got) == 0 {
		t.Fatal("Statement returned nothing for the current month")
	}

	// The reordered account list must hit the same cache entry, so it still
	// serves rows while the upstream is down.
	store.Fail(errors.New("down"))
	reordered := m.Statement(context.Background(), month, []string{"Katie Personal (Starling)", "Joint (Commonwealth)"})
	if len(reordered) != len(got) {
		t.Errorf("reordered statement = %d rows, want %d from the cache", len(reordered), len(got))
	}
}

func TestManager_ConfiguredTransferPatterns(t *testing.T) {
	now := time.Now()
	store := memory.New(testBundle(now))
	det := core.NewTransferDetector(core.TransferPattern{
		Name: "groceries-split",
		Re:   regexp.MustCompile(`(?i)^groceries$`),
	})
	m := New(Config{
		Fetcher:    store,
		Statements: store,
		Transfers:  det,
		Display:    core.AUD,
	})
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if !m.IsSelfTransfer(core.Transaction{Description: "Groceries"}) {
		t.Error("configured pattern not applied")
	}
	if m.IsSelfTransfer(core.Transaction{Description: "Beem payment"}) {
		t.Error("default pattern still active with a custom detector")
	}

	got := m.Totals(30, true)
	if got.Income != 1000 || got.Expenses != 50 {
		t.Errorf("Totals = %+v, want income 1000 expenses 50 (Groceries excluded, Beem counted)", got)
	}
}

func TestManager_RefreshReplacesRateWithSnapshot(t *testing.T) {
	now := time.Now()
	store := memory.New(testBundle(now))
	m := newTestManager(store)
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := m.Accounts()[2].Balance; got != 400 {
		t.Fatalf("Katie balance = %v at the 2.0 rate, want 400", got)
	}

	b2 := testBundle(now)
	b2.ExchangeRate = &core.ExchangeRate{GBPToAUD: 3.0, AUDToGBP: 0.3}
	store.SetBundle(b2)
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if got := m.Converter().Rate().GBPToAUD; got != 3.0 {
		t.Errorf("rate = %v after refresh, want 3.0", got)
	}
	if got := m.Accounts()[2].Balance; got != 600 {
		t.Errorf("Katie balance = %v, want 600 converted at the new rate", got)
	}
}

// blockingFetcher gates its first call so a stale response can be released
// after a newer one has already landed.
type blockingFetcher struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func (f *blockingFetcher) FetchAll(_ context.Context) (*feed.Bundle, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if n == 1 {
		close(f.started)
		<-f.release
	}
	return &feed.Bundle{
		Dashboard: []rows.Row{{"Metric": "Fetch", "Value": float64(n)}},
		FetchedAt: time.Now(),
	}, nil
}

func TestManager_StaleFetchIsDiscarded(t *testing.T) {
	f := &blockingFetcher{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	m := New(Config{Fetcher: f, Display: core.AUD})

	done := make(chan error, 1)
	go func() { done <- m.Refresh(context.Background()) }()
	<-f.started

	// The second refresh starts later but completes first.
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh() error = %v", err)
	}
	close(f.release)
	if err := <-done; err != nil {
		t.Fatalf("first Refresh() error = %v", err)
	}

	if got := m.DashboardMetric("Fetch"); got != 2 {
		t.Errorf("applied fetch = %v, want 2 (slow first fetch discarded)", got)
	}
}

// fakeStore is an in-memory SnapshotStore.
type fakeStore struct {
	mu     sync.Mutex
	latest *feed.Bundle
	saves  int
}

func (s *fakeStore) Save(_ context.Context, b *feed.Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = b
	s.saves++
	return nil
}

func (s *fakeStore) LoadLatest(_ context.Context) (*feed.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, nil
}

func TestManager_RestoreAndPersist(t *testing.T) {
	now := time.Now()
	store := &fakeStore{latest: testBundle(now.Add(-time.Hour))}

	failing := memory.New(nil)
	failing.Fail(errors.New("down"))

	m := New(Config{
		Fetcher: failing,
		Store:   store,
		Display: core.AUD,
	})
	m.Restore(context.Background())

	if m.Source() != SourceLive {
		t.Errorf("Source after restore = %s, want live", m.Source())
	}
	if len(m.Accounts()) != 4 {
		t.Errorf("restored %d accounts, want 4", len(m.Accounts()))
	}

	// A failed refresh on top of restored data keeps it.
	if err := m.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() = nil error, want failure")
	}
	if len(m.Accounts()) != 4 {
		t.Error("restored snapshot lost after failed refresh")
	}

	// A successful refresh persists the new snapshot.
	failing.SetBundle(testBundle(now))
	failing.Fail(nil)
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1", store.saves)
	}
}
