// Package ledger owns the in-memory snapshot of all household records and
// answers every derived query the dashboard renders: converted balances,
// period ledgers, income/expense summaries, health scores, and wage
// forecasts. A snapshot is only ever replaced wholesale; readers never see a
// half-updated fetch.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"homeledger/internal/cache"
	"homeledger/internal/core"
	"homeledger/internal/feed"
	"homeledger/internal/feed/memory"
	applog "homeledger/internal/log"
	"homeledger/internal/rows"
)

// Source reports where the current snapshot came from.
type Source string

const (
	SourceLoading Source = "loading"
	SourceLive    Source = "live"
	SourceMock    Source = "mock"
)

// SnapshotStore persists the last good bundle across restarts. Nil when
// persistence is disabled.
type SnapshotStore interface {
	Save(ctx context.Context, b *feed.Bundle) error
	LoadLatest(ctx context.Context) (*feed.Bundle, error)
}

type Config struct {
	Fetcher    feed.SnapshotFetcher
	Statements feed.StatementFetcher
	Registry   *core.Registry
	Store      SnapshotStore
	Display    core.Currency
	Transfers  *core.TransferDetector
	Logger     *applog.Logger
}

type Manager struct {
	conv *core.Converter
	norm *rows.Normalizer
	reg  *core.Registry
	det  *core.TransferDetector
	log  *applog.Logger

	fetcher feed.SnapshotFetcher
	stmts   feed.StatementFetcher
	store   SnapshotStore

	stmtCache *cache.LRU[[]core.Transaction]

	mu        sync.RWMutex
	bundle    *feed.Bundle
	source    Source
	lastFetch time.Time
	applied   uint64

	seq atomic.Uint64

	now func() time.Time
}

func New(cfg Config) *Manager {
	reg := cfg.Registry
	if reg == nil {
		reg = core.DefaultRegistry()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = applog.New(applog.ParseLevel(""), "ledger")
	}
	det := cfg.Transfers
	if det == nil {
		det = core.NewTransferDetector()
	}
	return &Manager{
		conv:      core.NewConverter(cfg.Display),
		norm:      rows.NewNormalizer(reg),
		reg:       reg,
		det:       det,
		log:       logger,
		fetcher:   cfg.Fetcher,
		stmts:     cfg.Statements,
		store:     cfg.Store,
		stmtCache: cache.NewLRU[[]core.Transaction](64, 5*time.Minute),
		source:    SourceLoading,
		now:       time.Now,
	}
}

// Restore loads the persisted last-good snapshot, if any, so the dashboard
// has stale-but-real data before its first fetch completes.
func (m *Manager) Restore(ctx context.Context) {
	if m.store == nil {
		return
	}
	b, err := m.store.LoadLatest(ctx)
	if err != nil {
		m.log.WarnContext(ctx, "snapshot restore failed", "error", err)
		return
	}
	if b == nil {
		return
	}
	m.mu.Lock()
	if m.bundle == nil {
		m.bundle = b
		m.source = SourceLive
		m.lastFetch = b.FetchedAt
		if b.ExchangeRate != nil {
			m.conv.SetRate(*b.ExchangeRate)
		}
	}
	m.mu.Unlock()
	m.log.InfoContext(ctx, "restored persisted snapshot", "fetched_at", b.FetchedAt)
}

// Refresh performs one full-bundle fetch and atomically replaces the
// snapshot. Overlapping refreshes are sequenced: each takes a monotonic
// sequence number before starting, and a completed fetch is dropped when a
// newer one has already been applied, so a slow stale response can never
// overwrite fresher data.
//
// On failure with no prior snapshot the built-in placeholder is installed
// and the source flips to mock; with a prior snapshot the old data is kept
// untouched and the error is returned to the caller.
func (m *Manager) Refresh(ctx context.Context) error {
	id := m.seq.Add(1)

	b, err := m.fetcher.FetchAll(ctx)
	if err != nil {
		m.mu.Lock()
		hadData := m.bundle != nil
		if !hadData {
			m.bundle = memory.Placeholder(m.reg)
			m.source = SourceMock
		}
		m.mu.Unlock()
		if hadData {
			m.log.WarnContext(ctx, "refresh failed, keeping last snapshot", "error", err)
		} else {
			m.log.WarnContext(ctx, "refresh failed with no prior snapshot, serving placeholder", "error", err)
		}
		return fmt.Errorf("fetch snapshot: %w", err)
	}

	m.mu.Lock()
	if id <= m.applied {
		m.mu.Unlock()
		m.log.InfoContext(ctx, "discarding stale fetch result", "seq", id)
		return nil
	}
	// The rate lands before the bundle becomes visible so a concurrent
	// reader never converts the new collections with the previous rate.
	if b.ExchangeRate != nil {
		m.conv.SetRate(*b.ExchangeRate)
	}
	m.bundle = b
	m.applied = id
	m.source = SourceLive
	m.lastFetch = b.FetchedAt
	m.mu.Unlock()

	m.stmtCache.Purge()

	if m.store != nil {
		if err := m.store.Save(ctx, b); err != nil {
			m.log.WarnContext(ctx, "snapshot persistence failed", "error", err)
		}
	}

	m.log.InfoContext(ctx, "snapshot refreshed",
		"seq", id,
		"accounts", len(b.Accounts),
		"transactions", len(b.Transactions),
		"rate_present", b.ExchangeRate != nil)
	return nil
}

// Source reports loading, live, or mock.
func (m *Manager) Source() Source {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.source
}

func (m *Manager) LastFetch() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastFetch
}

// Converter exposes the shared currency converter (display selector, rate,
// formatting).
func (m *Manager) Converter() *core.Converter { return m.conv }

func (m *Manager) SetDisplayCurrency(c core.Currency) { m.conv.SetDisplay(c) }
func (m *Manager) DisplayCurrency() core.Currency     { return m.conv.Display() }

// AccountCurrency resolves an account's configured native currency.
func (m *Manager) AccountCurrency(name string) core.Currency {
	return m.reg.Currency(name)
}

// snapshot returns the current bundle, which may be nil before the first
// refresh or restore.
func (m *Manager) snapshot() *feed.Bundle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bundle
}

// Accounts returns every account with native and display-currency figures.
// The balance change is converted once from the native delta rather than
// differencing two converted balances.
func (m *Manager) Accounts() []core.Account {
	b := m.snapshot()
	if b == nil {
		return nil
	}
	out := make([]core.Account, 0, len(b.Accounts))
	for _, r := range b.Accounts {
		a := m.norm.Account(r)
		a.Balance = m.conv.ToDisplay(a.NativeBalance, a.NativeCurrency)
		a.Change = m.conv.ToDisplay(a.NativeBalance-a.PreviousBalance, a.NativeCurrency)
		out = append(out, a)
	}
	return out
}

// Transactions returns the cached recent window, newest first, with
// converted amounts in the current display currency.
func (m *Manager) Transactions() []core.Transaction {
	b := m.snapshot()
	if b == nil {
		return nil
	}
	return m.finishTransactions(m.norm.Transactions(b.Transactions))
}

// TransactionsForPeriod filters the cached window to the last days days;
// days <= 0 returns everything.
func (m *Manager) TransactionsForPeriod(days int) []core.Transaction {
	return core.FilterByPeriod(m.Transactions(), days, m.now())
}

// finishTransactions applies read-time conversion and ordering.
func (m *Manager) finishTransactions(txns []core.Transaction) []core.Transaction {
	for i := range txns {
		txns[i].ConvertedAmount = m.conv.ToDisplay(txns[i].Amount, txns[i].Currency)
		txns[i].ConvertedBalance = m.conv.ToDisplay(txns[i].BalanceAfter, txns[i].Currency)
	}
	core.SortByDateDesc(txns)
	return txns
}

// Statement fetches a scoped ledger on demand for statement views. Failures
// degrade to an empty statement; a transient network blip must never take
// the page down. Results are cached briefly per month+accounts.
func (m *Manager) Statement(ctx context.Context, month string, accounts []string) []core.Transaction {
	key := statementKey(month, accounts)
	if cached, ok := m.stmtCache.Get(key); ok {
		return cached
	}
	if m.stmts == nil {
		return []core.Transaction{}
	}
	raw, err := m.stmts.FetchTransactions(ctx, month, accounts)
	if err != nil {
		m.log.WarnContext(ctx, "statement fetch failed", "month", month, "accounts", len(accounts), "error", err)
		return []core.Transaction{}
	}
	txns := m.finishTransactions(m.norm.Transactions(raw))
	m.stmtCache.Set(key, txns)
	return txns
}

// statementKey is canonical over account order, so reorderings of the same
// account set share a cache entry.
func statementKey(month string, accounts []string) string {
	if len(accounts) == 0 {
		return month
	}
	sorted := append([]string(nil), accounts...)
	for i := range sorted {
		sorted[i] = strings.TrimSpace(sorted[i])
	}
	sort.Strings(sorted)
	return month + "|" + strings.Join(sorted, ",")
}

// Bills returns the recurring obligations snapshot.
func (m *Manager) Bills() []core.Bill {
	b := m.snapshot()
	if b == nil {
		return nil
	}
	out := make([]core.Bill, 0, len(b.Bills))
	for _, r := range b.Bills {
		out = append(out, m.norm.Bill(r))
	}
	return out
}

func (m *Manager) SavingsGoals() []core.SavingsGoal {
	b := m.snapshot()
	if b == nil {
		return nil
	}
	out := make([]core.SavingsGoal, 0, len(b.Savings))
	for _, r := range b.Savings {
		out = append(out, m.norm.SavingsGoal(r))
	}
	return out
}

func (m *Manager) Wages() []core.WageEntry {
	b := m.snapshot()
	if b == nil {
		return nil
	}
	out := make([]core.WageEntry, 0, len(b.Wages))
	for _, r := range b.Wages {
		out = append(out, m.norm.WageEntry(r))
	}
	return out
}

func (m *Manager) History() []core.HistoryEntry {
	b := m.snapshot()
	if b == nil {
		return nil
	}
	out := make([]core.HistoryEntry, 0, len(b.History))
	for _, r := range b.History {
		out = append(out, m.norm.HistoryEntry(r))
	}
	return out
}

// Projections returns the upstream monthly forward estimates.
func (m *Manager) Projections() []core.MonthlyProjection {
	b := m.snapshot()
	if b == nil {
		return nil
	}
	out := make([]core.MonthlyProjection, 0, len(b.Projections))
	for _, r := range b.Projections {
		out = append(out, m.norm.MonthlyProjection(r))
	}
	return out
}

// TransferSuggestions recommends moving money between accounts so each one
// covers its bills due over the next month, in the display currency.
func (m *Manager) TransferSuggestions() []core.TransferSuggestion {
	demand := core.BillDemand(m.Bills(), m.now(), m.conv.ToDisplay)
	return core.SuggestTransfers(m.Accounts(), demand)
}

// IsSelfTransfer applies the configured transfer heuristics to one entry.
func (m *Manager) IsSelfTransfer(t core.Transaction) bool {
	return m.det.IsSelfTransfer(t)
}

// DashboardMetric reads a named server-computed metric, zero when absent.
func (m *Manager) DashboardMetric(name string) float64 {
	b := m.snapshot()
	if b == nil {
		return 0
	}
	return rows.DashboardMetric(b.Dashboard, name)
}

// Totals summarizes the last days days of transactions in the display
// currency. realOnly excludes self-transfers so moving money between the
// household's own accounts doesn't inflate income and spending.
func (m *Manager) Totals(days int, realOnly bool) core.Totals {
	txns := m.TransactionsForPeriod(days)
	if realOnly {
		txns = m.det.Real(txns)
	}
	return core.Summarize(txns)
}

// HealthScore computes the 0-100 composite from the current snapshot using
// a 30-day window of real (non-transfer) transactions.
func (m *Manager) HealthScore() core.HealthScore {
	in := core.HealthInput{Goals: m.SavingsGoals()}

	for _, a := range m.Accounts() {
		switch a.Type {
		case "savings":
			if a.Balance > 0 {
				in.SavingsBalance += a.Balance
			}
		case "credit":
			if a.Balance < 0 {
				in.CreditOwed += -a.Balance
			}
		}
	}

	t := m.Totals(30, true)
	in.MonthlyIncome = t.Income
	in.MonthlyExpenses = t.Expenses

	return core.ComputeHealthScore(in)
}

// WageForecast projects a user's pay over the next horizonDays from their
// wage history. The second return is false when the user has fewer than two
// dated entries, meaning no forecast rather than a misleading zero.
func (m *Manager) WageForecast(user string, horizonDays int) (core.WageForecast, bool) {
	var entries []core.WageEntry
	for _, w := range m.Wages() {
		if w.User != user {
			continue
		}
		w.Amount = m.conv.ToDisplay(w.Amount, w.Currency)
		w.Currency = m.conv.Display()
		entries = append(entries, w)
	}
	f, ok := core.ForecastWages(entries, horizonDays, m.now())
	if ok {
		f.User = user
	}
	return f, ok
}
