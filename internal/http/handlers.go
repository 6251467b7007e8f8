package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"homeledger/internal/core"
)

// accountJSON is the wire shape for one account. Balances carry both the raw
// converted number and a formatted string so clients never reimplement
// currency formatting.
type accountJSON struct {
	Name             string     `json:"name"`
	Bank             string     `json:"bank"`
	User             string     `json:"user"`
	Purpose          string     `json:"purpose"`
	Type             string     `json:"type"`
	NativeCurrency   string     `json:"nativeCurrency"`
	NativeBalance    float64    `json:"nativeBalance"`
	Balance          float64    `json:"balance"`
	BalanceFormatted string     `json:"balanceFormatted"`
	Change           float64    `json:"change"`
	ChangeFormatted  string     `json:"changeFormatted"`
	LastUpdate       *time.Time `json:"lastUpdate"`
}

type transactionJSON struct {
	Date               *time.Time `json:"date"`
	Description        string     `json:"description"`
	Amount             float64    `json:"amount"`
	Currency           string     `json:"currency"`
	ConvertedAmount    float64    `json:"convertedAmount"`
	AmountFormatted    string     `json:"amountFormatted"`
	BalanceAfter       float64    `json:"balanceAfter"`
	ConvertedBalance   float64    `json:"convertedBalance"`
	Category           string     `json:"category"`
	Account            string     `json:"account"`
	Bank               string     `json:"bank"`
	User               string     `json:"user"`
	Notes              string     `json:"notes"`
	IsSelfTransfer     bool       `json:"isSelfTransfer"`
	DisplayCurrency    string     `json:"displayCurrency"`
	FormattedInDisplay string     `json:"formattedInDisplay"`
}

type billJSON struct {
	Name            string     `json:"name"`
	Amount          float64    `json:"amount"`
	Currency        string     `json:"currency"`
	AmountFormatted string     `json:"amountFormatted"`
	Frequency       string     `json:"frequency"`
	Account         string     `json:"account"`
	NextDue         *time.Time `json:"nextDue"`
	Status          string     `json:"status"`
}

type goalJSON struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Target      float64 `json:"target"`
	Current     float64 `json:"current"`
	Currency    string  `json:"currency"`
	Priority    string  `json:"priority"`
	Progress    float64 `json:"progress"`
}

type wageJSON struct {
	Date      *time.Time `json:"date"`
	DayOfWeek string     `json:"dayOfWeek"`
	User      string     `json:"user"`
	Amount    float64    `json:"amount"`
	Currency  string     `json:"currency"`
	Account   string     `json:"account"`
}

type summaryJSON struct {
	DataSource           string            `json:"dataSource"`
	LastFetch            *time.Time        `json:"lastFetch"`
	DisplayCurrency      string            `json:"displayCurrency"`
	ExchangeRate         core.ExchangeRate `json:"exchangeRate"`
	PeriodDays           int               `json:"periodDays"`
	Income               float64           `json:"income"`
	IncomeFormatted      string            `json:"incomeFormatted"`
	Expenses             float64           `json:"expenses"`
	ExpensesFormatted    string            `json:"expensesFormatted"`
	Net                  float64           `json:"net"`
	NetFormatted         string            `json:"netFormatted"`
	TransactionCount     int               `json:"transactionCount"`
	SavingsRate          *float64          `json:"savingsRate"`
	SavingsRateFormatted string            `json:"savingsRateFormatted"`
	TotalBalance         float64           `json:"totalBalance"`
	TotalFormatted       string            `json:"totalFormatted"`
	HealthScore          core.HealthScore  `json:"healthScore"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	days := queryInt(r, "days", 30)
	conv := s.ledger.Converter()
	display := conv.Display()

	totals := s.ledger.Totals(days, true)

	var total float64
	for _, a := range s.ledger.Accounts() {
		total += a.Balance
	}

	out := summaryJSON{
		DataSource:        string(s.ledger.Source()),
		DisplayCurrency:   string(display),
		ExchangeRate:      conv.Rate(),
		PeriodDays:        days,
		Income:            totals.Income,
		IncomeFormatted:   conv.Format(totals.Income, display),
		Expenses:          totals.Expenses,
		ExpensesFormatted: conv.Format(totals.Expenses, display),
		Net:               totals.Income - totals.Expenses,
		NetFormatted:      conv.Format(totals.Income-totals.Expenses, display),
		TransactionCount:  totals.Count,
		TotalBalance:      total,
		TotalFormatted:    conv.Format(total, display),
		HealthScore:       s.ledger.HealthScore(),
	}
	if lf := s.ledger.LastFetch(); !lf.IsZero() {
		out.LastFetch = &lf
	}
	// A period with no income reports no rate rather than a NaN.
	if rate, ok := totals.SavingsRate(); ok {
		out.SavingsRate = &rate
		out.SavingsRateFormatted = strconv.FormatFloat(rate, 'f', 1, 64) + "%"
	} else {
		out.SavingsRateFormatted = "--"
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	conv := s.ledger.Converter()
	display := conv.Display()

	accounts := s.ledger.Accounts()
	out := make([]accountJSON, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, accountJSON{
			Name:             a.Name,
			Bank:             a.Bank,
			User:             a.User,
			Purpose:          a.Purpose,
			Type:             a.Type,
			NativeCurrency:   string(a.NativeCurrency),
			NativeBalance:    a.NativeBalance,
			Balance:          a.Balance,
			BalanceFormatted: conv.Format(a.Balance, display),
			Change:           a.Change,
			ChangeFormatted:  conv.Format(a.Change, display),
			LastUpdate:       a.LastUpdate,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"displayCurrency": string(display),
		"dataSource":      string(s.ledger.Source()),
		"accounts":        out,
	})
}

// handleTransactions serves either the cached recent window filtered by
// ?days=N, or an on-demand statement when ?month=YYYY-MM is given
// (optionally narrowed with ?accounts=a,b).
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var txns []core.Transaction
	if month := strings.TrimSpace(r.URL.Query().Get("month")); month != "" {
		if _, err := time.Parse("2006-01", month); err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
		var accounts []string
		if raw := strings.TrimSpace(r.URL.Query().Get("accounts")); raw != "" {
			accounts = strings.Split(raw, ",")
		}
		txns = s.ledger.Statement(r.Context(), month, accounts)
	} else {
		txns = s.ledger.TransactionsForPeriod(queryInt(r, "days", 30))
	}

	conv := s.ledger.Converter()
	display := conv.Display()

	out := make([]transactionJSON, 0, len(txns))
	for _, t := range txns {
		out = append(out, transactionJSON{
			Date:               t.Date,
			Description:        t.Description,
			Amount:             t.Amount,
			Currency:           string(t.Currency),
			ConvertedAmount:    t.ConvertedAmount,
			AmountFormatted:    conv.Format(t.Amount, t.Currency),
			BalanceAfter:       t.BalanceAfter,
			ConvertedBalance:   t.ConvertedBalance,
			Category:           t.Category,
			Account:            t.Account,
			Bank:               t.Bank,
			User:               t.User,
			Notes:              t.Notes,
			IsSelfTransfer:     s.ledger.IsSelfTransfer(t),
			DisplayCurrency:    string(display),
			FormattedInDisplay: conv.Format(t.ConvertedAmount, display),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"displayCurrency": string(display),
		"dataSource":      string(s.ledger.Source()),
		"transactions":    out,
	})
}

func (s *Server) handleBills(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	conv := s.ledger.Converter()
	bills := s.ledger.Bills()
	out := make([]billJSON, 0, len(bills))
	for _, b := range bills {
		out = append(out, billJSON{
			Name:            b.Name,
			Amount:          b.Amount,
			Currency:        string(b.Currency),
			AmountFormatted: conv.Format(b.Amount, b.Currency),
			Frequency:       b.Frequency,
			Account:         b.Account,
			NextDue:         b.NextDue,
			Status:          b.Status,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"bills": out})
}

func (s *Server) handleWages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	wages := s.ledger.Wages()
	out := make([]wageJSON, 0, len(wages))
	for _, e := range wages {
		out = append(out, wageJSON{
			Date:      e.Date,
			DayOfWeek: e.DayOfWeek,
			User:      e.User,
			Amount:    e.Amount,
			Currency:  string(e.Currency),
			Account:   e.Account,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"wages": out})
}

func (s *Server) handleSavings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	goals := s.ledger.SavingsGoals()
	out := make([]goalJSON, 0, len(goals))
	for _, g := range goals {
		out = append(out, goalJSON{
			Name:        g.Name,
			Description: g.Description,
			Target:      g.Target,
			Current:     g.Current,
			Currency:    string(g.Currency),
			Priority:    g.Priority,
			Progress:    g.Progress(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": out})
}

// handleHistory serves the monthly history rows, actuals and projections.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries := s.ledger.History()
	out := make([]map[string]any, 0, len(entries))
	for _, h := range entries {
		out = append(out, map[string]any{
			"month":    h.Month,
			"income":   h.Income,
			"bills":    h.Bills,
			"spending": h.Spending,
			"saved":    h.Saved,
			"kind":     h.Kind,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": out})
}

type projectionJSON struct {
	Month    string  `json:"month"`
	Income   float64 `json:"income"`
	Bills    float64 `json:"bills"`
	Spending float64 `json:"spending"`
	Savings  float64 `json:"savings"`
}

type transferJSON struct {
	From            string  `json:"from"`
	To              string  `json:"to"`
	Amount          float64 `json:"amount"`
	AmountFormatted string  `json:"amountFormatted"`
	Needed          float64 `json:"needed"`
	NeededFormatted string  `json:"neededFormatted"`
}

// handleProjections serves the upstream monthly estimates together with the
// derived where-to-move-money suggestions.
func (s *Server) handleProjections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	conv := s.ledger.Converter()
	display := conv.Display()

	projections := s.ledger.Projections()
	ps := make([]projectionJSON, 0, len(projections))
	for _, p := range projections {
		ps = append(ps, projectionJSON{
			Month:    p.Month,
			Income:   p.Income,
			Bills:    p.Bills,
			Spending: p.Spending,
			Savings:  p.Savings,
		})
	}

	suggestions := s.ledger.TransferSuggestions()
	ts := make([]transferJSON, 0, len(suggestions))
	for _, sg := range suggestions {
		ts = append(ts, transferJSON{
			From:            sg.From,
			To:              sg.To,
			Amount:          sg.Amount,
			AmountFormatted: conv.Format(sg.Amount, display),
			Needed:          sg.Needed,
			NeededFormatted: conv.Format(sg.Needed, display),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"displayCurrency": string(display),
		"projections":     ps,
		"transfers":       ts,
	})
}

func (s *Server) handleHealthScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.ledger.HealthScore())
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		writeError(w, http.StatusBadRequest, "user parameter is required")
		return
	}
	days := queryInt(r, "days", 30)

	forecast, ok := s.ledger.WageForecast(user, days)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"available": false,
			"user":      user,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"available": true,
		"forecast":  forecast,
	})
}

// handleRefresh triggers a snapshot refresh on demand.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.ledger.Refresh(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Manual refresh failed", "error", err)
		// The dashboard still has data (stale or placeholder); report the
		// degraded source rather than a bare failure.
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"refreshed":  false,
			"dataSource": string(s.ledger.Source()),
			"error":      err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"refreshed":  true,
		"dataSource": string(s.ledger.Source()),
	})
}

// handleCurrency switches the display currency. Conversion happens at read
// time, so no refetch is needed for the change to take effect.
func (s *Server) handleCurrency(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{
			"displayCurrency": string(s.ledger.DisplayCurrency()),
		})
	case http.MethodPost:
		var body struct {
			Currency string `json:"currency"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		cur := core.Currency(strings.ToUpper(strings.TrimSpace(body.Currency)))
		if cur != core.AUD && cur != core.GBP {
			writeError(w, http.StatusUnprocessableEntity, "currency must be AUD or GBP")
			return
		}
		s.ledger.SetDisplayCurrency(cur)
		writeJSON(w, http.StatusOK, map[string]string{
			"displayCurrency": string(cur),
		})
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
