package core

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// AccountInfo is the static configuration for one household account: which
// bank it lives at, who owns it, what it is for, and which currency its
// balances and transactions are denominated in. The native currency is fixed
// per account name and drives every conversion for that account's rows.
type AccountInfo struct {
	Name     string   `json:"name"`
	Bank     string   `json:"bank"`
	User     string   `json:"user"`
	Purpose  string   `json:"purpose"`
	Type     string   `json:"type"`
	Currency Currency `json:"currency"`
}

// Registry resolves account names to their static configuration. Source rows
// frequently omit the currency column, so the registry is the authority for
// an account's native currency.
type Registry struct {
	accounts []AccountInfo
	byName   map[string]AccountInfo
}

func NewRegistry(accounts []AccountInfo) *Registry {
	r := &Registry{
		accounts: accounts,
		byName:   make(map[string]AccountInfo, len(accounts)),
	}
	for _, a := range accounts {
		r.byName[a.Name] = a
	}
	return r
}

// DefaultRegistry returns the built-in household account table, used when no
// registry file is configured.
func DefaultRegistry() *Registry {
	return NewRegistry([]AccountInfo{
		{Name: "BW Personal (Commonwealth)", Bank: "CBA", User: "Bailey", Purpose: "Wages", Type: "checking", Currency: AUD},
		{Name: "Katie Personal (Commonwealth)", Bank: "CBA", User: "Katie", Purpose: "Wages", Type: "checking", Currency: AUD},
		{Name: "Joint (Commonwealth)", Bank: "CBA", User: "Joint", Purpose: "Bills", Type: "checking", Currency: AUD},
		{Name: "Joint Saver (Commonwealth)", Bank: "CBA", User: "Joint", Purpose: "Savings", Type: "savings", Currency: AUD},
		{Name: "BW Personal (Starling)", Bank: "Starling", User: "Bailey", Purpose: "Spending", Type: "checking", Currency: GBP},
		{Name: "Katie Personal (Starling)", Bank: "Starling", User: "Katie", Purpose: "Spending", Type: "checking", Currency: GBP},
		{Name: "Joint (Starling)", Bank: "Starling", User: "Joint", Purpose: "Food", Type: "checking", Currency: GBP},
		{Name: "Credit Card (Capital One)", Bank: "Capital One", User: "Joint", Purpose: "Credit", Type: "credit", Currency: GBP},
	})
}

// LoadRegistry reads an account table from a JSON file: an array of account
// objects with name, bank, user, purpose, type, and currency fields.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}
	var accounts []AccountInfo
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("parse accounts file: %w", err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("accounts file %s lists no accounts", path)
	}
	for i := range accounts {
		accounts[i].Currency = Currency(strings.ToUpper(string(accounts[i].Currency)))
		if accounts[i].Name == "" {
			return nil, fmt.Errorf("accounts file %s: entry %d has no name", path, i)
		}
	}
	return NewRegistry(accounts), nil
}

// Currency returns the configured native currency for an account name, or
// AUD for empty/unrecognized names.
func (r *Registry) Currency(name string) Currency {
	if name == "" {
		return AUD
	}
	if a, ok := r.byName[name]; ok {
		return a.Currency
	}
	return AUD
}

func (r *Registry) Lookup(name string) (AccountInfo, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// All returns the configured accounts in declaration order.
func (r *Registry) All() []AccountInfo {
	out := make([]AccountInfo, len(r.accounts))
	copy(out, r.accounts)
	return out
}
