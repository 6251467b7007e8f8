package core

import (
	"log/slog"
	"math"
	"sync"

	"github.com/dustin/go-humanize"
)

// Converter turns native-currency amounts into display-currency amounts using
// the cached GBP/AUD rate pair. It also owns the process-wide display
// currency selector; toggling it changes nothing about stored amounts, only
// the conversion applied at read time.
type Converter struct {
	mu      sync.RWMutex
	rate    ExchangeRate
	display Currency
}

func NewConverter(display Currency) *Converter {
	if display != GBP {
		display = AUD
	}
	return &Converter{rate: FallbackRate, display: display}
}

// SetRate replaces the cached rate pair. Non-positive rates are ignored so a
// malformed upstream rate can never zero out every converted figure.
func (c *Converter) SetRate(r ExchangeRate) {
	if r.GBPToAUD <= 0 || r.AUDToGBP <= 0 {
		slog.Warn("ignoring non-positive exchange rate", "gbp_to_aud", r.GBPToAUD, "aud_to_gbp", r.AUDToGBP)
		return
	}
	c.mu.Lock()
	c.rate = r
	c.mu.Unlock()
}

func (c *Converter) Rate() ExchangeRate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rate
}

func (c *Converter) SetDisplay(cur Currency) {
	if cur != AUD && cur != GBP {
		slog.Warn("ignoring unsupported display currency", "currency", cur)
		return
	}
	c.mu.Lock()
	c.display = cur
	c.mu.Unlock()
}

func (c *Converter) Display() Currency {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.display
}

// Convert converts amount from one currency to another. An empty to means
// the current display currency. Identity conversions return the amount
// untouched with no rate math, so no rounding drift. Pairs outside AUD/GBP are
// undefined upstream; the amount passes through unchanged and the degraded
// conversion is logged for diagnostics.
func (c *Converter) Convert(amount float64, from, to Currency) float64 {
	c.mu.RLock()
	rate := c.rate
	if to == "" {
		to = c.display
	}
	c.mu.RUnlock()

	if from == to {
		return amount
	}
	switch {
	case from == GBP && to == AUD:
		return amount * rate.GBPToAUD
	case from == AUD && to == GBP:
		return amount * rate.AUDToGBP
	}
	slog.Warn("unsupported currency pair, amount passed through", "from", from, "to", to)
	return amount
}

// ToDisplay is Convert with the display currency as target.
func (c *Converter) ToDisplay(amount float64, from Currency) float64 {
	return c.Convert(amount, from, "")
}

// Format renders an amount with a currency symbol, two decimals, and
// thousands separators. Negative amounts carry the sign before the symbol:
// Format(-42.5, AUD) == "-$42.50". An empty currency means the display
// currency.
func (c *Converter) Format(amount float64, cur Currency) string {
	if cur == "" {
		cur = c.Display()
	}
	s := cur.Symbol() + humanize.FormatFloat("#,###.##", math.Abs(amount))
	if amount < 0 {
		return "-" + s
	}
	return s
}
