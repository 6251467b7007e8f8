// Package rows translates the upstream "spreadsheet row" shape, maps of
// human-readable string keys to primitive values, into typed entities.
// Nothing outside this package should ever see a raw string key.
package rows

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Row is one record as delivered by the upstream source. Values are whatever
// the JSON decoder or Sheets API produced: float64, string, bool, or nil.
type Row map[string]any

// Date layouts the Apps Script webapp and the sheets themselves have been
// observed to emit, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
}

// Float reads a numeric field. Missing keys, non-numeric strings, and NaN
// all collapse to zero; aggregation must stay total over junk input.
func (r Row) Float(key string) float64 {
	v, ok := r[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		s = strings.TrimPrefix(s, "$")
		s = strings.TrimPrefix(s, "£")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	}
	return 0
}

// String reads a text field, defaulting to the empty string.
func (r Row) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(n)
	}
	return ""
}

// Date reads a calendar date field. Anything unparsable is nil; callers
// treat nil as "exclude from date-bounded aggregation", never as an error.
func (r Row) Date(key string) *time.Time {
	s := r.String(key)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
