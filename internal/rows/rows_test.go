package rows

import (
	"math"
	"testing"
	"time"
)

func TestRow_Float(t *testing.T) {
	tests := []struct {
		name string
		row  Row
		key  string
		want float64
	}{
		{name: "plain number", row: Row{"Amount": 42.5}, key: "Amount", want: 42.5},
		{name: "integer", row: Row{"Amount": 7}, key: "Amount", want: 7},
		{name: "missing key", row: Row{}, key: "Amount", want: 0},
		{name: "nil value", row: Row{"Amount": nil}, key: "Amount", want: 0},
		{name: "numeric string", row: Row{"Amount": "123.45"}, key: "Amount", want: 123.45},
		{name: "dollar string with commas", row: Row{"Amount": "$1,234.50"}, key: "Amount", want: 1234.5},
		{name: "pound string", row: Row{"Amount": "£42.00"}, key: "Amount", want: 42},
		{name: "negative string", row: Row{"Amount": "-99.9"}, key: "Amount", want: -99.9},
		{name: "garbage string", row: Row{"Amount": "n/a"}, key: "Amount", want: 0},
		{name: "empty string", row: Row{"Amount": ""}, key: "Amount", want: 0},
		{name: "NaN collapses to zero", row: Row{"Amount": math.NaN()}, key: "Amount", want: 0},
		{name: "Inf collapses to zero", row: Row{"Amount": math.Inf(1)}, key: "Amount", want: 0},
		{name: "bool is not a number", row: Row{"Amount": true}, key: "Amount", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.row.Float(tt.key); got != tt.want {
				t.Errorf("Float(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestRow_String(t *testing.T) {
	tests := []struct {
		name string
		row  Row
		key  string
		want string
	}{
		{name: "trimmed", row: Row{"Name": "  Rent  "}, key: "Name", want: "Rent"},
		{name: "missing", row: Row{}, key: "Name", want: ""},
		{name: "number formatted", row: Row{"Name": 12.5}, key: "Name", want: "12.5"},
		{name: "bool formatted", row: Row{"Name": true}, key: "Name", want: "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.row.String(tt.key); got != tt.want {
				t.Errorf("String(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestRow_Date(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want *time.Time
	}{
		{name: "rfc3339", val: "2026-03-05T10:30:00Z", want: tp(2026, 3, 5)},
		{name: "apps script millis", val: "2026-03-05T10:30:00.000Z", want: tp(2026, 3, 5)},
		{name: "plain date", val: "2026-03-05", want: tp(2026, 3, 5)},
		{name: "australian format", val: "05/03/2026", want: tp(2026, 3, 5)},
		{name: "short australian format", val: "5/3/2026", want: tp(2026, 3, 5)},
		{name: "unparsable", val: "yesterday", want: nil},
		{name: "empty", val: "", want: nil},
		{name: "missing", val: nil, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Row{"Date": tt.val}.Date("Date")
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("Date() = %v, want %v", got, tt.want)
			}
			if got != nil {
				gy, gm, gd := got.Date()
				wy, wm, wd := tt.want.Date()
				if gy != wy || gm != wm || gd != wd {
					t.Errorf("Date() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func tp(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}
