package core

import "regexp"

// TransferPattern is one predicate in the self-transfer heuristic. Patterns
// are checked in order against the free-text transaction description.
type TransferPattern struct {
	Name string
	Re   *regexp.Regexp
}

// Default patterns for money moved between the household's own accounts:
// the Beem payment service the couple uses for settling up, and the
// same-bank transfer phrases both banks emit when no external payee is
// named. Free-text matching is best-effort; false positives and negatives
// are expected and accepted.
var defaultTransferPatterns = []TransferPattern{
	{Name: "beem", Re: regexp.MustCompile(`(?i)\bbeem\b`)},
	{Name: "cba-internal", Re: regexp.MustCompile(`(?i)^transfer (to|from) (cba|commbank|netbank)\b`)},
	{Name: "starling-internal", Re: regexp.MustCompile(`(?i)^transfer (to|from) (personal|joint|saver|savings)\b`)},
	{Name: "own-transfer", Re: regexp.MustCompile(`(?i)^(internal|own) transfer\b`)},
	{Name: "round-up", Re: regexp.MustCompile(`(?i)^round[- ]?up( transfer)?$`)},
}

// TransferDetector classifies transactions as internal (self) transfers so
// spend and income aggregates can exclude money the household moved between
// its own accounts.
type TransferDetector struct {
	patterns []TransferPattern
}

// NewTransferDetector builds a detector with the given patterns, or the
// defaults when none are supplied.
func NewTransferDetector(patterns ...TransferPattern) *TransferDetector {
	if len(patterns) == 0 {
		patterns = defaultTransferPatterns
	}
	return &TransferDetector{patterns: patterns}
}

// IsSelfTransfer reports whether the transaction moves money between the
// household's own accounts. An explicit Transfer category is trusted
// outright; otherwise the description is matched against the pattern list.
func (d *TransferDetector) IsSelfTransfer(t Transaction) bool {
	if t.Category == "Transfer" {
		return true
	}
	for _, p := range d.patterns {
		if p.Re.MatchString(t.Description) {
			return true
		}
	}
	return false
}

// Real returns the transactions that are not self-transfers.
func (d *TransferDetector) Real(txns []Transaction) []Transaction {
	out := make([]Transaction, 0, len(txns))
	for _, t := range txns {
		if !d.IsSelfTransfer(t) {
			out = append(out, t)
		}
	}
	return out
}
