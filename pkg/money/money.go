// Package money parses and formats the currency cells the ledger stores as text.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Parse reads a currency-formatted cell such as "$1,234.50", "-$12", "(12.00)" or "AUD 80".
// Anything that does not resolve to a number yields zero so one corrupt row cannot poison
// a reconciliation run.
func Parse(raw string) decimal.Decimal {
	amount, ok := ParseStrict(raw)
	if !ok {
		return decimal.Zero
	}
	return amount
}

// ParseStrict is Parse with an explicit success flag.
func ParseStrict(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimSpace(s[1:])
	}
	s = strings.TrimSpace(strings.TrimPrefix(strings.ToUpper(s), "AUD"))
	s = strings.TrimPrefix(s, "A$")
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	// decimal accepts exponents; a cell like "1E3" is corrupt, not a thousand dollars.
	if s == "" || strings.ContainsAny(s, "eE") {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, true
}

// Format renders an amount the way the ledger stores it: "$123.45".
func Format(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return "-$" + amount.Abs().StringFixed(2)
	}
	return "$" + amount.StringFixed(2)
}

// FromCents converts a minor-unit integer (as Square reports money) to dollars.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Sum adds the provided amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
