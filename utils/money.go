package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatEUR formats an amount as a string like "€12.500,00".
// Uses dot as thousands separator and comma for cents (common in Greece).
func FormatEUR(amount decimal.Decimal) string {
	neg := amount.IsNegative()
	if neg {
		amount = amount.Neg()
	}

	fixed := amount.StringFixed(2)
	s, cents, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	// Pre-allocate: digits + separators + € + cents
	b.Grow(len(s) + len(s)/3 + 8)
	if neg {
		b.WriteString("-€")
	} else {
		b.WriteString("€")
	}

	// Insert separators from the left.
	rem := len(s) % 3
	if rem == 0 {
		rem = 3
	}
	b.WriteString(s[:rem])
	for i := rem; i < len(s); i += 3 {
		b.WriteByte('.')
		b.WriteString(s[i : i+3])
	}
	b.WriteByte(',')
	b.WriteString(cents)

	return b.String()
}
