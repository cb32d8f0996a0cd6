// Package utils provides shared formatting and retry helpers.
package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatCurrency formats an amount as US dollars with thousands separators,
// e.g. -$1,234.50.
func FormatCurrency(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	// Format with 2 decimal places
	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")

	result := "$" + groupThousands(parts[0]) + "." + parts[1]
	if negative && str != "0.00" {
		result = "-" + result
	}
	return result
}

// groupThousands inserts commas every three digits from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	lead := n % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatRate formats an unsigned rate such as a win rate.
func FormatRate(value float64) string {
	return fmt.Sprintf("%.1f%%", value)
}

// FormatPnL formats P&L with an explicit sign.
func FormatPnL(pnl float64) string {
	formatted := FormatCurrency(pnl)
	if pnl > 0 && formatted != "$0.00" {
		return "+" + formatted
	}
	return formatted
}

// FormatRR formats a reward-to-risk ratio as "1:2.50". A nil ratio is "-".
func FormatRR(rr *float64) string {
	if rr == nil {
		return "-"
	}
	return fmt.Sprintf("1:%.2f", *rr)
}

// FormatCompact formats a number in compact form (K/M).
func FormatCompact(amount float64) string {
	abs := math.Abs(amount)
	switch {
	case abs >= 1e6:
		return fmt.Sprintf("$%.2fM", amount/1e6)
	case abs >= 1e4:
		return fmt.Sprintf("$%.1fK", amount/1e3)
	}
	return FormatCurrency(amount)
}
