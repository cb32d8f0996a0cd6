package cli

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"tradestein/pkg/utils"
)

// FormatDateTime formats a timestamp in local time.
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("02-Jan-2006 15:04")
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// FormatHoldTime renders "09:30-10:15", or whichever end is known.
func FormatHoldTime(entry, exit string) string {
	switch {
	case entry == "" && exit == "":
		return "-"
	case exit == "":
		return entry
	case entry == "":
		return "-" + exit
	}
	return entry + "-" + exit
}

// TruncateString truncates s to maxLen runes with an ellipsis.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// Bar renders |v| as a run of blocks scaled against maxAbs over width cells.
func Bar(v, maxAbs float64, width int) string {
	if width <= 0 || maxAbs <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	n := int(math.Round(math.Abs(v) / maxAbs * float64(width)))
	if n > width {
		n = width
	}
	return strings.Repeat("█", n)
}

// pnlCell formats a P&L amount coloured by sign.
func pnlCell(o *Output, pnl float64) string {
	return o.Signed(pnl, utils.FormatPnL(pnl))
}
