package analytics

import (
	"strings"

	"tradestein/internal/models"
)

// All disables a TradeFilter field.
const All = "All"

// TradeFilter narrows a snapshot the way the analytics view's drop-downs do.
// Empty or All fields match everything.
type TradeFilter struct {
	Pair    string
	Session string
	Weekday string
}

func (f TradeFilter) matches(t models.Trade) bool {
	if active(f.Pair) && NormalizeTicker(t.Ticker) != NormalizeTicker(f.Pair) {
		return false
	}
	if active(f.Session) && SessionOf(t.EntryTime) != f.Session {
		return false
	}
	if active(f.Weekday) {
		wd, ok := WeekdayOf(t.Date)
		if !ok || !strings.EqualFold(wd, f.Weekday) {
			return false
		}
	}
	return true
}

func active(v string) bool {
	return v != "" && v != All
}

// Filter returns the trades matching f, in input order.
func Filter(trades []models.Trade, f TradeFilter) []models.Trade {
	out := make([]models.Trade, 0, len(trades))
	for _, t := range trades {
		if f.matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// Tickers lists distinct normalised tickers in first-occurrence order.
func Tickers(trades []models.Trade) []string {
	var out []string
	for _, key := range BucketBy(trades, DimensionPair).Keys() {
		if key != "" {
			out = append(out, key)
		}
	}
	return out
}
