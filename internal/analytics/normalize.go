// Package analytics derives journal statistics from a snapshot of trades.
//
// Every function is pure: it reads the slice it is given, never mutates it,
// performs no I/O and never fails on malformed numeric data. Absent or
// non-numeric numbers are normalised to zero by ToFiniteNumber before any
// arithmetic happens, so an empty or dirty snapshot yields zero-valued
// results rather than an error.
package analytics

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"tradestein/internal/models"
)

// ToFiniteNumber converts x to a finite float64. Numbers, numeric strings and
// json.Number are accepted; nil, empty strings, non-numeric strings, NaN and
// infinities yield fallback.
func ToFiniteNumber(x interface{}, fallback float64) float64 {
	v, ok := toNumber(x)
	if !ok {
		return fallback
	}
	return v
}

// ToOptionalNumber is ToFiniteNumber for optional fields: it returns nil
// instead of a fallback when x carries no usable number.
func ToOptionalNumber(x interface{}) *float64 {
	v, ok := toNumber(x)
	if !ok {
		return nil
	}
	return &v
}

func toNumber(x interface{}) (float64, bool) {
	var f float64
	switch v := x.(type) {
	case nil:
		return 0, false
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case *float64:
		if v == nil {
			return 0, false
		}
		f = *v
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// pnlOf is the PnL of t with non-finite values treated as zero.
func pnlOf(t models.Trade) float64 {
	return ToFiniteNumber(t.PnL, 0)
}

// EffectiveRR is the effective R:R of t when it has a finite one. A huge
// PnL over a tiny risk that overflows counts as no R:R.
func EffectiveRR(t models.Trade) (float64, bool) {
	rr, ok := t.EffectiveRR()
	if !ok {
		return 0, false
	}
	return toNumber(rr)
}

func rrOf(t models.Trade) (float64, bool) {
	return EffectiveRR(t)
}

// addFinite adds x to acc, saturating at the largest finite float so that
// aggregates of finite values stay finite.
func addFinite(acc, x float64) float64 {
	sum := acc + x
	switch {
	case math.IsInf(sum, 1):
		return math.MaxFloat64
	case math.IsInf(sum, -1):
		return -math.MaxFloat64
	}
	return sum
}

// NormalizeTicker trims and upper-cases a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// NormalizeTrade turns loosely typed input into a Trade owned by userID.
// A missing date defaults to the calendar date of now. The id and
// timestamps are left for the store to assign.
func NormalizeTrade(in models.TradeInput, userID string, now time.Time) models.Trade {
	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = now.Format(models.DateLayout)
	}

	var risked *float64
	if r := ToOptionalNumber(in.AmountRisked); r != nil && *r > 0 {
		risked = r
	}

	improve := in.WhatToImprove
	if improve == "" {
		improve = in.WhatToDo
	}
	if improve == "" {
		improve = in.Note
	}

	return models.Trade{
		UserID:        userID,
		Date:          date,
		Ticker:        NormalizeTicker(in.Ticker),
		EntryTime:     strings.TrimSpace(in.EntryTime),
		ExitTime:      strings.TrimSpace(in.ExitTime),
		PnL:           ToFiniteNumber(in.PnL, 0),
		FinalRR:       ToOptionalNumber(in.FinalRR),
		AmountRisked:  risked,
		Confluences:   in.Confluences,
		DoneRight:     in.DoneRight,
		DoneWrong:     in.DoneWrong,
		WhatToImprove: improve,
		Emotions:      in.Emotions,
		EntryChart:    in.EntryChart,
		HTFChart:      in.HTFChart,
	}
}
