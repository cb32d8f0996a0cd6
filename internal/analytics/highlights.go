package analytics

import (
	"math"

	"tradestein/internal/models"
)

// Highlights are the secondary insights shown next to a Summary.
type Highlights struct {
	BestTicker       string  `json:"bestTicker"`
	WeakestTicker    string  `json:"weakestTicker"`
	BestWeekday      string  `json:"bestWeekday"`
	BestWeekdayPnL   float64 `json:"bestWeekdayPnl"`
	AvgWinSize       float64 `json:"avgWinSize"`
	ConsistencyScore int     `json:"consistencyScore"`
}

// Highlight derives best/weakest ticker, best weekday, average winner and
// the 0-100 consistency score (winRate*0.8 + avgRR*5, rounded and clamped).
func Highlight(trades []models.Trade) Highlights {
	var h Highlights
	if len(trades) == 0 {
		return h
	}

	pairs := BucketBy(trades, DimensionPair)
	if best, ok := pairs.Max(); ok {
		h.BestTicker = best.Key
	}
	if worst, ok := pairs.Min(); ok {
		h.WeakestTicker = worst.Key
	}

	days := make(Buckets, 0, len(models.Weekdays))
	for _, b := range BucketBy(trades, DimensionWeekday) {
		if b.Count > 0 {
			days = append(days, b)
		}
	}
	if best, ok := days.Max(); ok {
		h.BestWeekday = best.Key
		h.BestWeekdayPnL = best.PnL
	}

	var winSum float64
	var wins int
	for _, t := range trades {
		if pnl := pnlOf(t); pnl > 0 {
			winSum = addFinite(winSum, pnl)
			wins++
		}
	}
	if wins > 0 {
		h.AvgWinSize = winSum / float64(wins)
	}

	s := Summarize(trades)
	h.ConsistencyScore = ConsistencyScore(s.WinRate, s.AvgRR)
	return h
}

// ConsistencyScore blends win rate and average R:R into a 0-100 score.
func ConsistencyScore(winRate, avgRR float64) int {
	raw := math.Floor(winRate*0.8 + avgRR*5 + 0.5)
	return int(math.Max(0, math.Min(100, raw)))
}

// DailyPnL sums PnL and counts trades logged on date.
func DailyPnL(trades []models.Trade, date string) (float64, int) {
	var pnl float64
	var count int
	for _, t := range trades {
		if t.Date == date {
			pnl = addFinite(pnl, pnlOf(t))
			count++
		}
	}
	return pnl, count
}
