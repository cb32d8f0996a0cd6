package analytics

import (
	"sort"

	"tradestein/internal/models"
)

// EquityPoint is one step of a cumulative PnL curve.
type EquityPoint struct {
	Date       string  `json:"date"`
	PnL        float64 `json:"pnl"`
	Cumulative float64 `json:"cumulativePnl"`
}

// EquityCurve returns the running PnL over trades ordered by date.
//
// Trades on the same date keep their input order. With collapseDays the
// curve has one point per date holding that day's summed PnL.
func EquityCurve(trades []models.Trade, collapseDays bool) []EquityPoint {
	sorted := make([]models.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date < sorted[j].Date
	})

	if collapseDays {
		return collapsedCurve(sorted)
	}

	points := make([]EquityPoint, 0, len(sorted))
	var running float64
	for _, t := range sorted {
		pnl := pnlOf(t)
		running = addFinite(running, pnl)
		points = append(points, EquityPoint{Date: t.Date, PnL: pnl, Cumulative: running})
	}
	return points
}

// collapsedCurve expects trades already sorted by date.
func collapsedCurve(sorted []models.Trade) []EquityPoint {
	points := make([]EquityPoint, 0)
	var running float64
	for _, t := range sorted {
		pnl := pnlOf(t)
		running = addFinite(running, pnl)
		if n := len(points); n > 0 && points[n-1].Date == t.Date {
			points[n-1].PnL = addFinite(points[n-1].PnL, pnl)
			points[n-1].Cumulative = running
			continue
		}
		points = append(points, EquityPoint{Date: t.Date, PnL: pnl, Cumulative: running})
	}
	return points
}
