package analytics

import (
	"fmt"
	"strings"
	"time"

	"tradestein/internal/models"
)

// DayCell is one day of a month calendar.
type DayCell struct {
	Date    string  `json:"date"`
	Weekday string  `json:"weekday"`
	PnL     float64 `json:"pnl"`
	Count   int     `json:"count"`
}

// MonthView aggregates one calendar month of trades.
type MonthView struct {
	Month                 string    `json:"month"`
	Days                  []DayCell `json:"days"`
	TotalTrades           int       `json:"totalTrades"`
	TotalPnL              float64   `json:"totalPnl"`
	WeeklyPnL             Buckets   `json:"weeklyPnl"`
	BestWeek              string    `json:"bestWeek"`
	BestWeekPnL           float64   `json:"bestWeekPnl"`
	MostProfitableWeekday string    `json:"mostProfitableWeekday"`
}

// ParseMonth parses a "YYYY-MM" month.
func ParseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q: want YYYY-MM", s)
	}
	return t.Year(), t.Month(), nil
}

// ISOWeekKey formats the ISO-8601 week of date as "YYYY-Www".
func ISOWeekKey(date string) (string, bool) {
	d, err := parseDate(date)
	if err != nil {
		return "", false
	}
	year, week := d.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week), true
}

// Calendar lays out every day of the month with its PnL and trade count,
// plus weekly totals keyed by ISO week. Only weeks with trades appear in
// WeeklyPnL, in chronological order.
func Calendar(trades []models.Trade, year int, month time.Month) MonthView {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	prefix := first.Format("2006-01")
	view := MonthView{Month: prefix, WeeklyPnL: Buckets{}}

	var inMonth []models.Trade
	for _, t := range trades {
		if strings.HasPrefix(t.Date, prefix) {
			inMonth = append(inMonth, t)
		}
	}

	byDate := make(map[string]*DayCell)
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		date := d.Format(models.DateLayout)
		view.Days = append(view.Days, DayCell{Date: date, Weekday: models.Weekdays[d.Weekday()]})
	}
	for i := range view.Days {
		byDate[view.Days[i].Date] = &view.Days[i]
	}

	for _, t := range inMonth {
		cell, ok := byDate[t.Date]
		if !ok {
			continue
		}
		pnl := pnlOf(t)
		cell.PnL = addFinite(cell.PnL, pnl)
		cell.Count++
		view.TotalTrades++
		view.TotalPnL = addFinite(view.TotalPnL, pnl)
	}

	weekIndex := make(map[string]int)
	for _, cell := range view.Days {
		if cell.Count == 0 {
			continue
		}
		key, _ := ISOWeekKey(cell.Date)
		i, ok := weekIndex[key]
		if !ok {
			i = len(view.WeeklyPnL)
			weekIndex[key] = i
			view.WeeklyPnL = append(view.WeeklyPnL, Bucket{Key: key})
		}
		view.WeeklyPnL[i].PnL = addFinite(view.WeeklyPnL[i].PnL, cell.PnL)
		view.WeeklyPnL[i].Count += cell.Count
	}
	if best, ok := view.WeeklyPnL.Max(); ok {
		view.BestWeek = best.Key
		view.BestWeekPnL = best.PnL
	}

	if view.TotalTrades > 0 {
		view.MostProfitableWeekday = Highlight(inMonth).BestWeekday
	}
	return view
}
