package analytics

import (
	"sort"
	"time"

	"tradestein/internal/models"
)

// Streak describes runs of calendar-consecutive trading days.
type Streak struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// DistinctDates returns the sorted set of dates on which trades were logged.
func DistinctDates(trades []models.Trade) []string {
	seen := make(map[string]struct{}, len(trades))
	dates := make([]string, 0)
	for _, t := range trades {
		if t.Date == "" {
			continue
		}
		if _, ok := seen[t.Date]; ok {
			continue
		}
		seen[t.Date] = struct{}{}
		dates = append(dates, t.Date)
	}
	sort.Strings(dates)
	return dates
}

// CurrentAndMaxStreak walks the sorted distinct dates and counts runs whose
// neighbours are exactly one calendar day apart.
//
// Current is the length of the run ending at the most recent date, whether
// or not that date is recent relative to today; see ActiveStreak for the
// lapsing variant. Dates that do not parse are ignored and duplicates are
// collapsed.
func CurrentAndMaxStreak(dates []string) Streak {
	days := sortedDays(dates)
	if len(days) == 0 {
		return Streak{}
	}

	s := Streak{Current: 1, Max: 1}
	for i := 1; i < len(days); i++ {
		if days[i]-days[i-1] == 1 {
			s.Current++
			if s.Current > s.Max {
				s.Max = s.Current
			}
		} else {
			s.Current = 1
		}
	}
	return s
}

// ActiveStreak is the current streak as of today: it is zero when the most
// recent trading day is neither today nor yesterday. An unparseable today
// leaves the current streak unchanged.
func ActiveStreak(dates []string, today string) int {
	days := sortedDays(dates)
	if len(days) == 0 {
		return 0
	}
	current := CurrentAndMaxStreak(dates).Current

	t, err := parseDate(today)
	if err != nil {
		return current
	}
	if gap := dayNumber(t) - days[len(days)-1]; gap > 1 {
		return 0
	}
	return current
}

// sortedDays parses, de-duplicates and sorts dates as epoch day numbers.
func sortedDays(dates []string) []int64 {
	seen := make(map[int64]struct{}, len(dates))
	days := make([]int64, 0, len(dates))
	for _, date := range dates {
		d, err := parseDate(date)
		if err != nil {
			continue
		}
		n := dayNumber(d)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		days = append(days, n)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}

// Today formats now as a journal date.
func Today(now time.Time) string {
	return now.Format(models.DateLayout)
}
