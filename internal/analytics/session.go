package analytics

import (
	"strconv"
	"strings"
	"time"

	"tradestein/internal/models"
)

// SessionOf maps an "HH:MM" entry time to its trading session. Only the hour
// is read. A missing or unparseable time is Unknown.
func SessionOf(entryTime string) string {
	entryTime = strings.TrimSpace(entryTime)
	if entryTime == "" {
		return models.SessionUnknown
	}
	hourPart := entryTime
	if i := strings.Index(entryTime, ":"); i >= 0 {
		hourPart = entryTime[:i]
	}
	h, err := strconv.Atoi(strings.TrimSpace(hourPart))
	if err != nil {
		return models.SessionUnknown
	}

	switch {
	case h >= 7 && h < 12:
		return models.SessionMorning
	case h >= 12 && h < 16:
		return models.SessionMidday
	case h >= 16 && h <= 23:
		return models.SessionAfternoon
	default:
		return models.SessionOvernight
	}
}

// WeekdayOf returns the weekday name of a YYYY-MM-DD date.
func WeekdayOf(date string) (string, bool) {
	d, err := parseDate(date)
	if err != nil {
		return "", false
	}
	return models.Weekdays[d.Weekday()], true
}

func parseDate(date string) (time.Time, error) {
	return time.Parse(models.DateLayout, strings.TrimSpace(date))
}

// dayNumber counts whole days since the Unix epoch for a UTC calendar date.
func dayNumber(d time.Time) int64 {
	return d.Unix() / 86400
}
