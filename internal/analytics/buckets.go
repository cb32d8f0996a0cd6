package analytics

import (
	"strings"

	"tradestein/internal/models"
)

// Dimension selects the key trades are grouped by.
type Dimension string

const (
	DimensionPair    Dimension = "pair"
	DimensionSession Dimension = "session"
	DimensionWeekday Dimension = "weekday"
)

// ParseDimension accepts a dimension name case-insensitively.
func ParseDimension(s string) (Dimension, bool) {
	switch Dimension(strings.ToLower(strings.TrimSpace(s))) {
	case DimensionPair:
		return DimensionPair, true
	case DimensionSession:
		return DimensionSession, true
	case DimensionWeekday:
		return DimensionWeekday, true
	}
	return "", false
}

// Bucket is one key of a grouped PnL breakdown.
type Bucket struct {
	Key   string  `json:"key"`
	PnL   float64 `json:"pnl"`
	Count int     `json:"count"`
}

// Buckets is an ordered mapping from key to summed PnL.
type Buckets []Bucket

// Get returns the bucket for key.
func (b Buckets) Get(key string) (Bucket, bool) {
	for _, bucket := range b {
		if bucket.Key == key {
			return bucket, true
		}
	}
	return Bucket{}, false
}

// Keys returns the bucket keys in order.
func (b Buckets) Keys() []string {
	keys := make([]string, len(b))
	for i, bucket := range b {
		keys[i] = bucket.Key
	}
	return keys
}

// Total sums PnL across all buckets.
func (b Buckets) Total() float64 {
	var total float64
	for _, bucket := range b {
		total = addFinite(total, bucket.PnL)
	}
	return total
}

// Max returns the bucket with the highest PnL; ties go to the earliest.
func (b Buckets) Max() (Bucket, bool) {
	if len(b) == 0 {
		return Bucket{}, false
	}
	best := b[0]
	for _, bucket := range b[1:] {
		if bucket.PnL > best.PnL {
			best = bucket
		}
	}
	return best, true
}

// Min returns the bucket with the lowest PnL; ties go to the earliest.
func (b Buckets) Min() (Bucket, bool) {
	if len(b) == 0 {
		return Bucket{}, false
	}
	worst := b[0]
	for _, bucket := range b[1:] {
		if bucket.PnL < worst.PnL {
			worst = bucket
		}
	}
	return worst, true
}

// BucketBy sums PnL per derived key.
//
// For DimensionWeekday all seven weekdays are present, Sunday first, with
// zero for days without trades; trades whose date does not parse are left
// out. For DimensionPair and DimensionSession only observed keys appear, in
// order of first occurrence. An unknown dimension yields no buckets.
func BucketBy(trades []models.Trade, dim Dimension) Buckets {
	switch dim {
	case DimensionPair:
		return bucketObserved(trades, func(t models.Trade) string {
			return NormalizeTicker(t.Ticker)
		})
	case DimensionSession:
		return bucketObserved(trades, func(t models.Trade) string {
			return SessionOf(t.EntryTime)
		})
	case DimensionWeekday:
		return bucketWeekdays(trades)
	}
	return Buckets{}
}

func bucketObserved(trades []models.Trade, keyOf func(models.Trade) string) Buckets {
	index := make(map[string]int)
	out := make(Buckets, 0)
	for _, t := range trades {
		key := keyOf(t)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, Bucket{Key: key})
		}
		out[i].PnL = addFinite(out[i].PnL, pnlOf(t))
		out[i].Count++
	}
	return out
}

func bucketWeekdays(trades []models.Trade) Buckets {
	out := make(Buckets, len(models.Weekdays))
	for i, name := range models.Weekdays {
		out[i].Key = name
	}
	for _, t := range trades {
		d, err := parseDate(t.Date)
		if err != nil {
			continue
		}
		i := int(d.Weekday())
		out[i].PnL = addFinite(out[i].PnL, pnlOf(t))
		out[i].Count++
	}
	return out
}
