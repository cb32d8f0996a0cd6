package analytics

import "tradestein/internal/models"

// Summary holds the headline statistics of a set of trades.
//
// AvgRR divides by TradeCount: a trade without an effective R:R contributes
// zero to the mean. RatedCount reports how many trades carried one.
// BestTicker is nil when there are no trades.
type Summary struct {
	TotalPnL      float64 `json:"totalPnl"`
	TradeCount    int     `json:"tradeCount"`
	WinCount      int     `json:"winCount"`
	LossCount     int     `json:"lossCount"`
	WinRate       float64 `json:"winRate"`
	AvgPnL        float64 `json:"avgPnl"`
	AvgRR         float64 `json:"avgRR"`
	RatedCount    int     `json:"ratedCount"`
	BestTicker    *string `json:"bestTicker"`
	BestTickerPnL float64 `json:"bestTickerPnl"`
}

// Summarize computes totals, win/loss counts and averages over trades.
func Summarize(trades []models.Trade) Summary {
	var s Summary
	var rrSum float64

	for _, t := range trades {
		pnl := pnlOf(t)
		s.TotalPnL = addFinite(s.TotalPnL, pnl)
		switch {
		case pnl > 0:
			s.WinCount++
		case pnl < 0:
			s.LossCount++
		}
		if rr, ok := rrOf(t); ok {
			rrSum = addFinite(rrSum, rr)
			s.RatedCount++
		}
	}

	s.TradeCount = len(trades)
	if s.TradeCount == 0 {
		return s
	}

	n := float64(s.TradeCount)
	s.WinRate = float64(s.WinCount) / n * 100
	s.AvgPnL = s.TotalPnL / n
	s.AvgRR = rrSum / n

	if best, ok := BucketBy(trades, DimensionPair).Max(); ok {
		key := best.Key
		s.BestTicker = &key
		s.BestTickerPnL = best.PnL
	}

	return s
}
