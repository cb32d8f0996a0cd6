package server

import (
	"net/http"

	"tradestein/internal/analytics"
	apperrors "tradestein/internal/errors"
	"tradestein/internal/models"
	"tradestein/internal/store"
)

type summaryResponse struct {
	Summary    analytics.Summary    `json:"summary"`
	Highlights analytics.Highlights `json:"highlights"`
	Today      todayTile            `json:"today"`
	Tickers    []string             `json:"tickers"`
}

type todayTile struct {
	Date  string  `json:"date"`
	PnL   float64 `json:"pnl"`
	Count int     `json:"count"`
}

type streakResponse struct {
	analytics.Streak
	Active int `json:"active"`
}

// journalSnapshot loads the user's trades and applies the pair, session and
// weekday query filters.
func (s *Server) journalSnapshot(r *http.Request) ([]models.Trade, []models.Trade, error) {
	all, err := s.deps.Store.ListTrades(r.Context(), mustUser(r), store.TradeFilter{})
	if err != nil {
		return nil, nil, err
	}
	q := r.URL.Query()
	filtered := analytics.Filter(all, analytics.TradeFilter{
		Pair:    q.Get("pair"),
		Session: q.Get("session"),
		Weekday: q.Get("weekday"),
	})
	return all, filtered, nil
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	all, trades, err := s.journalSnapshot(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	today := analytics.Today(s.now())
	pnl, count := analytics.DailyPnL(all, today)
	writeJSON(w, http.StatusOK, summaryResponse{
		Summary:    analytics.Summarize(trades),
		Highlights: analytics.Highlight(trades),
		Today:      todayTile{Date: today, PnL: pnl, Count: count},
		Tickers:    analytics.Tickers(all),
	})
}

func (s *Server) handleBuckets(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("dimension")
	dim, ok := analytics.ParseDimension(raw)
	if !ok {
		s.writeError(w, r, apperrors.NewValidationError("dimension", raw, "must be pair, session or weekday"))
		return
	}
	_, trades, err := s.journalSnapshot(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dimension": dim,
		"buckets":   analytics.BucketBy(trades, dim),
	})
}

func (s *Server) handleEquity(w http.ResponseWriter, r *http.Request) {
	_, trades, err := s.journalSnapshot(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	collapse := r.URL.Query().Get("collapse") == "day"
	writeJSON(w, http.StatusOK, analytics.EquityCurve(trades, collapse))
}

func (s *Server) handleStreak(w http.ResponseWriter, r *http.Request) {
	all, _, err := s.journalSnapshot(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dates := analytics.DistinctDates(all)
	writeJSON(w, http.StatusOK, streakResponse{
		Streak: analytics.CurrentAndMaxStreak(dates),
		Active: analytics.ActiveStreak(dates, analytics.Today(s.now())),
	})
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	year, month := now.Year(), now.Month()
	if v := r.URL.Query().Get("month"); v != "" {
		var err error
		if year, month, err = analytics.ParseMonth(v); err != nil {
			s.writeError(w, r, apperrors.NewValidationError("month", v, err.Error()))
			return
		}
	}

	all, _, err := s.journalSnapshot(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics.Calendar(all, year, month))
}
