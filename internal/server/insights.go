package server

import (
	"net/http"

	"tradestein/internal/insights"
	"tradestein/internal/store"
)

type insightsRequest struct {
	Ask string `json:"ask"`
}

type chatRequest struct {
	Messages []insights.Message `json:"messages"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	var req insightsRequest
	if r.ContentLength != 0 {
		if err := s.decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	userID := mustUser(r)
	trades, err := s.deps.Store.ListTrades(r.Context(), userID, store.TradeFilter{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	report, err := s.deps.Relay.Insights(r.Context(), trades, req.Ask)
	s.deps.Audit.LogInsightRequest(r.Context(), userID, "insights", min(len(trades), s.deps.Relay.Window()), err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	userID := mustUser(r)
	trades, err := s.deps.Store.ListTrades(r.Context(), userID, store.TradeFilter{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	reply, err := s.deps.Relay.Chat(r.Context(), trades, req.Messages)
	s.deps.Audit.LogInsightRequest(r.Context(), userID, "chat", len(trades), err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}
