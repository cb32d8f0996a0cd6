package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"tradestein/internal/analytics"
	apperrors "tradestein/internal/errors"
	"tradestein/internal/logging"
	"tradestein/internal/models"
	"tradestein/internal/security"
	"tradestein/internal/store"
)

func (s *Server) parseTradeFilter(r *http.Request) (store.TradeFilter, error) {
	q := r.URL.Query()
	f := store.TradeFilter{
		From:   strings.TrimSpace(q.Get("from")),
		To:     strings.TrimSpace(q.Get("to")),
		Ticker: analytics.NormalizeTicker(q.Get("ticker")),
	}
	if f.From != "" {
		if err := s.deps.Validator.ValidateDate("from", f.From); err != nil {
			return f, err
		}
	}
	if f.To != "" {
		if err := s.deps.Validator.ValidateDate("to", f.To); err != nil {
			return f, err
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, apperrors.NewValidationError("limit", v, "limit must be a non-negative integer")
		}
		f.Limit = n
	}
	return f, nil
}

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	filter, err := s.parseTradeFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	trades, err := s.deps.Store.ListTrades(r.Context(), mustUser(r), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleGetTrade(w http.ResponseWriter, r *http.Request) {
	trade, err := s.deps.Store.GetTrade(r.Context(), mustUser(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

// readTrade decodes and normalises a trade body for the current user.
func (s *Server) readTrade(w http.ResponseWriter, r *http.Request) (models.Trade, error) {
	var in models.TradeInput
	if err := s.decodeJSON(w, r, &in); err != nil {
		return models.Trade{}, err
	}
	if strings.TrimSpace(in.Date) == "" {
		return models.Trade{}, apperrors.NewValidationError("date", "", "date is required")
	}

	trade := analytics.NormalizeTrade(in, mustUser(r), s.now())
	if err := s.deps.Validator.ValidateTrade(trade); err != nil {
		var ve *apperrors.ValidationError
		if apperrors.As(err, &ve) {
			s.deps.Audit.LogInputValidation(r.Context(), trade.UserID, ve.Field, fmt.Sprint(ve.Value), ve.Message)
		}
		return models.Trade{}, err
	}
	return trade, nil
}

func (s *Server) handleCreateTrade(w http.ResponseWriter, r *http.Request) {
	trade, err := s.readTrade(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Store.CreateTrade(r.Context(), &trade); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.deps.Audit.LogTrade(r.Context(), security.AuditTradeCreated, trade.UserID, trade.ID, trade.Ticker)
	logging.LogTradeEvent(logging.FromContext(r.Context()), "created", trade.UserID, trade.ID, trade.Ticker)
	writeJSON(w, http.StatusCreated, trade)
}

func (s *Server) handleUpdateTrade(w http.ResponseWriter, r *http.Request) {
	trade, err := s.readTrade(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	trade.ID = r.PathValue("id")
	if err := s.deps.Store.UpdateTrade(r.Context(), &trade); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.deps.Audit.LogTrade(r.Context(), security.AuditTradeUpdated, trade.UserID, trade.ID, trade.Ticker)
	logging.LogTradeEvent(logging.FromContext(r.Context()), "updated", trade.UserID, trade.ID, trade.Ticker)
	writeJSON(w, http.StatusOK, trade)
}

func (s *Server) handleDeleteTrade(w http.ResponseWriter, r *http.Request) {
	userID, id := mustUser(r), r.PathValue("id")
	if err := s.deps.Store.DeleteTrade(r.Context(), userID, id); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.deps.Audit.LogTrade(r.Context(), security.AuditTradeDeleted, userID, id, "")
	logging.LogTradeEvent(logging.FromContext(r.Context()), "deleted", userID, id, "")
	w.WriteHeader(http.StatusNoContent)
}
