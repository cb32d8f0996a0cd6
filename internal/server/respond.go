package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "tradestein/internal/errors"
	"tradestein/internal/resilience"
)

type errorBody struct {
	Error string `json:"error"`
}

// writeJSON encodes v before committing the status so that an encoding
// failure is reported as a 500 instead of an empty success.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if v == nil {
		w.WriteHeader(status)
		return
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"internal error"}`+"\n")
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// statusFor maps a domain error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInputValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotAuthenticated), errors.Is(err, apperrors.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrSubscriptionInactive):
		return http.StatusPaymentRequired
	case errors.Is(err, apperrors.ErrTradeNotFound),
		errors.Is(err, apperrors.ErrGoalNotFound),
		errors.Is(err, apperrors.ErrNoteNotFound),
		errors.Is(err, apperrors.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, resilience.ErrTooManyConcurrent),
		errors.Is(err, apperrors.ErrInsightsUnavailable),
		errors.Is(err, apperrors.ErrTimeout):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError writes {"error": ...}. Internal failures are logged and
// reported with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()

	var insightErr *apperrors.InsightError
	switch {
	case status == http.StatusInternalServerError && errors.As(err, &insightErr):
		status = http.StatusBadGateway
		msg = "AI request failed"
	case status == http.StatusInternalServerError:
		msg = "internal error"
	}
	if status >= http.StatusInternalServerError {
		s.safe.Error().
			Str("request_id", requestID(r)).
			Str("path", r.URL.Path).
			Err(err).
			Msg("Request failed")
	}

	writeJSON(w, status, errorBody{Error: msg})
}

// decodeJSON reads a size-limited JSON body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewValidationError("body", "", "request body is required")
		}
		return apperrors.NewValidationError("body", "", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}
