package server

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"tradestein/internal/auth"
	apperrors "tradestein/internal/errors"
	"tradestein/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response does not support hijacking")
	}
	if r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func requestID(r *http.Request) string {
	return logging.RequestIDFrom(r.Context())
}

// requestLogger tags each request with an id and a request-scoped logger,
// then logs the outcome. Query strings are masked since they may carry a
// stream token.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		ctx := logging.WithRequestID(r.Context(), id)
		ctx = logging.WithLogger(ctx, s.logger.With().Str("request_id", id).Logger())

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}

		event := s.safe.Info()
		switch {
		case status >= 500:
			event = s.safe.Error()
		case status >= 400:
			event = s.safe.Warn()
		}
		event.
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("query", r.URL.RawQuery).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("Handler panicked")
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// cors allows any origin without credentials.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		if origin := r.Header.Get("Origin"); origin != "" {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+requestIDHeader)
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the session token from the Authorization header or,
// for browser websockets that cannot set headers, the token query parameter.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// authed requires a valid session and stores the user id in the context.
func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeError(w, r, apperrors.ErrNotAuthenticated)
			return
		}
		userID, err := s.deps.Auth.Authenticate(r.Context(), token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ctx := auth.WithUserID(r.Context(), userID)
		ctx = logging.WithLogger(ctx, logging.WithUser(logging.FromContext(ctx), userID))
		h(w, r.WithContext(ctx))
	})
}

// gated additionally requires an active subscription.
func (s *Server) gated(h http.HandlerFunc) http.Handler {
	return s.authed(func(w http.ResponseWriter, r *http.Request) {
		if err := s.deps.Auth.RequireActive(r.Context(), mustUser(r)); err != nil {
			s.writeError(w, r, err)
			return
		}
		h(w, r)
	})
}

// ai gates and rate limits the model endpoints per user.
func (s *Server) ai(h http.HandlerFunc) http.Handler {
	return s.gated(func(w http.ResponseWriter, r *http.Request) {
		if !s.aiLimiter.Allow(mustUser(r)) {
			w.Header().Set("Retry-After", "5")
			s.writeError(w, r, apperrors.ErrRateLimited)
			return
		}
		h(w, r)
	})
}

// mustUser returns the authenticated user; only valid behind authed.
func mustUser(r *http.Request) string {
	id, _ := auth.UserIDFrom(r.Context())
	return id
}
