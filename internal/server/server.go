// Package server exposes the journal over a JSON HTTP API with a websocket
// change feed.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"tradestein/internal/auth"
	"tradestein/internal/backup"
	"tradestein/internal/insights"
	"tradestein/internal/resilience"
	"tradestein/internal/security"
	"tradestein/internal/store"
	"tradestein/internal/stream"
	"tradestein/internal/throttle"
)

// Defaults for Options.
const (
	DefaultAIRate       = 0.2 // requests per second per user
	DefaultAIBurst      = 5
	DefaultMaxBodyBytes = 1 << 20
)

// Deps are the collaborators a Server routes requests to.
type Deps struct {
	Store     store.DataStore
	Auth      *auth.Service
	Hub       *stream.Hub
	Relay     *insights.Relay
	Backup    *backup.Service
	Health    *resilience.HealthChecker
	Audit     *security.AuditLogger
	Validator *security.InputValidator
	Logger    zerolog.Logger
}

// Options tunes a Server.
type Options struct {
	AIRate       float64
	AIBurst      int
	MaxBodyBytes int64
}

// Server wires the HTTP layer to the journal services.
type Server struct {
	deps      Deps
	opts      Options
	aiLimiter *throttle.KeyedLimiter
	logger    zerolog.Logger
	safe      *security.SafeLogger
	now       func() time.Time
}

// New builds a Server.
func New(deps Deps, opts Options) *Server {
	if opts.AIRate <= 0 {
		opts.AIRate = DefaultAIRate
	}
	if opts.AIBurst <= 0 {
		opts.AIBurst = DefaultAIBurst
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if deps.Validator == nil {
		deps.Validator = security.NewInputValidator(false)
	}
	if deps.Health == nil {
		deps.Health = resilience.NewHealthChecker()
	}

	logger := deps.Logger.With().Str("component", "server").Logger()
	return &Server{
		deps:      deps,
		opts:      opts,
		aiLimiter: throttle.NewKeyedLimiter(opts.AIRate, opts.AIBurst),
		logger:    logger,
		safe:      security.NewSafeLogger(logger),
		now:       time.Now,
	}
}

// Handler exposes the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)

	mux.Handle("GET /api/trades", s.authed(s.handleListTrades))
	mux.Handle("POST /api/trades", s.authed(s.handleCreateTrade))
	mux.Handle("GET /api/trades/stream", s.authed(s.handleStream))
	mux.Handle("GET /api/trades/{id}", s.authed(s.handleGetTrade))
	mux.Handle("PUT /api/trades/{id}", s.authed(s.handleUpdateTrade))
	mux.Handle("DELETE /api/trades/{id}", s.authed(s.handleDeleteTrade))

	mux.Handle("GET /api/analytics/summary", s.gated(s.handleSummary))
	mux.Handle("GET /api/analytics/buckets/{dimension}", s.gated(s.handleBuckets))
	mux.Handle("GET /api/analytics/equity", s.gated(s.handleEquity))
	mux.Handle("GET /api/analytics/streak", s.gated(s.handleStreak))
	mux.Handle("GET /api/analytics/calendar", s.gated(s.handleCalendar))

	mux.Handle("GET /api/goals", s.authed(s.handleListGoals))
	mux.Handle("POST /api/goals", s.authed(s.handleCreateGoal))
	mux.Handle("PATCH /api/goals/{id}", s.authed(s.handleGoalProgress))
	mux.Handle("DELETE /api/goals/{id}", s.authed(s.handleDeleteGoal))

	mux.Handle("GET /api/notes", s.authed(s.handleListNotes))
	mux.Handle("POST /api/notes", s.authed(s.handleCreateNote))
	mux.Handle("PUT /api/notes/{id}", s.authed(s.handleUpdateNote))
	mux.Handle("DELETE /api/notes/{id}", s.authed(s.handleDeleteNote))

	mux.Handle("GET /api/subscription", s.authed(s.handleSubscription))
	mux.Handle("PATCH /api/profile", s.authed(s.handleUpdateProfile))
	mux.Handle("POST /api/auth/logout", s.authed(s.handleLogout))

	mux.Handle("GET /api/backup/export", s.gated(s.handleExport))
	mux.Handle("POST /api/backup/import", s.gated(s.handleImport))

	mux.Handle("POST /api/ai-insights", s.ai(s.handleInsights))
	mux.Handle("POST /api/ai-chat", s.ai(s.handleChat))

	return s.recoverer(s.requestLogger(cors(mux)))
}

// PruneLimiters drops idle per-user rate limit buckets.
func (s *Server) PruneLimiters() int {
	return s.aiLimiter.Prune()
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// No WriteTimeout: the stream sets its own write deadlines.
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Tradestein API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	health := s.deps.Health.Check(r.Context())
	status := http.StatusOK
	if health.Status == resilience.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}
