// Package scheduler runs the server's housekeeping jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"tradestein/internal/analytics"
	"tradestein/internal/logging"
	"tradestein/internal/models"
	"tradestein/internal/store"
)

// Schedules are six-field cron specs (seconds first).
type Schedules struct {
	PurgeSessions string
	Digest        string
	PruneLimiters string
}

// DefaultSchedules purges hourly, prunes rate limiters every ten minutes
// and writes the digest at 22:00.
func DefaultSchedules() Schedules {
	return Schedules{
		PurgeSessions: "0 0 * * * *",
		Digest:        "0 0 22 * * *",
		PruneLimiters: "0 */10 * * * *",
	}
}

// SessionPurger removes expired sessions.
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// JournalReader is the slice of the store the digest needs.
type JournalReader interface {
	ListProfiles(ctx context.Context, status models.SubscriptionStatus) ([]models.Profile, error)
	ListTrades(ctx context.Context, userID string, filter store.TradeFilter) ([]models.Trade, error)
}

// LimiterPruner drops idle rate limit state.
type LimiterPruner interface {
	PruneLimiters() int
}

// DigestSink delivers digests to the user, e.g. over a webhook.
type DigestSink interface {
	SendDigest(ctx context.Context, d Digest) error
}

// Digest is one user's end-of-day journal summary.
type Digest struct {
	UserID       string
	Date         string
	Trades       int
	PnL          float64
	WinRate      float64
	ActiveStreak int
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	cron     *cron.Cron
	sessions SessionPurger
	journal  JournalReader
	limiters LimiterPruner
	sink     DigestSink
	logger   zerolog.Logger
	ctx      context.Context
	now      func() time.Time
}

// New creates a Scheduler. limiters may be nil.
func New(ctx context.Context, sessions SessionPurger, journal JournalReader, limiters LimiterPruner, logger zerolog.Logger) *Scheduler {
	logger = logger.With().Str("component", "scheduler").Logger()
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		sessions: sessions,
		journal:  journal,
		limiters: limiters,
		logger:   logger,
		ctx:      ctx,
		now:      time.Now,
	}
}

// RegisterAll registers the housekeeping jobs. Empty specs are skipped.
func (s *Scheduler) RegisterAll(sched Schedules) error {
	jobs := []struct {
		name string
		spec string
		fn   func()
	}{
		{"purge sessions", sched.PurgeSessions, func() { _, _ = s.RunPurgeNow() }},
		{"digest", sched.Digest, func() { _, _ = s.RunDigestNow() }},
		{"prune limiters", sched.PruneLimiters, s.pruneLimiters},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(j.spec, j.fn); err != nil {
			return fmt.Errorf("register %s task: %w", j.name, err)
		}
	}
	return nil
}

// SetDigestSink routes each digest to sink in addition to the log.
func (s *Scheduler) SetDigestSink(sink DigestSink) {
	s.sink = sink
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// RunPurgeNow deletes expired sessions immediately.
func (s *Scheduler) RunPurgeNow() (int64, error) {
	start := time.Now()
	n, err := s.sessions.PurgeExpired(s.ctx)
	logging.LogJob(s.logger.With().Int64("purged", n).Logger(), "purge_sessions", time.Since(start), err)
	return n, err
}

// RunDigestNow summarises today's trading for every active user and logs
// one line per user. A user whose journal cannot be read is skipped; the
// returned error then names how many were skipped.
func (s *Scheduler) RunDigestNow() ([]Digest, error) {
	start := time.Now()
	digests, err := s.digest()
	logging.LogJob(s.logger.With().Int("users", len(digests)).Logger(), "digest", time.Since(start), err)
	return digests, err
}

func (s *Scheduler) digest() ([]Digest, error) {
	profiles, err := s.journal.ListProfiles(s.ctx, models.SubscriptionActive)
	if err != nil {
		return nil, err
	}

	today := analytics.Today(s.now())
	digests := make([]Digest, 0, len(profiles))
	var failed []error
	for _, p := range profiles {
		trades, err := s.journal.ListTrades(s.ctx, p.ID, store.TradeFilter{})
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", p.ID).Msg("Digest skipped")
			failed = append(failed, fmt.Errorf("user %s: %w", p.ID, err))
			continue
		}

		d := Digest{
			UserID:       p.ID,
			Date:         today,
			ActiveStreak: analytics.ActiveStreak(analytics.DistinctDates(trades), today),
		}
		todays := tradesOn(trades, today)
		summary := analytics.Summarize(todays)
		d.Trades = summary.TradeCount
		d.PnL = summary.TotalPnL
		d.WinRate = summary.WinRate
		digests = append(digests, d)

		s.logger.Info().
			Str("user_id", d.UserID).
			Str("date", d.Date).
			Int("trades", d.Trades).
			Float64("pnl", d.PnL).
			Float64("win_rate", d.WinRate).
			Int("active_streak", d.ActiveStreak).
			Msg("Journal digest")

		if s.sink != nil {
			if err := s.sink.SendDigest(s.ctx, d); err != nil {
				s.logger.Warn().Err(err).Str("user_id", d.UserID).Msg("Digest delivery failed")
			}
		}
	}
	if len(failed) > 0 {
		return digests, fmt.Errorf("digest skipped %d of %d users: %w", len(failed), len(profiles), errors.Join(failed...))
	}
	return digests, nil
}

func (s *Scheduler) pruneLimiters() {
	if s.limiters == nil {
		return
	}
	if n := s.limiters.PruneLimiters(); n > 0 {
		s.logger.Debug().Int("pruned", n).Msg("Rate limiters pruned")
	}
}

func tradesOn(trades []models.Trade, date string) []models.Trade {
	var out []models.Trade
	for _, t := range trades {
		if t.Date == date {
			out = append(out, t)
		}
	}
	return out
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
