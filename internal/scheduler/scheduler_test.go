package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradestein/internal/models"
	"tradestein/internal/store"
)

type fakePurger struct {
	n     int64
	err   error
	calls int
}

func (f *fakePurger) PurgeExpired(context.Context) (int64, error) {
	f.calls++
	return f.n, f.err
}

type recordingSink struct {
	digests []Digest
	err     error
}

func (r *recordingSink) SendDigest(_ context.Context, d Digest) error {
	r.digests = append(r.digests, d)
	return r.err
}

type countingPruner struct{ calls int }

func (c *countingPruner) PruneLimiters() int {
	c.calls++
	return 1
}

func TestRegisterAll(t *testing.T) {
	s := New(context.Background(), &fakePurger{}, nil, nil, zerolog.Nop())
	require.NoError(t, s.RegisterAll(DefaultSchedules()))
	assert.Len(t, s.cron.Entries(), 3)

	s = New(context.Background(), &fakePurger{}, nil, nil, zerolog.Nop())
	err := s.RegisterAll(Schedules{PurgeSessions: "not a spec"})
	assert.ErrorContains(t, err, "purge sessions")

	s = New(context.Background(), &fakePurger{}, nil, nil, zerolog.Nop())
	require.NoError(t, s.RegisterAll(Schedules{Digest: "0 0 22 * * *"}))
	assert.Len(t, s.cron.Entries(), 1)
}

func TestRunPurgeNow(t *testing.T) {
	p := &fakePurger{n: 3}
	s := New(context.Background(), p, nil, nil, zerolog.Nop())

	n, err := s.RunPurgeNow()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	p.err = errors.New("database is locked")
	_, err = s.RunPurgeNow()
	assert.Error(t, err)
	assert.Equal(t, 2, p.calls)
}

func TestRunDigestNow(t *testing.T) {
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()

	active := &models.Profile{Email: "pro@example.com"}
	idle := &models.Profile{Email: "free@example.com"}
	require.NoError(t, st.CreateProfile(ctx, active))
	require.NoError(t, st.CreateProfile(ctx, idle))
	require.NoError(t, st.SetSubscription(ctx, active.ID, models.SubscriptionActive, ""))

	for _, tr := range []models.Trade{
		{UserID: active.ID, Date: "2024-03-04", Ticker: "AAPL", PnL: 40},
		{UserID: active.ID, Date: "2024-03-05", Ticker: "AAPL", PnL: 10},
		{UserID: active.ID, Date: "2024-03-05", Ticker: "MSFT", PnL: -30},
		{UserID: idle.ID, Date: "2024-03-05", Ticker: "SPY", PnL: 99},
	} {
		tr := tr
		require.NoError(t, st.CreateTrade(ctx, &tr))
	}

	s := New(ctx, &fakePurger{}, st, nil, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2024, 3, 5, 22, 0, 0, 0, time.UTC) }
	sink := &recordingSink{err: errors.New("webhook down")}
	s.SetDigestSink(sink)

	digests, err := s.RunDigestNow()
	require.NoError(t, err)
	require.Len(t, digests, 1)

	d := digests[0]
	assert.Equal(t, active.ID, d.UserID)
	assert.Equal(t, "2024-03-05", d.Date)
	assert.Equal(t, 2, d.Trades)
	assert.InDelta(t, -20, d.PnL, 1e-9)
	assert.InDelta(t, 50, d.WinRate, 1e-9)
	assert.Equal(t, 2, d.ActiveStreak)

	// Delivery failures are logged, not returned.
	assert.Equal(t, digests, sink.digests)
}

// brokenJournal fails to read one user's trades.
type brokenJournal struct {
	JournalReader
	failFor string
}

func (b brokenJournal) ListTrades(ctx context.Context, userID string, filter store.TradeFilter) ([]models.Trade, error) {
	if userID == b.failFor {
		return nil, errors.New("disk I/O error")
	}
	return b.JournalReader.ListTrades(ctx, userID, filter)
}

func TestRunDigestNowSkipsUnreadableJournal(t *testing.T) {
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()

	var ids []string
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		p := &models.Profile{Email: email}
		require.NoError(t, st.CreateProfile(ctx, p))
		require.NoError(t, st.SetSubscription(ctx, p.ID, models.SubscriptionActive, ""))
		tr := models.Trade{UserID: p.ID, Date: "2024-03-05", Ticker: "ES", PnL: 25}
		require.NoError(t, st.CreateTrade(ctx, &tr))
		ids = append(ids, p.ID)
	}

	s := New(ctx, &fakePurger{}, brokenJournal{JournalReader: st, failFor: ids[1]}, nil, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2024, 3, 5, 22, 0, 0, 0, time.UTC) }
	sink := &recordingSink{}
	s.SetDigestSink(sink)

	digests, err := s.RunDigestNow()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "skipped 1 of 3 users")
	assert.Contains(t, err.Error(), "disk I/O error")

	require.Len(t, digests, 2)
	var got []string
	for _, d := range digests {
		got = append(got, d.UserID)
		assert.Equal(t, 1, d.Trades)
	}
	assert.ElementsMatch(t, []string{ids[0], ids[2]}, got)
	assert.Len(t, sink.digests, 2)
}

func TestPruneLimiters(t *testing.T) {
	s := New(context.Background(), &fakePurger{}, nil, nil, zerolog.Nop())
	s.pruneLimiters() // nil pruner is a no-op

	c := &countingPruner{}
	s = New(context.Background(), &fakePurger{}, nil, c, zerolog.Nop())
	s.pruneLimiters()
	assert.Equal(t, 1, c.calls)
}

func TestStartStop(t *testing.T) {
	s := New(context.Background(), &fakePurger{}, nil, nil, zerolog.Nop())
	require.NoError(t, s.RegisterAll(DefaultSchedules()))
	s.Start()
	s.Stop()
}
