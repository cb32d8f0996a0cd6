package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	apperrors "tradestein/internal/errors"
	"tradestein/internal/models"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recordingNotifier) Notify(userID string, kind models.EventKind, entityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, models.Event{UserID: userID, Kind: kind, EntityID: entityID})
}

func (r *recordingNotifier) count(kind models.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func rr(v float64) *float64 { return &v }

func TestTradeLifecycle(t *testing.T) {
	store := newTestStore(t)
	notes := &recordingNotifier{}
	store.SetNotifier(notes)
	ctx := context.Background()

	trade := &models.Trade{UserID: "u1", Date: "2024-01-02", Ticker: "ES", PnL: 120, FinalRR: rr(2)}
	if err := store.CreateTrade(ctx, trade); err != nil {
		t.Fatalf("CreateTrade: %v", err)
	}
	if trade.ID == "" || trade.CreatedAt.IsZero() {
		t.Fatal("expected id and timestamps to be assigned")
	}
	created := trade.CreatedAt

	// Full replacement: clearing FinalRR must persist as absent.
	update := &models.Trade{ID: trade.ID, UserID: "u1", Date: "2024-01-03", Ticker: "NQ", PnL: -40}
	if err := store.UpdateTrade(ctx, update); err != nil {
		t.Fatalf("UpdateTrade: %v", err)
	}
	got, err := store.GetTrade(ctx, "u1", trade.ID)
	if err != nil {
		t.Fatalf("GetTrade: %v", err)
	}
	if got.Ticker != "NQ" || got.PnL != -40 || got.FinalRR != nil || got.Date != "2024-01-03" {
		t.Errorf("unexpected updated trade %+v", got)
	}
	if !got.CreatedAt.Equal(created) || !update.CreatedAt.Equal(created) {
		t.Errorf("created_at changed: %v -> %v", created, got.CreatedAt)
	}

	// Another user can neither see, edit nor delete it.
	if _, err := store.GetTrade(ctx, "u2", trade.ID); !errors.Is(err, apperrors.ErrTradeNotFound) {
		t.Errorf("expected not found for other user, got %v", err)
	}
	if err := store.UpdateTrade(ctx, &models.Trade{ID: trade.ID, UserID: "u2", Date: "2024-01-01", Ticker: "X"}); !errors.Is(err, apperrors.ErrTradeNotFound) {
		t.Errorf("expected not found on foreign update, got %v", err)
	}
	if err := store.DeleteTrade(ctx, "u2", trade.ID); !errors.Is(err, apperrors.ErrTradeNotFound) {
		t.Errorf("expected not found on foreign delete, got %v", err)
	}

	if err := store.DeleteTrade(ctx, "u1", trade.ID); err != nil {
		t.Fatalf("DeleteTrade: %v", err)
	}
	if _, err := store.GetTrade(ctx, "u1", trade.ID); !errors.Is(err, apperrors.ErrTradeNotFound) {
		t.Errorf("expected deleted trade to be gone, got %v", err)
	}

	if n := notes.count(models.EventTradesChanged); n != 3 {
		t.Errorf("expected 3 change events, got %d", n)
	}
}

func TestListTradesFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, tr := range []models.Trade{
		{UserID: "u1", Date: "2024-01-01", Ticker: "ES", PnL: 1},
		{UserID: "u1", Date: "2024-01-05", Ticker: "NQ", PnL: 2},
		{UserID: "u1", Date: "2024-01-09", Ticker: "ES", PnL: 3},
	} {
		tr := tr
		if err := store.CreateTrade(ctx, &tr); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.ListTrades(ctx, "u1", TradeFilter{From: "2024-01-02", To: "2024-01-09"})
	if err != nil || len(got) != 2 {
		t.Fatalf("date range: %v %d", err, len(got))
	}
	got, _ = store.ListTrades(ctx, "u1", TradeFilter{Ticker: " es "})
	if len(got) != 2 {
		t.Errorf("ticker filter returned %d", len(got))
	}
	got, _ = store.ListTrades(ctx, "u1", TradeFilter{Limit: 1})
	if len(got) != 1 || got[0].Date != "2024-01-01" {
		t.Errorf("limit returned %+v", got)
	}
	got, _ = store.ListTrades(ctx, "nobody", TradeFilter{})
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestUpsertTrades(t *testing.T) {
	store := newTestStore(t)
	notes := &recordingNotifier{}
	store.SetNotifier(notes)
	ctx := context.Background()

	foreign := &models.Trade{UserID: "u2", Date: "2024-01-01", Ticker: "GC", PnL: 9}
	if err := store.CreateTrade(ctx, foreign); err != nil {
		t.Fatal(err)
	}

	n, err := store.UpsertTrades(ctx, "u1", []models.Trade{
		{ID: "a", Date: "2024-01-01", Ticker: "ES", PnL: 1},
		{Date: "2024-01-02", Ticker: "NQ", PnL: 2},
		{ID: foreign.ID, UserID: "u1", Date: "2024-01-03", Ticker: "CL", PnL: 3},
	})
	if err != nil {
		t.Fatalf("UpsertTrades: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 written rows, got %d", n)
	}

	n, err = store.UpsertTrades(ctx, "u1", []models.Trade{{ID: "a", Date: "2024-01-01", Ticker: "ES", PnL: 50}})
	if err != nil || n != 1 {
		t.Fatalf("re-upsert: %v %d", err, n)
	}
	a, err := store.GetTrade(ctx, "u1", "a")
	if err != nil || a.PnL != 50 {
		t.Errorf("expected replaced pnl 50, got %+v %v", a, err)
	}

	still, err := store.GetTrade(ctx, "u2", foreign.ID)
	if err != nil || still.Ticker != "GC" {
		t.Errorf("foreign trade must be untouched, got %+v %v", still, err)
	}

	// One event for the create plus one per import batch.
	if got := notes.count(models.EventTradesChanged); got != 3 {
		t.Errorf("expected 3 events, got %d", got)
	}
}

func TestGoals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	late := &models.Goal{UserID: "u1", Title: "Journal every day", Deadline: "2024-12-31", Progress: 20}
	soon := &models.Goal{UserID: "u1", Title: "Cut revenge trades", Deadline: "2024-02-01", Progress: 150}
	open := &models.Goal{UserID: "u1", Title: "Read a book"}
	for _, g := range []*models.Goal{late, soon, open} {
		if err := store.CreateGoal(ctx, g); err != nil {
			t.Fatal(err)
		}
	}
	if soon.Progress != 100 || !soon.Completed {
		t.Errorf("expected clamped completed goal, got %+v", soon)
	}

	byDeadline, _ := store.ListGoals(ctx, "u1", models.GoalSortDeadline)
	if len(byDeadline) != 3 || byDeadline[0].ID != soon.ID || byDeadline[2].ID != open.ID {
		t.Errorf("unexpected deadline order %+v", byDeadline)
	}
	byProgress, _ := store.ListGoals(ctx, "u1", models.GoalSortProgress)
	if byProgress[0].ID != soon.ID || byProgress[2].ID != open.ID {
		t.Errorf("unexpected progress order %+v", byProgress)
	}

	g, err := store.UpdateGoalProgress(ctx, "u1", late.ID, 100)
	if err != nil || !g.Completed {
		t.Errorf("expected completed at 100, got %+v %v", g, err)
	}
	g, _ = store.UpdateGoalProgress(ctx, "u1", late.ID, 99)
	if g.Completed {
		t.Error("expected goal to reopen below 100")
	}

	if _, err := store.UpdateGoalProgress(ctx, "u2", late.ID, 10); !errors.Is(err, apperrors.ErrGoalNotFound) {
		t.Errorf("expected not found for other user, got %v", err)
	}
	if err := store.DeleteGoal(ctx, "u1", open.ID); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteGoal(ctx, "u1", open.ID); !errors.Is(err, apperrors.ErrGoalNotFound) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}

func TestNotes(t *testing.T) {
	store := newTestStore(t)
	events := &recordingNotifier{}
	store.SetNotifier(events)
	ctx := context.Background()

	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	first := &models.Note{UserID: "u1", Title: "Opening drive", Content: "Waited for the pullback."}
	second := &models.Note{UserID: "u1", Content: "Chased the breakout."}
	other := &models.Note{UserID: "u2", Title: "Not mine"}
	for _, n := range []*models.Note{first, second, other} {
		if err := store.CreateNote(ctx, n); err != nil {
			t.Fatal(err)
		}
	}
	if !first.CreatedAt.Equal(first.UpdatedAt) {
		t.Errorf("new note should have equal timestamps, got %+v", first)
	}

	notes, err := store.ListNotes(ctx, "u1")
	if err != nil || len(notes) != 2 || notes[0].ID != second.ID {
		t.Fatalf("expected newest first, got %+v %v", notes, err)
	}
	if notes[0].DisplayTitle() != "Untitled" {
		t.Errorf("expected placeholder title, got %q", notes[0].DisplayTitle())
	}

	edited, err := store.UpdateNote(ctx, "u1", first.ID, "Opening drive", "Waited for the pullback, sized down.")
	if err != nil {
		t.Fatal(err)
	}
	if !edited.UpdatedAt.After(edited.CreatedAt) {
		t.Errorf("edit should bump updated_at, got %+v", edited)
	}
	notes, _ = store.ListNotes(ctx, "u1")
	if notes[0].ID != first.ID {
		t.Errorf("edited note should move to the top, got %+v", notes)
	}

	if _, err := store.GetNote(ctx, "u1", other.ID); !errors.Is(err, apperrors.ErrNoteNotFound) {
		t.Errorf("expected not found across users, got %v", err)
	}
	if _, err := store.UpdateNote(ctx, "u2", first.ID, "x", "y"); !errors.Is(err, apperrors.ErrNoteNotFound) {
		t.Errorf("expected not found for other user, got %v", err)
	}
	if err := store.DeleteNote(ctx, "u1", second.ID); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteNote(ctx, "u1", second.ID); !errors.Is(err, apperrors.ErrNoteNotFound) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
	if got := events.count(models.EventNotesChanged); got != 5 {
		t.Errorf("expected 5 note events, got %d", got)
	}
}

func TestUpdateProfile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := &models.Profile{Email: "trader@example.com", Username: "trader"}
	if err := store.CreateProfile(ctx, p); err != nil {
		t.Fatal(err)
	}

	bio := "  Futures scalper  "
	avatar := "https://example.com/me.png"
	got, err := store.UpdateProfile(ctx, p.ID, models.ProfileUpdate{Bio: &bio, AvatarURL: &avatar})
	if err != nil {
		t.Fatal(err)
	}
	if got.Username != "trader" || got.Bio != "Futures scalper" || got.AvatarURL != avatar {
		t.Errorf("unexpected profile %+v", got)
	}

	empty := ""
	got, _ = store.UpdateProfile(ctx, p.ID, models.ProfileUpdate{Bio: &empty})
	if got.Bio != "" || got.AvatarURL != avatar {
		t.Errorf("expected bio cleared and avatar kept, got %+v", got)
	}

	if _, err := store.UpdateProfile(ctx, "missing", models.ProfileUpdate{Bio: &bio}); !errors.Is(err, apperrors.ErrProfileNotFound) {
		t.Errorf("expected profile not found, got %v", err)
	}
}

func TestSchemaAddsProfileColumnsToOldDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.Exec(`CREATE TABLE profiles (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		username TEXT,
		subscription_status TEXT NOT NULL DEFAULT 'inactive',
		subscription_id TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`)
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.Exec("INSERT INTO profiles (id, email, created_at, updated_at) VALUES ('p1', 'old@example.com', ?, ?)",
		time.Now().UTC(), time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopening old database: %v", err)
	}
	defer store.Close()

	bio := "migrated"
	got, err := store.UpdateProfile(context.Background(), "p1", models.ProfileUpdate{Bio: &bio})
	if err != nil || got.Bio != "migrated" || got.Email != "old@example.com" {
		t.Errorf("unexpected profile after migration %+v %v", got, err)
	}
}

func TestProfilesAndSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := &models.Profile{Email: "Trader@Example.com", Username: "trader"}
	if err := store.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if p.SubscriptionStatus != models.SubscriptionInactive {
		t.Errorf("new profiles start inactive, got %s", p.SubscriptionStatus)
	}
	if err := store.CreateProfile(ctx, &models.Profile{Email: "trader@example.com"}); !errors.Is(err, apperrors.ErrEmailTaken) {
		t.Errorf("expected duplicate email error, got %v", err)
	}

	byEmail, err := store.GetProfileByEmail(ctx, " TRADER@example.com")
	if err != nil || byEmail.ID != p.ID {
		t.Fatalf("GetProfileByEmail: %+v %v", byEmail, err)
	}

	if err := store.SetSubscription(ctx, p.ID, models.SubscriptionActive, "sub_123"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetSubscription(ctx, p.ID, "trialing", ""); !errors.Is(err, apperrors.ErrInputValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if err := store.SetSubscription(ctx, "missing", models.SubscriptionActive, ""); !errors.Is(err, apperrors.ErrProfileNotFound) {
		t.Errorf("expected profile not found, got %v", err)
	}
	got, _ := store.GetProfile(ctx, p.ID)
	if !got.IsActive() || got.SubscriptionID != "sub_123" {
		t.Errorf("unexpected profile %+v", got)
	}
	active, _ := store.ListProfiles(ctx, models.SubscriptionActive)
	if len(active) != 1 {
		t.Errorf("expected one active profile, got %d", len(active))
	}

	now := time.Now().UTC()
	if err := store.CreateSession(ctx, models.Session{TokenHash: "live", UserID: p.ID, ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateSession(ctx, models.Session{TokenHash: "stale", UserID: p.ID, ExpiresAt: now.Add(-time.Hour)}); err != nil {
		t.Fatal(err)
	}

	sess, err := store.GetSession(ctx, "live")
	if err != nil || sess.UserID != p.ID || sess.Expired(now) {
		t.Errorf("unexpected session %+v %v", sess, err)
	}
	if _, err := store.GetSession(ctx, "unknown"); !errors.Is(err, apperrors.ErrNotAuthenticated) {
		t.Errorf("expected not authenticated, got %v", err)
	}

	purged, err := store.PurgeExpiredSessions(ctx, now)
	if err != nil || purged != 1 {
		t.Errorf("expected 1 purged, got %d %v", purged, err)
	}
	if err := store.DeleteSession(ctx, "live"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetSession(ctx, "live"); !errors.Is(err, apperrors.ErrNotAuthenticated) {
		t.Errorf("expected revoked session, got %v", err)
	}
}
