// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"tradestein/internal/models"
)

// TradeStore persists journal trades. Every method is scoped to the owning
// user; a trade that exists under another owner is reported as not found.
type TradeStore interface {
	ListTrades(ctx context.Context, userID string, filter TradeFilter) ([]models.Trade, error)
	GetTrade(ctx context.Context, userID, id string) (*models.Trade, error)
	CreateTrade(ctx context.Context, trade *models.Trade) error
	UpdateTrade(ctx context.Context, trade *models.Trade) error
	DeleteTrade(ctx context.Context, userID, id string) error
	UpsertTrades(ctx context.Context, userID string, trades []models.Trade) (int, error)
}

// GoalStore persists personal goals.
type GoalStore interface {
	ListGoals(ctx context.Context, userID string, sort models.GoalSort) ([]models.Goal, error)
	CreateGoal(ctx context.Context, goal *models.Goal) error
	UpdateGoalProgress(ctx context.Context, userID, id string, progress int) (*models.Goal, error)
	DeleteGoal(ctx context.Context, userID, id string) error
}

// NoteStore persists free-form replay notes, most recently edited first.
type NoteStore interface {
	ListNotes(ctx context.Context, userID string) ([]models.Note, error)
	GetNote(ctx context.Context, userID, id string) (*models.Note, error)
	CreateNote(ctx context.Context, note *models.Note) error
	UpdateNote(ctx context.Context, userID, id, title, content string) (*models.Note, error)
	DeleteNote(ctx context.Context, userID, id string) error
}

// ProfileStore persists profiles and issued sessions.
type ProfileStore interface {
	CreateProfile(ctx context.Context, profile *models.Profile) error
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	ListProfiles(ctx context.Context, status models.SubscriptionStatus) ([]models.Profile, error)
	UpdateProfile(ctx context.Context, userID string, u models.ProfileUpdate) (*models.Profile, error)
	SetSubscription(ctx context.Context, userID string, status models.SubscriptionStatus, subscriptionID string) error

	CreateSession(ctx context.Context, session models.Session) error
	GetSession(ctx context.Context, tokenHash string) (*models.Session, error)
	DeleteSession(ctx context.Context, tokenHash string) error
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// DataStore is the full persistence surface used by the application.
type DataStore interface {
	TradeStore
	GoalStore
	NoteStore
	ProfileStore

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// Notifier receives a change notification after every committed mutation.
type Notifier interface {
	Notify(userID string, kind models.EventKind, entityID string)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, models.EventKind, string) {}

// TradeFilter represents filters for querying trades. Dates are inclusive
// YYYY-MM-DD bounds; empty fields are ignored.
type TradeFilter struct {
	From   string
	To     string
	Ticker string
	Limit  int
}
