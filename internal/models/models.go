// Package models provides domain models for the trading journal.
package models

import "time"

// DateLayout is the calendar-date layout used for trade and goal dates.
const DateLayout = "2006-01-02"

// TimeLayout is the wall-clock layout for entry and exit times.
const TimeLayout = "15:04"

// Session names derived from a trade's entry time.
const (
	SessionMorning   = "Morning"
	SessionMidday    = "Midday"
	SessionAfternoon = "Afternoon/NY"
	SessionOvernight = "Overnight"
	SessionUnknown   = "Unknown"
)

// Sessions lists the known sessions in display order.
var Sessions = []string{SessionMorning, SessionMidday, SessionAfternoon, SessionOvernight}

// Weekdays lists weekday names indexed 0=Sunday..6=Saturday.
var Weekdays = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// EventKind names a change notification pushed to a user's subscribers.
type EventKind string

const (
	EventTradesChanged  EventKind = "trades.changed"
	EventGoalsChanged   EventKind = "goals.changed"
	EventNotesChanged   EventKind = "notes.changed"
	EventProfileChanged EventKind = "profile.changed"
)

// Event tells a user's subscribers that one of their records changed.
// Subscribers are expected to refetch rather than apply a diff.
type Event struct {
	Kind     EventKind `json:"kind"`
	UserID   string    `json:"user_id"`
	EntityID string    `json:"entity_id,omitempty"`
	At       time.Time `json:"at"`
}
