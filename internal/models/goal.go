package models

import "time"

// Goal represents a personal trading goal with manual progress tracking.
type Goal struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Deadline    string    `json:"deadline,omitempty"`
	Progress    int       `json:"progress"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
}

// GoalSort selects the ordering of a goal listing.
type GoalSort string

const (
	GoalSortDeadline GoalSort = "deadline"
	GoalSortProgress GoalSort = "progress"
)
