package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	apperrors "tradestein/internal/errors"
	"tradestein/internal/models"
)

const goalColumns = "id, user_id, title, description, deadline, progress, completed, created_at"

func scanGoal(row rowScanner) (models.Goal, error) {
	var g models.Goal
	var description, deadline sql.NullString
	var completed int
	if err := row.Scan(&g.ID, &g.UserID, &g.Title, &description, &deadline, &g.Progress, &completed, &g.CreatedAt); err != nil {
		return g, err
	}
	g.Description = description.String
	g.Deadline = deadline.String
	g.Completed = completed == 1
	return g, nil
}

// clampProgress bounds progress to 0..100.
func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// ListGoals returns a user's goals. GoalSortProgress orders by progress
// descending; anything else orders by deadline with undated goals last.
func (s *SQLiteStore) ListGoals(ctx context.Context, userID string, sort models.GoalSort) ([]models.Goal, error) {
	order := " ORDER BY deadline IS NULL, deadline ASC, created_at ASC"
	if sort == models.GoalSortProgress {
		order = " ORDER BY progress DESC, created_at ASC"
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+goalColumns+" FROM goals WHERE user_id = ?"+order, userID)
	if err != nil {
		return nil, storeErr("list", "goals", err)
	}
	defer rows.Close()

	goals := make([]models.Goal, 0)
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, storeErr("scan", "goal", err)
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list", "goals", err)
	}
	return goals, nil
}

// CreateGoal inserts goal. Progress is clamped and Completed derived from it.
func (s *SQLiteStore) CreateGoal(ctx context.Context, goal *models.Goal) error {
	if goal.ID == "" {
		goal.ID = uuid.NewString()
	}
	goal.CreatedAt = s.now()
	goal.Progress = clampProgress(goal.Progress)
	goal.Completed = goal.Progress >= 100

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO goals ("+goalColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		goal.ID, goal.UserID, goal.Title, nullString(goal.Description), nullString(goal.Deadline),
		goal.Progress, boolInt(goal.Completed), goal.CreatedAt)
	if err != nil {
		return storeErr("create", "goal", err)
	}

	s.notifier.Notify(goal.UserID, models.EventGoalsChanged, goal.ID)
	return nil
}

// UpdateGoalProgress sets a goal's progress; reaching 100 marks it completed
// and dropping below un-completes it.
func (s *SQLiteStore) UpdateGoalProgress(ctx context.Context, userID, id string, progress int) (*models.Goal, error) {
	progress = clampProgress(progress)
	res, err := s.db.ExecContext(ctx,
		"UPDATE goals SET progress = ?, completed = ? WHERE id = ? AND user_id = ?",
		progress, boolInt(progress >= 100), id, userID)
	if err != nil {
		return nil, storeErr("update", "goal", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperrors.ErrGoalNotFound
	}

	g, err := scanGoal(s.db.QueryRowContext(ctx,
		"SELECT "+goalColumns+" FROM goals WHERE id = ? AND user_id = ?", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrGoalNotFound
	}
	if err != nil {
		return nil, storeErr("get", "goal", err)
	}

	s.notifier.Notify(userID, models.EventGoalsChanged, id)
	return &g, nil
}

// DeleteGoal removes one of the user's goals.
func (s *SQLiteStore) DeleteGoal(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM goals WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return storeErr("delete", "goal", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrGoalNotFound
	}

	s.notifier.Notify(userID, models.EventGoalsChanged, id)
	return nil
}
