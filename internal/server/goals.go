package server

import (
	"net/http"
	"strings"

	"tradestein/internal/analytics"
	apperrors "tradestein/internal/errors"
	"tradestein/internal/models"
)

type goalRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
	Progress    int    `json:"progress"`
}

type progressRequest struct {
	Progress *int `json:"progress"`
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	sort := models.GoalSort(r.URL.Query().Get("sort"))
	switch sort {
	case "":
		sort = models.GoalSortDeadline
	case models.GoalSortDeadline, models.GoalSortProgress:
	default:
		s.writeError(w, r, apperrors.NewValidationError("sort", sort, "must be deadline or progress"))
		return
	}

	goals, err := s.deps.Store.ListGoals(r.Context(), mustUser(r), sort)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"goals": goals,
		"stats": analytics.SummarizeGoals(goals),
	})
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	goal := models.Goal{
		UserID:      mustUser(r),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Deadline:    strings.TrimSpace(req.Deadline),
		Progress:    req.Progress,
	}
	if err := s.deps.Validator.ValidateGoal(goal); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Store.CreateGoal(r.Context(), &goal); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (s *Server) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Progress == nil {
		s.writeError(w, r, apperrors.NewValidationError("progress", nil, "progress is required"))
		return
	}

	goal, err := s.deps.Store.UpdateGoalProgress(r.Context(), mustUser(r), r.PathValue("id"), *req.Progress)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.DeleteGoal(r.Context(), mustUser(r), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
