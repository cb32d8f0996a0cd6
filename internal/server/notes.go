package server

import (
	"net/http"
	"strings"

	"tradestein/internal/models"
)

type noteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (req noteRequest) note(userID string) models.Note {
	return models.Note{
		UserID:  userID,
		Title:   strings.TrimSpace(req.Title),
		Content: strings.TrimRight(req.Content, " \t\r\n"),
	}
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.deps.Store.ListNotes(r.Context(), mustUser(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notes": notes})
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	note := req.note(mustUser(r))
	if err := s.deps.Validator.ValidateNote(note); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Store.CreateNote(r.Context(), &note); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	userID := mustUser(r)
	edit := req.note(userID)
	if err := s.deps.Validator.ValidateNote(edit); err != nil {
		s.writeError(w, r, err)
		return
	}
	note, err := s.deps.Store.UpdateNote(r.Context(), userID, r.PathValue("id"), edit.Title, edit.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.DeleteNote(r.Context(), mustUser(r), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
