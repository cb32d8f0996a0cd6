package server

import (
	"net/http"

	"tradestein/internal/models"
)

type subscriptionResponse struct {
	Profile *models.Profile `json:"profile"`
	Status  string          `json:"subscription_status"`
	Active  bool            `json:"active"`
}

func (s *Server) handleSubscription(w http.ResponseWriter, r *http.Request) {
	profile, err := s.deps.Auth.Profile(r.Context(), mustUser(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subscriptionResponse{
		Profile: profile,
		Status:  string(profile.SubscriptionStatus),
		Active:  profile.IsActive(),
	})
}

// handleUpdateProfile edits the caller's username, bio and avatar. Absent
// fields are left alone; an empty string clears a field.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.ProfileUpdate
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Validator.ValidateProfileUpdate(req); err != nil {
		s.writeError(w, r, err)
		return
	}

	profile, err := s.deps.Store.UpdateProfile(r.Context(), mustUser(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Auth.Revoke(r.Context(), bearerToken(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
