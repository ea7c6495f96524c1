package api

import (
	"net/http"

	"github.com/qninhdt/c3/server/internal/models"
	"github.com/qninhdt/c3/server/internal/templates"
	"github.com/qninhdt/c3/server/internal/validation"
)

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.db.GetProfile(r.Context(), getUserID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, profile)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var patch models.ProfilePatch
	if err := decode(r, &patch); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := validation.ValidateProfilePatch(&patch); err != nil {
		s.fail(w, r, err)
		return
	}

	profile, err := s.db.UpdateProfile(r.Context(), getUserID(r), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, profile)
}

// listTemplates returns the templates the caller has unlocked, optionally
// narrowed to one ?class=
func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	profile, err := s.db.GetProfile(r.Context(), getUserID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	class := models.AgentClass(r.URL.Query().Get("class"))
	if class == "" {
		writeData(w, http.StatusOK, templates.Available(profile.Level, profile.Tier))
		return
	}
	if !class.Valid() {
		s.fail(w, r, models.Invalid("class", "is not a known agent class"))
		return
	}

	out := make([]templates.Template, 0)
	for _, t := range templates.ByClass(class) {
		if t.Unlocked(profile.Level, profile.Tier) {
			out = append(out, t)
		}
	}
	writeData(w, http.StatusOK, out)
}
