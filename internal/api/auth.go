package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/qninhdt/c3/server/internal/auth"
	"github.com/qninhdt/c3/server/internal/models"
	"github.com/qninhdt/c3/server/internal/validation"
)

// signupResponse carries the session plus the seeded world
type signupResponse struct {
	models.Session
	Zones  []models.Zone  `json:"zones"`
	Agents []models.Agent `json:"agents"`
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := validation.ValidateEmail(req.Email); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := validation.ValidateText("display_name", req.DisplayName, false, validation.MaxNameLength); err != nil {
		s.fail(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password, s.opts.BcryptCost)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	result, err := s.db.Signup(r.Context(), req.Email, hash, req.DisplayName)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	token, err := s.startSession(w, result.Profile)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, signupResponse{
		Session: models.Session{Token: token, User: result.Profile},
		Zones:   result.Zones,
		Agents:  result.Agents,
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	creds, err := s.db.CredentialsByEmail(r.Context(), email)
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := auth.CheckPassword(creds.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if err := s.db.TouchProfile(r.Context(), creds.UserID); err != nil {
		s.fail(w, r, err)
		return
	}
	profile, err := s.db.GetProfile(r.Context(), creds.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	token, err := s.startSession(w, profile)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, models.Session{Token: token, User: profile})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeData(w, http.StatusOK, nil)
}

// session reports the caller's profile, or null data when signed out
func (s *Server) session(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r)
	if userID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": nil})
		return
	}

	profile, err := s.db.GetProfile(r.Context(), userID)
	if errors.Is(err, models.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": nil})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, profile)
}

// startSession issues a token and sets it as the session cookie
func (s *Server) startSession(w http.ResponseWriter, u *models.UserProfile) (string, error) {
	token, err := s.sessions.Issue(u.ID, u.Email)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}
