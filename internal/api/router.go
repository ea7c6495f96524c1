package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/qninhdt/c3/server/internal/auth"
	"github.com/qninhdt/c3/server/internal/db"
	"github.com/qninhdt/c3/server/internal/events"
	"github.com/qninhdt/c3/server/internal/logging"
	mw "github.com/qninhdt/c3/server/internal/middleware"
	"github.com/qninhdt/c3/server/internal/models"
)

// EventHub fans events out to websocket subscribers
type EventHub interface {
	events.Publisher
	Serve(w http.ResponseWriter, r *http.Request, userID string)
}

// Deps are the collaborators a Server needs
type Deps struct {
	DB       *db.DB
	Sessions *auth.Sessions
	Sealer   *auth.Sealer
	Events   EventHub
	Limiter  *mw.RateLimiter
	Logger   *zap.Logger
}

// Options tune HTTP behavior
type Options struct {
	CookieName     string
	SecureCookie   bool
	BcryptCost     int
	MaxBodyBytes   int64
	AllowedOrigins []string
}

// Server handles HTTP requests
type Server struct {
	router   chi.Router
	db       *db.DB
	sessions *auth.Sessions
	sealer   *auth.Sealer
	events   EventHub
	limiter  *mw.RateLimiter
	authn    *mw.Authenticator
	logger   *zap.Logger
	opts     Options
}

// NewServer creates a new API server
func NewServer(deps Deps, opts Options) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.CookieName == "" {
		opts.CookieName = "c3-session"
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	s := &Server{
		router:   chi.NewRouter(),
		db:       deps.DB,
		sessions: deps.Sessions,
		sealer:   deps.Sealer,
		events:   deps.Events,
		limiter:  deps.Limiter,
		authn:    mw.NewAuthenticator(deps.Sessions, opts.CookieName),
		logger:   deps.Logger,
		opts:     opts,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(logging.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.SetHeader("Content-Type", "application/json"))
	if s.limiter != nil {
		s.router.Use(s.limiter.Middleware)
	}
	s.router.Use(mw.SecurityHeadersMiddleware)
	s.router.Use(mw.CORS(s.opts.AllowedOrigins))
	s.router.Use(mw.MaxBodySizeMiddleware(s.opts.MaxBodyBytes))

	s.router.Get("/healthz", s.health)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", s.signup)
		r.Post("/auth/login", s.login)
		r.Post("/auth/logout", s.logout)
		r.With(s.authn.Optional).Get("/auth/session", s.session)

		r.Group(func(r chi.Router) {
			r.Use(s.authn.Require)

			r.Get("/profile", s.getProfile)
			r.Patch("/profile", s.updateProfile)

			r.Get("/templates", s.listTemplates)

			r.Get("/agents", s.listAgents)
			r.Post("/agents", s.createAgent)

			r.Get("/missions", s.listMissions)
			r.Post("/missions", s.createMission)
			r.Get("/missions/{id}", s.getMission)
			r.Patch("/missions/{id}", s.updateMission)
			r.Delete("/missions/{id}", s.deleteMission)
			r.Post("/missions/{id}/agents", s.assignAgents)

			r.Get("/zones", s.listZones)
			r.Post("/zones", s.createZone)

			r.Get("/keys", s.listKeys)
			r.Post("/keys", s.upsertKey)
			r.Delete("/keys", s.deleteKey)

			r.Get("/events", s.streamEvents)
		})
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response wraps API responses
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response (sanitized)
func writeError(w http.ResponseWriter, status int, message string) {
	if status >= 500 {
		message = "Internal server error"
	}
	writeJSON(w, status, Response{
		Success: false,
		Error:   message,
	})
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail writes err with its mapped status, logging anything internal
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeError(w, status, err.Error())
}

// decode reads a JSON body into v
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return models.Invalid("", "Request body too large")
		}
		return models.Invalid("", "Invalid request body")
	}
	return nil
}

// getUserID extracts user ID from context
func getUserID(r *http.Request) string {
	return mw.UserID(r.Context())
}

// publish sends events to the user's subscribers, logging encode failures
func (s *Server) publish(userID string, evs ...func() (events.Event, error)) {
	if s.events == nil {
		return
	}
	for _, build := range evs {
		ev, err := build()
		if err != nil {
			s.logger.Error("failed to build event", zap.Error(err))
			continue
		}
		s.events.Publish(userID, ev)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}
