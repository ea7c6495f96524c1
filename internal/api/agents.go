package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/qninhdt/c3/server/internal/events"
	"github.com/qninhdt/c3/server/internal/models"
	"github.com/qninhdt/c3/server/internal/query"
	"github.com/qninhdt/c3/server/internal/templates"
	"github.com/qninhdt/c3/server/internal/validation"
)

// listAgents returns the caller's agents, optionally narrowed by ?filter=
func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.db.ListAgents(r.Context(), getUserID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if src := strings.TrimSpace(r.URL.Query().Get("filter")); src != "" {
		f, err := query.Compile(src)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if agents, err = f.Apply(agents); err != nil {
			s.fail(w, r, models.Invalid("filter", err.Error()))
			return
		}
	}
	writeData(w, http.StatusOK, agents)
}

func (s *Server) createAgent(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAgentRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)

	t, ok := templates.ByID(req.TemplateID)
	if !ok {
		s.fail(w, r, models.Invalid("template_id", "invalid template"))
		return
	}
	if err := validation.ValidateText("name", req.Name, false, validation.MaxNameLength); err != nil {
		s.fail(w, r, err)
		return
	}

	userID := getUserID(r)
	profile, err := s.db.GetProfile(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !t.Unlocked(profile.Level, profile.Tier) {
		s.fail(w, r, models.Invalid("template_id", t.Name+" is not unlocked yet"))
		return
	}

	agent, err := s.db.CreateAgent(r.Context(), t.Instantiate(userID, req.Name, req.Position, time.Now().UTC()))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(userID, func() (events.Event, error) { return events.AgentUpdated(*agent) })
	writeData(w, http.StatusCreated, agent)
}

// agentEvents builds one agent:updated event per agent
func agentEvents(agents []models.Agent) []func() (events.Event, error) {
	out := make([]func() (events.Event, error), 0, len(agents))
	for _, a := range agents {
		out = append(out, func() (events.Event, error) { return events.AgentUpdated(a) })
	}
	return out
}
