package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/qninhdt/c3/server/internal/db"
	"github.com/qninhdt/c3/server/internal/events"
	"github.com/qninhdt/c3/server/internal/models"
	"github.com/qninhdt/c3/server/internal/validation"
)

func (s *Server) listMissions(w http.ResponseWriter, r *http.Request) {
	missions, err := s.db.ListMissions(r.Context(), getUserID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, missions)
}

// missionID reads and validates the {id} path parameter
func missionID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if err := validation.ValidateID("id", id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Server) getMission(w http.ResponseWriter, r *http.Request) {
	id, err := missionID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	m, err := s.db.GetMission(r.Context(), getUserID(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, m)
}

func (s *Server) createMission(w http.ResponseWriter, r *http.Request) {
	var req models.CreateMissionRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Blueprint.Prompt = strings.TrimSpace(req.Blueprint.Prompt)
	if err := validation.ValidateCreateMission(&req); err != nil {
		s.fail(w, r, err)
		return
	}

	userID := getUserID(r)
	change, err := s.db.CreateMission(r.Context(), userID, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.publishChange(userID, change, false)
	writeData(w, http.StatusCreated, change.Mission)
}

func (s *Server) updateMission(w http.ResponseWriter, r *http.Request) {
	id, err := missionID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var patch models.MissionPatch
	if err := decode(r, &patch); err != nil {
		s.fail(w, r, err)
		return
	}

	userID := getUserID(r)
	change, err := s.db.UpdateMission(r.Context(), userID, id, patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	progressOnly := patch.Status == nil && patch.Output == nil && patch.Error == nil
	s.publishChange(userID, change, progressOnly)
	writeData(w, http.StatusOK, change.Mission)
}

func (s *Server) deleteMission(w http.ResponseWriter, r *http.Request) {
	id, err := missionID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	userID := getUserID(r)
	released, err := s.db.DeleteMission(r.Context(), userID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(userID, func() (events.Event, error) { return events.MissionDeleted(id) })
	s.publish(userID, agentEvents(released)...)
	writeData(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) assignAgents(w http.ResponseWriter, r *http.Request) {
	id, err := missionID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req models.AssignAgentsRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if len(req.AgentIDs) == 0 {
		s.fail(w, r, models.Invalid("agent_ids", "is required"))
		return
	}
	if err := validation.ValidateIDs("agent_ids", req.AgentIDs); err != nil {
		s.fail(w, r, err)
		return
	}

	userID := getUserID(r)
	change, err := s.db.AssignAgents(r.Context(), userID, id, req.AgentIDs)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.publishChange(userID, change, false)
	writeData(w, http.StatusOK, change.Mission)
}

// publishChange announces a mission write and every agent it touched
func (s *Server) publishChange(userID string, change *db.MissionChange, progressOnly bool) {
	m := *change.Mission
	s.publish(userID, func() (events.Event, error) { return events.ForMission(m, progressOnly) })
	s.publish(userID, agentEvents(change.Agents)...)
}
