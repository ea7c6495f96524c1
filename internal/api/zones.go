package api

import (
	"net/http"
	"strings"

	"github.com/qninhdt/c3/server/internal/events"
	"github.com/qninhdt/c3/server/internal/models"
	"github.com/qninhdt/c3/server/internal/validation"
)

func (s *Server) listZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.db.ListZones(r.Context(), getUserID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, zones)
}

func (s *Server) createZone(w http.ResponseWriter, r *http.Request) {
	var req models.CreateZoneRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.ValidateCreateZone(&req); err != nil {
		s.fail(w, r, err)
		return
	}

	userID := getUserID(r)
	z, err := s.db.CreateZone(r.Context(), userID, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(userID, func() (events.Event, error) { return events.ZoneUpdated(*z) })
	writeData(w, http.StatusCreated, z)
}
