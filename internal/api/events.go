package api

import "net/http"

// streamEvents upgrades to a websocket carrying the caller's events
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}
	s.events.Serve(w, r, getUserID(r))
}
