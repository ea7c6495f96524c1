// Package store is the command client's in-memory entity store. It is the
// single source of truth for what the dashboard shows. Callers read copies
// and mutate only through the updater methods.
package store

import (
	"sync"

	"github.com/qninhdt/c3/server/internal/models"
)

// Selection is the live selection the store reads and prunes. RemoveAgent
// tells it when an agent leaves the store.
type Selection interface {
	Selected() []string
	Remove(agentID string)
}

// Store holds agents, missions, zones, the user profile and view state
type Store struct {
	mu sync.RWMutex

	user          *models.UserProfile
	agents        []models.Agent
	missions      []models.Mission
	zones         []models.Zone
	activeMission string

	camera Camera
	ui     UI

	selection Selection
}

// New creates an empty store. sel may be nil.
func New(sel Selection) *Store {
	return &Store{
		agents:    make([]models.Agent, 0),
		missions:  make([]models.Mission, 0),
		zones:     make([]models.Zone, 0),
		camera:    DefaultCamera(),
		ui:        DefaultUI(),
		selection: sel,
	}
}

// SetUser replaces the profile
func (s *Store) SetUser(u *models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u == nil {
		s.user = nil
		return
	}
	cp := *u
	cp.Achievements = append([]string(nil), u.Achievements...)
	s.user = &cp
}

// User returns a copy of the profile, or nil
func (s *Store) User() *models.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	cp := *s.user
	cp.Achievements = append([]string(nil), s.user.Achievements...)
	return &cp
}

// SetAgents replaces all agents
func (s *Store) SetAgents(agents []models.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents = make([]models.Agent, len(agents))
	for i, a := range agents {
		s.agents[i] = a.Clone()
	}
}

// Agents returns a copy of all agents
func (s *Store) Agents() []models.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Agent, len(s.agents))
	for i, a := range s.agents {
		out[i] = a.Clone()
	}
	return out
}

// Agent returns a copy of one agent
func (s *Store) Agent(id string) (models.Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.agentIndex(id); i >= 0 {
		return s.agents[i].Clone(), true
	}
	return models.Agent{}, false
}

// AgentExists reports whether id is in the store
func (s *Store) AgentExists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agentIndex(id) >= 0
}

// AddAgent appends an agent, replacing one with the same id
func (s *Store) AddAgent(a models.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.agentIndex(a.ID); i >= 0 {
		s.agents[i] = a.Clone()
		return
	}
	s.agents = append(s.agents, a.Clone())
}

// UpdateAgent applies fn to the stored agent. It returns false if absent.
func (s *Store) UpdateAgent(id string, fn func(*models.Agent)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.agentIndex(id)
	if i < 0 {
		return false
	}
	fn(&s.agents[i])
	return true
}

// RemoveAgent deletes an agent and drops it from the live selection
func (s *Store) RemoveAgent(id string) bool {
	s.mu.Lock()
	i := s.agentIndex(id)
	if i >= 0 {
		s.agents = append(s.agents[:i], s.agents[i+1:]...)
	}
	sel := s.selection
	s.mu.Unlock()

	if i >= 0 && sel != nil {
		sel.Remove(id)
	}
	return i >= 0
}

// SetMissions replaces all missions
func (s *Store) SetMissions(missions []models.Mission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missions = make([]models.Mission, len(missions))
	for i, m := range missions {
		s.missions[i] = m.Clone()
	}
}

// Missions returns a copy of all missions
func (s *Store) Missions() []models.Mission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Mission, len(s.missions))
	for i, m := range s.missions {
		out[i] = m.Clone()
	}
	return out
}

// Mission returns a copy of one mission
func (s *Store) Mission(id string) (models.Mission, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.missionIndex(id); i >= 0 {
		return s.missions[i].Clone(), true
	}
	return models.Mission{}, false
}

// AddMission appends a mission, replacing one with the same id
func (s *Store) AddMission(m models.Mission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.missionIndex(m.ID); i >= 0 {
		s.missions[i] = m.Clone()
		return
	}
	s.missions = append(s.missions, m.Clone())
}

// UpdateMission applies fn to the stored mission. It returns false if absent.
func (s *Store) UpdateMission(id string, fn func(*models.Mission)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.missionIndex(id)
	if i < 0 {
		return false
	}
	fn(&s.missions[i])
	return true
}

// ReplaceMission swaps the mission stored under oldID for m, keeping its
// place. Agents linked to oldID are relinked to m.ID.
func (s *Store) ReplaceMission(oldID string, m models.Mission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceMission(oldID, m)
}

func (s *Store) replaceMission(oldID string, m models.Mission) {
	if i := s.missionIndex(oldID); i >= 0 {
		s.missions[i] = m.Clone()
		if oldID != m.ID {
			if j := s.missionIndex(m.ID); j >= 0 && j != i {
				s.missions = append(s.missions[:j], s.missions[j+1:]...)
			}
		}
	} else if j := s.missionIndex(m.ID); j >= 0 {
		s.missions[j] = m.Clone()
	} else {
		s.missions = append(s.missions, m.Clone())
	}
	if oldID != m.ID {
		for i := range s.agents {
			if s.agents[i].CurrentMissionID == oldID {
				s.agents[i].CurrentMissionID = m.ID
			}
		}
		if s.activeMission == oldID {
			s.activeMission = m.ID
		}
	}
}

// RemoveMission deletes a mission
func (s *Store) RemoveMission(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeMission(id)
}

func (s *Store) removeMission(id string) bool {
	i := s.missionIndex(id)
	if i < 0 {
		return false
	}
	s.missions = append(s.missions[:i], s.missions[i+1:]...)
	if s.activeMission == id {
		s.activeMission = ""
	}
	return true
}

// SetActiveMission marks the mission shown in the detail panel
func (s *Store) SetActiveMission(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeMission = id
}

// ActiveMission returns the mission shown in the detail panel
func (s *Store) ActiveMission() (models.Mission, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeMission == "" {
		return models.Mission{}, false
	}
	if i := s.missionIndex(s.activeMission); i >= 0 {
		return s.missions[i].Clone(), true
	}
	return models.Mission{}, false
}

// SetZones replaces all zones
func (s *Store) SetZones(zones []models.Zone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones = make([]models.Zone, len(zones))
	for i, z := range zones {
		z.CurrentAgents = append([]string(nil), z.CurrentAgents...)
		s.zones[i] = z
	}
}

// Zones returns a copy of all zones
func (s *Store) Zones() []models.Zone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Zone, len(s.zones))
	for i, z := range s.zones {
		z.CurrentAgents = append([]string(nil), z.CurrentAgents...)
		out[i] = z
	}
	return out
}

// AddZone appends a zone, replacing one with the same id
func (s *Store) AddZone(z models.Zone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putZone(z)
}

func (s *Store) putZone(z models.Zone) {
	z.CurrentAgents = append([]string(nil), z.CurrentAgents...)
	for i := range s.zones {
		if s.zones[i].ID == z.ID {
			s.zones[i] = z
			return
		}
	}
	s.zones = append(s.zones, z)
}

// UpdateZone applies fn to the stored zone. It returns false if absent.
func (s *Store) UpdateZone(id string, fn func(*models.Zone)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.zones {
		if s.zones[i].ID == id {
			fn(&s.zones[i])
			return true
		}
	}
	return false
}

// IdleAgents returns agents with status idle
func (s *Store) IdleAgents() []models.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Agent
	for _, a := range s.agents {
		if a.Status == models.AgentIdle {
			out = append(out, a.Clone())
		}
	}
	return out
}

// ActiveMissions returns pending and in-progress missions
func (s *Store) ActiveMissions() []models.Mission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Mission
	for _, m := range s.missions {
		if m.Status == models.MissionPending || m.Status == models.MissionInProgress {
			out = append(out, m.Clone())
		}
	}
	return out
}

// AgentsByID returns the stored agents among ids, in ids order, skipping
// ids that are no longer present
func (s *Store) AgentsByID(ids []string) []models.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Agent, 0, len(ids))
	for _, id := range ids {
		if i := s.agentIndex(id); i >= 0 {
			out = append(out, s.agents[i].Clone())
		}
	}
	return out
}

// SelectedAgents returns the selected agents that are still in the store
func (s *Store) SelectedAgents() []models.Agent {
	if s.selection == nil {
		return nil
	}
	return s.AgentsByID(s.selection.Selected())
}

func (s *Store) agentIndex(id string) int {
	for i := range s.agents {
		if s.agents[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) missionIndex(id string) int {
	for i := range s.missions {
		if s.missions[i].ID == id {
			return i
		}
	}
	return -1
}
