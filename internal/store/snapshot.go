package store

import "github.com/qninhdt/c3/server/internal/models"

// AgentKey and MissionKey name entities across snapshots and sequences
func AgentKey(id string) string   { return "agent/" + id }
func MissionKey(id string) string { return "mission/" + id }

// Snapshot is the state of a few entities before an optimistic change.
// A nil entry means the entity did not exist.
type Snapshot struct {
	agents   map[string]*models.Agent
	missions map[string]*models.Mission
}

// Keys lists every entity covered by the snapshot
func (sn Snapshot) Keys() []string {
	keys := make([]string, 0, len(sn.agents)+len(sn.missions))
	for id := range sn.agents {
		keys = append(keys, AgentKey(id))
	}
	for id := range sn.missions {
		keys = append(keys, MissionKey(id))
	}
	return keys
}

// Snapshot captures the listed agents and missions
func (s *Store) Snapshot(agentIDs, missionIDs []string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sn := Snapshot{
		agents:   make(map[string]*models.Agent, len(agentIDs)),
		missions: make(map[string]*models.Mission, len(missionIDs)),
	}
	for _, id := range agentIDs {
		if i := s.agentIndex(id); i >= 0 {
			a := s.agents[i].Clone()
			sn.agents[id] = &a
		} else {
			sn.agents[id] = nil
		}
	}
	for _, id := range missionIDs {
		if i := s.missionIndex(id); i >= 0 {
			m := s.missions[i].Clone()
			sn.missions[id] = &m
		} else {
			sn.missions[id] = nil
		}
	}
	return sn
}

// Restore puts captured entities back. Entities that were absent are
// removed again. skip, if not nil, leaves an entity as it is now.
func (s *Store) Restore(sn Snapshot, skip func(key string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range sn.agents {
		if skip != nil && skip(AgentKey(id)) {
			continue
		}
		i := s.agentIndex(id)
		switch {
		case a == nil && i >= 0:
			s.agents = append(s.agents[:i], s.agents[i+1:]...)
		case a != nil && i >= 0:
			s.agents[i] = a.Clone()
		case a != nil:
			s.agents = append(s.agents, a.Clone())
		}
	}
	for id, m := range sn.missions {
		if skip != nil && skip(MissionKey(id)) {
			continue
		}
		i := s.missionIndex(id)
		switch {
		case m == nil && i >= 0:
			s.missions = append(s.missions[:i], s.missions[i+1:]...)
			if s.activeMission == id {
				s.activeMission = ""
			}
		case m != nil && i >= 0:
			s.missions[i] = m.Clone()
		case m != nil:
			s.missions = append(s.missions, m.Clone())
		}
	}
}
