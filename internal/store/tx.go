package store

import "github.com/qninhdt/c3/server/internal/models"

// Tx is a write view of the store passed to Update. Readers never observe
// the store between two Tx calls. Pointers returned by Agent and Mission
// are valid until the next call that adds or removes an entity, and a Tx
// must not be used after fn returns.
type Tx struct {
	s *Store
}

// Update runs fn with the store locked
func (s *Store) Update(fn func(tx *Tx)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&Tx{s: s})
}

// Agent returns the stored agent or nil
func (tx *Tx) Agent(id string) *models.Agent {
	if i := tx.s.agentIndex(id); i >= 0 {
		return &tx.s.agents[i]
	}
	return nil
}

// Mission returns the stored mission or nil
func (tx *Tx) Mission(id string) *models.Mission {
	if i := tx.s.missionIndex(id); i >= 0 {
		return &tx.s.missions[i]
	}
	return nil
}

// User returns the stored profile or nil
func (tx *Tx) User() *models.UserProfile {
	return tx.s.user
}

// PutAgent stores a, replacing the agent with the same id
func (tx *Tx) PutAgent(a models.Agent) {
	if i := tx.s.agentIndex(a.ID); i >= 0 {
		tx.s.agents[i] = a.Clone()
		return
	}
	tx.s.agents = append(tx.s.agents, a.Clone())
}

// ReplaceAgent swaps the agent stored under oldID for a, keeping its place
func (tx *Tx) ReplaceAgent(oldID string, a models.Agent) {
	if i := tx.s.agentIndex(oldID); i >= 0 {
		tx.s.agents[i] = a.Clone()
		if oldID != a.ID {
			if j := tx.s.agentIndex(a.ID); j >= 0 && j != i {
				tx.s.agents = append(tx.s.agents[:j], tx.s.agents[j+1:]...)
			}
		}
		return
	}
	tx.PutAgent(a)
}

// RemoveAgent deletes an agent without touching the selection
func (tx *Tx) RemoveAgent(id string) bool {
	i := tx.s.agentIndex(id)
	if i < 0 {
		return false
	}
	tx.s.agents = append(tx.s.agents[:i], tx.s.agents[i+1:]...)
	return true
}

// PutMission stores m, replacing the mission with the same id
func (tx *Tx) PutMission(m models.Mission) {
	if i := tx.s.missionIndex(m.ID); i >= 0 {
		tx.s.missions[i] = m.Clone()
		return
	}
	tx.s.missions = append(tx.s.missions, m.Clone())
}

// ReplaceMission is Store.ReplaceMission inside a Tx
func (tx *Tx) ReplaceMission(oldID string, m models.Mission) {
	tx.s.replaceMission(oldID, m)
}

// RemoveMission deletes a mission, clearing the active mission if it was it
func (tx *Tx) RemoveMission(id string) bool {
	return tx.s.removeMission(id)
}

// PutZone stores z, replacing the zone with the same id
func (tx *Tx) PutZone(z models.Zone) {
	tx.s.putZone(z)
}

// LinkedAgents returns the agents whose current mission is missionID
func (tx *Tx) LinkedAgents(missionID string) []*models.Agent {
	var out []*models.Agent
	for i := range tx.s.agents {
		if tx.s.agents[i].CurrentMissionID == missionID {
			out = append(out, &tx.s.agents[i])
		}
	}
	return out
}

// AssignedAgents returns the stored agents listed on mission m
func (tx *Tx) AssignedAgents(m *models.Mission) []*models.Agent {
	var out []*models.Agent
	for _, id := range m.AssignedAgents {
		if a := tx.Agent(id); a != nil {
			out = append(out, a)
		}
	}
	return out
}
