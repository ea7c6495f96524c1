// Package lifecycle holds the mission state machine and the agent side
// effects each transition carries. The service applies it inside a database
// transaction and the command client applies it optimistically to its store.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/qninhdt/c3/server/internal/models"
)

// transitions lists the allowed outgoing states per state
var transitions = map[models.MissionStatus][]models.MissionStatus{
	models.MissionPending:    {models.MissionInProgress, models.MissionCancelled},
	models.MissionInProgress: {models.MissionPaused, models.MissionCompleted, models.MissionFailed, models.MissionCancelled},
	models.MissionPaused:     {models.MissionInProgress, models.MissionCancelled},
}

// CanTransition reports whether from -> to is allowed. Staying in the same
// state is always allowed and carries no side effects.
func CanTransition(from, to models.MissionStatus) bool {
	if from == to {
		return from.Valid()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Effect is what a transition did to a mission and what must happen to the
// agents that were assigned to it
type Effect struct {
	From    models.MissionStatus
	To      models.MissionStatus
	Started bool
	// Released lists agents that must leave the mission
	Released []string
	// ReleaseTo is the status released agents move to
	ReleaseTo models.AgentStatus
	// IncrementCompleted is set only when the mission completed
	IncrementCompleted bool
}

// Changed reports whether the transition moved to a different state
func (e Effect) Changed() bool { return e.From != e.To }

// Terminal reports whether the transition entered a terminal state
func (e Effect) Terminal() bool { return e.Changed() && e.To.IsTerminal() }

// Transition moves m to the target status, stamping timestamps and computing
// agent side effects. m is left untouched on error.
func Transition(m *models.Mission, to models.MissionStatus, now time.Time) (Effect, error) {
	if !to.Valid() {
		return Effect{}, models.Invalid("status", fmt.Sprintf("unknown status %q", to))
	}
	from := m.Status
	if !CanTransition(from, to) {
		return Effect{}, fmt.Errorf("%w: mission cannot move from %s to %s", models.ErrConflict, from, to)
	}

	eff := Effect{From: from, To: to}
	if from == to {
		return eff, nil
	}

	m.Status = to
	m.UpdatedAt = now

	if to == models.MissionInProgress && m.StartedAt == nil {
		t := now
		m.StartedAt = &t
		eff.Started = true
	}

	if to.IsTerminal() {
		t := now
		m.CompletedAt = &t
		eff.Released = append([]string(nil), m.AssignedAgents...)
		eff.ReleaseTo = models.AgentReturning
		eff.IncrementCompleted = to == models.MissionCompleted
	}

	return eff, nil
}

// ApplyToAgent applies a transition's side effects to one released agent.
// Agents not listed in the effect are left as they are.
func ApplyToAgent(a *models.Agent, eff Effect, now time.Time) bool {
	if !eff.Terminal() || !contains(eff.Released, a.ID) {
		return false
	}
	a.Status = eff.ReleaseTo
	a.CurrentMissionID = ""
	if eff.IncrementCompleted {
		a.MissionsCompleted++
	}
	a.UpdatedAt = now
	return true
}

// ReleaseOnDelete resets an agent whose mission was deleted. Deletion skips
// the returning state.
func ReleaseOnDelete(a *models.Agent, now time.Time) {
	a.Status = models.AgentIdle
	a.CurrentMissionID = ""
	a.UpdatedAt = now
}

// FreedByDelete reports whether deleting missionID resets a to idle: the
// agent is still linked to it, or was released when the mission ended
func FreedByDelete(a *models.Agent, missionID string) bool {
	return a.CurrentMissionID == "" || a.CurrentMissionID == missionID
}

// Deploy links an agent to a mission it was just assigned to
func Deploy(a *models.Agent, missionID string, now time.Time) {
	a.Status = models.AgentDeploying
	a.CurrentMissionID = missionID
	a.UpdatedAt = now
}

// CanAssign reports whether agents may still be attached to m
func CanAssign(m *models.Mission) error {
	if m.Status.IsTerminal() {
		return fmt.Errorf("%w: mission is %s", models.ErrConflict, m.Status)
	}
	return nil
}

// CheckAvailable rejects agents already linked to another mission
func CheckAvailable(a *models.Agent, missionID string) error {
	if a.CurrentMissionID != "" && a.CurrentMissionID != missionID {
		return fmt.Errorf("%w: agent %s is already on mission %s", models.ErrConflict, a.ID, a.CurrentMissionID)
	}
	return nil
}

// ValidateProgress checks the 0..100 range
func ValidateProgress(p int) error {
	if p < 0 || p > 100 {
		return models.Invalid("progress", "must be between 0 and 100")
	}
	return nil
}

// ApplyPatch applies a patch to m: status first, then progress, output and
// error text. m is left untouched on error.
func ApplyPatch(m *models.Mission, patch models.MissionPatch, now time.Time) (Effect, error) {
	if patch.Progress != nil {
		if err := ValidateProgress(*patch.Progress); err != nil {
			return Effect{}, err
		}
	}

	eff := Effect{From: m.Status, To: m.Status}
	if patch.Status != nil {
		var err error
		eff, err = Transition(m, *patch.Status, now)
		if err != nil {
			return Effect{}, err
		}
	}

	touched := eff.Changed()
	if patch.Progress != nil {
		m.Progress = *patch.Progress
		touched = true
	}
	if patch.Output != nil {
		m.Output = *patch.Output
		touched = true
	}
	if patch.Error != nil {
		m.Error = *patch.Error
		touched = true
	}
	if touched {
		m.UpdatedAt = now
	}
	return eff, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
