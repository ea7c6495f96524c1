package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/qninhdt/c3/server/internal/lifecycle"
	"github.com/qninhdt/c3/server/internal/models"
	"github.com/qninhdt/c3/server/internal/store"
	"github.com/qninhdt/c3/server/internal/validation"
)

// CreateMission creates a mission with the selected agents as its initial
// assignment, unless req names agents itself. The agents deploy to a
// provisional mission at once; on success it is swapped for the stored one,
// the selection is cleared and the form closed. On failure nothing of the
// attempt remains.
func (c *Controller) CreateMission(ctx context.Context, req models.CreateMissionRequest) (*models.Mission, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Blueprint.Prompt = strings.TrimSpace(req.Blueprint.Prompt)
	if req.AgentIDs == nil {
		req.AgentIDs = c.sel.Selected()
	}
	req.AgentIDs = dedupe(req.AgentIDs)
	if err := validation.ValidateCreateMission(&req); err != nil {
		c.fail("Invalid mission", err)
		return nil, err
	}

	c.mu.Lock()
	tempID := tempPrefix + c.newID()
	if err := c.checkAssignable(tempID, req.AgentIDs); err != nil {
		c.mu.Unlock()
		c.fail("Failed to create mission", err)
		return nil, err
	}

	now := c.now()
	o := c.prepare(req.AgentIDs, []string{tempID})
	c.store.Update(func(tx *store.Tx) {
		m := models.Mission{
			ID:                tempID,
			Title:             req.Title,
			Description:       req.Description,
			Type:              req.Type,
			Priority:          req.Priority,
			Blueprint:         req.Blueprint,
			Resources:         req.Resources,
			RequiredSkills:    req.RequiredSkills,
			ZoneID:            req.ZoneID,
			Status:            models.MissionPending,
			AssignedAgents:    append([]string{}, req.AgentIDs...),
			EstimatedDuration: req.EstimatedDuration,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if u := tx.User(); u != nil {
			m.UserID = u.ID
		}
		if m.Type == "" {
			m.Type = "general"
		}
		if m.Priority == "" {
			m.Priority = models.PriorityNormal
		}
		if req.Position != nil {
			m.Position = *req.Position
		}
		tx.PutMission(m)
		for _, id := range req.AgentIDs {
			lifecycle.Deploy(tx.Agent(id), tempID, now)
		}
	})
	c.claim(o)
	c.mu.Unlock()

	created, err := c.p.CreateMission(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.rollback(o)
		c.fail("Failed to create mission", err)
		return nil, err
	}

	if c.owns(o, store.MissionKey(tempID)) {
		c.store.Update(func(tx *store.Tx) { tx.ReplaceMission(tempID, *created) })
	}
	c.release(o)
	c.sel.Clear()
	c.store.SetCreateMissionOpen(false)
	c.notes.Success("Mission Created", fmt.Sprintf("%q is ready for deployment", created.Title))
	return created, nil
}

// AssignAgents deploys more agents to a mission. A nil list assigns the
// current selection. Agents already on the mission are skipped.
func (c *Controller) AssignAgents(ctx context.Context, missionID string, agentIDs []string) (*models.Mission, error) {
	if agentIDs == nil {
		agentIDs = c.sel.Selected()
	}

	c.mu.Lock()
	m, ok := c.store.Mission(missionID)
	if !ok {
		c.mu.Unlock()
		err := fmt.Errorf("mission %s: %w", missionID, models.ErrNotFound)
		c.fail("Failed to assign agents", err)
		return nil, err
	}
	err := lifecycle.CanAssign(&m)
	var fresh []string
	if err == nil {
		for _, id := range dedupe(agentIDs) {
			if !m.HasAgent(id) {
				fresh = append(fresh, id)
			}
		}
		err = c.checkAssignable(missionID, fresh)
	}
	if err != nil {
		c.mu.Unlock()
		c.fail("Failed to assign agents", err)
		return nil, err
	}
	if len(fresh) == 0 {
		c.mu.Unlock()
		return &m, nil
	}

	now := c.now()
	o := c.prepare(fresh, []string{missionID})
	c.store.Update(func(tx *store.Tx) {
		sm := tx.Mission(missionID)
		for _, id := range fresh {
			lifecycle.Deploy(tx.Agent(id), missionID, now)
			sm.AssignedAgents = append(sm.AssignedAgents, id)
		}
		sm.UpdatedAt = now
	})
	c.claim(o)
	c.mu.Unlock()

	updated, err := c.p.AssignAgents(ctx, missionID, fresh)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.rollback(o)
		c.fail("Failed to assign agents", err)
		return nil, err
	}
	c.reconcileMission(o, updated)
	c.release(o)
	c.sel.Clear()
	return updated, nil
}

// checkAssignable rejects agents the store does not know and agents busy on
// another mission. Callers hold c.mu.
func (c *Controller) checkAssignable(missionID string, agentIDs []string) error {
	for _, id := range agentIDs {
		a, ok := c.store.Agent(id)
		if !ok {
			return models.Invalid("agent_ids", fmt.Sprintf("unknown agent %s", id))
		}
		if err := lifecycle.CheckAvailable(&a, missionID); err != nil {
			return err
		}
	}
	return nil
}

// UpdateMission applies a patch through the lifecycle. Released agents
// return at once; the stored mission replaces the optimistic one.
func (c *Controller) UpdateMission(ctx context.Context, id string, patch models.MissionPatch) (*models.Mission, error) {
	c.mu.Lock()
	m, ok := c.store.Mission(id)
	if !ok {
		c.mu.Unlock()
		err := fmt.Errorf("mission %s: %w", id, models.ErrNotFound)
		c.fail("Failed to update mission", err)
		return nil, err
	}

	now := c.now()
	trial := m.Clone()
	if _, err := lifecycle.ApplyPatch(&trial, patch, now); err != nil {
		c.mu.Unlock()
		c.fail("Failed to update mission", err)
		return nil, err
	}

	o := c.prepare(m.AssignedAgents, []string{id})
	var eff lifecycle.Effect
	c.store.Update(func(tx *store.Tx) {
		sm := tx.Mission(id)
		eff, _ = lifecycle.ApplyPatch(sm, patch, now)
		for _, aid := range eff.Released {
			a := tx.Agent(aid)
			if a == nil || (a.CurrentMissionID != "" && a.CurrentMissionID != id) {
				continue
			}
			lifecycle.ApplyToAgent(a, eff, now)
		}
	})
	c.claim(o)
	c.mu.Unlock()

	updated, err := c.p.UpdateMission(ctx, id, patch)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.rollback(o)
		c.fail("Failed to update mission", err)
		return nil, err
	}
	c.reconcileMission(o, updated)
	c.release(o)

	if eff.Terminal() {
		switch eff.To {
		case models.MissionCompleted:
			c.notes.Success("Mission Complete", fmt.Sprintf("%q finished", updated.Title))
		case models.MissionFailed:
			c.notes.Push(models.NotifyWarning, "Mission Failed", fmt.Sprintf("%q failed", updated.Title))
		}
	}
	return updated, nil
}

// reconcileMission stores the authoritative mission unless a newer command
// has touched it. Callers hold c.mu.
func (c *Controller) reconcileMission(o *op, m *models.Mission) {
	if m == nil || !c.owns(o, store.MissionKey(m.ID)) {
		return
	}
	c.store.Update(func(tx *store.Tx) { tx.PutMission(*m) })
}

func (c *Controller) transition(ctx context.Context, id string, to models.MissionStatus) (*models.Mission, error) {
	return c.UpdateMission(ctx, id, models.MissionPatch{Status: &to})
}

// StartMission moves a pending mission to in progress
func (c *Controller) StartMission(ctx context.Context, id string) (*models.Mission, error) {
	return c.transition(ctx, id, models.MissionInProgress)
}

// PauseMission pauses a mission in progress
func (c *Controller) PauseMission(ctx context.Context, id string) (*models.Mission, error) {
	return c.transition(ctx, id, models.MissionPaused)
}

// ResumeMission moves a paused mission back to in progress
func (c *Controller) ResumeMission(ctx context.Context, id string) (*models.Mission, error) {
	return c.transition(ctx, id, models.MissionInProgress)
}

// CompleteMission completes a mission with its output
func (c *Controller) CompleteMission(ctx context.Context, id string, output *models.MissionOutput) (*models.Mission, error) {
	status := models.MissionCompleted
	progress := 100
	return c.UpdateMission(ctx, id, models.MissionPatch{Status: &status, Progress: &progress, Output: output})
}

// FailMission fails a mission with a reason
func (c *Controller) FailMission(ctx context.Context, id, reason string) (*models.Mission, error) {
	status := models.MissionFailed
	return c.UpdateMission(ctx, id, models.MissionPatch{Status: &status, Error: &reason})
}

// CancelMission cancels a mission that has not ended
func (c *Controller) CancelMission(ctx context.Context, id string) (*models.Mission, error) {
	return c.transition(ctx, id, models.MissionCancelled)
}

// UpdateProgress sets progress without changing status
func (c *Controller) UpdateProgress(ctx context.Context, id string, progress int) (*models.Mission, error) {
	return c.UpdateMission(ctx, id, models.MissionPatch{Progress: &progress})
}

// DeleteMission removes a mission and sends its agents straight to idle
func (c *Controller) DeleteMission(ctx context.Context, id string) error {
	c.mu.Lock()
	m, ok := c.store.Mission(id)
	if !ok {
		c.mu.Unlock()
		err := fmt.Errorf("mission %s: %w", id, models.ErrNotFound)
		c.fail("Failed to delete mission", err)
		return err
	}

	now := c.now()
	var freed []string
	c.store.Update(func(tx *store.Tx) {
		for _, a := range tx.LinkedAgents(id) {
			freed = append(freed, a.ID)
		}
		for _, a := range tx.AssignedAgents(&m) {
			if a.CurrentMissionID == "" {
				freed = append(freed, a.ID)
			}
		}
	})
	o := c.prepare(freed, []string{id})
	c.store.Update(func(tx *store.Tx) {
		for _, aid := range freed {
			if a := tx.Agent(aid); a != nil && lifecycle.FreedByDelete(a, id) {
				lifecycle.ReleaseOnDelete(a, now)
			}
		}
		tx.RemoveMission(id)
	})
	c.claim(o)
	c.mu.Unlock()

	err := c.p.DeleteMission(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.rollback(o)
		c.fail("Failed to delete mission", err)
		return err
	}
	c.release(o)
	c.notes.Push(models.NotifyInfo, "Mission Deleted", fmt.Sprintf("%q was removed", m.Title))
	return nil
}
