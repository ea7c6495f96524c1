package dispatch

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/qninhdt/c3/server/internal/models"
	"github.com/qninhdt/c3/server/internal/query"
	"github.com/qninhdt/c3/server/internal/selection"
	"github.com/qninhdt/c3/server/internal/store"
	"github.com/qninhdt/c3/server/internal/templates"
	"github.com/qninhdt/c3/server/internal/validation"
)

// CreateAgentFromTemplate recruits an agent from a catalog template the
// commander has unlocked. The agent shows up at once under a provisional id.
func (c *Controller) CreateAgentFromTemplate(ctx context.Context, templateID, name string, pos *models.Position3D) (*models.Agent, error) {
	t, ok := templates.ByID(templateID)
	if !ok {
		err := models.Invalid("template_id", "invalid template")
		c.fail("Failed to recruit agent", err)
		return nil, err
	}
	if name != "" {
		if err := validation.ValidateText("name", name, false, validation.MaxNameLength); err != nil {
			c.fail("Failed to recruit agent", err)
			return nil, err
		}
	}

	c.mu.Lock()
	user := c.store.User()
	if user == nil {
		c.mu.Unlock()
		err := fmt.Errorf("no session: %w", models.ErrUnauthorized)
		c.fail("Failed to recruit agent", err)
		return nil, err
	}
	if !t.Unlocked(user.Level, user.Tier) {
		c.mu.Unlock()
		err := models.Invalid("template_id", fmt.Sprintf("%s is not unlocked yet", t.Name))
		c.fail("Failed to recruit agent", err)
		return nil, err
	}

	tempID := tempPrefix + c.newID()
	agent := t.Instantiate(user.ID, name, pos, c.now())
	agent.ID = tempID
	o := c.prepare([]string{tempID}, nil)
	c.store.Update(func(tx *store.Tx) { tx.PutAgent(agent) })
	c.claim(o)
	c.mu.Unlock()

	created, err := c.p.CreateAgent(ctx, models.CreateAgentRequest{TemplateID: templateID, Name: name, Position: pos})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.rollback(o)
		c.fail("Failed to recruit agent", err)
		return nil, err
	}
	if c.owns(o, store.AgentKey(tempID)) {
		c.store.Update(func(tx *store.Tx) { tx.ReplaceAgent(tempID, *created) })
	}
	c.release(o)
	if c.sel.IsSelected(tempID) {
		c.sel.Remove(tempID)
		c.sel.SelectOne(created.ID, true)
	}
	c.notes.Success("Agent Recruited", fmt.Sprintf("%s joined the squad", created.Name))
	return created, nil
}

// RemoveAgent drops an agent from the store and the live selection. Saved
// control groups keep the id and skip it on recall.
func (c *Controller) RemoveAgent(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.store.RemoveAgent(id) {
		return false
	}
	c.touch(store.AgentKey(id))
	return true
}

// CreateZone stores a zone and adds it to the map
func (c *Controller) CreateZone(ctx context.Context, req models.CreateZoneRequest) (*models.Zone, error) {
	if err := validation.ValidateCreateZone(&req); err != nil {
		c.fail("Failed to create zone", err)
		return nil, err
	}
	z, err := c.p.CreateZone(ctx, req)
	if err != nil {
		c.fail("Failed to create zone", err)
		return nil, err
	}
	c.store.AddZone(*z)
	return z, nil
}

// UpdateProfile saves profile changes and stores the result
func (c *Controller) UpdateProfile(ctx context.Context, patch models.ProfilePatch) (*models.UserProfile, error) {
	if err := validation.ValidateProfilePatch(&patch); err != nil {
		c.fail("Failed to update profile", err)
		return nil, err
	}
	u, err := c.p.UpdateProfile(ctx, patch)
	if err != nil {
		c.fail("Failed to update profile", err)
		return nil, err
	}
	c.store.SetUser(u)
	return u, nil
}

// UpsertAPIKey stores a provider key
func (c *Controller) UpsertAPIKey(ctx context.Context, req models.UpsertAPIKeyRequest) (*models.APIKey, error) {
	if err := validation.ValidateAPIKey(&req); err != nil {
		c.fail("Failed to save API key", err)
		return nil, err
	}
	k, err := c.p.UpsertAPIKey(ctx, req)
	if err != nil {
		c.fail("Failed to save API key", err)
		return nil, err
	}
	c.notes.Success("API Key Saved", fmt.Sprintf("%s key stored", req.Provider))
	return k, nil
}

// SelectAllIdle selects every idle agent
func (c *Controller) SelectAllIdle() {
	c.SelectMatching(query.Idle)
}

// SelectMatching replaces the selection with the agents f matches
func (c *Controller) SelectMatching(f *query.AgentFilter) error {
	agents, err := f.Apply(c.store.Agents())
	if err != nil {
		return err
	}
	ids := make([]string, len(agents))
	for i, a := range agents {
		ids[i] = a.ID
	}
	c.sel.SelectMany(ids)
	return nil
}

// SaveControlGroup binds the current selection to group n and tags the
// agents with it. An empty selection or a group outside 1..9 does nothing.
func (c *Controller) SaveControlGroup(n int) bool {
	ids := c.sel.Selected()
	if len(ids) == 0 || !c.sel.SaveGroup(n, ids) {
		return false
	}
	c.store.Update(func(tx *store.Tx) {
		for _, id := range ids {
			if a := tx.Agent(id); a != nil {
				a.ControlGroup = n
			}
		}
	})
	return true
}

// RecallControlGroup selects the surviving members of group n
func (c *Controller) RecallControlGroup(n int) bool {
	return c.sel.RecallGroup(n, c.store.AgentExists)
}

// EndDrag finishes a box selection over every agent in the store
func (c *Controller) EndDrag(p selection.Projector) bool {
	agents := c.store.Agents()
	ids := make([]string, len(agents))
	for i, a := range agents {
		ids[i] = a.ID
	}
	return c.sel.EndDrag(ids, p)
}

// FocusMinimap points the camera at the world spot under a minimap click
func (c *Controller) FocusMinimap(click orb.Point, size float64) {
	w := selection.MinimapToWorld(click, size)
	c.store.SetCameraTarget(models.Position3D{X: w[0], Z: w[1]})
}
