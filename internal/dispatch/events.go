package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/qninhdt/c3/server/internal/events"
	"github.com/qninhdt/c3/server/internal/models"
	"github.com/qninhdt/c3/server/internal/store"
)

// EventSource delivers server events until ctx ends
type EventSource interface {
	Listen(ctx context.Context, fn func(events.Event)) error
}

// Follow applies events from src until it stops
func (c *Controller) Follow(ctx context.Context, src EventSource) error {
	return src.Listen(ctx, func(ev events.Event) {
		if err := c.ApplyEvent(ev); err != nil {
			c.logger.Warn("Dropped server event", zap.String("type", string(ev.Type)), zap.Error(err))
		}
	})
}

// ApplyEvent folds a server push into the store. An entity older than the
// stored one by updatedAt is ignored. An applied event supersedes commands
// still in flight on the same entity.
func (c *Controller) ApplyEvent(ev events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Type {
	case events.TypeAgentUpdated:
		var a models.Agent
		if err := ev.Decode(&a); err != nil {
			return err
		}
		if cur, ok := c.store.Agent(a.ID); ok && a.UpdatedAt.Before(cur.UpdatedAt) {
			return nil
		}
		c.store.Update(func(tx *store.Tx) { tx.PutAgent(a) })
		c.touch(store.AgentKey(a.ID))

	case events.TypeMissionUpdated, events.TypeMissionCompleted, events.TypeMissionFailed:
		var m models.Mission
		if err := ev.Decode(&m); err != nil {
			return err
		}
		if cur, ok := c.store.Mission(m.ID); ok && m.UpdatedAt.Before(cur.UpdatedAt) {
			return nil
		}
		c.store.Update(func(tx *store.Tx) { tx.PutMission(m) })
		c.touch(store.MissionKey(m.ID))

	case events.TypeMissionProgress:
		var p events.ProgressPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		applied := c.store.UpdateMission(p.MissionID, func(m *models.Mission) {
			if p.UpdatedAt.Before(m.UpdatedAt) {
				return
			}
			m.Progress = p.Progress
			m.UpdatedAt = p.UpdatedAt
		})
		if applied {
			c.touch(store.MissionKey(p.MissionID))
		}

	case events.TypeMissionDeleted:
		var p events.DeletedPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		if c.store.RemoveMission(p.MissionID) {
			c.touch(store.MissionKey(p.MissionID))
		}

	case events.TypeZoneUpdated:
		var z models.Zone
		if err := ev.Decode(&z); err != nil {
			return err
		}
		c.store.Update(func(tx *store.Tx) { tx.PutZone(z) })

	case events.TypeNotification:
		var n models.Notification
		if err := ev.Decode(&n); err != nil {
			return err
		}
		c.notes.Add(n)

	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	return nil
}
