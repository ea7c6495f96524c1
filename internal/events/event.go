// Package events carries server push updates to the command client
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/qninhdt/c3/server/internal/models"
)

// Type names a server event
type Type string

const (
	TypeAgentUpdated     Type = "agent:updated"
	TypeMissionUpdated   Type = "mission:updated"
	TypeMissionProgress  Type = "mission:progress"
	TypeMissionCompleted Type = "mission:completed"
	TypeMissionFailed    Type = "mission:failed"
	TypeMissionDeleted   Type = "mission:deleted"
	TypeZoneUpdated      Type = "zone:updated"
	TypeNotification     Type = "notification"
)

// Event is the envelope written to the stream
type Event struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ProgressPayload reports mission progress
type ProgressPayload struct {
	MissionID string    `json:"mission_id"`
	Progress  int       `json:"progress"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeletedPayload names a deleted mission
type DeletedPayload struct {
	MissionID string `json:"mission_id"`
}

// New wraps payload in an envelope
func New(typ Type, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode %s payload: %w", typ, err)
	}
	return Event{
		ID:        uuid.New().String(),
		Type:      typ,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into v
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

// AgentUpdated builds an agent:updated event
func AgentUpdated(a models.Agent) (Event, error) { return New(TypeAgentUpdated, a) }

// ZoneUpdated builds a zone:updated event
func ZoneUpdated(z models.Zone) (Event, error) { return New(TypeZoneUpdated, z) }

// MissionDeleted builds a mission:deleted event
func MissionDeleted(id string) (Event, error) {
	return New(TypeMissionDeleted, DeletedPayload{MissionID: id})
}

// Notify builds a notification event
func Notify(n models.Notification) (Event, error) { return New(TypeNotification, n) }

// ForMission picks the event type for a mission change: completed and
// failed missions get their own type, a progress-only change gets
// mission:progress, anything else mission:updated.
func ForMission(m models.Mission, progressOnly bool) (Event, error) {
	switch {
	case m.Status == models.MissionCompleted:
		return New(TypeMissionCompleted, m)
	case m.Status == models.MissionFailed:
		return New(TypeMissionFailed, m)
	case progressOnly:
		return New(TypeMissionProgress, ProgressPayload{
			MissionID: m.ID,
			Progress:  m.Progress,
			UpdatedAt: m.UpdatedAt,
		})
	}
	return New(TypeMissionUpdated, m)
}
