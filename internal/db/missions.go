package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/qninhdt/c3/server/internal/lifecycle"
	"github.com/qninhdt/c3/server/internal/models"
)

const missionColumns = `id, user_id, title, description, type, priority,
	blueprint_json, resources_json, required_skills_json, zone_id,
	position_x, position_y, position_z, status, progress, output_json, error,
	started_at, completed_at, estimated_duration, created_at, updated_at`

// MissionChange is a mission write together with the agents it touched
type MissionChange struct {
	Mission *models.Mission
	Agents  []models.Agent
	Effect  lifecycle.Effect
}

func scanMission(s scanner) (*models.Mission, error) {
	var (
		m                            models.Mission
		blueprint, resources, skills string
		output                       string
		startedAt, completedAt       sql.NullTime
		estimated                    sql.NullInt64
	)
	err := s.Scan(&m.ID, &m.UserID, &m.Title, &m.Description, &m.Type, &m.Priority,
		&blueprint, &resources, &skills, &m.ZoneID,
		&m.Position.X, &m.Position.Y, &m.Position.Z, &m.Status, &m.Progress, &output, &m.Error,
		&startedAt, &completedAt, &estimated, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := decodeJSON(blueprint, &m.Blueprint); err != nil {
		return nil, fmt.Errorf("mission %s blueprint: %w", m.ID, err)
	}
	if err := decodeJSON(resources, &m.Resources); err != nil {
		return nil, fmt.Errorf("mission %s resources: %w", m.ID, err)
	}
	if err := decodeJSON(skills, &m.RequiredSkills); err != nil {
		return nil, fmt.Errorf("mission %s skills: %w", m.ID, err)
	}
	if err := decodeJSON(output, &m.Output); err != nil {
		return nil, fmt.Errorf("mission %s output: %w", m.ID, err)
	}
	if m.Resources == nil {
		m.Resources = map[string]any{}
	}
	if m.RequiredSkills == nil {
		m.RequiredSkills = []string{}
	}
	m.AssignedAgents = []string{}
	m.StartedAt = timePtr(startedAt)
	m.CompletedAt = timePtr(completedAt)
	if estimated.Valid {
		d := int(estimated.Int64)
		m.EstimatedDuration = &d
	}
	return &m, nil
}

type missionBags struct {
	blueprint, resources, skills, output string
}

func encodeMission(m *models.Mission) (missionBags, error) {
	var (
		b   missionBags
		err error
	)
	if b.blueprint, err = encodeJSON(m.Blueprint, "{}"); err != nil {
		return b, fmt.Errorf("failed to encode blueprint: %w", err)
	}
	if b.resources, err = encodeJSON(m.Resources, "{}"); err != nil {
		return b, fmt.Errorf("failed to encode resources: %w", err)
	}
	if b.skills, err = encodeJSON(m.RequiredSkills, "[]"); err != nil {
		return b, fmt.Errorf("failed to encode required skills: %w", err)
	}
	if b.output, err = encodeJSON(m.Output, "{}"); err != nil {
		return b, fmt.Errorf("failed to encode output: %w", err)
	}
	return b, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func insertMission(ctx context.Context, q querier, m *models.Mission) error {
	b, err := encodeMission(m)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT INTO missions (`+missionColumns+`) VALUES (`+placeholders(22)+`)`,
		m.ID, m.UserID, m.Title, m.Description, m.Type, m.Priority,
		b.blueprint, b.resources, b.skills, m.ZoneID,
		m.Position.X, m.Position.Y, m.Position.Z, m.Status, m.Progress, b.output, m.Error,
		nullTime(m.StartedAt), nullTime(m.CompletedAt), nullInt(m.EstimatedDuration), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert mission: %w", err)
	}
	return nil
}

// saveMission writes the fields a patch or assignment can change
func saveMission(ctx context.Context, q querier, m *models.Mission) error {
	b, err := encodeMission(m)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		UPDATE missions
		SET status = ?, progress = ?, output_json = ?, error = ?,
		    started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, m.Status, m.Progress, b.output, m.Error,
		nullTime(m.StartedAt), nullTime(m.CompletedAt), m.UpdatedAt, m.ID, m.UserID)
	if err != nil {
		return fmt.Errorf("failed to update mission: %w", err)
	}
	return nil
}

func assignedAgents(ctx context.Context, q querier, missionID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT agent_id FROM mission_agents WHERE mission_id = ? ORDER BY assigned_at, rowid
	`, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func getMission(ctx context.Context, q querier, userID, missionID string) (*models.Mission, error) {
	row := q.QueryRowContext(ctx, `SELECT `+missionColumns+` FROM missions WHERE id = ? AND user_id = ?`, missionID, userID)
	m, err := scanMission(row)
	if err != nil {
		return nil, notFound(err, "mission")
	}
	if m.AssignedAgents, err = assignedAgents(ctx, q, m.ID); err != nil {
		return nil, err
	}
	return m, nil
}

// ListMissions returns the user's missions, newest first
func (db *DB) ListMissions(ctx context.Context, userID string) ([]models.Mission, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+missionColumns+` FROM missions WHERE user_id = ? ORDER BY created_at DESC, rowid DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}

	missions := make([]models.Mission, 0)
	index := map[string]int{}
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan mission: %w", err)
		}
		index[m.ID] = len(missions)
		missions = append(missions, *m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows must be closed before the next query on the single connection.
	links, err := db.conn.QueryContext(ctx, `
		SELECT ma.mission_id, ma.agent_id
		FROM mission_agents ma JOIN missions m ON m.id = ma.mission_id
		WHERE m.user_id = ?
		ORDER BY ma.assigned_at, ma.rowid
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}
	defer links.Close()

	for links.Next() {
		var missionID, agentID string
		if err := links.Scan(&missionID, &agentID); err != nil {
			return nil, err
		}
		if i, ok := index[missionID]; ok {
			missions[i].AssignedAgents = append(missions[i].AssignedAgents, agentID)
		}
	}
	return missions, links.Err()
}

// GetMission returns one of the user's missions
func (db *DB) GetMission(ctx context.Context, userID, missionID string) (*models.Mission, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return getMission(ctx, db.conn, userID, missionID)
}

// loadAssignable fetches agents for assignment to missionID. Unknown ids are
// InvalidInput and agents busy elsewhere are Conflict. Ids already on the
// mission are skipped.
func loadAssignable(ctx context.Context, q querier, userID string, m *models.Mission, ids []string) ([]*models.Agent, error) {
	seen := map[string]bool{}
	var out []*models.Agent
	for _, id := range ids {
		if seen[id] || m.HasAgent(id) {
			continue
		}
		seen[id] = true

		a, err := getAgent(ctx, q, userID, id)
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.Invalid("agent_ids", fmt.Sprintf("unknown agent %s", id))
		}
		if err != nil {
			return nil, err
		}
		if err := lifecycle.CheckAvailable(a, m.ID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (db *DB) deploy(ctx context.Context, tx *sql.Tx, m *models.Mission, agents []*models.Agent) ([]models.Agent, error) {
	now := db.now()
	out := make([]models.Agent, 0, len(agents))
	for _, a := range agents {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO mission_agents (mission_id, agent_id, assigned_at) VALUES (?, ?, ?)
		`, m.ID, a.ID, now); err != nil {
			return nil, fmt.Errorf("failed to assign agent %s: %w", a.ID, err)
		}
		lifecycle.Deploy(a, m.ID, now)
		if err := saveAgentState(ctx, tx, a); err != nil {
			return nil, err
		}
		m.AssignedAgents = append(m.AssignedAgents, a.ID)
		out = append(out, *a)
	}
	return out, nil
}

// CreateMission stores a mission and deploys the requested agents in one
// transaction
func (db *DB) CreateMission(ctx context.Context, userID string, req models.CreateMissionRequest) (*MissionChange, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := db.now()
	m := &models.Mission{
		ID:                db.newID(),
		UserID:            userID,
		Title:             req.Title,
		Description:       req.Description,
		Type:              req.Type,
		Priority:          req.Priority,
		Blueprint:         req.Blueprint,
		Resources:         req.Resources,
		RequiredSkills:    req.RequiredSkills,
		ZoneID:            req.ZoneID,
		Status:            models.MissionPending,
		AssignedAgents:    []string{},
		EstimatedDuration: req.EstimatedDuration,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if m.Type == "" {
		m.Type = "general"
	}
	if m.Priority == "" {
		m.Priority = models.PriorityNormal
	}
	if m.Resources == nil {
		m.Resources = map[string]any{}
	}
	if m.RequiredSkills == nil {
		m.RequiredSkills = []string{}
	}
	if req.Position != nil {
		m.Position = *req.Position
	}

	change := &MissionChange{Mission: m}
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if m.ZoneID != "" {
			var n int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM zones WHERE id = ? AND user_id = ?`,
				m.ZoneID, userID).Scan(&n); err != nil {
				return fmt.Errorf("failed to check zone: %w", err)
			}
			if n == 0 {
				return models.Invalid("zone_id", "unknown zone")
			}
		}

		agents, err := loadAssignable(ctx, tx, userID, m, req.AgentIDs)
		if err != nil {
			return err
		}
		if err := insertMission(ctx, tx, m); err != nil {
			return err
		}
		change.Agents, err = db.deploy(ctx, tx, m, agents)
		return err
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// AssignAgents deploys more agents to an existing mission. Agents already
// on the mission are ignored.
func (db *DB) AssignAgents(ctx context.Context, userID, missionID string, agentIDs []string) (*MissionChange, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var change *MissionChange
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		m, err := getMission(ctx, tx, userID, missionID)
		if err != nil {
			return err
		}
		if err := lifecycle.CanAssign(m); err != nil {
			return err
		}

		agents, err := loadAssignable(ctx, tx, userID, m, agentIDs)
		if err != nil {
			return err
		}
		change = &MissionChange{Mission: m}
		if len(agents) == 0 {
			change.Agents = []models.Agent{}
			return nil
		}

		if change.Agents, err = db.deploy(ctx, tx, m, agents); err != nil {
			return err
		}
		m.UpdatedAt = db.now()
		return saveMission(ctx, tx, m)
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// UpdateMission applies a patch through the lifecycle in one transaction,
// releasing assigned agents when the mission ends
func (db *DB) UpdateMission(ctx context.Context, userID, missionID string, patch models.MissionPatch) (*MissionChange, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var change *MissionChange
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		m, err := getMission(ctx, tx, userID, missionID)
		if err != nil {
			return err
		}

		now := db.now()
		eff, err := lifecycle.ApplyPatch(m, patch, now)
		if err != nil {
			return err
		}
		change = &MissionChange{Mission: m, Effect: eff, Agents: []models.Agent{}}

		for _, id := range eff.Released {
			a, err := getAgent(ctx, tx, userID, id)
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if a.CurrentMissionID != "" && a.CurrentMissionID != m.ID {
				continue
			}
			if lifecycle.ApplyToAgent(a, eff, now) {
				if err := saveAgentState(ctx, tx, a); err != nil {
					return err
				}
				change.Agents = append(change.Agents, *a)
			}
		}

		return saveMission(ctx, tx, m)
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// DeleteMission removes a mission and returns its agents to idle in one
// transaction
func (db *DB) DeleteMission(ctx context.Context, userID, missionID string) ([]models.Agent, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	released := []models.Agent{}
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		m, err := getMission(ctx, tx, userID, missionID)
		if err != nil {
			return err
		}

		now := db.now()
		for _, id := range m.AssignedAgents {
			a, err := getAgent(ctx, tx, userID, id)
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if !lifecycle.FreedByDelete(a, m.ID) {
				continue
			}
			lifecycle.ReleaseOnDelete(a, now)
			if err := saveAgentState(ctx, tx, a); err != nil {
				return err
			}
			released = append(released, *a)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM missions WHERE id = ? AND user_id = ?`, m.ID, userID); err != nil {
			return fmt.Errorf("failed to delete mission: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}
