package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/qninhdt/c3/server/internal/models"
)

const agentColumns = `id, user_id, template_id, name, class, status,
	position_x, position_y, position_z, target_json, current_mission_id,
	level, experience, stat_speed, stat_accuracy, stat_stamina, stat_versatility,
	skills_json, missions_completed, total_tasks_completed, success_rate,
	control_group, custom_avatar, created_at, updated_at, last_active_at`

func scanAgent(s scanner) (*models.Agent, error) {
	var (
		a          models.Agent
		targetJSON sql.NullString
		missionID  sql.NullString
		skillsJSON string
	)
	err := s.Scan(&a.ID, &a.UserID, &a.TemplateID, &a.Name, &a.Class, &a.Status,
		&a.Position.X, &a.Position.Y, &a.Position.Z, &targetJSON, &missionID,
		&a.Level, &a.Experience, &a.Stats.Speed, &a.Stats.Accuracy, &a.Stats.Stamina, &a.Stats.Versatility,
		&skillsJSON, &a.MissionsCompleted, &a.TotalTasksCompleted, &a.SuccessRate,
		&a.ControlGroup, &a.CustomAvatar, &a.CreatedAt, &a.UpdatedAt, &a.LastActiveAt)
	if err != nil {
		return nil, err
	}

	if targetJSON.Valid && targetJSON.String != "" {
		var p models.Position3D
		if err := decodeJSON(targetJSON.String, &p); err != nil {
			return nil, fmt.Errorf("agent %s target: %w", a.ID, err)
		}
		a.TargetPosition = &p
	}
	a.CurrentMissionID = missionID.String
	if err := decodeJSON(skillsJSON, &a.Skills); err != nil {
		return nil, fmt.Errorf("agent %s skills: %w", a.ID, err)
	}
	if a.Skills == nil {
		a.Skills = []string{}
	}
	return &a, nil
}

func insertAgent(ctx context.Context, q querier, a *models.Agent) error {
	skills, err := encodeJSON(a.Skills, "[]")
	if err != nil {
		return fmt.Errorf("failed to encode skills: %w", err)
	}
	var target sql.NullString
	if a.TargetPosition != nil {
		s, err := encodeJSON(a.TargetPosition, "")
		if err != nil {
			return fmt.Errorf("failed to encode target: %w", err)
		}
		target = nullString(s)
	}

	_, err = q.ExecContext(ctx, `INSERT INTO agents (`+agentColumns+`)
		VALUES (`+placeholders(26)+`)`,
		a.ID, a.UserID, a.TemplateID, a.Name, a.Class, a.Status,
		a.Position.X, a.Position.Y, a.Position.Z, target, nullString(a.CurrentMissionID),
		a.Level, a.Experience, a.Stats.Speed, a.Stats.Accuracy, a.Stats.Stamina, a.Stats.Versatility,
		skills, a.MissionsCompleted, a.TotalTasksCompleted, a.SuccessRate,
		a.ControlGroup, a.CustomAvatar, a.CreatedAt, a.UpdatedAt, a.LastActiveAt)
	if err != nil {
		return fmt.Errorf("failed to insert agent: %w", err)
	}
	return nil
}

// saveAgentState writes the fields the mission lifecycle changes
func saveAgentState(ctx context.Context, q querier, a *models.Agent) error {
	_, err := q.ExecContext(ctx, `
		UPDATE agents
		SET status = ?, current_mission_id = ?, missions_completed = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, a.Status, nullString(a.CurrentMissionID), a.MissionsCompleted, a.UpdatedAt, a.ID, a.UserID)
	if err != nil {
		return fmt.Errorf("failed to update agent %s: %w", a.ID, err)
	}
	return nil
}

func getAgent(ctx context.Context, q querier, userID, agentID string) (*models.Agent, error) {
	row := q.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = ? AND user_id = ?`, agentID, userID)
	a, err := scanAgent(row)
	if err != nil {
		return nil, notFound(err, "agent")
	}
	return a, nil
}

func listAgents(ctx context.Context, q querier, userID string) ([]models.Agent, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE user_id = ? ORDER BY created_at, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	agents := make([]models.Agent, 0)
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

// ListAgents returns the user's agents in creation order
func (db *DB) ListAgents(ctx context.Context, userID string) ([]models.Agent, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return listAgents(ctx, db.conn, userID)
}

// GetAgent returns one of the user's agents
func (db *DB) GetAgent(ctx context.Context, userID, agentID string) (*models.Agent, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return getAgent(ctx, db.conn, userID, agentID)
}

// CreateAgent stores a new agent, assigning its id
func (db *DB) CreateAgent(ctx context.Context, a models.Agent) (*models.Agent, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	a = a.Clone()
	a.ID = db.newID()
	if a.CreatedAt.IsZero() {
		now := db.now()
		a.CreatedAt, a.UpdatedAt, a.LastActiveAt = now, now, now
	}
	if a.Skills == nil {
		a.Skills = []string{}
	}
	if err := insertAgent(ctx, db.conn, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
