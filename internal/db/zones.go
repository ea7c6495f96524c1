package db

import (
	"context"
	"fmt"

	"github.com/qninhdt/c3/server/internal/models"
)

// Zone defaults applied when a create request leaves them out
var defaultZoneSize = models.Size3D{Width: 10, Height: 10, Depth: 10}

const (
	defaultZoneCapacity = 5
	defaultZoneColor    = "#4a90d9"
)

const zoneColumns = `id, user_id, type, name, position_x, position_y, position_z,
	width, height, depth, max_capacity, current_agents_json, status, color,
	mission_id, created_at, updated_at`

func scanZone(s scanner) (*models.Zone, error) {
	var (
		z      models.Zone
		agents string
	)
	err := s.Scan(&z.ID, &z.UserID, &z.Type, &z.Name, &z.Position.X, &z.Position.Y, &z.Position.Z,
		&z.Size.Width, &z.Size.Height, &z.Size.Depth, &z.MaxCapacity, &agents, &z.Status, &z.Color,
		&z.MissionID, &z.CreatedAt, &z.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := decodeJSON(agents, &z.CurrentAgents); err != nil {
		return nil, fmt.Errorf("zone %s agents: %w", z.ID, err)
	}
	if z.CurrentAgents == nil {
		z.CurrentAgents = []string{}
	}
	return &z, nil
}

func insertZone(ctx context.Context, q querier, z *models.Zone) error {
	agents, err := encodeJSON(z.CurrentAgents, "[]")
	if err != nil {
		return fmt.Errorf("failed to encode zone agents: %w", err)
	}
	_, err = q.ExecContext(ctx, `INSERT INTO zones (`+zoneColumns+`) VALUES (`+placeholders(17)+`)`,
		z.ID, z.UserID, z.Type, z.Name, z.Position.X, z.Position.Y, z.Position.Z,
		z.Size.Width, z.Size.Height, z.Size.Depth, z.MaxCapacity, agents, z.Status, z.Color,
		z.MissionID, z.CreatedAt, z.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert zone: %w", err)
	}
	return nil
}

// ListZones returns the user's zones in creation order
func (db *DB) ListZones(ctx context.Context, userID string) ([]models.Zone, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, `SELECT `+zoneColumns+` FROM zones WHERE user_id = ? ORDER BY created_at, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	defer rows.Close()

	zones := make([]models.Zone, 0)
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan zone: %w", err)
		}
		zones = append(zones, *z)
	}
	return zones, rows.Err()
}

// CreateZone stores a zone, filling in size, capacity and color defaults
func (db *DB) CreateZone(ctx context.Context, userID string, req models.CreateZoneRequest) (*models.Zone, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := db.now()
	z := models.Zone{
		ID:            db.newID(),
		UserID:        userID,
		Type:          req.Type,
		Name:          req.Name,
		Size:          defaultZoneSize,
		MaxCapacity:   defaultZoneCapacity,
		CurrentAgents: []string{},
		Status:        models.ZoneEmpty,
		Color:         defaultZoneColor,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.Position != nil {
		z.Position = *req.Position
	}
	if req.Size != nil {
		z.Size = *req.Size
	}
	if req.MaxCapacity > 0 {
		z.MaxCapacity = req.MaxCapacity
	}
	if req.Color != "" {
		z.Color = req.Color
	}

	if err := insertZone(ctx, db.conn, &z); err != nil {
		return nil, err
	}
	return &z, nil
}
