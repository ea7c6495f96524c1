package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/qninhdt/c3/server/internal/models"
	"github.com/qninhdt/c3/server/internal/templates"
)

const userColumns = `id, email, display_name, avatar_url, commander_avatar, base_name,
	primary_mission_type, tier, level, experience, achievements_json,
	onboarding_completed, onboarding_step, last_active_at, created_at, updated_at`

// Credentials is what login needs to check a password
type Credentials struct {
	UserID       string
	Email        string
	PasswordHash string
}

func scanUser(s scanner) (*models.UserProfile, error) {
	var (
		u    models.UserProfile
		achv string
	)
	err := s.Scan(&u.ID, &u.Email, &u.DisplayName, &u.AvatarURL, &u.CommanderAvatar, &u.BaseName,
		&u.PrimaryMissionType, &u.Tier, &u.Level, &u.Experience, &achv,
		&u.OnboardingCompleted, &u.OnboardingStep, &u.LastActiveAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := decodeJSON(achv, &u.Achievements); err != nil {
		return nil, fmt.Errorf("user %s achievements: %w", u.ID, err)
	}
	if u.Achievements == nil {
		u.Achievements = []string{}
	}
	return &u, nil
}

func getUser(ctx context.Context, q querier, userID string) (*models.UserProfile, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return u, nil
}

// Signup creates the account with its default zones and starter agents in
// one transaction. A taken email is InvalidInput.
func (db *DB) Signup(ctx context.Context, email, passwordHash, displayName string) (*models.SignupResult, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := db.now()
	userID := db.newID()
	result := &models.SignupResult{}

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE email = ?`, email).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if exists > 0 {
			return models.Invalid("email", "Email already registered")
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO users (id, email, password_hash, display_name, last_active_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, userID, email, passwordHash, displayName, now, now, now)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE") {
				return models.Invalid("email", "Email already registered")
			}
			return fmt.Errorf("failed to insert user: %w", err)
		}

		for _, z := range defaultZones(userID, now) {
			z.ID = db.newID()
			if err := insertZone(ctx, tx, &z); err != nil {
				return err
			}
			result.Zones = append(result.Zones, z)
		}

		for _, a := range starterAgents(userID, now) {
			a.ID = db.newID()
			if err := insertAgent(ctx, tx, &a); err != nil {
				return err
			}
			result.Agents = append(result.Agents, a)
		}

		result.Profile, err = getUser(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CredentialsByEmail looks up the password hash for login
func (db *DB) CredentialsByEmail(ctx context.Context, email string) (*Credentials, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var c Credentials
	err := db.conn.QueryRowContext(ctx, `SELECT id, email, password_hash FROM users WHERE email = ?`, email).
		Scan(&c.UserID, &c.Email, &c.PasswordHash)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &c, nil
}

// GetProfile returns the user's profile
func (db *DB) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return getUser(ctx, db.conn, userID)
}

// TouchProfile records activity
func (db *DB) TouchProfile(ctx context.Context, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.ExecContext(ctx, `UPDATE users SET last_active_at = ? WHERE id = ?`, db.now(), userID)
	if err != nil {
		return fmt.Errorf("failed to touch user: %w", err)
	}
	return nil
}

// UpdateProfile applies the non-nil fields of patch
func (db *DB) UpdateProfile(ctx context.Context, userID string, patch models.ProfilePatch) (*models.UserProfile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	sets := []string{}
	args := []any{}
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if patch.DisplayName != nil {
		add("display_name", *patch.DisplayName)
	}
	if patch.CommanderAvatar != nil {
		add("commander_avatar", *patch.CommanderAvatar)
	}
	if patch.BaseName != nil {
		add("base_name", *patch.BaseName)
	}
	if patch.PrimaryMissionType != nil {
		add("primary_mission_type", *patch.PrimaryMissionType)
	}
	if patch.OnboardingCompleted != nil {
		add("onboarding_completed", *patch.OnboardingCompleted)
	}
	if patch.OnboardingStep != nil {
		add("onboarding_step", *patch.OnboardingStep)
	}

	var profile *models.UserProfile
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if len(sets) > 0 {
			add("updated_at", db.now())
			args = append(args, userID)
			res, err := tx.ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
			if err != nil {
				return fmt.Errorf("failed to update user: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("user: %w", models.ErrNotFound)
			}
		}
		var err error
		profile, err = getUser(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// defaultZones is the map every new account starts with
func defaultZones(userID string, now time.Time) []models.Zone {
	zone := func(typ models.ZoneType, name string, x, z float64, color string, capacity int) models.Zone {
		return models.Zone{
			UserID:        userID,
			Type:          typ,
			Name:          name,
			Position:      models.Position3D{X: x, Z: z},
			Size:          defaultZoneSize,
			MaxCapacity:   capacity,
			CurrentAgents: []string{},
			Status:        models.ZoneEmpty,
			Color:         color,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}
	return []models.Zone{
		zone(models.ZoneBarracks, "Barracks", -30, 0, "#4CAF50", 20),
		zone(models.ZoneMission, "Mission Zone Alpha", 20, -20, "#8B5CF6", 5),
		zone(models.ZoneMission, "Mission Zone Beta", 20, 20, "#00D4FF", 5),
		zone(models.ZoneMission, "Mission Zone Gamma", 50, 0, "#F59E0B", 5),
	}
}

// starterAgents is the squad every new account starts with
func starterAgents(userID string, now time.Time) []models.Agent {
	starters := []struct {
		template string
		name     string
		pos      models.Position3D
	}{
		{templates.StarterScout, "Scout Alpha", models.Position3D{X: -35, Z: -5}},
		{templates.StarterBuilder, "Builder Prime", models.Position3D{X: -30}},
		{templates.StarterCourier, "Courier Swift", models.Position3D{X: -25, Z: 5}},
	}

	agents := make([]models.Agent, 0, len(starters))
	for _, s := range starters {
		t, ok := templates.ByID(s.template)
		if !ok {
			continue
		}
		pos := s.pos
		agents = append(agents, t.Instantiate(userID, s.name, &pos, now))
	}
	return agents
}
