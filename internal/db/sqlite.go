// Package db is the SQLite-backed entity persistence layer. Every method is
// scoped to one user; rows owned by someone else are reported as not found.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/qninhdt/c3/server/internal/models"
)

// DB wraps database operations
type DB struct {
	conn  *sql.DB
	mu    sync.RWMutex
	now   func() time.Time
	newID func() string
}

// NewDB opens the database at dbPath and applies the schema.
// Use ":memory:" for a throwaway database.
func NewDB(dbPath string) (*DB, error) {
	dsn := dbPath
	if strings.Contains(dsn, "?") {
		dsn += "&_foreign_keys=on&_busy_timeout=5000"
	} else {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{
		conn:  conn,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate runs database migrations
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		commander_avatar TEXT NOT NULL DEFAULT 'general',
		base_name TEXT NOT NULL DEFAULT 'Command Base',
		primary_mission_type TEXT NOT NULL DEFAULT 'mixed',
		tier TEXT NOT NULL DEFAULT 'free',
		level INTEGER NOT NULL DEFAULT 1,
		experience INTEGER NOT NULL DEFAULT 0,
		achievements_json TEXT NOT NULL DEFAULT '[]',
		onboarding_completed BOOLEAN NOT NULL DEFAULT 0,
		onboarding_step INTEGER NOT NULL DEFAULT 0,
		last_active_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		template_id TEXT NOT NULL,
		name TEXT NOT NULL,
		class TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'idle',
		position_x REAL NOT NULL DEFAULT 0,
		position_y REAL NOT NULL DEFAULT 0,
		position_z REAL NOT NULL DEFAULT 0,
		target_json TEXT,
		current_mission_id TEXT,
		level INTEGER NOT NULL DEFAULT 1,
		experience INTEGER NOT NULL DEFAULT 0,
		stat_speed INTEGER NOT NULL,
		stat_accuracy INTEGER NOT NULL,
		stat_stamina INTEGER NOT NULL,
		stat_versatility INTEGER NOT NULL,
		skills_json TEXT NOT NULL DEFAULT '[]',
		missions_completed INTEGER NOT NULL DEFAULT 0,
		total_tasks_completed INTEGER NOT NULL DEFAULT 0,
		success_rate REAL NOT NULL DEFAULT 0,
		control_group INTEGER NOT NULL DEFAULT 0,
		custom_avatar TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		last_active_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS missions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT 'general',
		priority TEXT NOT NULL DEFAULT 'normal',
		blueprint_json TEXT NOT NULL DEFAULT '{}',
		resources_json TEXT NOT NULL DEFAULT '{}',
		required_skills_json TEXT NOT NULL DEFAULT '[]',
		zone_id TEXT NOT NULL DEFAULT '',
		position_x REAL NOT NULL DEFAULT 0,
		position_y REAL NOT NULL DEFAULT 0,
		position_z REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		progress INTEGER NOT NULL DEFAULT 0,
		output_json TEXT NOT NULL DEFAULT '{}',
		error TEXT NOT NULL DEFAULT '',
		started_at DATETIME,
		completed_at DATETIME,
		estimated_duration INTEGER,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS mission_agents (
		mission_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		assigned_at DATETIME NOT NULL,
		PRIMARY KEY (mission_id, agent_id),
		FOREIGN KEY (mission_id) REFERENCES missions(id) ON DELETE CASCADE,
		FOREIGN KEY (agent_id) REFERENCES agents(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS zones (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		name TEXT NOT NULL,
		position_x REAL NOT NULL DEFAULT 0,
		position_y REAL NOT NULL DEFAULT 0,
		position_z REAL NOT NULL DEFAULT 0,
		width REAL NOT NULL DEFAULT 10,
		height REAL NOT NULL DEFAULT 10,
		depth REAL NOT NULL DEFAULT 10,
		max_capacity INTEGER NOT NULL DEFAULT 5,
		current_agents_json TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'empty',
		color TEXT NOT NULL DEFAULT '#4a90d9',
		mission_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS api_keys (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		sealed_key BLOB NOT NULL,
		is_valid BOOLEAN NOT NULL DEFAULT 0,
		last_validated_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (user_id, provider),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_agents_user_id ON agents(user_id);
	CREATE INDEX IF NOT EXISTS idx_missions_user_id ON missions(user_id);
	CREATE INDEX IF NOT EXISTS idx_mission_agents_agent_id ON mission_agents(agent_id);
	CREATE INDEX IF NOT EXISTS idx_zones_user_id ON zones(user_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

// withTx runs fn in a transaction, committing if it returns nil.
// Callers must hold db.mu.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// notFound maps sql.ErrNoRows to models.ErrNotFound
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

// encodeJSON encodes a bag column. nil encodes as empty.
func encodeJSON(v any, empty string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(data) == "null" {
		return empty, nil
	}
	return string(data), nil
}

// decodeJSON decodes a bag column. Empty text leaves v untouched.
func decodeJSON(s string, v any) error {
	if strings.TrimSpace(s) == "" || s == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// placeholders returns "?, ?, ?" for n parameters
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
