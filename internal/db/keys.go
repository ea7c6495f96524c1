package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/qninhdt/c3/server/internal/models"
)

func scanKey(s scanner) (*models.APIKey, error) {
	var (
		k         models.APIKey
		validated sql.NullTime
	)
	if err := s.Scan(&k.ID, &k.UserID, &k.Provider, &k.IsValid, &validated, &k.CreatedAt, &k.UpdatedAt); err != nil {
		return nil, err
	}
	k.LastValidatedAt = timePtr(validated)
	return &k, nil
}

// ListAPIKeys returns the user's key records without secrets
func (db *DB) ListAPIKeys(ctx context.Context, userID string) ([]models.APIKey, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, user_id, provider, is_valid, last_validated_at, created_at, updated_at
		FROM api_keys WHERE user_id = ? ORDER BY provider
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	keys := make([]models.APIKey, 0)
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, *k)
	}
	return keys, rows.Err()
}

// UpsertAPIKey stores the sealed secret for a provider, replacing any
// previous key. A key that passed validation on the way in is stored valid
// and stamped with the time of that check.
func (db *DB) UpsertAPIKey(ctx context.Context, userID string, provider models.APIProvider, sealed []byte) (*models.APIKey, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := db.now()
	var key *models.APIKey
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO api_keys (id, user_id, provider, sealed_key, is_valid, last_validated_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, 1, ?, ?, ?)
			ON CONFLICT(user_id, provider) DO UPDATE SET
				sealed_key = excluded.sealed_key,
				is_valid = 1,
				last_validated_at = excluded.last_validated_at,
				updated_at = excluded.updated_at
		`, db.newID(), userID, provider, sealed, now, now, now)
		if err != nil {
			return fmt.Errorf("failed to upsert api key: %w", err)
		}

		row := tx.QueryRowContext(ctx, `
			SELECT id, user_id, provider, is_valid, last_validated_at, created_at, updated_at
			FROM api_keys WHERE user_id = ? AND provider = ?
		`, userID, provider)
		key, err = scanKey(row)
		if err != nil {
			return notFound(err, "api key")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

// SealedAPIKey returns the stored secret for a provider
func (db *DB) SealedAPIKey(ctx context.Context, userID string, provider models.APIProvider) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var sealed []byte
	err := db.conn.QueryRowContext(ctx, `SELECT sealed_key FROM api_keys WHERE user_id = ? AND provider = ?`,
		userID, provider).Scan(&sealed)
	if err != nil {
		return nil, notFound(err, "api key")
	}
	return sealed, nil
}

// DeleteAPIKey removes a provider's key. A missing key is NotFound.
func (db *DB) DeleteAPIKey(ctx context.Context, userID string, provider models.APIProvider) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.ExecContext(ctx, `DELETE FROM api_keys WHERE user_id = ? AND provider = ?`, userID, provider)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("api key: %w", models.ErrNotFound)
	}
	return nil
}
