package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettingsRepository stores per-user bot settings as key/value pairs.
type SettingsRepository struct {
	db *pgxpool.Pool
}

func NewSettingsRepository(db *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns a setting value and whether it is set
func (r *SettingsRepository) Get(ctx context.Context, userID int, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow(ctx, "SELECT value FROM bot_settings WHERE user_id = $1 AND key = $2", userID, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *SettingsRepository) Set(ctx context.Context, userID int, key, value string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO bot_settings (user_id, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, userID, key, value)
	return err
}

func (r *SettingsRepository) GetAll(ctx context.Context, userID int) (map[string]string, error) {
	rows, err := r.db.Query(ctx, "SELECT key, value FROM bot_settings WHERE user_id = $1", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		settings[k] = v
	}
	return settings, rows.Err()
}
