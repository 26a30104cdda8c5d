package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"project_citabot/internal/entities"
)

// TelegramRepository stores one bot token per user.
type TelegramRepository struct {
	db *pgxpool.Pool
}

func NewTelegramRepository(db *pgxpool.Pool) *TelegramRepository {
	return &TelegramRepository{db: db}
}

// Upsert replaces the token and leaves the bot inactive until connected.
func (r *TelegramRepository) Upsert(ctx context.Context, b *entities.TelegramBot) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO telegram_bots (user_id, token, bot_username, is_active, updated_at)
		VALUES ($1, $2, $3, FALSE, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			token = EXCLUDED.token,
			bot_username = EXCLUDED.bot_username,
			is_active = FALSE,
			updated_at = NOW()
		RETURNING is_active, updated_at`,
		b.UserID, b.Token, b.BotUsername,
	).Scan(&b.IsActive, &b.UpdatedAt)
}

func (r *TelegramRepository) Get(ctx context.Context, userID int) (*entities.TelegramBot, error) {
	var b entities.TelegramBot
	err := r.db.QueryRow(ctx, `
		SELECT user_id, token, bot_username, is_active, updated_at
		FROM telegram_bots WHERE user_id = $1`, userID,
	).Scan(&b.UserID, &b.Token, &b.BotUsername, &b.IsActive, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *TelegramRepository) SetActive(ctx context.Context, userID int, active bool) error {
	_, err := r.db.Exec(ctx, "UPDATE telegram_bots SET is_active = $2, updated_at = NOW() WHERE user_id = $1", userID, active)
	return err
}

func (r *TelegramRepository) Delete(ctx context.Context, userID int) (bool, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM telegram_bots WHERE user_id = $1", userID)
	return tag.RowsAffected() > 0, err
}

// ListActive returns the bots that were connected when the server stopped.
func (r *TelegramRepository) ListActive(ctx context.Context) ([]entities.TelegramBot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT user_id, token, bot_username, is_active, updated_at
		FROM telegram_bots WHERE is_active ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entities.TelegramBot
	for rows.Next() {
		var b entities.TelegramBot
		if err := rows.Scan(&b.UserID, &b.Token, &b.BotUsername, &b.IsActive, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
