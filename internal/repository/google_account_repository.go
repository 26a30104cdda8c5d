package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"project_citabot/internal/entities"
)

type GoogleAccountRepository struct {
	db *pgxpool.Pool
}

func NewGoogleAccountRepository(db *pgxpool.Pool) *GoogleAccountRepository {
	return &GoogleAccountRepository{db: db}
}

// Upsert stores the token. An empty refresh token keeps the stored one,
// Google only sends it on the first consent.
func (r *GoogleAccountRepository) Upsert(ctx context.Context, a *entities.GoogleAccount) error {
	var expiry *time.Time
	if !a.Expiry.IsZero() {
		expiry = &a.Expiry
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO google_accounts (user_id, email, access_token, refresh_token, token_type, expiry, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE google_accounts.email END,
			access_token = EXCLUDED.access_token,
			refresh_token = CASE WHEN EXCLUDED.refresh_token <> '' THEN EXCLUDED.refresh_token ELSE google_accounts.refresh_token END,
			token_type = EXCLUDED.token_type,
			expiry = EXCLUDED.expiry,
			updated_at = NOW()
		RETURNING updated_at`,
		a.UserID, a.Email, a.AccessToken, a.RefreshToken, a.TokenType, expiry,
	).Scan(&a.UpdatedAt)
}

func (r *GoogleAccountRepository) Get(ctx context.Context, userID int) (*entities.GoogleAccount, error) {
	var a entities.GoogleAccount
	var expiry *time.Time
	err := r.db.QueryRow(ctx, `
		SELECT user_id, email, access_token, refresh_token, token_type, expiry, updated_at
		FROM google_accounts WHERE user_id = $1`, userID,
	).Scan(&a.UserID, &a.Email, &a.AccessToken, &a.RefreshToken, &a.TokenType, &expiry, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if expiry != nil {
		a.Expiry = *expiry
	}
	return &a, nil
}

func (r *GoogleAccountRepository) Delete(ctx context.Context, userID int) (bool, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM google_accounts WHERE user_id = $1", userID)
	return tag.RowsAffected() > 0, err
}
