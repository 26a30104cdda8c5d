package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"project_citabot/internal/entities"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, password_hash, role, is_active, wa_enabled, email, daily_limit, monthly_limit, created_at`

func scanUser(row pgx.Row) (*entities.User, error) {
	var u entities.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.IsActive, &u.WAEnabled,
		&u.Email, &u.DailyLimit, &u.MonthlyLimit, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, role, is_active, wa_enabled, email)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		user.Username, user.PasswordHash, user.Role, user.IsActive, user.WAEnabled, user.Email,
	).Scan(&user.ID, &user.CreatedAt)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	return scanUser(r.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE username = $1", username))
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (*entities.User, error) {
	return scanUser(r.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

// GetAllUsers returns every account, newest first
func (r *UserRepository) GetAllUsers(ctx context.Context) ([]entities.User, error) {
	rows, err := r.db.Query(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []entities.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// GetStats returns platform-wide account counters
func (r *UserRepository) GetStats(ctx context.Context) (*entities.PlatformStats, error) {
	var s entities.PlatformStats
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_active),
		       COUNT(*) FILTER (WHERE wa_enabled),
		       COUNT(*) FILTER (WHERE role = 'admin')
		FROM users`).Scan(&s.TotalUsers, &s.ActiveUsers, &s.WAEnabledUsers, &s.AdminCount)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *UserRepository) UpdateUserStatus(ctx context.Context, id int, active bool) (bool, error) {
	tag, err := r.db.Exec(ctx, "UPDATE users SET is_active = $1 WHERE id = $2", active, id)
	return tag.RowsAffected() > 0, err
}

func (r *UserRepository) UpdateWAEnabled(ctx context.Context, id int, enabled bool) (bool, error) {
	tag, err := r.db.Exec(ctx, "UPDATE users SET wa_enabled = $1 WHERE id = $2", enabled, id)
	return tag.RowsAffected() > 0, err
}

func (r *UserRepository) UpdateUserLimits(ctx context.Context, id int, daily, monthly int) (bool, error) {
	tag, err := r.db.Exec(ctx, "UPDATE users SET daily_limit = $1, monthly_limit = $2 WHERE id = $3", daily, monthly, id)
	return tag.RowsAffected() > 0, err
}

func (r *UserRepository) UpdateEmail(ctx context.Context, id int, email string) error {
	_, err := r.db.Exec(ctx, "UPDATE users SET email = $1 WHERE id = $2", email, id)
	return err
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int, hash string) error {
	_, err := r.db.Exec(ctx, "UPDATE users SET password_hash = $1 WHERE id = $2", hash, id)
	return err
}
