package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"project_citabot/internal/entities"
)

type PersonalityRepository struct {
	db *pgxpool.Pool
}

func NewPersonalityRepository(db *pgxpool.Pool) *PersonalityRepository {
	return &PersonalityRepository{db: db}
}

const personalityColumns = `id, user_id, nombre, empresa, instrucciones, saludo, category, is_default, created_at, updated_at`

func scanPersonality(row pgx.Row) (*entities.Personality, error) {
	var p entities.Personality
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Company, &p.Instructions, &p.Greeting,
		&p.Category, &p.IsDefault, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// clearDefault unsets the user's default personality except keepID.
func clearDefault(ctx context.Context, tx pgx.Tx, userID int, keepID int64) error {
	_, err := tx.Exec(ctx, "UPDATE personalities SET is_default = FALSE WHERE user_id = $1 AND id <> $2 AND is_default", userID, keepID)
	return err
}

func (r *PersonalityRepository) Create(ctx context.Context, p *entities.Personality) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO personalities (user_id, nombre, empresa, instrucciones, saludo, category, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		p.UserID, p.Name, p.Company, p.Instructions, p.Greeting, p.Category, p.IsDefault,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}
	if p.IsDefault {
		if err := clearDefault(ctx, tx, p.UserID, p.ID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *PersonalityRepository) Update(ctx context.Context, p *entities.Personality) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE personalities
		SET nombre = $1, empresa = $2, instrucciones = $3, saludo = $4, category = $5, is_default = $6, updated_at = NOW()
		WHERE id = $7 AND user_id = $8`,
		p.Name, p.Company, p.Instructions, p.Greeting, p.Category, p.IsDefault, p.ID, p.UserID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if p.IsDefault {
		if err := clearDefault(ctx, tx, p.UserID, p.ID); err != nil {
			return false, err
		}
	}
	return true, tx.Commit(ctx)
}

func (r *PersonalityRepository) Delete(ctx context.Context, userID int, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM personalities WHERE id = $1 AND user_id = $2", id, userID)
	return tag.RowsAffected() > 0, err
}

func (r *PersonalityRepository) GetByID(ctx context.Context, userID int, id int64) (*entities.Personality, error) {
	return scanPersonality(r.db.QueryRow(ctx,
		"SELECT "+personalityColumns+" FROM personalities WHERE id = $1 AND user_id = $2", id, userID))
}

// GetDefault returns the default personality, falling back to the oldest one.
func (r *PersonalityRepository) GetDefault(ctx context.Context, userID int) (*entities.Personality, error) {
	return scanPersonality(r.db.QueryRow(ctx, `
		SELECT `+personalityColumns+` FROM personalities WHERE user_id = $1
		ORDER BY is_default DESC, created_at ASC LIMIT 1`, userID))
}

func (r *PersonalityRepository) List(ctx context.Context, userID int) ([]entities.Personality, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+personalityColumns+" FROM personalities WHERE user_id = $1 ORDER BY is_default DESC, created_at ASC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []entities.Personality{}
	for rows.Next() {
		p, err := scanPersonality(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// CreateMedia stores media attached to a personality.
func (r *PersonalityRepository) CreateMedia(ctx context.Context, m *entities.PersonalityMedia) error {
	meta := m.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO personality_media (user_id, personality_id, media_type, filename, mime_type, url, file_size, extracted_text, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		m.UserID, m.PersonalityID, m.MediaType, m.Filename, m.MimeType, m.URL, m.FileSize, m.ExtractedText, raw,
	).Scan(&m.ID, &m.CreatedAt)
}

func (r *PersonalityRepository) ListMedia(ctx context.Context, userID int, personalityID int64) ([]entities.PersonalityMedia, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, personality_id, media_type, filename, mime_type, url, file_size, extracted_text, metadata, created_at
		FROM personality_media WHERE user_id = $1 AND personality_id = $2
		ORDER BY created_at ASC`, userID, personalityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []entities.PersonalityMedia{}
	for rows.Next() {
		var m entities.PersonalityMedia
		var raw []byte
		if err := rows.Scan(&m.ID, &m.UserID, &m.PersonalityID, &m.MediaType, &m.Filename, &m.MimeType,
			&m.URL, &m.FileSize, &m.ExtractedText, &raw, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &m.Metadata)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PersonalityRepository) DeleteMedia(ctx context.Context, userID int, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM personality_media WHERE id = $1 AND user_id = $2", id, userID)
	return tag.RowsAffected() > 0, err
}
