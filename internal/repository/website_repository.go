package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"project_citabot/internal/entities"
)

type WebsiteRepository struct {
	db *pgxpool.Pool
}

func NewWebsiteRepository(db *pgxpool.Pool) *WebsiteRepository {
	return &WebsiteRepository{db: db}
}

const websiteColumns = `id, user_id, business_name, business_description, slug, sections, social_media,
	main_video, theme_colors, COALESCE(custom_domain, ''), is_published, created_at, updated_at`

func scanWebsite(row pgx.Row) (*entities.Website, error) {
	var w entities.Website
	var sections, social, video, theme []byte
	err := row.Scan(&w.ID, &w.UserID, &w.BusinessName, &w.BusinessDescription, &w.Slug, &sections, &social,
		&video, &theme, &w.CustomDomain, &w.IsPublished, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	w.Sections, w.SocialMedia, w.ThemeColors = sections, social, theme
	if len(video) > 0 {
		w.MainVideo = video
	}
	return &w, nil
}

// jsonParam passes raw JSON to a JSONB column, NULL when empty.
func jsonParam(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func (r *WebsiteRepository) Create(ctx context.Context, w *entities.Website) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO websites (user_id, business_name, business_description, slug, sections, social_media,
			main_video, theme_colors, custom_domain, is_published)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		w.UserID, w.BusinessName, w.BusinessDescription, w.Slug, jsonParam(w.Sections), jsonParam(w.SocialMedia),
		jsonParam(w.MainVideo), jsonParam(w.ThemeColors), nullable(w.CustomDomain), w.IsPublished,
	).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
}

func (r *WebsiteRepository) Update(ctx context.Context, w *entities.Website) (bool, error) {
	err := r.db.QueryRow(ctx, `
		UPDATE websites
		SET business_name = $1, business_description = $2, slug = $3, sections = $4, social_media = $5,
			main_video = $6, theme_colors = $7, custom_domain = $8, updated_at = NOW()
		WHERE id = $9 AND user_id = $10
		RETURNING updated_at`,
		w.BusinessName, w.BusinessDescription, w.Slug, jsonParam(w.Sections), jsonParam(w.SocialMedia),
		jsonParam(w.MainVideo), jsonParam(w.ThemeColors), nullable(w.CustomDomain), w.ID, w.UserID,
	).Scan(&w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (r *WebsiteRepository) Delete(ctx context.Context, userID int, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM websites WHERE id = $1 AND user_id = $2", id, userID)
	return tag.RowsAffected() > 0, err
}

func (r *WebsiteRepository) GetByID(ctx context.Context, userID int, id int64) (*entities.Website, error) {
	return scanWebsite(r.db.QueryRow(ctx, "SELECT "+websiteColumns+" FROM websites WHERE id = $1 AND user_id = $2", id, userID))
}

func (r *WebsiteRepository) List(ctx context.Context, userID int) ([]entities.Website, error) {
	rows, err := r.db.Query(ctx, "SELECT "+websiteColumns+" FROM websites WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []entities.Website{}
	for rows.Next() {
		w, err := scanWebsite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// SlugTaken reports whether another website of the user, other than
// exceptID, already uses slug.
func (r *WebsiteRepository) SlugTaken(ctx context.Context, userID int, slug string, exceptID int64) (bool, error) {
	var taken bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM websites WHERE user_id = $1 AND slug = $2 AND id <> $3)",
		userID, slug, exceptID).Scan(&taken)
	return taken, err
}

func (r *WebsiteRepository) SetPublished(ctx context.Context, userID int, id int64, published bool) (bool, error) {
	tag, err := r.db.Exec(ctx,
		"UPDATE websites SET is_published = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3",
		published, id, userID)
	return tag.RowsAffected() > 0, err
}

func (r *WebsiteRepository) GetPublished(ctx context.Context, userID int, slug string) (*entities.Website, error) {
	return scanWebsite(r.db.QueryRow(ctx,
		"SELECT "+websiteColumns+" FROM websites WHERE user_id = $1 AND slug = $2 AND is_published", userID, slug))
}

// GetPublishedBySlug returns the oldest published website using slug.
// Slugs are only unique per user.
func (r *WebsiteRepository) GetPublishedBySlug(ctx context.Context, slug string) (*entities.Website, error) {
	return scanWebsite(r.db.QueryRow(ctx,
		"SELECT "+websiteColumns+" FROM websites WHERE slug = $1 AND is_published ORDER BY created_at LIMIT 1", slug))
}

func (r *WebsiteRepository) GetPublishedByDomain(ctx context.Context, domain string) (*entities.Website, error) {
	return scanWebsite(r.db.QueryRow(ctx,
		"SELECT "+websiteColumns+" FROM websites WHERE custom_domain = $1 AND is_published", domain))
}
