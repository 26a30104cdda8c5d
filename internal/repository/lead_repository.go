package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"project_citabot/internal/entities"
)

type LeadRepository struct {
	db *pgxpool.Pool
}

func NewLeadRepository(db *pgxpool.Pool) *LeadRepository {
	return &LeadRepository{db: db}
}

const (
	columnColumns = `id, user_id, title, color, position, created_at`
	leadColumns   = `id, user_id, column_id, conversation_id, name, phone, email, message, notes, created_at, updated_at`
)

func scanColumn(row pgx.Row) (*entities.LeadColumn, error) {
	var c entities.LeadColumn
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.Color, &c.Position, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanLead(row pgx.Row) (*entities.Lead, error) {
	var l entities.Lead
	err := row.Scan(&l.ID, &l.UserID, &l.ColumnID, &l.ConversationID, &l.Name, &l.Phone,
		&l.Email, &l.Message, &l.Notes, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateColumn appends a column after the user's last one.
func (r *LeadRepository) CreateColumn(ctx context.Context, c *entities.LeadColumn) error {
	if c.Color == "" {
		c.Color = entities.DefaultColumnColor
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO lead_columns (user_id, title, color, position)
		VALUES ($1, $2, $3, (SELECT COALESCE(MAX(position) + 1, 0) FROM lead_columns WHERE user_id = $1))
		RETURNING id, position, created_at`,
		c.UserID, c.Title, c.Color,
	).Scan(&c.ID, &c.Position, &c.CreatedAt)
}

func (r *LeadRepository) GetColumn(ctx context.Context, userID int, id int64) (*entities.LeadColumn, error) {
	return scanColumn(r.db.QueryRow(ctx,
		"SELECT "+columnColumns+" FROM lead_columns WHERE id = $1 AND user_id = $2", id, userID))
}

// FirstColumn returns the leftmost column, or nil when the board is empty.
func (r *LeadRepository) FirstColumn(ctx context.Context, userID int) (*entities.LeadColumn, error) {
	return scanColumn(r.db.QueryRow(ctx,
		"SELECT "+columnColumns+" FROM lead_columns WHERE user_id = $1 ORDER BY position ASC, id ASC LIMIT 1", userID))
}

// ListColumns returns the board: columns in order, each with its leads.
func (r *LeadRepository) ListColumns(ctx context.Context, userID int) ([]entities.LeadColumn, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+columnColumns+" FROM lead_columns WHERE user_id = $1 ORDER BY position ASC, id ASC", userID)
	if err != nil {
		return nil, err
	}
	columns := []entities.LeadColumn{}
	index := map[int64]int{}
	for rows.Next() {
		c, err := scanColumn(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		c.Leads = []entities.Lead{}
		index[c.ID] = len(columns)
		columns = append(columns, *c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	leads, err := r.listLeads(ctx, "WHERE user_id = $1 ORDER BY updated_at DESC", userID)
	if err != nil {
		return nil, err
	}
	for _, l := range leads {
		if i, ok := index[l.ColumnID]; ok {
			columns[i].Leads = append(columns[i].Leads, l)
		}
	}
	return columns, nil
}

func (r *LeadRepository) UpdateColumn(ctx context.Context, c *entities.LeadColumn) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE lead_columns SET title = $1, color = $2, position = $3
		WHERE id = $4 AND user_id = $5`, c.Title, c.Color, c.Position, c.ID, c.UserID)
	return tag.RowsAffected() > 0, err
}

// DeleteColumn removes the column and its leads.
func (r *LeadRepository) DeleteColumn(ctx context.Context, userID int, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM lead_columns WHERE id = $1 AND user_id = $2", id, userID)
	return tag.RowsAffected() > 0, err
}

// SyncColumns inserts the columns whose lower-cased title is not on the
// board yet and returns how many were created.
func (r *LeadRepository) SyncColumns(ctx context.Context, userID int, columns []entities.LeadColumn) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, "SELECT LOWER(title) FROM lead_columns WHERE user_id = $1", userID)
	if err != nil {
		return 0, err
	}
	existing := map[string]bool{}
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			rows.Close()
			return 0, err
		}
		existing[title] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	created := 0
	for _, c := range columns {
		key := strings.ToLower(strings.TrimSpace(c.Title))
		if key == "" || existing[key] {
			continue
		}
		color := c.Color
		if color == "" {
			color = entities.DefaultColumnColor
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO lead_columns (user_id, title, color, position)
			VALUES ($1, $2, $3, (SELECT COALESCE(MAX(position) + 1, 0) FROM lead_columns WHERE user_id = $1))`,
			userID, strings.TrimSpace(c.Title), color); err != nil {
			return 0, fmt.Errorf("insert column %q: %w", c.Title, err)
		}
		existing[key] = true
		created++
	}
	return created, tx.Commit(ctx)
}

func (r *LeadRepository) listLeads(ctx context.Context, where string, args ...any) ([]entities.Lead, error) {
	rows, err := r.db.Query(ctx, "SELECT "+leadColumns+" FROM leads "+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []entities.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}

func (r *LeadRepository) CreateLead(ctx context.Context, l *entities.Lead) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO leads (user_id, column_id, conversation_id, name, phone, email, message, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		l.UserID, l.ColumnID, l.ConversationID, l.Name, l.Phone, l.Email, l.Message, l.Notes,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
}

func (r *LeadRepository) GetLead(ctx context.Context, userID int, id int64) (*entities.Lead, error) {
	return scanLead(r.db.QueryRow(ctx, "SELECT "+leadColumns+" FROM leads WHERE id = $1 AND user_id = $2", id, userID))
}

func (r *LeadRepository) UpdateLead(ctx context.Context, l *entities.Lead) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE leads SET name = $1, phone = $2, email = $3, message = $4, notes = $5, updated_at = NOW()
		WHERE id = $6 AND user_id = $7`,
		l.Name, l.Phone, l.Email, l.Message, l.Notes, l.ID, l.UserID)
	return tag.RowsAffected() > 0, err
}

// MoveLead moves a lead to another column of the same user.
func (r *LeadRepository) MoveLead(ctx context.Context, userID int, leadID, columnID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE leads SET column_id = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3
		  AND EXISTS (SELECT 1 FROM lead_columns WHERE id = $1 AND user_id = $3)`,
		columnID, leadID, userID)
	return tag.RowsAffected() > 0, err
}

func (r *LeadRepository) DeleteLead(ctx context.Context, userID int, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM leads WHERE id = $1 AND user_id = $2", id, userID)
	return tag.RowsAffected() > 0, err
}

func (r *LeadRepository) ListByColumn(ctx context.Context, userID int, columnID int64) ([]entities.Lead, error) {
	return r.listLeads(ctx, "WHERE user_id = $1 AND column_id = $2 ORDER BY created_at ASC", userID, columnID)
}

func (r *LeadRepository) ExistsForConversation(ctx context.Context, userID int, conversationID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM leads WHERE user_id = $1 AND conversation_id = $2)", userID, conversationID).Scan(&exists)
	return exists, err
}

func (r *LeadRepository) Count(ctx context.Context, userID int) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM leads WHERE user_id = $1", userID).Scan(&n)
	return n, err
}

// ImportRow is a contact already normalized to a WhatsApp JID.
type ImportRow struct {
	Line  int
	JID   string
	Name  string
	Phone string
	Email string
	Notes string
}

// ImportContacts upserts a conversation and creates a lead for every row in
// one transaction. A failing row is rolled back to its savepoint and
// reported in stats.Errors.
func (r *LeadRepository) ImportContacts(ctx context.Context, userID int, columnID int64, rows []ImportRow, aiActive bool, stats *entities.ImportStats) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, row := range rows {
		if err := importRow(ctx, tx, userID, columnID, row, aiActive, stats); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("Fila %d: %v", row.Line, err))
			continue
		}
		stats.Processed++
	}
	return tx.Commit(ctx)
}

func importRow(ctx context.Context, tx pgx.Tx, userID int, columnID int64, row ImportRow, aiActive bool, stats *entities.ImportStats) error {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return err
	}
	defer sp.Rollback(ctx)

	var conversationID int64
	var inserted bool
	err = sp.QueryRow(ctx, `
		INSERT INTO conversations (user_id, platform, external_id, contact_name, ai_active)
		VALUES ($1, 'whatsapp', $2, $3, $4)
		ON CONFLICT (user_id, external_id) DO UPDATE SET
			contact_name = CASE WHEN EXCLUDED.contact_name <> '' THEN EXCLUDED.contact_name ELSE conversations.contact_name END
		RETURNING id, (xmax = 0)`,
		userID, row.JID, row.Name, aiActive,
	).Scan(&conversationID, &inserted)
	if err != nil {
		return err
	}

	var exists bool
	if err := sp.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM leads WHERE user_id = $1 AND conversation_id = $2)", userID, conversationID).Scan(&exists); err != nil {
		return err
	}

	leadCreated := false
	if !exists {
		if _, err := sp.Exec(ctx, `
			INSERT INTO leads (user_id, column_id, conversation_id, name, phone, email, message, notes)
			VALUES ($1, $2, $3, $4, $5, $6, 'Contacto importado desde archivo', $7)`,
			userID, columnID, conversationID, row.Name, row.Phone, row.Email, row.Notes); err != nil {
			return err
		}
		leadCreated = true
	}

	if err := sp.Commit(ctx); err != nil {
		return err
	}

	if inserted {
		stats.ConversationsCreated++
	} else {
		stats.ConversationsUpdated++
	}
	if leadCreated {
		stats.LeadsCreated++
	} else {
		stats.LeadsSkipped++
	}
	return nil
}
