package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"project_citabot/internal/entities"
)

type ConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

const conversationColumns = `id, user_id, platform, external_id, contact_name, ai_active, personality_id, last_message_at, created_at`

func scanConversation(row pgx.Row, extra ...any) (*entities.Conversation, error) {
	var c entities.Conversation
	dest := append([]any{&c.ID, &c.UserID, &c.Platform, &c.ExternalID, &c.ContactName,
		&c.AIActive, &c.PersonalityID, &c.LastMessageAt, &c.CreatedAt}, extra...)
	err := row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Ensure upserts the conversation on (user_id, external_id) and reports
// whether it was created. A non-empty contact name refreshes the stored one.
func (r *ConversationRepository) Ensure(ctx context.Context, conv *entities.Conversation) (*entities.Conversation, bool, error) {
	var created bool
	c, err := scanConversation(r.db.QueryRow(ctx, `
		INSERT INTO conversations (user_id, platform, external_id, contact_name, ai_active, personality_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, external_id) DO UPDATE SET
			contact_name = CASE WHEN EXCLUDED.contact_name <> '' THEN EXCLUDED.contact_name ELSE conversations.contact_name END
		RETURNING `+conversationColumns+`, (xmax = 0)`,
		conv.UserID, conv.Platform, conv.ExternalID, conv.ContactName, conv.AIActive, conv.PersonalityID,
	), &created)
	if err != nil {
		return nil, false, err
	}
	return c, created, nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, userID int, id int64) (*entities.Conversation, error) {
	return scanConversation(r.db.QueryRow(ctx,
		"SELECT "+conversationColumns+" FROM conversations WHERE id = $1 AND user_id = $2", id, userID))
}

func (r *ConversationRepository) GetByExternalID(ctx context.Context, userID int, externalID string) (*entities.Conversation, error) {
	return scanConversation(r.db.QueryRow(ctx,
		"SELECT "+conversationColumns+" FROM conversations WHERE user_id = $1 AND external_id = $2", userID, externalID))
}

// List returns conversations by most recent activity. An empty platform
// matches all.
func (r *ConversationRepository) List(ctx context.Context, userID int, platform string, limit, offset int) ([]entities.Conversation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE user_id = $1 AND ($2::text = '' OR platform = $2::text)
		ORDER BY last_message_at DESC
		LIMIT $3 OFFSET $4`, userID, platform, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectConversations(rows)
}

// ListWhatsAppContacts returns the user's one-to-one WhatsApp conversations.
func (r *ConversationRepository) ListWhatsAppContacts(ctx context.Context, userID int) ([]entities.Conversation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE user_id = $1 AND platform = 'whatsapp' AND external_id NOT LIKE '%@g.us'
		ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	return collectConversations(rows)
}

func collectConversations(rows pgx.Rows) ([]entities.Conversation, error) {
	defer rows.Close()
	out := []entities.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *ConversationRepository) SetAIActive(ctx context.Context, userID int, id int64, active bool) (bool, error) {
	tag, err := r.db.Exec(ctx, "UPDATE conversations SET ai_active = $1 WHERE id = $2 AND user_id = $3", active, id, userID)
	return tag.RowsAffected() > 0, err
}

func (r *ConversationRepository) SetPersonality(ctx context.Context, userID int, id int64, personalityID *int64) (bool, error) {
	tag, err := r.db.Exec(ctx, "UPDATE conversations SET personality_id = $1 WHERE id = $2 AND user_id = $3", personalityID, id, userID)
	return tag.RowsAffected() > 0, err
}

func (r *ConversationRepository) Count(ctx context.Context, userID int) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM conversations WHERE user_id = $1", userID).Scan(&n)
	return n, err
}

// SaveMessage stores msg and bumps the conversation's last activity.
func (r *ConversationRepository) SaveMessage(ctx context.Context, userID int, msg *entities.StoredMessage) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, user_id, sender_type, message_type, content, interaction_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		msg.ConversationID, userID, msg.SenderType, msg.MessageType, msg.Content, msg.InteractionMs,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, "UPDATE conversations SET last_message_at = $1 WHERE id = $2", msg.CreatedAt, msg.ConversationID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RecentMessages returns the last limit messages in chronological order.
func (r *ConversationRepository) RecentMessages(ctx context.Context, conversationID int64, limit int) ([]entities.StoredMessage, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, conversation_id, sender_type, message_type, content, interaction_ms, created_at FROM (
			SELECT id, conversation_id, sender_type, message_type, content, interaction_ms, created_at
			FROM messages WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent ORDER BY created_at ASC, id ASC`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []entities.StoredMessage{}
	for rows.Next() {
		var m entities.StoredMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderType, &m.MessageType, &m.Content, &m.InteractionMs, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
