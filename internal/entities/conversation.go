package entities

import "time"

const (
	SenderUser   = "user"
	SenderIA     = "ia"
	SenderSystem = "system"

	MessageTypeText   = "text"
	MessageTypeManual = "manual"
)

type Conversation struct {
	ID            int64     `json:"id"`
	UserID        int       `json:"user_id"`
	Platform      string    `json:"platform"`
	ExternalID    string    `json:"external_id"`
	ContactName   string    `json:"contact_name"`
	AIActive      bool      `json:"ai_active"`
	PersonalityID *int64    `json:"personality_id"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
}

type StoredMessage struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderType     string    `json:"sender_type"`
	MessageType    string    `json:"message_type"`
	Content        string    `json:"content"`
	InteractionMs  int64     `json:"interaction_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// HistoryEntry is a stored message mapped to a model role.
type HistoryEntry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Position  int       `json:"position"`
	IsRecent  bool      `json:"is_recent"`
}

type ContextStrength string

const (
	ContextWeak   ContextStrength = "weak"
	ContextMedium ContextStrength = "medium"
	ContextStrong ContextStrength = "strong"
)

// ConversationContext summarises a window of messages for prompt building.
type ConversationContext struct {
	TotalMessages int             `json:"total_messages"`
	MessageTypes  map[string]int  `json:"message_types"`
	HasMultimedia bool            `json:"has_multimedia"`
	Topic         string          `json:"topic"`
	Strength      ContextStrength `json:"strength"`
	Summary       string          `json:"summary"`
}
