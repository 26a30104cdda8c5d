package entities

import (
	"context"
	"time"
)

const (
	PlatformWhatsApp = "whatsapp"
	PlatformWeb      = "web"
	PlatformTelegram = "telegram"
)

// InboundMessage is a message received on one of a user's channels.
type InboundMessage struct {
	UserID      int
	Platform    string // "whatsapp", "web" or "telegram"
	ExternalID  string // Contact address: WhatsApp JID, web chat session id or Telegram chat id
	ContactName string
	MessageID   string // Provider message id, used for dedupe
	Content     string
	MessageType string // text, image, video, document, audio
	ReceivedAt  time.Time
	Media       *InboundMedia // Attachment to read before answering, if any
}

// Media kinds the bot reads.
const (
	MediaAudio    = "audio"
	MediaImage    = "image"
	MediaDocument = "document"
)

// InboundMedia is an attachment that is downloaded only when the message
// is processed.
type InboundMedia struct {
	Kind     string
	MimeType string
	FileName string
	Download func(ctx context.Context) ([]byte, error)
}

// Reply is the outcome of processing an inbound message.
type Reply struct {
	ConversationID int64  `json:"conversation_id"`
	Content        string `json:"content"`
	Sent           bool   `json:"sent"`
	Skipped        string `json:"skipped,omitempty"` // Reason when no reply was produced
	AppointmentID  int64  `json:"appointment_id,omitempty"`
}

// ChatMessage is one turn handed to the language model.
type ChatMessage struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}
