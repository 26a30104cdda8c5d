package infrastructure

import (
	"context"
	"fmt"
	"time"

	"project_citabot/internal/entities"
	"project_citabot/internal/interfaces"
)

// WebChatRoom is the realtime room of a web chat visitor session.
func WebChatRoom(sessionID string) string { return "webchat:" + sessionID }

// UserRoom is the realtime room of a user's dashboard.
func UserRoom(userID int) string { return fmt.Sprintf("user:%d", userID) }

// Channels routes outbound messages to the user's WhatsApp line, Telegram
// bot or the web chat visitor's socket.
type Channels struct {
	whatsapp *WhatsAppManager
	telegram *TelegramBotManager
	hub      interfaces.Broadcaster
}

func NewChannels(whatsapp *WhatsAppManager, telegram *TelegramBotManager, hub interfaces.Broadcaster) *Channels {
	return &Channels{whatsapp: whatsapp, telegram: telegram, hub: hub}
}

var _ interfaces.MessengerProvider = (*Channels)(nil)

func (c *Channels) Messenger(userID int, platform string) (interfaces.Messenger, error) {
	switch platform {
	case entities.PlatformWhatsApp:
		if c.whatsapp == nil {
			return nil, fmt.Errorf("whatsapp is not available")
		}
		client := c.whatsapp.GetClient(userID)
		if client == nil || !client.IsConnected() {
			return nil, fmt.Errorf("whatsapp not connected for user %d", userID)
		}
		return &whatsappMessenger{client: client}, nil
	case entities.PlatformTelegram:
		if c.telegram == nil {
			return nil, fmt.Errorf("telegram is not available")
		}
		if connected, _ := c.telegram.GetStatus(userID); !connected {
			return nil, fmt.Errorf("telegram bot not connected for user %d", userID)
		}
		return &telegramMessenger{bots: c.telegram, userID: userID}, nil
	case entities.PlatformWeb:
		return &webChatMessenger{hub: c.hub}, nil
	default:
		return nil, fmt.Errorf("unknown platform %q", platform)
	}
}

type whatsappMessenger struct {
	client *WhatsAppClient
}

// SendMessage shows the typing indicator before sending, like a person would.
func (m *whatsappMessenger) SendMessage(ctx context.Context, to, content string) error {
	m.client.SendPresence(ctx, to)
	return m.client.SendMessage(ctx, to, content)
}

type telegramMessenger struct {
	bots   *TelegramBotManager
	userID int
}

func (m *telegramMessenger) SendMessage(ctx context.Context, to, content string) error {
	return m.bots.SendMessage(ctx, m.userID, to, content)
}

type webChatMessenger struct {
	hub interfaces.Broadcaster
}

// SendMessage pushes the reply to the visitor's socket. Visitors without
// an open socket read it from the message history instead.
func (m *webChatMessenger) SendMessage(_ context.Context, to, content string) error {
	m.hub.Publish(WebChatRoom(to), map[string]any{
		"type": "message",
		"message": map[string]any{
			"sender_type": entities.SenderIA,
			"content":     content,
			"created_at":  time.Now(),
		},
	})
	return nil
}
