package infrastructure

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"project_citabot/internal/entities"
)

// TelegramBotInstance is one user's running bot.
type TelegramBotInstance struct {
	Bot       *tgbotapi.BotAPI
	UserID    int
	StopChan  chan struct{}
	IsRunning bool
	mu        sync.Mutex
}

func (i *TelegramBotInstance) running() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.IsRunning
}

// TelegramBotManager long-polls one bot per user and hands private text
// messages to MessageHandler.
type TelegramBotManager struct {
	bots map[int]*TelegramBotInstance
	mu   sync.RWMutex

	// newBot is swapped in tests to avoid the getMe round trip.
	newBot func(token string) (*tgbotapi.BotAPI, error)

	MessageHandler func(in entities.InboundMessage)
}

func NewTelegramBotManager() *TelegramBotManager {
	return &TelegramBotManager{
		bots:   make(map[int]*TelegramBotInstance),
		newBot: tgbotapi.NewBotAPI,
	}
}

func (m *TelegramBotManager) GetBot(userID int) *TelegramBotInstance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bots[userID]
}

// ValidateToken calls getMe with token and returns the bot username.
func (m *TelegramBotManager) ValidateToken(_ context.Context, token string) (string, error) {
	bot, err := m.newBot(token)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	return bot.Self.UserName, nil
}

// ConnectBot starts polling for userID. A bot that is already running is
// left as is.
func (m *TelegramBotManager) ConnectBot(_ context.Context, userID int, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.bots[userID]; ok && existing.running() {
		return existing.Bot.Self.UserName, nil
	}

	bot, err := m.newBot(token)
	if err != nil {
		return "", fmt.Errorf("failed to create bot: %w", err)
	}

	instance := &TelegramBotInstance{
		Bot:       bot,
		UserID:    userID,
		StopChan:  make(chan struct{}),
		IsRunning: true,
	}
	m.bots[userID] = instance

	go m.startPolling(instance)

	return bot.Self.UserName, nil
}

func (m *TelegramBotManager) startPolling(instance *TelegramBotInstance) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := instance.Bot.GetUpdatesChan(u)

	logger := log.With().Int("user_id", instance.UserID).Str("bot", instance.Bot.Self.UserName).Logger()
	logger.Info().Msg("telegram polling started")

	defer func() {
		instance.mu.Lock()
		instance.IsRunning = false
		instance.mu.Unlock()
	}()

	for {
		select {
		case <-instance.StopChan:
			instance.Bot.StopReceivingUpdates()
			logger.Info().Msg("telegram polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			in, ok := ParseTelegramUpdate(instance.UserID, update)
			if !ok || m.MessageHandler == nil {
				continue
			}
			m.MessageHandler(in)
		}
	}
}

// ParseTelegramUpdate converts an update into an inbound message. Commands,
// group chats and updates without text or caption are skipped.
func ParseTelegramUpdate(userID int, update tgbotapi.Update) (entities.InboundMessage, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return entities.InboundMessage{}, false
	}

	content, msgType := msg.Text, entities.MessageTypeText
	switch {
	case msg.Text != "":
	case len(msg.Photo) > 0:
		content, msgType = msg.Caption, "image"
	case msg.Video != nil:
		content, msgType = msg.Caption, "video"
	case msg.Document != nil:
		content, msgType = msg.Caption, "document"
	}
	content = strings.TrimSpace(content)
	if content == "" || msg.IsCommand() || strings.HasPrefix(content, "/") {
		return entities.InboundMessage{}, false
	}

	name := ""
	if msg.From != nil {
		name = strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
		if name == "" {
			name = msg.From.UserName
		}
	}

	return entities.InboundMessage{
		UserID:      userID,
		Platform:    entities.PlatformTelegram,
		ExternalID:  strconv.FormatInt(msg.Chat.ID, 10),
		ContactName: name,
		MessageID:   fmt.Sprintf("%d:%d", msg.Chat.ID, msg.MessageID),
		Content:     content,
		MessageType: msgType,
		ReceivedAt:  msg.Time(),
	}, true
}

func (m *TelegramBotManager) DisconnectBot(userID int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if instance, ok := m.bots[userID]; ok {
		close(instance.StopChan)
		delete(m.bots, userID)
	}
}

func (m *TelegramBotManager) GetStatus(userID int) (connected bool, botName string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if instance, ok := m.bots[userID]; ok && instance.running() {
		return true, instance.Bot.Self.UserName
	}
	return false, ""
}

// DisconnectAll stops every bot on shutdown.
func (m *TelegramBotManager) DisconnectAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, instance := range m.bots {
		close(instance.StopChan)
	}
	m.bots = make(map[int]*TelegramBotInstance)
}

// SendMessage shows the typing action and sends text to chatID through the
// user's bot.
func (m *TelegramBotManager) SendMessage(_ context.Context, userID int, chatID, text string) error {
	m.mu.RLock()
	instance, ok := m.bots[userID]
	m.mu.RUnlock()

	if !ok || !instance.running() {
		return fmt.Errorf("telegram bot not connected for user %d", userID)
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q", chatID)
	}

	if _, err := instance.Bot.Request(tgbotapi.NewChatAction(id, tgbotapi.ChatTyping)); err != nil {
		log.Debug().Err(err).Int("user_id", userID).Msg("telegram typing action failed")
	}
	_, err = instance.Bot.Send(tgbotapi.NewMessage(id, text))
	return err
}
