package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"project_citabot/internal/entities"
)

// TelegramBots runs the per-user bot pollers.
type TelegramBots interface {
	ValidateToken(ctx context.Context, token string) (string, error)
	ConnectBot(ctx context.Context, userID int, token string) (string, error)
	DisconnectBot(userID int)
	GetStatus(userID int) (connected bool, botName string)
}

// TelegramService lets each user answer on Telegram with their own bot.
// Inbound messages from the bot go through the same pipeline as WhatsApp.
type TelegramService struct {
	bots  TelegramBots
	store TelegramStore
}

func NewTelegramService(bots TelegramBots, store TelegramStore) *TelegramService {
	return &TelegramService{bots: bots, store: store}
}

func (s *TelegramService) configured() bool { return s != nil && s.bots != nil && s.store != nil }

var errTelegramNotConfigured = newError(ErrNotConfigured, "Telegram no está configurado")

// Validate returns the bot username for token without storing it.
func (s *TelegramService) Validate(ctx context.Context, token string) (string, error) {
	if !s.configured() {
		return "", errTelegramNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", invalid("El token es requerido")
	}
	name, err := s.bots.ValidateToken(ctx, token)
	if err != nil {
		return "", invalid("Token de Telegram inválido: " + err.Error())
	}
	return name, nil
}

// SaveToken validates and stores token. An empty token disconnects the bot
// and forgets it.
func (s *TelegramService) SaveToken(ctx context.Context, userID int, token string) (*entities.TelegramStatus, error) {
	if !s.configured() {
		return nil, errTelegramNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		s.bots.DisconnectBot(userID)
		if _, err := s.store.Delete(ctx, userID); err != nil {
			return nil, fmt.Errorf("%w: delete telegram bot: %v", ErrPersistence, err)
		}
		return &entities.TelegramStatus{}, nil
	}

	name, err := s.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	// A new token replaces the running bot.
	s.bots.DisconnectBot(userID)
	if err := s.store.Upsert(ctx, &entities.TelegramBot{UserID: userID, Token: token, BotUsername: name}); err != nil {
		return nil, fmt.Errorf("%w: store telegram bot: %v", ErrPersistence, err)
	}
	return &entities.TelegramStatus{HasToken: true, BotName: name}, nil
}

// Connect starts polling with the stored token and remembers it across
// restarts.
func (s *TelegramService) Connect(ctx context.Context, userID int) (*entities.TelegramStatus, error) {
	if !s.configured() {
		return nil, errTelegramNotConfigured
	}
	bot, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if bot == nil || bot.Token == "" {
		return nil, invalid("No hay token configurado. Guarda primero el token de tu bot")
	}
	name, err := s.bots.ConnectBot(ctx, userID, bot.Token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	if err := s.store.SetActive(ctx, userID, true); err != nil {
		log.Warn().Err(err).Int("user_id", userID).Msg("failed to mark telegram bot active")
	}
	return &entities.TelegramStatus{HasToken: true, Connected: true, BotName: name}, nil
}

func (s *TelegramService) Disconnect(ctx context.Context, userID int) error {
	if !s.configured() {
		return errTelegramNotConfigured
	}
	s.bots.DisconnectBot(userID)
	return s.store.SetActive(ctx, userID, false)
}

func (s *TelegramService) Status(ctx context.Context, userID int) (*entities.TelegramStatus, error) {
	if !s.configured() {
		return &entities.TelegramStatus{}, nil
	}
	bot, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	connected, name := s.bots.GetStatus(userID)
	if name == "" && bot != nil {
		name = bot.BotUsername
	}
	return &entities.TelegramStatus{HasToken: bot != nil && bot.Token != "", Connected: connected, BotName: name}, nil
}

// Restore reconnects the bots that were active, skipping users allowed
// rejects. It returns how many bots are running.
func (s *TelegramService) Restore(ctx context.Context, allowed func(userID int) bool) int {
	if !s.configured() {
		return 0
	}
	bots, err := s.store.ListActive(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list telegram bots")
		return 0
	}
	n := 0
	for _, b := range bots {
		if allowed != nil && !allowed(b.UserID) {
			continue
		}
		if _, err := s.bots.ConnectBot(ctx, b.UserID, b.Token); err != nil {
			log.Warn().Err(err).Int("user_id", b.UserID).Msg("failed to restore telegram bot")
			continue
		}
		n++
	}
	return n
}
