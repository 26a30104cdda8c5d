package usecases

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"project_citabot/internal/entities"
	"project_citabot/internal/infrastructure"
	"project_citabot/internal/interfaces"
)

const (
	historyLimit      = 50
	recentWindow      = 20
	defaultPageSize   = 50
	maxPageSize       = 200
	multimediaMarker  = "Contenido de imagen:"
	contextNoteFormat = "[CONTEXTO DE CONVERSACIÓN: %s. Esta conversación incluye contenido multimedia analizado.]"
)

// ConversationService owns conversations and their message log.
type ConversationService struct {
	conversations ConversationStore
	personalities PersonalityStore
	settings      SettingsStore
	messengers    interfaces.MessengerProvider
	events        interfaces.Broadcaster
	now           func() time.Time
}

func NewConversationService(conversations ConversationStore, personalities PersonalityStore, settings SettingsStore, messengers interfaces.MessengerProvider, events interfaces.Broadcaster) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		personalities: personalities,
		settings:      settings,
		messengers:    messengers,
		events:        events,
		now:           time.Now,
	}
}

// EnsureConversation returns the conversation with the contact, creating it
// when missing. New conversations take ai_active from the user's
// default_ai_active setting and the user's default personality.
func (s *ConversationService) EnsureConversation(ctx context.Context, userID int, platform, externalID, contactName string) (*entities.Conversation, bool, error) {
	if externalID == "" {
		return nil, false, invalid("external id is required")
	}
	existing, err := s.conversations.GetByExternalID(ctx, userID, externalID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil && (contactName == "" || contactName == existing.ContactName) {
		return existing, false, nil
	}

	conv := &entities.Conversation{
		UserID:      userID,
		Platform:    platform,
		ExternalID:  externalID,
		ContactName: contactName,
		AIActive:    boolSetting(ctx, s.settings, userID, SettingDefaultAIActive, true),
	}
	if existing == nil && s.personalities != nil {
		if p, err := s.personalities.GetDefault(ctx, userID); err == nil && p != nil {
			conv.PersonalityID = &p.ID
		}
	}
	return s.conversations.Ensure(ctx, conv)
}

func (s *ConversationService) Get(ctx context.Context, userID int, id int64) (*entities.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, notFound("Conversación no encontrada")
	}
	return conv, nil
}

// ExternalMessages returns the latest messages exchanged with a contact
// address, or none when the contact never wrote.
func (s *ConversationService) ExternalMessages(ctx context.Context, userID int, externalID string, limit int) ([]entities.StoredMessage, error) {
	conv, err := s.conversations.GetByExternalID(ctx, userID, externalID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return []entities.StoredMessage{}, nil
	}
	return s.Messages(ctx, userID, conv.ID, limit)
}

func (s *ConversationService) List(ctx context.Context, userID int, platform string, limit, offset int) ([]entities.Conversation, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.conversations.List(ctx, userID, platform, limit, offset)
}

// SaveMessage appends a message to the conversation log.
func (s *ConversationService) SaveMessage(ctx context.Context, userID int, conversationID int64, senderType, messageType, content string, interactionMs int64) (*entities.StoredMessage, error) {
	switch senderType {
	case entities.SenderUser, entities.SenderIA, entities.SenderSystem:
	default:
		return nil, invalid(fmt.Sprintf("unknown sender type %q", senderType))
	}
	if messageType == "" {
		messageType = entities.MessageTypeText
	}
	msg := &entities.StoredMessage{
		ConversationID: conversationID,
		SenderType:     senderType,
		MessageType:    messageType,
		Content:        content,
		InteractionMs:  interactionMs,
	}
	if err := s.conversations.SaveMessage(ctx, userID, msg); err != nil {
		return nil, fmt.Errorf("%w: save message: %v", ErrPersistence, err)
	}
	return msg, nil
}

// Messages returns the latest messages of a conversation owned by userID.
func (s *ConversationService) Messages(ctx context.Context, userID int, conversationID int64, limit int) ([]entities.StoredMessage, error) {
	if _, err := s.Get(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	return s.conversations.RecentMessages(ctx, conversationID, limit)
}

// History maps the last limit messages to model roles and returns the
// context analysis computed over those same messages.
func (s *ConversationService) History(ctx context.Context, conversationID int64, limit int) ([]entities.HistoryEntry, entities.ConversationContext, error) {
	if limit <= 0 {
		limit = historyLimit
	}
	msgs, err := s.conversations.RecentMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, entities.ConversationContext{}, err
	}
	analysis := AnalyzeContext(msgs)
	return BuildHistory(msgs, analysis, s.now()), analysis, nil
}

// BuildHistory maps stored messages to model turns. A trailing system note
// summarises the context when the conversation holds multimedia.
func BuildHistory(msgs []entities.StoredMessage, analysis entities.ConversationContext, now time.Time) []entities.HistoryEntry {
	out := make([]entities.HistoryEntry, 0, len(msgs)+1)
	for i, m := range msgs {
		position := i + 1
		out = append(out, entities.HistoryEntry{
			Role:      roleFor(m.SenderType),
			Content:   m.Content,
			Timestamp: m.CreatedAt,
			Position:  position,
			IsRecent:  position > len(msgs)-recentWindow,
		})
	}
	if analysis.HasMultimedia {
		out = append(out, entities.HistoryEntry{
			Role:      "system",
			Content:   fmt.Sprintf(contextNoteFormat, analysis.Summary),
			Timestamp: now,
			Position:  len(out) + 1,
			IsRecent:  true,
		})
	}
	return out
}

func roleFor(senderType string) string {
	switch senderType {
	case entities.SenderUser:
		return "user"
	case entities.SenderSystem:
		return "system"
	default:
		return "assistant"
	}
}

var topicKeywords = []struct {
	topic    string
	keywords []string
}{
	{"coche", []string{"coche", "carro", "auto", "vehículo", "ford", "bmw", "mercedes", "km", "precio"}},
	{"tecnología", []string{"tecnología", "software", "programación", "app", "web", "desarrollo"}},
	{"negocios", []string{"negocio", "empresa", "ventas", "marketing", "cliente", "servicio"}},
	{"educación", []string{"estudiar", "curso", "aprender", "universidad", "escuela", "profesor"}},
	{"salud", []string{"médico", "salud", "enfermedad", "tratamiento", "consulta", "síntomas"}},
}

// AnalyzeContext summarises a window of messages: type histogram, whether
// multimedia was analysed, main topic and context strength.
func AnalyzeContext(msgs []entities.StoredMessage) entities.ConversationContext {
	if len(msgs) == 0 {
		return entities.ConversationContext{
			MessageTypes: map[string]int{},
			Topic:        "Sin tema definido",
			Strength:     entities.ContextWeak,
			Summary:      "Conversación vacía",
		}
	}

	types := map[string]int{}
	multimedia := false
	for _, m := range msgs {
		t := m.MessageType
		if t == "" {
			t = entities.MessageTypeText
		}
		types[t]++
		if (t != entities.MessageTypeText && t != entities.MessageTypeManual) || strings.Contains(m.Content, multimediaMarker) {
			multimedia = true
		}
	}

	recent := msgs
	if len(recent) > recentWindow {
		recent = recent[len(recent)-recentWindow:]
	}
	topic := mainTopic(recent)

	return entities.ConversationContext{
		TotalMessages: len(msgs),
		MessageTypes:  types,
		HasMultimedia: multimedia,
		Topic:         topic,
		Strength:      contextStrength(msgs, recent),
		Summary:       fmt.Sprintf("Conversación de %d mensajes con tema principal: %s", len(msgs), topic),
	}
}

func mainTopic(recent []entities.StoredMessage) string {
	if len(recent) == 0 {
		return "Sin tema definido"
	}
	parts := make([]string, len(recent))
	for i, m := range recent {
		parts[i] = strings.ToLower(m.Content)
	}
	text := strings.Join(parts, " ")

	best, bestScore := "", 0
	for _, family := range topicKeywords {
		score := 0
		for _, kw := range family.keywords {
			score += strings.Count(text, kw)
		}
		if score > bestScore {
			best, bestScore = family.topic, score
		}
	}
	if bestScore > 0 {
		return best
	}

	counts := map[string]int{}
	var order []string
	for _, w := range strings.Fields(text) {
		if len([]rune(w)) <= 3 {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	if len(order) == 0 {
		return "Conversación general"
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > 3 {
		order = order[:3]
	}
	return strings.Join(order, ", ")
}

func contextStrength(all, recent []entities.StoredMessage) entities.ContextStrength {
	if len(all) < 3 {
		return entities.ContextWeak
	}
	if len(all) < 10 {
		return entities.ContextMedium
	}
	users, ia := 0, 0
	for _, m := range recent {
		switch m.SenderType {
		case entities.SenderUser:
			users++
		case entities.SenderIA:
			ia++
		}
	}
	if users >= 3 && ia >= 2 {
		return entities.ContextStrong
	}
	return entities.ContextMedium
}

func (s *ConversationService) SetAIActive(ctx context.Context, userID int, id int64, active bool) error {
	ok, err := s.conversations.SetAIActive(ctx, userID, id, active)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("Conversación no encontrada")
	}
	return nil
}

// SetPersonality assigns a personality owned by the user, or clears it with nil.
func (s *ConversationService) SetPersonality(ctx context.Context, userID int, id int64, personalityID *int64) error {
	if personalityID != nil {
		p, err := s.personalities.GetByID(ctx, userID, *personalityID)
		if err != nil {
			return err
		}
		if p == nil {
			return notFound("Personalidad no encontrada")
		}
	}
	ok, err := s.conversations.SetPersonality(ctx, userID, id, personalityID)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("Conversación no encontrada")
	}
	return nil
}

// SendManual delivers an operator message to the contact and logs it.
func (s *ConversationService) SendManual(ctx context.Context, userID int, conversationID int64, content string) (*entities.StoredMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("content is required")
	}
	conv, err := s.Get(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	messenger, err := s.messengers.Messenger(userID, conv.Platform)
	if err != nil {
		return nil, newError(ErrNotConfigured, err.Error())
	}
	if err := messenger.SendMessage(ctx, conv.ExternalID, content); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	msg, err := s.SaveMessage(ctx, userID, conv.ID, entities.SenderIA, entities.MessageTypeManual, content, 0)
	if err != nil {
		return nil, err
	}
	s.Publish(userID, conv, msg)
	return msg, nil
}

// Publish notifies the user's dashboard of a new message.
func (s *ConversationService) Publish(userID int, conv *entities.Conversation, msg *entities.StoredMessage) {
	if s.events == nil {
		return
	}
	n := s.events.Publish(infrastructure.UserRoom(userID), map[string]any{
		"type":            "message",
		"conversation_id": conv.ID,
		"external_id":     conv.ExternalID,
		"platform":        conv.Platform,
		"message":         msg,
	})
	log.Debug().Int("user_id", userID).Int64("conversation_id", conv.ID).Int("subscribers", n).Msg("message event published")
}
