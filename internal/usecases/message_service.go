package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"project_citabot/internal/entities"
	"project_citabot/internal/infrastructure"
	"project_citabot/internal/interfaces"
)

const (
	dedupeTTL       = 10 * time.Minute
	defaultFallback = "Lo siento, hubo un error al procesar tu mensaje. ¿Podrías intentarlo de nuevo?"
)

// Reasons reported in Reply.Skipped.
const (
	SkipEmpty           = "empty"
	SkipDuplicate       = "duplicate"
	SkipRateLimited     = "rate_limited"
	SkipAccountDisabled = "account_disabled"
	SkipAIDisabled      = "ai_disabled"
	SkipReplyInFlight   = "reply_in_flight"
	SkipQuotaExceeded   = "quota_exceeded"
)

// MessageService answers inbound messages from every channel: it logs the
// message, books appointments asked for in chat and otherwise replies with
// the user's AI personality.
type MessageService struct {
	conversations *ConversationService
	availability  *AvailabilityService
	leads         *LeadService
	personalities PersonalityStore
	settings      SettingsStore
	users         UserStore
	usage         UsageStore
	cache         interfaces.Cache
	ai            interfaces.AIClient
	messengers    interfaces.MessengerProvider
	media         *MediaProcessor
	limiter       *infrastructure.MessageRateLimiter
	guard         *infrastructure.ReplyGuard
	now           func() time.Time
}

type MessageServiceDeps struct {
	Conversations *ConversationService
	Availability  *AvailabilityService
	Leads         *LeadService
	Personalities PersonalityStore
	Settings      SettingsStore
	Users         UserStore
	Usage         UsageStore
	Cache         interfaces.Cache
	AI            interfaces.AIClient
	Messengers    interfaces.MessengerProvider
	Media         *MediaProcessor // nil ignores attachments without a caption
	Limiter       *infrastructure.MessageRateLimiter
	Guard         *infrastructure.ReplyGuard
}

func NewMessageService(d MessageServiceDeps) *MessageService {
	guard := d.Guard
	if guard == nil {
		guard = infrastructure.NewReplyGuard(0)
	}
	return &MessageService{
		conversations: d.Conversations,
		availability:  d.Availability,
		leads:         d.Leads,
		personalities: d.Personalities,
		settings:      d.Settings,
		users:         d.Users,
		usage:         d.Usage,
		cache:         d.Cache,
		ai:            d.AI,
		messengers:    d.Messengers,
		media:         d.Media,
		limiter:       d.Limiter,
		guard:         guard,
		now:           time.Now,
	}
}

func dedupeKey(in entities.InboundMessage) string {
	return fmt.Sprintf("msg:dedupe:%d:%s:%s", in.UserID, in.Platform, in.MessageID)
}

// HandleInbound processes one inbound message end to end. A nil error with
// Reply.Skipped set means the message was accepted but not answered.
func (s *MessageService) HandleInbound(ctx context.Context, in entities.InboundMessage) (*entities.Reply, error) {
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" && in.Media == nil {
		return &entities.Reply{Skipped: SkipEmpty}, nil
	}
	logger := log.With().Int("user_id", in.UserID).Str("platform", in.Platform).Str("from", in.ExternalID).Logger()

	if in.MessageID != "" && s.cache != nil {
		fresh, err := s.cache.SetNX(ctx, dedupeKey(in), "1", dedupeTTL)
		if err != nil {
			logger.Warn().Err(err).Msg("dedupe check failed, processing anyway")
		} else if !fresh {
			logger.Debug().Str("message_id", in.MessageID).Msg("duplicate message ignored")
			return &entities.Reply{Skipped: SkipDuplicate}, nil
		}
	}

	if s.limiter != nil && !s.limiter.Allow(fmt.Sprintf("%d:%s", in.UserID, in.ExternalID)) {
		logger.Warn().Msg("contact rate limited")
		return &entities.Reply{Skipped: SkipRateLimited}, nil
	}

	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return &entities.Reply{Skipped: SkipAccountDisabled}, nil
	}

	if in.Media != nil {
		in.Content = s.media.Content(ctx, in)
		if in.Content == "" {
			return &entities.Reply{Skipped: SkipEmpty}, nil
		}
	}

	conv, isNew, err := s.conversations.EnsureConversation(ctx, in.UserID, in.Platform, in.ExternalID, in.ContactName)
	if err != nil {
		return nil, err
	}
	reply := &entities.Reply{ConversationID: conv.ID}

	stored, err := s.conversations.SaveMessage(ctx, in.UserID, conv.ID, entities.SenderUser, in.MessageType, in.Content, 0)
	if err != nil {
		return nil, err
	}
	if err := s.usage.IncrementReceived(ctx, in.UserID); err != nil {
		logger.Warn().Err(err).Msg("failed to count received message")
	}
	s.conversations.Publish(in.UserID, conv, stored)

	if s.leads != nil && boolSetting(ctx, s.settings, in.UserID, SettingAutoCreateLeads, true) {
		if _, err := s.leads.EnsureWhatsAppLead(ctx, in.UserID, conv); err != nil {
			logger.Warn().Err(err).Int64("conversation_id", conv.ID).Msg("auto lead creation failed")
		}
	}

	if !conv.AIActive {
		reply.Skipped = SkipAIDisabled
		return reply, nil
	}

	if !s.guard.TryStart(conv.ID) {
		logger.Debug().Int64("conversation_id", conv.ID).Msg("reply already in flight")
		reply.Skipped = SkipReplyInFlight
		return reply, nil
	}
	defer s.guard.Finish(conv.ID)

	start := s.now()
	content := s.compose(ctx, in, conv, isNew, reply)

	if ok, reason, err := s.usage.CanSendMessage(ctx, in.UserID, user.DailyLimit, user.MonthlyLimit); err != nil {
		return reply, err
	} else if !ok {
		logger.Warn().Str("reason", reason).Msg("reply not sent: quota exceeded")
		reply.Skipped = SkipQuotaExceeded
		return reply, nil
	}

	messenger, err := s.messengers.Messenger(in.UserID, in.Platform)
	if err != nil {
		return reply, fmt.Errorf("resolve messenger: %w", err)
	}
	if err := messenger.SendMessage(ctx, in.ExternalID, content); err != nil {
		return reply, fmt.Errorf("send reply: %w", err)
	}
	reply.Content = content
	reply.Sent = true

	if err := s.usage.IncrementSent(ctx, in.UserID); err != nil {
		logger.Warn().Err(err).Msg("failed to count sent message")
	}
	elapsed := s.now().Sub(start).Milliseconds()
	out, err := s.conversations.SaveMessage(ctx, in.UserID, conv.ID, entities.SenderIA, entities.MessageTypeText, content, elapsed)
	if err != nil {
		logger.Error().Err(err).Int64("conversation_id", conv.ID).Msg("reply sent but not stored")
		return reply, nil
	}
	s.conversations.Publish(in.UserID, conv, out)
	logger.Info().Int64("conversation_id", conv.ID).Int64("elapsed_ms", elapsed).Msg("reply sent")
	return reply, nil
}

// compose picks the reply text: a booking confirmation, the welcome message
// for a new contact, or the AI answer.
func (s *MessageService) compose(ctx context.Context, in entities.InboundMessage, conv *entities.Conversation, isNew bool, reply *entities.Reply) string {
	var slots []entities.Slot
	if s.availability != nil {
		var err error
		slots, err = s.availability.UpcomingSlots(ctx, in.UserID)
		if err != nil {
			log.Warn().Err(err).Int("user_id", in.UserID).Msg("failed to load availability")
		}

		booking, err := s.availability.BookFromMessage(ctx, in.UserID, conv, in.Content, in.ContactName, slots)
		switch {
		case err != nil && errors.Is(err, ErrSlotUnavailable):
			log.Info().Int64("conversation_id", conv.ID).Msg("requested slot no longer available")
		case err != nil:
			log.Error().Err(err).Int64("conversation_id", conv.ID).Msg("booking from chat failed")
		case booking != nil:
			reply.AppointmentID = booking.AppointmentID
			return s.availability.ConfirmationText(booking)
		}
	}

	if isNew && s.settings != nil {
		if welcome, ok, _ := s.settings.Get(ctx, in.UserID, SettingWelcomeMessage); ok && strings.TrimSpace(welcome) != "" {
			return welcome
		}
	}

	return s.aiReply(ctx, in, conv, slots)
}

func (s *MessageService) aiReply(ctx context.Context, in entities.InboundMessage, conv *entities.Conversation, slots []entities.Slot) string {
	if s.ai == nil {
		return s.fallback(ctx, in.UserID)
	}
	history, analysis, err := s.conversations.History(ctx, conv.ID, historyLimit)
	if err != nil {
		log.Error().Err(err).Int64("conversation_id", conv.ID).Msg("failed to load history")
		return s.fallback(ctx, in.UserID)
	}

	personality := s.personalityFor(ctx, conv)
	var media []entities.PersonalityMedia
	if personality != nil {
		media, err = s.personalities.ListMedia(ctx, in.UserID, personality.ID)
		if err != nil {
			log.Warn().Err(err).Int64("personality_id", personality.ID).Msg("failed to load personality media")
		}
	}

	availability := ""
	if s.availability != nil && len(slots) > 0 {
		availability = s.availability.FormatForPrompt(slots)
	}

	system := BuildSystemPrompt(PromptInput{
		Personality:  personality,
		Context:      analysis,
		Availability: availability,
		Media:        media,
		UserMessage:  in.Content,
		HasGreeted:   HasGreeted(history),
	})
	answer, err := s.ai.Chat(ctx, ChatMessages(system, history))
	if err != nil || strings.TrimSpace(answer) == "" {
		log.Error().Err(err).Int64("conversation_id", conv.ID).Msg("AI reply failed, sending fallback")
		return s.fallback(ctx, in.UserID)
	}
	return strings.TrimSpace(answer)
}

func (s *MessageService) personalityFor(ctx context.Context, conv *entities.Conversation) *entities.Personality {
	if s.personalities == nil {
		return nil
	}
	if conv.PersonalityID != nil {
		if p, err := s.personalities.GetByID(ctx, conv.UserID, *conv.PersonalityID); err == nil && p != nil {
			return p
		}
	}
	p, err := s.personalities.GetDefault(ctx, conv.UserID)
	if err != nil {
		log.Warn().Err(err).Int("user_id", conv.UserID).Msg("failed to load default personality")
		return nil
	}
	return p
}

func (s *MessageService) fallback(ctx context.Context, userID int) string {
	if s.settings != nil {
		if v, ok, err := s.settings.Get(ctx, userID, SettingAIFallbackMessage); err == nil && ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return defaultFallback
}
