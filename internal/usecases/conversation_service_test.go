package usecases

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"project_citabot/internal/entities"
)

func textMessages(senders ...string) []entities.StoredMessage {
	out := make([]entities.StoredMessage, len(senders))
	for i, s := range senders {
		out[i] = entities.StoredMessage{SenderType: s, MessageType: entities.MessageTypeText, Content: "mensaje"}
	}
	return out
}

func TestAnalyzeContext(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		got := AnalyzeContext(nil)
		if got.Strength != entities.ContextWeak || got.Summary != "Conversación vacía" {
			t.Errorf("unexpected analysis %+v", got)
		}
	})

	t.Run("topic and strength", func(t *testing.T) {
		msgs := []entities.StoredMessage{
			{SenderType: entities.SenderUser, Content: "Busco un coche usado"},
			{SenderType: entities.SenderIA, Content: "Tenemos un Ford y un BMW"},
			{SenderType: entities.SenderUser, Content: "¿Qué precio tiene el Ford?"},
		}
		got := AnalyzeContext(msgs)
		if got.Topic != "coche" {
			t.Errorf("expected topic coche, got %q", got.Topic)
		}
		if got.Strength != entities.ContextMedium {
			t.Errorf("expected medium strength, got %s", got.Strength)
		}
		if got.MessageTypes[entities.MessageTypeText] != 3 {
			t.Errorf("expected 3 text messages, got %v", got.MessageTypes)
		}
		if got.HasMultimedia {
			t.Error("text-only conversation flagged as multimedia")
		}
	})

	t.Run("strong with balanced turns", func(t *testing.T) {
		senders := []string{}
		for i := 0; i < 6; i++ {
			senders = append(senders, entities.SenderUser, entities.SenderIA)
		}
		if got := AnalyzeContext(textMessages(senders...)); got.Strength != entities.ContextStrong {
			t.Errorf("expected strong, got %s", got.Strength)
		}
	})

	t.Run("multimedia", func(t *testing.T) {
		msgs := []entities.StoredMessage{{SenderType: entities.SenderUser, MessageType: "image", Content: "foto"}}
		if !AnalyzeContext(msgs).HasMultimedia {
			t.Error("image message not flagged as multimedia")
		}
	})
}

func TestBuildHistory(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	msgs := textMessages(entities.SenderUser, entities.SenderIA, entities.SenderSystem)

	history := BuildHistory(msgs, AnalyzeContext(msgs), now)
	if len(history) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(history))
	}
	roles := []string{history[0].Role, history[1].Role, history[2].Role}
	if strings.Join(roles, ",") != "user,assistant,system" {
		t.Errorf("unexpected roles %v", roles)
	}
	if history[2].Position != 3 || !history[2].IsRecent {
		t.Errorf("unexpected last entry %+v", history[2])
	}

	msgs[0].MessageType = "image"
	history = BuildHistory(msgs, AnalyzeContext(msgs), now)
	if len(history) != 4 {
		t.Fatalf("expected context note appended, got %d entries", len(history))
	}
	note := history[3]
	if note.Role != "system" || !strings.Contains(note.Content, "CONTEXTO DE CONVERSACIÓN") || !note.Timestamp.Equal(now) {
		t.Errorf("unexpected context note %+v", note)
	}
}

func TestEnsureConversationUsesDefaults(t *testing.T) {
	ctx := context.Background()
	convs := &memConversations{}
	personalities := &memPersonalities{}
	settings := newMemSettings()
	_ = personalities.Create(ctx, &entities.Personality{UserID: 1, Name: "Sofía", Instructions: "x", IsDefault: true})
	_ = settings.Set(ctx, 1, SettingDefaultAIActive, "false")

	svc := NewConversationService(convs, personalities, settings, &fakeMessengers{}, nil)
	conv, created, err := svc.EnsureConversation(ctx, 1, entities.PlatformWhatsApp, "34600111222@s.whatsapp.net", "Ana")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected a new conversation")
	}
	if conv.AIActive {
		t.Error("expected ai_active from default_ai_active=false")
	}
	if conv.PersonalityID == nil || *conv.PersonalityID != 1 {
		t.Errorf("expected default personality, got %v", conv.PersonalityID)
	}

	again, created, err := svc.EnsureConversation(ctx, 1, entities.PlatformWhatsApp, "34600111222@s.whatsapp.net", "Ana")
	if err != nil || created || again.ID != conv.ID {
		t.Errorf("expected the same conversation, got %+v created=%v err=%v", again, created, err)
	}
}

func TestSendManual(t *testing.T) {
	ctx := context.Background()
	convs := &memConversations{}
	messengers := &fakeMessengers{}
	svc := NewConversationService(convs, &memPersonalities{}, newMemSettings(), messengers, nil)
	conv, _, _ := svc.EnsureConversation(ctx, 1, entities.PlatformWhatsApp, "34600111222@s.whatsapp.net", "")

	if _, err := svc.SendManual(ctx, 1, conv.ID, "   "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected invalid input for blank content, got %v", err)
	}
	if _, err := svc.SendManual(ctx, 2, conv.ID, "hola"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found for another user, got %v", err)
	}

	msg, err := svc.SendManual(ctx, 1, conv.ID, "hola")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.SenderType != entities.SenderIA || msg.MessageType != entities.MessageTypeManual {
		t.Errorf("unexpected stored message %+v", msg)
	}
	sent := messengers.messages()
	if len(sent) != 1 || sent[0].to != conv.ExternalID || sent[0].content != "hola" {
		t.Errorf("unexpected sends %+v", sent)
	}
}

func TestSetPersonalityRejectsForeignPersonality(t *testing.T) {
	ctx := context.Background()
	personalities := &memPersonalities{}
	_ = personalities.Create(ctx, &entities.Personality{UserID: 2, Name: "Otra", Instructions: "x"})
	svc := NewConversationService(&memConversations{}, personalities, newMemSettings(), &fakeMessengers{}, nil)
	conv, _, _ := svc.EnsureConversation(ctx, 1, entities.PlatformWeb, "session-1", "")

	id := int64(1)
	if err := svc.SetPersonality(ctx, 1, conv.ID, &id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if err := svc.SetPersonality(ctx, 1, conv.ID, nil); err != nil {
		t.Errorf("clearing personality failed: %v", err)
	}
}
