package usecases

import (
	"context"
	"errors"
	"testing"

	"project_citabot/internal/entities"
)

type fakeBots struct {
	valid   map[string]string // token -> bot username
	running map[int]string
	connErr error
}

func newFakeBots() *fakeBots {
	return &fakeBots{
		valid:   map[string]string{"123:abc": "clinica_bot", "456:def": "sol_bot"},
		running: map[int]string{},
	}
}

func (f *fakeBots) ValidateToken(_ context.Context, token string) (string, error) {
	name, ok := f.valid[token]
	if !ok {
		return "", errors.New("Unauthorized")
	}
	return name, nil
}

func (f *fakeBots) ConnectBot(ctx context.Context, userID int, token string) (string, error) {
	if f.connErr != nil {
		return "", f.connErr
	}
	name, err := f.ValidateToken(ctx, token)
	if err != nil {
		return "", err
	}
	f.running[userID] = name
	return name, nil
}

func (f *fakeBots) DisconnectBot(userID int) { delete(f.running, userID) }

func (f *fakeBots) GetStatus(userID int) (bool, string) {
	name, ok := f.running[userID]
	return ok, name
}

type memTelegram struct {
	bots map[int]entities.TelegramBot
}

func newMemTelegram() *memTelegram { return &memTelegram{bots: map[int]entities.TelegramBot{}} }

func (m *memTelegram) Upsert(_ context.Context, b *entities.TelegramBot) error {
	b.IsActive = false
	m.bots[b.UserID] = *b
	return nil
}

func (m *memTelegram) Get(_ context.Context, userID int) (*entities.TelegramBot, error) {
	b, ok := m.bots[userID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *memTelegram) SetActive(_ context.Context, userID int, active bool) error {
	if b, ok := m.bots[userID]; ok {
		b.IsActive = active
		m.bots[userID] = b
	}
	return nil
}

func (m *memTelegram) Delete(_ context.Context, userID int) (bool, error) {
	_, ok := m.bots[userID]
	delete(m.bots, userID)
	return ok, nil
}

func (m *memTelegram) ListActive(context.Context) ([]entities.TelegramBot, error) {
	var out []entities.TelegramBot
	for _, b := range m.bots {
		if b.IsActive {
			out = append(out, b)
		}
	}
	return out, nil
}

func TestTelegramServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	bots, store := newFakeBots(), newMemTelegram()
	svc := NewTelegramService(bots, store)

	if _, err := svc.Connect(ctx, 1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("connect without token: %v", err)
	}
	if _, err := svc.SaveToken(ctx, 1, "bad"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("invalid token accepted: %v", err)
	}

	st, err := svc.SaveToken(ctx, 1, " 123:abc ")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !st.HasToken || st.Connected || st.BotName != "clinica_bot" {
		t.Errorf("unexpected status after save %+v", st)
	}

	st, err = svc.Connect(ctx, 1)
	if err != nil || !st.Connected {
		t.Fatalf("connect: %+v, %v", st, err)
	}
	if b, _ := store.Get(ctx, 1); !b.IsActive {
		t.Error("bot not marked active")
	}

	// A new token stops the running bot until connected again.
	if _, err := svc.SaveToken(ctx, 1, "456:def"); err != nil {
		t.Fatal(err)
	}
	st, _ = svc.Status(ctx, 1)
	if st.Connected || st.BotName != "sol_bot" {
		t.Errorf("unexpected status after token change %+v", st)
	}

	if _, err := svc.Connect(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := svc.Disconnect(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if b, _ := store.Get(ctx, 1); b.IsActive {
		t.Error("bot still active after disconnect")
	}

	st, err = svc.SaveToken(ctx, 1, "")
	if err != nil || st.HasToken {
		t.Fatalf("clear token: %+v, %v", st, err)
	}
	if b, _ := store.Get(ctx, 1); b != nil {
		t.Error("token kept after clearing")
	}
}

func TestTelegramServiceRestore(t *testing.T) {
	ctx := context.Background()
	bots, store := newFakeBots(), newMemTelegram()
	svc := NewTelegramService(bots, store)
	for _, b := range []entities.TelegramBot{
		{UserID: 1, Token: "123:abc"},
		{UserID: 2, Token: "456:def"},
		{UserID: 3, Token: "revoked"},
	} {
		b := b
		_ = store.Upsert(ctx, &b)
		_ = store.SetActive(ctx, b.UserID, true)
	}

	n := svc.Restore(ctx, func(userID int) bool { return userID != 2 })
	if n != 1 {
		t.Fatalf("expected 1 restored bot, got %d", n)
	}
	if ok, _ := bots.GetStatus(1); !ok {
		t.Error("user 1 not restored")
	}
	if ok, _ := bots.GetStatus(2); ok {
		t.Error("disallowed user restored")
	}
}

func TestTelegramServiceNotConfigured(t *testing.T) {
	svc := NewTelegramService(nil, nil)
	if _, err := svc.Connect(context.Background(), 1); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected not configured, got %v", err)
	}
	st, err := svc.Status(context.Background(), 1)
	if err != nil || st.Connected {
		t.Errorf("unexpected status %+v, %v", st, err)
	}
}
