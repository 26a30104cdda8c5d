package usecases

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"project_citabot/internal/entities"
	"project_citabot/internal/infrastructure"
)

func newAvailabilityFixture(t *testing.T, calendar CalendarMirror) (*AvailabilityService, *memAvailability) {
	t.Helper()
	store := &memAvailability{}
	for _, s := range matcherSlots() {
		s.UserID = 1
		s.Location = "Consultorio"
		_ = store.CreateSlot(context.Background(), &s)
	}
	svc := NewAvailabilityService(store, calendar, time.UTC)
	svc.now = func() time.Time { return matcherNow }
	return svc, store
}

func TestCreateSlotValidation(t *testing.T) {
	svc, _ := newAvailabilityFixture(t, nil)
	ctx := context.Background()
	start := matcherNow.Add(48 * time.Hour)

	if err := svc.CreateSlot(ctx, 1, &entities.Slot{Start: start, End: start}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected invalid range, got %v", err)
	}
	slot := &entities.Slot{Start: start, End: start.Add(time.Hour), IsAvailable: false}
	if err := svc.CreateSlot(ctx, 1, slot); err != nil {
		t.Fatal(err)
	}
	if !slot.IsAvailable || slot.Status != entities.SlotStatusOpen {
		t.Errorf("new slot must be open, got %+v", slot)
	}
}

func TestBookAndCancel(t *testing.T) {
	calendar := &fakeCalendar{eventID: "gcal_1"}
	svc, store := newAvailabilityFixture(t, calendar)
	ctx := context.Background()
	convID := int64(7)

	res, err := svc.Book(ctx, 1, entities.BookingRequest{SlotRef: "1", ClientName: " Ana ", Description: "consulta dental", ConversationID: &convID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SlotID != 1 || res.Summary != "Consulta con Ana - consulta dental" || res.Location != "Consultorio" {
		t.Errorf("unexpected booking %+v", res)
	}
	if !res.GoogleCalendarSynced || res.GoogleEventID != "gcal_1" {
		t.Errorf("calendar copy not reported: %+v", res)
	}

	if _, err := svc.Book(ctx, 1, entities.BookingRequest{SlotRef: "1", ClientName: "Luis"}); !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("expected slot unavailable on double booking, got %v", err)
	}
	if _, err := svc.Book(ctx, 1, entities.BookingRequest{SlotRef: "1"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected missing client name, got %v", err)
	}

	appt, err := svc.Cancel(ctx, 1, res.AppointmentID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if appt.Status != entities.AppointmentCancelled {
		t.Errorf("unexpected status %s", appt.Status)
	}
	if len(calendar.removed) != 1 || calendar.removed[0] != "gcal_1" {
		t.Errorf("calendar event not removed: %v", calendar.removed)
	}
	if slot, _ := store.GetSlot(ctx, 1, 1); !slot.IsAvailable {
		t.Error("slot not reopened after cancel")
	}
	if _, err := svc.Cancel(ctx, 1, res.AppointmentID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found on second cancel, got %v", err)
	}
}

func TestBookSurvivesCalendarFailure(t *testing.T) {
	svc, _ := newAvailabilityFixture(t, &fakeCalendar{err: errBoom})
	res, err := svc.Book(context.Background(), 1, entities.BookingRequest{SlotRef: "2", ClientName: "Ana"})
	if err != nil {
		t.Fatalf("calendar failure must not fail the booking: %v", err)
	}
	if res.GoogleCalendarSynced {
		t.Error("booking reported as synced")
	}
}

func TestBookFromMessage(t *testing.T) {
	svc, _ := newAvailabilityFixture(t, nil)
	ctx := context.Background()
	conv := &entities.Conversation{ID: 3, UserID: 1, Platform: entities.PlatformWhatsApp, ExternalID: "34600111222@s.whatsapp.net"}
	slots, err := svc.UpcomingSlots(ctx, 1)
	if err != nil || len(slots) != 3 {
		t.Fatalf("unexpected slots %v, %v", slots, err)
	}

	res, err := svc.BookFromMessage(ctx, 1, conv, "mañana a las 10", "", slots)
	if err != nil || res != nil {
		t.Fatalf("no booking intent should not book, got %+v, %v", res, err)
	}

	res, err = svc.BookFromMessage(ctx, 1, conv, "Quiero una cita pasado mañana a las 10", "", slots)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || res.SlotID != 3 {
		t.Fatalf("expected slot 3 booked, got %+v", res)
	}
	if res.Summary != "Cita con 34600111222" {
		t.Errorf("unexpected summary %q", res.Summary)
	}
}

func TestListSlotsWindow(t *testing.T) {
	svc, _ := newAvailabilityFixture(t, nil)
	ctx := context.Background()
	if _, err := svc.ListSlots(ctx, 1, matcherNow, matcherNow.Add(-time.Hour), false); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected invalid window, got %v", err)
	}
	slots, err := svc.ListSlots(ctx, 1, time.Time{}, time.Time{}, true)
	if err != nil || len(slots) != 3 {
		t.Errorf("unexpected default window %v, %v", slots, err)
	}
}

type fakeCalendarProvider struct {
	inserted []entities.CalendarEvent
}

func (f *fakeCalendarProvider) AuthCodeURL(state string) string {
	return "https://accounts.google.test/auth?state=" + url.QueryEscape(state)
}

func (f *fakeCalendarProvider) Exchange(_ context.Context, code string) (*entities.GoogleAccount, error) {
	if code != "good-code" {
		return nil, errBoom
	}
	return &entities.GoogleAccount{Email: "doctora@example.com", AccessToken: "at", RefreshToken: "rt"}, nil
}

func (f *fakeCalendarProvider) InsertEvent(_ context.Context, a *entities.GoogleAccount, e entities.CalendarEvent) (string, *entities.GoogleAccount, error) {
	f.inserted = append(f.inserted, e)
	refreshed := *a
	refreshed.AccessToken = "at2"
	return "evt_1", &refreshed, nil
}

func (f *fakeCalendarProvider) DeleteEvent(context.Context, *entities.GoogleAccount, string) (*entities.GoogleAccount, error) {
	return nil, nil
}

type memGoogleAccounts struct {
	accounts map[int]entities.GoogleAccount
}

func (m *memGoogleAccounts) Upsert(_ context.Context, a *entities.GoogleAccount) error {
	m.accounts[a.UserID] = *a
	return nil
}

func (m *memGoogleAccounts) Get(_ context.Context, userID int) (*entities.GoogleAccount, error) {
	if a, ok := m.accounts[userID]; ok {
		return &a, nil
	}
	return nil, nil
}

func (m *memGoogleAccounts) Delete(_ context.Context, userID int) (bool, error) {
	_, ok := m.accounts[userID]
	delete(m.accounts, userID)
	return ok, nil
}

func TestCalendarOAuthFlow(t *testing.T) {
	ctx := context.Background()
	provider := &fakeCalendarProvider{}
	accounts := &memGoogleAccounts{accounts: map[int]entities.GoogleAccount{}}
	svc := NewCalendarService(provider, accounts, infrastructure.NewMemoryCache())

	authURL, err := svc.AuthURL(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse(authURL)
	state := u.Query().Get("state")
	if state == "" {
		t.Fatalf("no state in %s", authURL)
	}

	if _, err := svc.HandleCallback(ctx, "forged", "good-code"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected invalid state, got %v", err)
	}
	account, err := svc.HandleCallback(ctx, state, "good-code")
	if err != nil {
		t.Fatalf("callback failed: %v", err)
	}
	if account.UserID != 5 {
		t.Errorf("account bound to user %d", account.UserID)
	}
	if _, err := svc.HandleCallback(ctx, state, "good-code"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("state must be single use, got %v", err)
	}

	id, err := svc.MirrorEvent(ctx, 5, entities.CalendarEvent{Summary: "Cita"})
	if err != nil || id != "evt_1" {
		t.Fatalf("mirror failed: %q, %v", id, err)
	}
	if stored, _ := accounts.Get(ctx, 5); stored.AccessToken != "at2" {
		t.Error("refreshed token not persisted")
	}

	if _, err := svc.MirrorEvent(ctx, 6, entities.CalendarEvent{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected not configured for unlinked user, got %v", err)
	}
	if err := svc.Disconnect(ctx, 5); err != nil {
		t.Fatal(err)
	}
	if err := svc.Disconnect(ctx, 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
