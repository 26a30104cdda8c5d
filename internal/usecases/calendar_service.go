package usecases

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"project_citabot/internal/entities"
	"project_citabot/internal/interfaces"
)

const oauthStateTTL = 10 * time.Minute

// CalendarService links users to their Google Calendar and mirrors
// appointments to it.
type CalendarService struct {
	provider interfaces.CalendarProvider
	accounts GoogleAccountStore
	cache    interfaces.Cache
}

func NewCalendarService(provider interfaces.CalendarProvider, accounts GoogleAccountStore, cache interfaces.Cache) *CalendarService {
	return &CalendarService{provider: provider, accounts: accounts, cache: cache}
}

func (s *CalendarService) configured() bool { return s != nil && s.provider != nil }

func stateKey(state string) string { return "google:oauth:state:" + state }

// AuthURL returns the consent URL. The opaque state maps back to the user
// for ten minutes.
func (s *CalendarService) AuthURL(ctx context.Context, userID int) (string, error) {
	if !s.configured() {
		return "", newError(ErrNotConfigured, "Google Calendar no está configurado")
	}
	state := uuid.NewString()
	if err := s.cache.Set(ctx, stateKey(state), strconv.Itoa(userID), oauthStateTTL); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	return s.provider.AuthCodeURL(state), nil
}

// HandleCallback exchanges the code for a token and stores it for the
// user that requested the state.
func (s *CalendarService) HandleCallback(ctx context.Context, state, code string) (*entities.GoogleAccount, error) {
	if !s.configured() {
		return nil, newError(ErrNotConfigured, "Google Calendar no está configurado")
	}
	if state == "" || code == "" {
		return nil, invalid("state and code are required")
	}
	raw, err := s.cache.Get(ctx, stateKey(state))
	if errors.Is(err, interfaces.ErrMiss) {
		return nil, invalid("estado OAuth inválido o expirado")
	}
	if err != nil {
		return nil, err
	}
	_, _ = s.cache.Del(ctx, stateKey(state))

	userID, err := strconv.Atoi(raw)
	if err != nil {
		return nil, invalid("estado OAuth inválido")
	}

	account, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	account.UserID = userID
	if err := s.accounts.Upsert(ctx, account); err != nil {
		return nil, fmt.Errorf("%w: store google account: %v", ErrPersistence, err)
	}
	return account, nil
}

func (s *CalendarService) Status(ctx context.Context, userID int) (*entities.GoogleAccount, error) {
	return s.accounts.Get(ctx, userID)
}

func (s *CalendarService) Disconnect(ctx context.Context, userID int) error {
	ok, err := s.accounts.Delete(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("No hay cuenta de Google conectada")
	}
	return nil
}

func (s *CalendarService) account(ctx context.Context, userID int) (*entities.GoogleAccount, error) {
	if !s.configured() {
		return nil, ErrNotConfigured
	}
	account, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, newError(ErrNotConfigured, "No hay cuenta de Google conectada")
	}
	return account, nil
}

func (s *CalendarService) persistRefreshed(ctx context.Context, userID int, refreshed *entities.GoogleAccount) {
	if refreshed == nil {
		return
	}
	refreshed.UserID = userID
	if err := s.accounts.Upsert(ctx, refreshed); err != nil {
		log.Warn().Err(err).Int("user_id", userID).Msg("failed to persist refreshed google token")
	}
}

// MirrorEvent inserts the event on the user's primary calendar.
func (s *CalendarService) MirrorEvent(ctx context.Context, userID int, event entities.CalendarEvent) (string, error) {
	account, err := s.account(ctx, userID)
	if err != nil {
		return "", err
	}
	id, refreshed, err := s.provider.InsertEvent(ctx, account, event)
	s.persistRefreshed(ctx, userID, refreshed)
	return id, err
}

func (s *CalendarService) RemoveEvent(ctx context.Context, userID int, eventID string) error {
	account, err := s.account(ctx, userID)
	if err != nil {
		return err
	}
	refreshed, err := s.provider.DeleteEvent(ctx, account, eventID)
	s.persistRefreshed(ctx, userID, refreshed)
	return err
}
