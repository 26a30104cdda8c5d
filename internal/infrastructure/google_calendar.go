package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"project_citabot/internal/entities"
	"project_citabot/internal/interfaces"
)

const primaryCalendar = "primary"

// GoogleCalendar mirrors appointments to the primary calendar of the user's
// linked Google account.
type GoogleCalendar struct {
	oauth *oauth2.Config
}

func NewGoogleCalendar(clientID, clientSecret, redirectURL string) (*GoogleCalendar, error) {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("google: client id, secret and redirect url are required")
	}
	return &GoogleCalendar{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{calendar.CalendarEventsScope, oauth2api.UserinfoEmailScope},
		},
	}, nil
}

var _ interfaces.CalendarProvider = (*GoogleCalendar)(nil)

// AuthCodeURL asks for offline access so a refresh token is issued.
func (g *GoogleCalendar) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (g *GoogleCalendar) Exchange(ctx context.Context, code string) (*entities.GoogleAccount, error) {
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	account := accountFromToken(tok)
	svc, err := oauth2api.NewService(ctx, option.WithTokenSource(g.oauth.TokenSource(ctx, tok)))
	if err != nil {
		return account, nil
	}
	if info, err := svc.Userinfo.Get().Context(ctx).Do(); err == nil {
		account.Email = info.Email
	}
	return account, nil
}

func (g *GoogleCalendar) InsertEvent(ctx context.Context, account *entities.GoogleAccount, event entities.CalendarEvent) (string, *entities.GoogleAccount, error) {
	ts := g.tokenSource(ctx, account)
	svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return "", nil, fmt.Errorf("calendar service: %w", err)
	}

	created, err := svc.Events.Insert(primaryCalendar, &calendar.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Start:       &calendar.EventDateTime{DateTime: event.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: event.End.Format(time.RFC3339)},
	}).Context(ctx).Do()
	if err != nil {
		return "", refreshed(ts, account), fmt.Errorf("insert event: %w", err)
	}
	return created.Id, refreshed(ts, account), nil
}

func (g *GoogleCalendar) DeleteEvent(ctx context.Context, account *entities.GoogleAccount, eventID string) (*entities.GoogleAccount, error) {
	ts := g.tokenSource(ctx, account)
	svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	if err := svc.Events.Delete(primaryCalendar, eventID).Context(ctx).Do(); err != nil {
		return refreshed(ts, account), fmt.Errorf("delete event %s: %w", eventID, err)
	}
	return refreshed(ts, account), nil
}

func (g *GoogleCalendar) tokenSource(ctx context.Context, account *entities.GoogleAccount) oauth2.TokenSource {
	return g.oauth.TokenSource(ctx, &oauth2.Token{
		AccessToken:  account.AccessToken,
		RefreshToken: account.RefreshToken,
		TokenType:    account.TokenType,
		Expiry:       account.Expiry,
	})
}

// refreshed returns the account with the token source's current token when
// it differs from the stored one, or nil.
func refreshed(ts oauth2.TokenSource, account *entities.GoogleAccount) *entities.GoogleAccount {
	tok, err := ts.Token()
	if err != nil || tok.AccessToken == account.AccessToken {
		return nil
	}
	updated := accountFromToken(tok)
	updated.UserID = account.UserID
	updated.Email = account.Email
	if updated.RefreshToken == "" {
		updated.RefreshToken = account.RefreshToken
	}
	return updated
}

func accountFromToken(tok *oauth2.Token) *entities.GoogleAccount {
	return &entities.GoogleAccount{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
}
