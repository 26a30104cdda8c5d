package usecases

import (
	"context"
	"time"

	"project_citabot/internal/entities"
	"project_citabot/internal/repository"
)

// Storage ports. The repository package implements them on Postgres.

type UserStore interface {
	Create(ctx context.Context, user *entities.User) error
	GetByUsername(ctx context.Context, username string) (*entities.User, error)
	GetByID(ctx context.Context, id int) (*entities.User, error)
	GetAllUsers(ctx context.Context) ([]entities.User, error)
	GetStats(ctx context.Context) (*entities.PlatformStats, error)
	UpdateUserStatus(ctx context.Context, id int, active bool) (bool, error)
	UpdateWAEnabled(ctx context.Context, id int, enabled bool) (bool, error)
	UpdateUserLimits(ctx context.Context, id int, daily, monthly int) (bool, error)
	UpdateEmail(ctx context.Context, id int, email string) error
}

type SettingsStore interface {
	Get(ctx context.Context, userID int, key string) (string, bool, error)
	Set(ctx context.Context, userID int, key, value string) error
	GetAll(ctx context.Context, userID int) (map[string]string, error)
}

type UsageStore interface {
	IncrementSent(ctx context.Context, userID int) error
	IncrementReceived(ctx context.Context, userID int) error
	GetTodayUsage(ctx context.Context, userID int) (sent, received int, err error)
	GetMonthUsage(ctx context.Context, userID int) (sent, received int, err error)
	GetUsageHistory(ctx context.Context, userID int, days int) ([]repository.DailyUsage, error)
	GetQuotaStatus(ctx context.Context, userID int, dailyLimit, monthlyLimit int) (*repository.UserQuotaStatus, error)
	CanSendMessage(ctx context.Context, userID int, dailyLimit, monthlyLimit int) (bool, string, error)
}

type ConversationStore interface {
	Ensure(ctx context.Context, conv *entities.Conversation) (*entities.Conversation, bool, error)
	GetByID(ctx context.Context, userID int, id int64) (*entities.Conversation, error)
	GetByExternalID(ctx context.Context, userID int, externalID string) (*entities.Conversation, error)
	List(ctx context.Context, userID int, platform string, limit, offset int) ([]entities.Conversation, error)
	ListWhatsAppContacts(ctx context.Context, userID int) ([]entities.Conversation, error)
	SetAIActive(ctx context.Context, userID int, id int64, active bool) (bool, error)
	SetPersonality(ctx context.Context, userID int, id int64, personalityID *int64) (bool, error)
	Count(ctx context.Context, userID int) (int, error)
	SaveMessage(ctx context.Context, userID int, msg *entities.StoredMessage) error
	RecentMessages(ctx context.Context, conversationID int64, limit int) ([]entities.StoredMessage, error)
}

type PersonalityStore interface {
	Create(ctx context.Context, p *entities.Personality) error
	Update(ctx context.Context, p *entities.Personality) (bool, error)
	Delete(ctx context.Context, userID int, id int64) (bool, error)
	GetByID(ctx context.Context, userID int, id int64) (*entities.Personality, error)
	GetDefault(ctx context.Context, userID int) (*entities.Personality, error)
	List(ctx context.Context, userID int) ([]entities.Personality, error)
	CreateMedia(ctx context.Context, m *entities.PersonalityMedia) error
	ListMedia(ctx context.Context, userID int, personalityID int64) ([]entities.PersonalityMedia, error)
	DeleteMedia(ctx context.Context, userID int, id int64) (bool, error)
}

type LeadStore interface {
	CreateColumn(ctx context.Context, c *entities.LeadColumn) error
	GetColumn(ctx context.Context, userID int, id int64) (*entities.LeadColumn, error)
	FirstColumn(ctx context.Context, userID int) (*entities.LeadColumn, error)
	ListColumns(ctx context.Context, userID int) ([]entities.LeadColumn, error)
	UpdateColumn(ctx context.Context, c *entities.LeadColumn) (bool, error)
	DeleteColumn(ctx context.Context, userID int, id int64) (bool, error)
	SyncColumns(ctx context.Context, userID int, columns []entities.LeadColumn) (int, error)
	CreateLead(ctx context.Context, l *entities.Lead) error
	GetLead(ctx context.Context, userID int, id int64) (*entities.Lead, error)
	UpdateLead(ctx context.Context, l *entities.Lead) (bool, error)
	MoveLead(ctx context.Context, userID int, leadID, columnID int64) (bool, error)
	DeleteLead(ctx context.Context, userID int, id int64) (bool, error)
	ListByColumn(ctx context.Context, userID int, columnID int64) ([]entities.Lead, error)
	ExistsForConversation(ctx context.Context, userID int, conversationID int64) (bool, error)
	Count(ctx context.Context, userID int) (int, error)
	ImportContacts(ctx context.Context, userID int, columnID int64, rows []repository.ImportRow, aiActive bool, stats *entities.ImportStats) error
}

type AvailabilityStore interface {
	CreateSlot(ctx context.Context, s *entities.Slot) error
	ListSlots(ctx context.Context, userID int, from, to time.Time, onlyAvailable bool) ([]entities.Slot, error)
	GetSlot(ctx context.Context, userID int, id int64) (*entities.Slot, error)
	GetSlotByRef(ctx context.Context, userID int, ref string) (*entities.Slot, error)
	DeleteSlot(ctx context.Context, userID int, id int64) (bool, error)
	BookSlot(ctx context.Context, userID int, slotID int64, a *entities.Appointment) (bool, error)
	SetAppointmentEvent(ctx context.Context, appointmentID int64, eventID string) error
	CancelAppointment(ctx context.Context, userID int, id int64) (*entities.Appointment, error)
	ListAppointments(ctx context.Context, userID int, from time.Time) ([]entities.Appointment, error)
	CountUpcoming(ctx context.Context, userID int, from time.Time) (int, error)
}

type GoogleAccountStore interface {
	Upsert(ctx context.Context, a *entities.GoogleAccount) error
	Get(ctx context.Context, userID int) (*entities.GoogleAccount, error)
	Delete(ctx context.Context, userID int) (bool, error)
}

type TelegramStore interface {
	Upsert(ctx context.Context, b *entities.TelegramBot) error
	Get(ctx context.Context, userID int) (*entities.TelegramBot, error)
	SetActive(ctx context.Context, userID int, active bool) error
	Delete(ctx context.Context, userID int) (bool, error)
	ListActive(ctx context.Context) ([]entities.TelegramBot, error)
}

type WebsiteStore interface {
	Create(ctx context.Context, w *entities.Website) error
	Update(ctx context.Context, w *entities.Website) (bool, error)
	Delete(ctx context.Context, userID int, id int64) (bool, error)
	GetByID(ctx context.Context, userID int, id int64) (*entities.Website, error)
	List(ctx context.Context, userID int) ([]entities.Website, error)
	SlugTaken(ctx context.Context, userID int, slug string, exceptID int64) (bool, error)
	SetPublished(ctx context.Context, userID int, id int64, published bool) (bool, error)
	GetPublished(ctx context.Context, userID int, slug string) (*entities.Website, error)
	GetPublishedBySlug(ctx context.Context, slug string) (*entities.Website, error)
	GetPublishedByDomain(ctx context.Context, domain string) (*entities.Website, error)
}

type BillingStore interface {
	ListPlans(ctx context.Context, onlyActive bool) ([]entities.Plan, error)
	GetPlan(ctx context.Context, id int64) (*entities.Plan, error)
	GetPlanByPrice(ctx context.Context, priceID string) (*entities.Plan, error)
	CreatePlan(ctx context.Context, p *entities.Plan) error
	UpdatePlan(ctx context.Context, p *entities.Plan) (bool, error)
	SetPlanPaymentLinkIfEmpty(ctx context.Context, priceID, linkID string) (bool, error)
	UpsertCustomer(ctx context.Context, c entities.BillingCustomer) error
	GetCustomerByUser(ctx context.Context, userID int) (*entities.BillingCustomer, error)
	GetUserIDByCustomer(ctx context.Context, customerID string) (int, error)
	UpsertSubscription(ctx context.Context, s *entities.Subscription) error
	GetSubscriptionByUser(ctx context.Context, userID int) (*entities.Subscription, error)
	UpsertInvoice(ctx context.Context, inv entities.Invoice) error
	EventProcessed(ctx context.Context, eventID string) (bool, error)
	RecordEvent(ctx context.Context, eventID, eventType string, payload []byte, errText string) error
}

// Settings keys stored per user.
const (
	SettingWelcomeMessage    = "welcome_message"
	SettingAutoCreateLeads   = "auto_create_leads"
	SettingDefaultAIActive   = "default_ai_active"
	SettingAIFallbackMessage = "ai_fallback_message"
)

// boolSetting reads a "true"/"false" setting, returning def when unset or on error.
func boolSetting(ctx context.Context, settings SettingsStore, userID int, key string, def bool) bool {
	if settings == nil {
		return def
	}
	v, ok, err := settings.Get(ctx, userID, key)
	if err != nil || !ok {
		return def
	}
	switch v {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return def
}
