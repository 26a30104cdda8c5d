package usecases

import (
	"context"
	"fmt"
	"strings"

	"project_citabot/internal/repository"
)

var settingDefaults = map[string]string{
	SettingWelcomeMessage:    "",
	SettingAutoCreateLeads:   "true",
	SettingDefaultAIActive:   "true",
	SettingAIFallbackMessage: defaultFallback,
}

type DashboardUsecase struct {
	settings      SettingsStore
	users         UserStore
	usage         UsageStore
	conversations ConversationStore
	leads         LeadStore
	availability  *AvailabilityService
}

func NewDashboardUsecase(settings SettingsStore, users UserStore, usage UsageStore, conversations ConversationStore, leads LeadStore, availability *AvailabilityService) *DashboardUsecase {
	return &DashboardUsecase{
		settings:      settings,
		users:         users,
		usage:         usage,
		conversations: conversations,
		leads:         leads,
		availability:  availability,
	}
}

// Settings returns every known setting with defaults filled in.
func (u *DashboardUsecase) Settings(ctx context.Context, userID int) (map[string]string, error) {
	stored, err := u.settings.GetAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(settingDefaults))
	for k, def := range settingDefaults {
		out[k] = def
		if v, ok := stored[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// UpdateSettings writes the known keys present in values.
func (u *DashboardUsecase) UpdateSettings(ctx context.Context, userID int, values map[string]string) error {
	for k, v := range values {
		if _, ok := settingDefaults[k]; !ok {
			return invalid(fmt.Sprintf("unknown setting %q", k))
		}
		switch k {
		case SettingAutoCreateLeads, SettingDefaultAIActive:
			v = strings.ToLower(strings.TrimSpace(v))
			if v != "true" && v != "false" {
				return invalid(k + " must be true or false")
			}
		}
		if err := u.settings.Set(ctx, userID, k, v); err != nil {
			return err
		}
	}
	return nil
}

type DashboardStats struct {
	Conversations        int                         `json:"conversations"`
	Leads                int                         `json:"leads"`
	UpcomingAppointments int                         `json:"upcoming_appointments"`
	SentToday            int                         `json:"sent_today"`
	ReceivedToday        int                         `json:"received_today"`
	SentMonth            int                         `json:"sent_month"`
	ReceivedMonth        int                         `json:"received_month"`
	Quota                *repository.UserQuotaStatus `json:"quota"`
	History              []repository.DailyUsage     `json:"history"`
}

func (u *DashboardUsecase) Stats(ctx context.Context, userID int, days int) (*DashboardStats, error) {
	if days <= 0 || days > 90 {
		days = 7
	}
	user, err := u.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFound("user not found")
	}

	var st DashboardStats
	if st.Conversations, err = u.conversations.Count(ctx, userID); err != nil {
		return nil, err
	}
	if st.Leads, err = u.leads.Count(ctx, userID); err != nil {
		return nil, err
	}
	if u.availability != nil {
		if st.UpcomingAppointments, err = u.availability.CountUpcoming(ctx, userID); err != nil {
			return nil, err
		}
	}
	if st.SentToday, st.ReceivedToday, err = u.usage.GetTodayUsage(ctx, userID); err != nil {
		return nil, err
	}
	if st.SentMonth, st.ReceivedMonth, err = u.usage.GetMonthUsage(ctx, userID); err != nil {
		return nil, err
	}
	if st.Quota, err = u.usage.GetQuotaStatus(ctx, userID, user.DailyLimit, user.MonthlyLimit); err != nil {
		return nil, err
	}
	if st.History, err = u.usage.GetUsageHistory(ctx, userID, days); err != nil {
		return nil, err
	}
	return &st, nil
}
