package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsageRepository struct {
	db  *pgxpool.Pool
	now func() time.Time
}

type DailyUsage struct {
	Date             time.Time `json:"date"`
	MessagesSent     int       `json:"messages_sent"`
	MessagesReceived int       `json:"messages_received"`
}

type UserQuotaStatus struct {
	DailyLimit       int `json:"daily_limit"`
	MonthlyLimit     int `json:"monthly_limit"`
	TodaySent        int `json:"today_sent"`
	MonthSent        int `json:"month_sent"`
	DailyRemaining   int `json:"daily_remaining"`
	MonthlyRemaining int `json:"monthly_remaining"`
	DailyPercent     int `json:"daily_percent"`
	MonthlyPercent   int `json:"monthly_percent"`
}

func NewUsageRepository(db *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{db: db, now: time.Now}
}

func (r *UsageRepository) today() string {
	return r.now().Format("2006-01-02")
}

// IncrementSent increments messages_sent for today
func (r *UsageRepository) IncrementSent(ctx context.Context, userID int) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO message_usage (user_id, date, messages_sent, messages_received)
		VALUES ($1, $2, 1, 0)
		ON CONFLICT (user_id, date)
		DO UPDATE SET messages_sent = message_usage.messages_sent + 1
	`, userID, r.today())
	return err
}

// IncrementReceived increments messages_received for today
func (r *UsageRepository) IncrementReceived(ctx context.Context, userID int) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO message_usage (user_id, date, messages_sent, messages_received)
		VALUES ($1, $2, 0, 1)
		ON CONFLICT (user_id, date)
		DO UPDATE SET messages_received = message_usage.messages_received + 1
	`, userID, r.today())
	return err
}

// GetTodayUsage returns today's message count
func (r *UsageRepository) GetTodayUsage(ctx context.Context, userID int) (sent, received int, err error) {
	err = r.db.QueryRow(ctx, `
		SELECT messages_sent, messages_received
		FROM message_usage WHERE user_id = $1 AND date = $2
	`, userID, r.today()).Scan(&sent, &received)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, nil // No record means 0 usage
	}
	return sent, received, err
}

// GetMonthUsage returns this month's total message count
func (r *UsageRepository) GetMonthUsage(ctx context.Context, userID int) (sent, received int, err error) {
	firstOfMonth := r.now().Format("2006-01") + "-01"
	err = r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(messages_sent), 0), COALESCE(SUM(messages_received), 0)
		FROM message_usage WHERE user_id = $1 AND date >= $2
	`, userID, firstOfMonth).Scan(&sent, &received)
	return sent, received, err
}

// GetUsageHistory returns last N days of usage
func (r *UsageRepository) GetUsageHistory(ctx context.Context, userID int, days int) ([]DailyUsage, error) {
	startDate := r.now().AddDate(0, 0, -days).Format("2006-01-02")
	rows, err := r.db.Query(ctx, `
		SELECT date, messages_sent, messages_received
		FROM message_usage
		WHERE user_id = $1 AND date >= $2
		ORDER BY date ASC
	`, userID, startDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	usage := []DailyUsage{}
	for rows.Next() {
		var u DailyUsage
		if err := rows.Scan(&u.Date, &u.MessagesSent, &u.MessagesReceived); err != nil {
			return nil, err
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}

// GetQuotaStatus returns comprehensive quota status for a user
func (r *UsageRepository) GetQuotaStatus(ctx context.Context, userID int, dailyLimit, monthlyLimit int) (*UserQuotaStatus, error) {
	todaySent, _, err := r.GetTodayUsage(ctx, userID)
	if err != nil {
		return nil, err
	}
	monthSent, _, err := r.GetMonthUsage(ctx, userID)
	if err != nil {
		return nil, err
	}
	return QuotaStatus(dailyLimit, monthlyLimit, todaySent, monthSent), nil
}

// QuotaStatus computes remaining quota. A limit of 0 means unlimited and
// is reported with -1 remaining.
func QuotaStatus(dailyLimit, monthlyLimit, todaySent, monthSent int) *UserQuotaStatus {
	status := &UserQuotaStatus{
		DailyLimit:   dailyLimit,
		MonthlyLimit: monthlyLimit,
		TodaySent:    todaySent,
		MonthSent:    monthSent,
	}
	status.DailyRemaining, status.DailyPercent = remaining(dailyLimit, todaySent)
	status.MonthlyRemaining, status.MonthlyPercent = remaining(monthlyLimit, monthSent)
	return status
}

func remaining(limit, used int) (left, percent int) {
	if limit <= 0 {
		return -1, 0
	}
	left = max(limit-used, 0)
	percent = min(used*100/limit, 100)
	return left, percent
}

// CanSendMessage checks if user can send a message based on quotas
func (r *UsageRepository) CanSendMessage(ctx context.Context, userID int, dailyLimit, monthlyLimit int) (bool, string, error) {
	if dailyLimit <= 0 && monthlyLimit <= 0 {
		return true, "", nil
	}
	todaySent, _, err := r.GetTodayUsage(ctx, userID)
	if err != nil {
		return false, "", err
	}
	monthSent, _, err := r.GetMonthUsage(ctx, userID)
	if err != nil {
		return false, "", err
	}

	if dailyLimit > 0 && todaySent >= dailyLimit {
		return false, "Daily message limit reached", nil
	}
	if monthlyLimit > 0 && monthSent >= monthlyLimit {
		return false, "Monthly message limit reached", nil
	}
	return true, "", nil
}
