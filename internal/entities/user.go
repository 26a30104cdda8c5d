package entities

import "time"

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`     // Account enabled
	WAEnabled    bool      `json:"wa_enabled"`    // WhatsApp enabled
	Email        string    `json:"email"`         // Billing contact
	DailyLimit   int       `json:"daily_limit"`   // Max messages per day (0 = unlimited)
	MonthlyLimit int       `json:"monthly_limit"` // Max messages per month (0 = unlimited)
	CreatedAt    time.Time `json:"created_at"`
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type PlatformStats struct {
	TotalUsers     int `json:"total_users"`
	ActiveUsers    int `json:"active_users"`
	WAEnabledUsers int `json:"wa_enabled_users"`
	AdminCount     int `json:"admin_count"`
}
