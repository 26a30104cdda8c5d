package entities

import "time"

// TelegramBot is the bot token a user connected to answer on Telegram.
type TelegramBot struct {
	UserID      int       `json:"user_id"`
	Token       string    `json:"-"`
	BotUsername string    `json:"bot_username"`
	IsActive    bool      `json:"is_active"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type TelegramStatus struct {
	HasToken  bool   `json:"has_token"`
	Connected bool   `json:"connected"`
	BotName   string `json:"bot_name"`
}
