package entities

import "time"

type GoogleAccount struct {
	UserID       int       `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenType    string    `json:"-"`
	Expiry       time.Time `json:"expiry"`
	UpdatedAt    time.Time `json:"updated_at"`
}
