package entities

import "time"

const DefaultColumnColor = "#3b82f6"

type LeadColumn struct {
	ID        int64     `json:"id"`
	UserID    int       `json:"user_id"`
	Title     string    `json:"title"`
	Color     string    `json:"color"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	Leads     []Lead    `json:"leads,omitempty"`
}

type Lead struct {
	ID             int64     `json:"id"`
	UserID         int       `json:"user_id"`
	ColumnID       int64     `json:"column_id"`
	ConversationID *int64    `json:"conversation_id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email"`
	Message        string    `json:"message"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ContactRow is one row of an imported contact list.
type ContactRow struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
	Notes string `json:"notes"`
}

type ImportStats struct {
	Total                int      `json:"total"`
	Processed            int      `json:"processed"`
	ConversationsCreated int      `json:"conversations_created"`
	ConversationsUpdated int      `json:"conversations_updated"`
	LeadsCreated         int      `json:"leads_created"`
	LeadsSkipped         int      `json:"leads_skipped"`
	Errors               []string `json:"errors"`
	ColumnID             int64    `json:"column_id"`
}
