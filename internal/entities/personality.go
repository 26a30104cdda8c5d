package entities

import "time"

type Personality struct {
	ID           int64     `json:"id"`
	UserID       int       `json:"user_id"`
	Name         string    `json:"nombre"`
	Company      string    `json:"empresa"`
	Instructions string    `json:"instrucciones"`
	Greeting     string    `json:"saludo"`
	Category     string    `json:"category"`
	IsDefault    bool      `json:"is_default"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const (
	MediaTypeVideo         = "video"
	MediaTypeVideoURLError = "video_url_error"
)

// PersonalityMedia is content attached to a personality and summarised as text
// for the prompt.
type PersonalityMedia struct {
	ID            int64          `json:"id"`
	UserID        int            `json:"user_id"`
	PersonalityID int64          `json:"personality_id"`
	MediaType     string         `json:"media_type"`
	Filename      string         `json:"filename"`
	MimeType      string         `json:"mime_type"`
	URL           string         `json:"url"`
	FileSize      int64          `json:"file_size"`
	ExtractedText string         `json:"extracted_text"`
	Metadata      map[string]any `json:"metadata"`
	CreatedAt     time.Time      `json:"created_at"`
}
