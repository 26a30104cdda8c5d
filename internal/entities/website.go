package entities

import (
	"encoding/json"
	"time"
)

// Website is a one-page business site built in the dashboard. Sections and
// the other JSON fields are stored as the builder sends them.
type Website struct {
	ID                  int64           `json:"id"`
	UserID              int             `json:"user_id"`
	BusinessName        string          `json:"business_name"`
	BusinessDescription string          `json:"business_description"`
	Slug                string          `json:"slug"`
	Sections            json.RawMessage `json:"sections"`
	SocialMedia         json.RawMessage `json:"social_media"`
	MainVideo           json.RawMessage `json:"main_video"`
	ThemeColors         json.RawMessage `json:"theme_colors"`
	CustomDomain        string          `json:"custom_domain,omitempty"`
	IsPublished         bool            `json:"is_published"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// WebsiteDetail is a website as its owner sees it in the dashboard.
type WebsiteDetail struct {
	Website
	OwnerUsername string `json:"ownerUsername"`
	PublishURL    string `json:"publishUrl"`
}

// PublicWebsite is what a visitor of a published site receives.
type PublicWebsite struct {
	BusinessName        string          `json:"businessName"`
	BusinessDescription string          `json:"businessDescription"`
	ThemeColors         json.RawMessage `json:"themeColors"`
	SocialMedia         json.RawMessage `json:"socialMedia"`
	MainVideo           json.RawMessage `json:"mainVideo"`
	Sections            json.RawMessage `json:"sections"`
	IsPublished         bool            `json:"isPublished"`
	OwnerUsername       string          `json:"ownerUsername,omitempty"`
}

// WebsiteTranslation reports one translated website.
type WebsiteTranslation struct {
	Action     string `json:"action"` // created_new or updated_existing
	OriginalID int64  `json:"originalId"`
	WebsiteID  int64  `json:"websiteId"`
	Slug       string `json:"slug"`
	Name       string `json:"name"`
}

type WebsiteTranslationFailure struct {
	WebsiteID int64  `json:"websiteId"`
	Name      string `json:"name"`
	Error     string `json:"error"`
}

type BulkWebsiteTranslation struct {
	Total          int                         `json:"total"`
	Successful     []WebsiteTranslation        `json:"successful"`
	Failed         []WebsiteTranslationFailure `json:"failed"`
	TargetLanguage string                      `json:"targetLanguage"`
	SourceLanguage string                      `json:"sourceLanguage"`
}
