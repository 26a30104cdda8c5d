package usecases

// Background task types.
const (
	TaskLeadSend    = "leads:send"
	TaskVideoIngest = "video:ingest"
)

// Queue names, matching the asynq queue weights in config.
const (
	QueueDefault = "default"
	QueueBulk    = "bulk"
	QueueMedia   = "media"
)

const (
	BulkModeText = "text"
	BulkModeAI   = "ai"
)

// LeadSendPayload is one message of a bulk send.
type LeadSendPayload struct {
	UserID         int    `json:"user_id"`
	LeadID         int64  `json:"lead_id"`
	ConversationID *int64 `json:"conversation_id,omitempty"`
	To             string `json:"to"`
	Name           string `json:"name"`
	Mode           string `json:"mode"`
	Text           string `json:"text,omitempty"`
	PromptTemplate string `json:"prompt_template,omitempty"`
}

type VideoIngestPayload struct {
	UserID        int      `json:"user_id"`
	PersonalityID int64    `json:"personality_id"`
	URLs          []string `json:"urls"`
}
