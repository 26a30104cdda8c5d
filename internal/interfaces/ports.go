package interfaces

import (
	"context"
	"io"
	"time"

	"project_citabot/internal/entities"
)

type AIClient interface {
	Chat(ctx context.Context, messages []entities.ChatMessage) (string, error)
}

// MediaAnalyzer turns inbound attachments into text for the model.
type MediaAnalyzer interface {
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)
	DescribeImage(ctx context.Context, image []byte, mimeType string) (string, error)
	ExtractPDF(ctx context.Context, pdf []byte) (string, error)
}

type Messenger interface {
	SendMessage(ctx context.Context, to, content string) error
}

// MessengerProvider resolves the outbound channel of a user for a platform.
type MessengerProvider interface {
	Messenger(userID int, platform string) (Messenger, error)
}

// Cache is a string key-value store with expiry. Misses are reported as ErrMiss.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

var ErrMiss = errMiss{}

type errMiss struct{}

func (errMiss) Error() string { return "cache: miss" }

// Task is a background job with an opaque payload.
type Task struct {
	Type    string
	Payload []byte
}

type TaskHandler func(ctx context.Context, task Task) error

// EnqueueOption tunes a single enqueue. Zero values mean unspecified.
type EnqueueOption struct {
	Queue     string
	ProcessIn time.Duration
	MaxRetry  int
	UniqueTTL time.Duration
}

type TaskQueue interface {
	Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (string, error)
	Close() error
}

type TaskServer interface {
	Register(taskType string, h TaskHandler)
	Run(ctx context.Context) error
}

type MediaStore interface {
	Upload(ctx context.Context, key string, body io.ReadSeeker, contentType string) (string, error)
}

// Broadcaster pushes realtime events to subscribers of a room.
type Broadcaster interface {
	Publish(room string, event any) int
}

type Translator interface {
	Translate(ctx context.Context, texts []string, source, target string) ([]string, error)
}

// CalendarProvider is an OAuth calendar backend. Calls that may refresh the
// access token return the refreshed account, or nil when it did not change.
type CalendarProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*entities.GoogleAccount, error)
	InsertEvent(ctx context.Context, account *entities.GoogleAccount, event entities.CalendarEvent) (string, *entities.GoogleAccount, error)
	DeleteEvent(ctx context.Context, account *entities.GoogleAccount, eventID string) (*entities.GoogleAccount, error)
}

type VideoDownloader interface {
	Download(ctx context.Context, url string) (*entities.VideoDownload, error)
	CleanupOlderThan(age time.Duration) (int, error)
	Version(ctx context.Context) (string, error)
}
