package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv   string `mapstructure:"APP_ENV"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`

	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	JWTSecret     string `mapstructure:"JWT_SECRET"`
	AdminUsername string `mapstructure:"ADMIN_USERNAME"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	RedisURL         string `mapstructure:"REDIS_URL"`
	AsynqConcurrency int    `mapstructure:"ASYNQ_CONCURRENCY"`
	AsynqQueues      string `mapstructure:"ASYNQ_QUEUES"`

	DevicesDir string `mapstructure:"DEVICES_DIR"`

	OpenAIAPIKey  string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL string        `mapstructure:"OPENAI_BASE_URL"`
	OpenAIModel   string        `mapstructure:"OPENAI_MODEL"`
	OpenAITimeout time.Duration `mapstructure:"OPENAI_TIMEOUT"`

	// Inbound media understanding; empty disables the step.
	TranscriptionModel string `mapstructure:"OPENAI_TRANSCRIPTION_MODEL"`
	VisionModel        string `mapstructure:"OPENAI_VISION_MODEL"`

	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`

	FrontendURL string   `mapstructure:"FRONTEND_URL"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	GoogleClientID        string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret    string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL     string `mapstructure:"GOOGLE_REDIRECT_URL"`
	GoogleTranslateAPIKey string `mapstructure:"GOOGLE_TRANSLATE_API_KEY"`

	S3Endpoint        string `mapstructure:"S3_ENDPOINT"`
	S3Region          string `mapstructure:"S3_REGION"`
	S3Bucket          string `mapstructure:"S3_BUCKET"`
	S3AccessKeyID     string `mapstructure:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `mapstructure:"S3_SECRET_ACCESS_KEY"`
	S3PublicURL       string `mapstructure:"S3_PUBLIC_URL"`

	VideoTempDir       string `mapstructure:"VIDEO_TEMP_DIR"`
	YtDlpPath          string `mapstructure:"YTDLP_PATH"`
	DefaultCountryCode string `mapstructure:"DEFAULT_COUNTRY_CODE"`
	PublicSiteDomain   string `mapstructure:"PUBLIC_SITE_DOMAIN"`
}

var defaults = map[string]any{
	"APP_ENV":                    "development",
	"HTTP_ADDR":                  "0.0.0.0:8080",
	"DATABASE_URL":               "",
	"JWT_SECRET":                 "",
	"ADMIN_USERNAME":             "root",
	"ADMIN_PASSWORD":             "",
	"LOG_LEVEL":                  "info",
	"LOG_PRETTY":                 false,
	"REDIS_URL":                  "",
	"ASYNQ_CONCURRENCY":          10,
	"ASYNQ_QUEUES":               "default=3,bulk=1,media=1",
	"DEVICES_DIR":                "devices",
	"OPENAI_API_KEY":             "",
	"OPENAI_BASE_URL":            "",
	"OPENAI_MODEL":               "gpt-4o-mini",
	"OPENAI_TIMEOUT":             "25s",
	"OPENAI_TRANSCRIPTION_MODEL": "whisper-1",
	"OPENAI_VISION_MODEL":        "gpt-4o-mini",
	"STRIPE_SECRET_KEY":          "",
	"STRIPE_WEBHOOK_SECRET":      "",
	"FRONTEND_URL":               "http://localhost:3000",
	"CORS_ORIGINS":               "http://localhost:3000",
	"GOOGLE_CLIENT_ID":           "",
	"GOOGLE_CLIENT_SECRET":       "",
	"GOOGLE_REDIRECT_URL":        "",
	"GOOGLE_TRANSLATE_API_KEY":   "",
	"S3_ENDPOINT":                "",
	"S3_REGION":                  "us-east-1",
	"S3_BUCKET":                  "",
	"S3_ACCESS_KEY_ID":           "",
	"S3_SECRET_ACCESS_KEY":       "",
	"S3_PUBLIC_URL":              "",
	"VIDEO_TEMP_DIR":             "",
	"YTDLP_PATH":                 "yt-dlp",
	"DEFAULT_COUNTRY_CODE":       "34",
	"PUBLIC_SITE_DOMAIN":         "uniclick.io",
}

// Load reads envFile (if it exists) into the process environment and then
// resolves every key from the environment, falling back to defaults.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.VideoTempDir == "" {
		cfg.VideoTempDir = os.TempDir()
	}
	cfg.CORSOrigins = cleanList(cfg.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func (c *Config) StripeEnabled() bool {
	return c.StripeSecretKey != "" && c.StripeWebhookSecret != ""
}

func (c *Config) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3AccessKeyID != "" && c.S3SecretAccessKey != ""
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
