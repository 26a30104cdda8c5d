package infrastructure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
}

func NewPostgresClient(ctx context.Context, connString string) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(normalizeDSN(connString))
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Pool configuration
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresClient{Pool: pool}, nil
}

// normalizeDSN accepts driver-suffixed DSNs copied from other stacks.
func normalizeDSN(dsn string) string {
	s := strings.TrimSpace(dsn)
	for _, prefix := range []string{"postgresql+asyncpg://", "postgresql+pgx://"} {
		s = strings.Replace(s, prefix, "postgresql://", 1)
	}
	for _, prefix := range []string{"postgres+asyncpg://", "postgres+pgx://"} {
		s = strings.Replace(s, prefix, "postgres://", 1)
	}
	return s
}

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{"users table", `
		CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(20) NOT NULL DEFAULT 'user',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			wa_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			email VARCHAR(255) NOT NULL DEFAULT '',
			daily_limit INT NOT NULL DEFAULT 0,
			monthly_limit INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"bot_settings table", `
		CREATE TABLE IF NOT EXISTS bot_settings (
			user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			key VARCHAR(64) NOT NULL,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, key)
		);`},
	{"message_usage table", `
		CREATE TABLE IF NOT EXISTS message_usage (
			user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			date DATE NOT NULL,
			messages_sent INT NOT NULL DEFAULT 0,
			messages_received INT NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, date)
		);`},
	{"personalities table", `
		CREATE TABLE IF NOT EXISTS personalities (
			id BIGSERIAL PRIMARY KEY,
			user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			nombre VARCHAR(120) NOT NULL,
			empresa VARCHAR(120) NOT NULL DEFAULT '',
			instrucciones TEXT NOT NULL DEFAULT '',
			saludo TEXT NOT NULL DEFAULT '',
			category VARCHAR(60) NOT NULL DEFAULT '',
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"personality_media table", `
		CREATE TABLE IF NOT EXISTS personality_media (
			id BIGSERIAL PRIMARY KEY,
			user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			personality_id BIGINT NOT NULL REFERENCES personalities(id) ON DELETE CASCADE,
			media_type VARCHAR(40) NOT NULL,
			filename VARCHAR(255) NOT NULL,
			mime_type VARCHAR(100) NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			file_size BIGINT NOT NULL DEFAULT 0,
			extracted_text TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"conversations table", `
		CREATE TABLE IF NOT EXISTS conversations (
			id BIGSERIAL PRIMARY KEY,
			user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			platform VARCHAR(20) NOT NULL,
			external_id VARCHAR(255) NOT NULL,
			contact_name VARCHAR(255) NOT NULL DEFAULT '',
			ai_active BOOLEAN NOT NULL DEFAULT TRUE,
			personality_id BIGINT REFERENCES personalities(id) ON DELETE SET NULL,
			last_message_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, external_id)
		);`},
	{"messages table", `
		CREATE TABLE IF NOT EXISTS messages (
			id BIGSERIAL PRIMARY KEY,
			conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			sender_type VARCHAR(10) NOT NULL,
			message_type VARCHAR(20) NOT NULL DEFAULT 'text',
			content TEXT NOT NULL,
			interaction_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, created_at);`},
	{"lead_columns table", `
		CREATE TABLE IF NOT EXISTS lead_columns (
			id BIGSERIAL PRIMARY KEY,
			user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title VARCHAR(120) NOT NULL,
			color VARCHAR(20) NOT NULL DEFAULT '#3b82f6',
			position INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"leads table", `
		CREATE TABLE IF NOT EXISTS leads (
			id BIGSERIAL PRIMARY KEY,
			user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			column_id BIGINT NOT NULL REFERENCES lead_columns(id) ON DELETE CASCADE,
			conversation_id BIGINT REFERENCES conversations(id) ON DELETE SET NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			phone VARCHAR(40) NOT NULL DEFAULT '',
			email VARCHAR(255) NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS leads_conversation_idx ON leads (user_id, conversation_id) WHERE conversation_id IS NOT NULL;`},
	{"disponibility table", `
		CREATE TABLE IF NOT EXISTS disponibility (
			id BIGSERIAL PRIMARY KEY,
			user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			google_event_id VARCHAR(255) NOT NULL DEFAULT '',
			start_at TIMESTAMPTZ NOT NULL,
			end_at TIMESTAMPTZ NOT NULL,
			summary VARCHAR(255) NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			location VARCHAR(255) NOT NULL DEFAULT '',
			is_available BOOLEAN NOT NULL DEFAULT TRUE,
			status VARCHAR(20) NOT NULL DEFAULT 'open',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS disponibility_user_start_idx ON disponibility (user_id, start_at);`},
	{"appointments table", `
		CREATE TABLE IF NOT EXISTS appointments (
			id BIGSERIAL PRIMARY KEY,
			user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			slot_id BIGINT NOT NULL REFERENCES disponibility(id) ON DELETE CASCADE,
			conversation_id BIGINT REFERENCES conversations(id) ON DELETE SET NULL,
			client_name VARCHAR(255) NOT NULL DEFAULT '',
			client_phone VARCHAR(40) NOT NULL DEFAULT '',
			summary VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			location VARCHAR(255) NOT NULL DEFAULT '',
			start_at TIMESTAMPTZ NOT NULL,
			end_at TIMESTAMPTZ NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'confirmed',
			google_event_id VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"google_accounts table", `
		CREATE TABLE IF NOT EXISTS google_accounts (
			user_id INT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			email VARCHAR(255) NOT NULL DEFAULT '',
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL DEFAULT '',
			token_type VARCHAR(40) NOT NULL DEFAULT 'Bearer',
			expiry TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"telegram_bots table", `
		CREATE TABLE IF NOT EXISTS telegram_bots (
			user_id INT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			token TEXT NOT NULL,
			bot_username VARCHAR(255) NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"websites table", `
		CREATE TABLE IF NOT EXISTS websites (
			id BIGSERIAL PRIMARY KEY,
			user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			business_name VARCHAR(255) NOT NULL,
			business_description TEXT NOT NULL,
			slug VARCHAR(120) NOT NULL,
			sections JSONB NOT NULL DEFAULT '[]',
			social_media JSONB NOT NULL DEFAULT '{}',
			main_video JSONB,
			theme_colors JSONB NOT NULL DEFAULT '{}',
			custom_domain VARCHAR(255) UNIQUE,
			is_published BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, slug)
		);
		CREATE INDEX IF NOT EXISTS websites_published_slug_idx ON websites (slug) WHERE is_published;`},
	{"billing_plans table", `
		CREATE TABLE IF NOT EXISTS billing_plans (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(120) NOT NULL,
			stripe_price_id VARCHAR(255) UNIQUE NOT NULL,
			stripe_payment_link_id VARCHAR(255),
			price_monthly BIGINT NOT NULL DEFAULT 0,
			price_yearly BIGINT NOT NULL DEFAULT 0,
			daily_limit INT NOT NULL DEFAULT 0,
			monthly_limit INT NOT NULL DEFAULT 0,
			features JSONB NOT NULL DEFAULT '[]',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"billing_customers table", `
		CREATE TABLE IF NOT EXISTS billing_customers (
			user_id INT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			customer_id VARCHAR(255) UNIQUE NOT NULL,
			email VARCHAR(255) NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"billing_subscriptions table", `
		CREATE TABLE IF NOT EXISTS billing_subscriptions (
			customer_id VARCHAR(255) PRIMARY KEY,
			user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			subscription_id VARCHAR(255) NOT NULL,
			price_id VARCHAR(255) NOT NULL DEFAULT '',
			plan_id BIGINT REFERENCES billing_plans(id) ON DELETE SET NULL,
			status VARCHAR(40) NOT NULL,
			cancel_at_period_end BOOLEAN NOT NULL DEFAULT FALSE,
			current_period_start TIMESTAMPTZ,
			current_period_end TIMESTAMPTZ,
			canceled_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"billing_invoices table", `
		CREATE TABLE IF NOT EXISTS billing_invoices (
			stripe_invoice_id VARCHAR(255) PRIMARY KEY,
			user_id INT REFERENCES users(id) ON DELETE SET NULL,
			customer_id VARCHAR(255) NOT NULL,
			subscription_id VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(40) NOT NULL,
			amount_due BIGINT NOT NULL DEFAULT 0,
			amount_paid BIGINT NOT NULL DEFAULT 0,
			currency VARCHAR(10) NOT NULL DEFAULT '',
			hosted_invoice_url TEXT NOT NULL DEFAULT '',
			invoice_pdf TEXT NOT NULL DEFAULT '',
			period_start TIMESTAMPTZ,
			period_end TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
	{"billing_events table", `
		CREATE TABLE IF NOT EXISTS billing_events (
			stripe_event_id VARCHAR(255) PRIMARY KEY,
			type VARCHAR(100) NOT NULL,
			payload JSONB NOT NULL,
			error TEXT,
			processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`},
}

// Migrate creates the schema. Every statement is idempotent.
func (p *PostgresClient) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := p.Pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("create %s: %w", m.name, err)
		}
	}

	var count int
	if err := p.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		log.Info().Msg("database initialized, users table empty; admin will be ensured on startup")
	}
	return nil
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}
