package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		user_id       UUID PRIMARY KEY,
		email         TEXT NOT NULL DEFAULT '',
		refresh_token TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS emails (
		id          BIGSERIAL PRIMARY KEY,
		provider_id TEXT NOT NULL,
		user_id     UUID NOT NULL,
		subject     TEXT NOT NULL DEFAULT '',
		sender      TEXT NOT NULL DEFAULT '',
		body        TEXT NOT NULL DEFAULT '',
		received_at TIMESTAMPTZ NOT NULL,
		processed   BOOLEAN NOT NULL DEFAULT FALSE,
		summary     TEXT,
		priority    TEXT,
		action      TEXT,
		due_date    TEXT,
		due_time    TEXT,
		source      TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, provider_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_emails_unprocessed ON emails (received_at) WHERE processed = FALSE`,
	`CREATE INDEX IF NOT EXISTS idx_emails_user_created ON emails (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_emails_user_received ON emails (user_id, received_at DESC)`,
}

// EnsureSchema creates the tables and indexes if missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
