package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates the tables on startup if they do not exist yet.
// The points column carries no CHECK constraint: the floor is enforced by
// guarded updates so that manager adjustments can override it.
func InitSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			utorid VARCHAR(8) NOT NULL UNIQUE,
			name VARCHAR(50) NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash TEXT,
			points INTEGER NOT NULL DEFAULT 0,
			verified BOOLEAN NOT NULL DEFAULT FALSE,
			suspicious BOOLEAN NOT NULL DEFAULT FALSE,
			role VARCHAR(16) NOT NULL DEFAULT 'regular',
			last_login TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS reset_tokens (
			id SERIAL PRIMARY KEY,
			token VARCHAR(36) NOT NULL UNIQUE,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			expires_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS promotions (
			id SERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			type VARCHAR(16) NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			min_spending DOUBLE PRECISION,
			rate DOUBLE PRECISION,
			points INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS user_promotions (
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			promotion_id INTEGER NOT NULL REFERENCES promotions(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, promotion_id)
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id SERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			location VARCHAR(255) NOT NULL DEFAULT '',
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			capacity INTEGER,
			points INTEGER NOT NULL,
			points_remain INTEGER NOT NULL,
			points_awarded INTEGER NOT NULL DEFAULT 0,
			published BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS event_guests (
			event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			PRIMARY KEY (event_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS event_organizers (
			event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			PRIMARY KEY (event_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id SERIAL PRIMARY KEY,
			type VARCHAR(16) NOT NULL,
			user_id INTEGER NOT NULL REFERENCES users(id),
			created_by INTEGER NOT NULL REFERENCES users(id),
			amount INTEGER NOT NULL,
			spent DOUBLE PRECISION,
			related_id INTEGER,
			event_id INTEGER REFERENCES events(id),
			suspicious BOOLEAN NOT NULL DEFAULT FALSE,
			processed BOOLEAN NOT NULL DEFAULT FALSE,
			processed_by INTEGER REFERENCES users(id),
			remark TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS transaction_promotions (
			transaction_id INTEGER NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
			promotion_id INTEGER NOT NULL REFERENCES promotions(id) ON DELETE CASCADE,
			PRIMARY KEY (transaction_id, promotion_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_type ON transactions(type)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
