package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// NewPostgresConnection opens and verifies a Postgres connection pool
func NewPostgresConnection(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

// InitSchema creates all tables if they don't exist yet.
// group_members and banned_users cascade with their group; join_requests and
// left_group_cooldowns survive group deletion as historical records.
func InitSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		username      TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS groups (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL,
		type        TEXT NOT NULL CHECK (type IN ('public', 'private')),
		owner_id    BIGINT NOT NULL REFERENCES users(id),
		max_members INT CHECK (max_members >= 2),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS group_members (
		id        BIGSERIAL PRIMARY KEY,
		group_id  BIGINT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
		user_id   BIGINT NOT NULL REFERENCES users(id),
		joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (group_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS banned_users (
		id        BIGSERIAL PRIMARY KEY,
		group_id  BIGINT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
		user_id   BIGINT NOT NULL REFERENCES users(id),
		banned_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (group_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS join_requests (
		id         BIGSERIAL PRIMARY KEY,
		group_id   BIGINT NOT NULL,
		user_id    BIGINT NOT NULL REFERENCES users(id),
		status     TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'declined')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS left_group_cooldowns (
		id         BIGSERIAL PRIMARY KEY,
		group_id   BIGINT NOT NULL,
		user_id    BIGINT NOT NULL REFERENCES users(id),
		leave_time TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id        BIGINT PRIMARY KEY,
		group_id  BIGINT NOT NULL,
		sender_id BIGINT NOT NULL REFERENCES users(id),
		content   TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL REFERENCES users(id),
		type       TEXT NOT NULL,
		group_id   BIGINT NOT NULL,
		message    TEXT NOT NULL,
		read       BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_messages_group ON messages(group_id, id);
	CREATE INDEX IF NOT EXISTS idx_join_requests_group ON join_requests(group_id, status);
	CREATE INDEX IF NOT EXISTS idx_cooldowns_user_group ON left_group_cooldowns(user_id, group_id, leave_time DESC);
	CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at DESC);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
