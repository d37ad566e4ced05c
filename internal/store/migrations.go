package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// schema holds the idempotent DDL for the PostgreSQL backend. SQLite
// manages its own schema in initSchema.
const schema = `
CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS profiles (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	username TEXT NOT NULL,
	avatar_url TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS messages (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	sender_id UUID NOT NULL REFERENCES profiles(id),
	receiver_id UUID NOT NULL REFERENCES profiles(id),
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	read_at TIMESTAMPTZ,
	CHECK (sender_id <> receiver_id),
	CHECK (content <> '')
);

CREATE INDEX IF NOT EXISTS idx_messages_pair
	ON messages (sender_id, receiver_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_receiver_created
	ON messages (receiver_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_unread
	ON messages (receiver_id, sender_id) WHERE read_at IS NULL;
`

// RunMigrations applies the schema against the given database.
func RunMigrations(databaseURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, schema)
	return err
}
