package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables on first start. defaultMessageLimit
// becomes the column default for new bot rows.
func EnsureSchema(ctx context.Context, db *sql.DB, defaultMessageLimit int) error {
	if defaultMessageLimit <= 0 {
		defaultMessageLimit = 1000
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS bots (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	api_key TEXT NOT NULL,
	message_count INTEGER NOT NULL DEFAULT 0,
	message_limit INTEGER NOT NULL DEFAULT 1000,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	bot_id TEXT NOT NULL REFERENCES bots(id) ON DELETE CASCADE,
	session_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (bot_id, session_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS knowledge_sources (
	id TEXT PRIMARY KEY,
	bot_id TEXT NOT NULL REFERENCES bots(id) ON DELETE CASCADE,
	source_type TEXT NOT NULL,
	source TEXT NOT NULL,
	storage_key TEXT NOT NULL,
	status TEXT NOT NULL,
	chunks_created INTEGER NOT NULL DEFAULT 0,
	vectors_stored INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation_created ON messages(conversation_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_knowledge_sources_bot ON knowledge_sources(bot_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	alter := fmt.Sprintf(`ALTER TABLE bots ALTER COLUMN message_limit SET DEFAULT %d`, defaultMessageLimit)
	if _, err := tx.ExecContext(ctx, alter); err != nil {
		return fmt.Errorf("set message limit default: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
