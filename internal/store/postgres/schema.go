// Package postgres provides the PostgreSQL-backed store.Store.
//
// Sessions and their turns live in two tables; a session is saved whole
// inside one transaction, which gives the last-writer-wins semantics the
// pipeline expects. Practice submissions are append-only rows.
//
// Usage:
//
//	st, err := postgres.New(ctx, dsn)
//	if err != nil { … }
//	defer st.Close()
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id               TEXT         PRIMARY KEY,
    user_id          TEXT         NOT NULL,
    title            TEXT         NOT NULL DEFAULT '',
    correction_count INT          NOT NULL DEFAULT 0,
    final_report     TEXT         NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sessions_user_updated
    ON sessions (user_id, updated_at DESC);
`

const ddlTurns = `
CREATE TABLE IF NOT EXISTS turns (
    id         BIGSERIAL    PRIMARY KEY,
    session_id TEXT         NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
    seq        INT          NOT NULL,
    role       TEXT         NOT NULL,
    text       TEXT         NOT NULL,
    audio      BYTEA,
    created_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
    UNIQUE (session_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_turns_session_seq
    ON turns (session_id, seq);
`

const ddlPracticeSubmissions = `
CREATE TABLE IF NOT EXISTS practice_submissions (
    id         TEXT         PRIMARY KEY,
    user_id    TEXT         NOT NULL,
    session_id TEXT         NOT NULL DEFAULT '',
    topic      TEXT         NOT NULL DEFAULT '',
    transcript TEXT         NOT NULL,
    metrics    JSONB,
    audio_ref  TEXT         NOT NULL DEFAULT '',
    advice     TEXT         NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_practice_submissions_user_created
    ON practice_submissions (user_id, created_at DESC);
`

// Migrate creates all required tables and indexes. Idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range []string{ddlSessions, ddlTurns, ddlPracticeSubmissions} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("apply DDL: %w", err)
		}
	}
	return nil
}
