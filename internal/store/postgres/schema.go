// Package postgres provides PostgreSQL-backed implementations of the
// transcript and catalog stores.
//
// Both stores share a single [pgxpool.Pool]. Because [transcript.Store] and
// [catalog.Store] each define a Delete method with different meaning, they
// are exposed as sub-types via [Store.Transcripts] and [Store.Catalogs].
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	seg, _ := store.Transcripts().AppendFinal(ctx, userID, text, time.Now())
//	entries, _ := store.Catalogs().Catalog(ctx, userID)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// Transcript DDL: per-user cursor and final segments
// ─────────────────────────────────────────────────────────────────────────────

const ddlTranscripts = `
CREATE TABLE IF NOT EXISTS transcript_users (
    user_id            TEXT         PRIMARY KEY,
    marker             TEXT         NOT NULL DEFAULT '',
    cursor_offset      INTEGER      NOT NULL DEFAULT 0,
    intermediate_id    TEXT         NOT NULL DEFAULT '',
    intermediate_text  TEXT         NOT NULL DEFAULT '',
    intermediate_at    TIMESTAMPTZ,
    updated_at         TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS final_segments (
    seq        BIGSERIAL    PRIMARY KEY,
    id         TEXT         NOT NULL UNIQUE,
    user_id    TEXT         NOT NULL REFERENCES transcript_users (user_id) ON DELETE CASCADE,
    text       TEXT         NOT NULL,
    timestamp  TIMESTAMPTZ  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_final_segments_user_seq
    ON final_segments (user_id, seq);

CREATE INDEX IF NOT EXISTS idx_final_segments_user_timestamp
    ON final_segments (user_id, timestamp);
`

// ─────────────────────────────────────────────────────────────────────────────
// Catalog DDL
// ─────────────────────────────────────────────────────────────────────────────

const ddlCatalog = `
CREATE TABLE IF NOT EXISTS catalog_entries (
    user_id      TEXT         NOT NULL,
    id           TEXT         NOT NULL,
    position     INTEGER      NOT NULL,
    title        TEXT         NOT NULL,
    description  TEXT         NOT NULL DEFAULT '',
    url          TEXT         NOT NULL DEFAULT '',
    image_url    TEXT         NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, id)
);

CREATE INDEX IF NOT EXISTS idx_catalog_entries_user_position
    ON catalog_entries (user_id, position);
`

// Migrate creates or ensures all required tables exist. It is idempotent and
// safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlTranscripts, ddlCatalog} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
