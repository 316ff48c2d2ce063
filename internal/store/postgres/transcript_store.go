package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AugmentOS-Community/convoscope/internal/transcript"
)

// TranscriptStore implements [transcript.Store] on the transcript_users and
// final_segments tables.
//
// Obtain one via [Store.Transcripts].
type TranscriptStore struct {
	pool *pgxpool.Pool
}

// ensureUser inserts the user row if missing.
const qEnsureUser = `
	INSERT INTO transcript_users (user_id) VALUES ($1)
	ON CONFLICT (user_id) DO NOTHING`

// AppendFinal implements [transcript.Store].
func (s *TranscriptStore) AppendFinal(ctx context.Context, userID, text string, ts time.Time) (transcript.Segment, error) {
	if strings.TrimSpace(text) == "" {
		return transcript.Segment{}, nil
	}
	seg := transcript.Segment{ID: uuid.NewString(), Text: text, Timestamp: ts, IsFinal: true}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, qEnsureUser, userID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO final_segments (id, user_id, text, timestamp) VALUES ($1, $2, $3, $4)`,
			seg.ID, userID, seg.Text, seg.Timestamp,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE transcript_users
			SET    intermediate_id = '', intermediate_text = '', intermediate_at = NULL,
			       marker = CASE WHEN marker = '' THEN $2 ELSE marker END,
			       updated_at = now()
			WHERE  user_id = $1`,
			userID, seg.ID,
		)
		return err
	})
	if err != nil {
		return transcript.Segment{}, fmt.Errorf("transcript store: append final: %w", err)
	}
	return seg, nil
}

// ReplaceIntermediate implements [transcript.Store].
func (s *TranscriptStore) ReplaceIntermediate(ctx context.Context, userID, text string, ts time.Time) (transcript.Segment, error) {
	if strings.TrimSpace(text) == "" {
		return transcript.Segment{}, nil
	}
	seg := transcript.Segment{ID: uuid.NewString(), Text: text, Timestamp: ts}

	const q = `
		INSERT INTO transcript_users (user_id, intermediate_id, intermediate_text, intermediate_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET intermediate_id   = EXCLUDED.intermediate_id,
		    intermediate_text = EXCLUDED.intermediate_text,
		    intermediate_at   = EXCLUDED.intermediate_at,
		    updated_at        = now()`
	if _, err := s.pool.Exec(ctx, q, userID, seg.ID, seg.Text, seg.Timestamp); err != nil {
		return transcript.Segment{}, fmt.Errorf("transcript store: replace intermediate: %w", err)
	}
	return seg, nil
}

// State implements [transcript.Store].
func (s *TranscriptStore) State(ctx context.Context, userID string) (transcript.UserState, error) {
	state := transcript.UserState{UserID: userID, Finals: []transcript.Segment{}}

	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead}, func(tx pgx.Tx) error {
		var interAt *time.Time
		err := tx.QueryRow(ctx, `
			SELECT marker, cursor_offset, intermediate_id, intermediate_text, intermediate_at
			FROM   transcript_users
			WHERE  user_id = $1`, userID,
		).Scan(&state.Marker, &state.Offset, &state.Intermediate.ID, &state.Intermediate.Text, &interAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if interAt != nil {
			state.Intermediate.Timestamp = *interAt
		}

		rows, err := tx.Query(ctx, `
			SELECT id, text, timestamp
			FROM   final_segments
			WHERE  user_id = $1
			ORDER  BY seq`, userID)
		if err != nil {
			return err
		}
		state.Finals, err = collectSegments(rows)
		return err
	})
	if err != nil {
		return transcript.UserState{}, fmt.Errorf("transcript store: state: %w", err)
	}
	return state, nil
}

// SaveCursor implements [transcript.Store].
func (s *TranscriptStore) SaveCursor(ctx context.Context, userID, marker string, offset int) error {
	const q = `
		INSERT INTO transcript_users (user_id, marker, cursor_offset)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET marker        = EXCLUDED.marker,
		    cursor_offset = EXCLUDED.cursor_offset,
		    updated_at    = now()`
	if _, err := s.pool.Exec(ctx, q, userID, marker, max(offset, 0)); err != nil {
		return fmt.Errorf("transcript store: save cursor: %w", err)
	}
	return nil
}

// Recent implements [transcript.Store].
func (s *TranscriptStore) Recent(ctx context.Context, userID string, since time.Time) ([]transcript.Segment, error) {
	const q = `
		SELECT id, text, timestamp
		FROM   final_segments
		WHERE  user_id = $1
		  AND  timestamp >= $2
		ORDER  BY seq`

	rows, err := s.pool.Query(ctx, q, userID, since)
	if err != nil {
		return nil, fmt.Errorf("transcript store: recent: %w", err)
	}
	segs, err := collectSegments(rows)
	if err != nil {
		return nil, fmt.Errorf("transcript store: recent: %w", err)
	}
	return segs, nil
}

// Purge implements [transcript.Store].
func (s *TranscriptStore) Purge(ctx context.Context, userID string, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM final_segments WHERE user_id = $1 AND timestamp < $2`, userID, before)
	if err != nil {
		return 0, fmt.Errorf("transcript store: purge: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Delete implements [transcript.Store]. Segments go with the user row.
func (s *TranscriptStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM transcript_users WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("transcript store: delete: %w", err)
	}
	return nil
}

// Users implements [transcript.Store].
func (s *TranscriptStore) Users(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id FROM transcript_users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("transcript store: users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("transcript store: users: %w", err)
	}
	return ids, nil
}

// collectSegments scans pgx rows into final segments.
func collectSegments(rows pgx.Rows) ([]transcript.Segment, error) {
	segs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (transcript.Segment, error) {
		seg := transcript.Segment{IsFinal: true}
		err := row.Scan(&seg.ID, &seg.Text, &seg.Timestamp)
		return seg, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan segments: %w", err)
	}
	if segs == nil {
		segs = []transcript.Segment{}
	}
	return segs, nil
}
