package transcript

import (
	"context"
	"time"
)

// Store persists transcript history and consumption cursors for all users.
//
// Store operations are individually atomic, but a consume cycle
// (State → Cursor.Consume → SaveCursor) spans several calls. Callers must
// serialise those cycles and ingestion per user.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// AppendFinal records a committed segment for userID. Empty text is
	// ignored. The pending intermediate is cleared. When the user's marker is
	// [SentinelNone] it is set to the new segment's ID and the offset is left
	// unchanged, so that text already consumed from the interim version of
	// this segment is not handed out again.
	AppendFinal(ctx context.Context, userID, text string, ts time.Time) (Segment, error)

	// ReplaceIntermediate replaces the user's pending intermediate segment.
	// Empty text is ignored.
	ReplaceIntermediate(ctx context.Context, userID, text string, ts time.Time) (Segment, error)

	// State returns a snapshot of the user's history and cursor. A user that
	// has never been seen gets an empty state.
	State(ctx context.Context, userID string) (UserState, error)

	// SaveCursor persists the advanced consumption cursor.
	SaveCursor(ctx context.Context, userID, marker string, offset int) error

	// Recent returns the final segments of userID with a timestamp no earlier
	// than since, oldest first.
	Recent(ctx context.Context, userID string, since time.Time) ([]Segment, error)

	// Purge removes final segments of userID older than before and returns
	// how many were removed.
	Purge(ctx context.Context, userID string, before time.Time) (int, error)

	// Delete forgets everything about userID.
	Delete(ctx context.Context, userID string) error

	// Users returns the IDs of all users with stored state, sorted.
	Users(ctx context.Context) ([]string, error)
}
