// Package transcript tracks, per user, which part of a continuously revised
// speech transcript has already been handed to downstream consumers.
//
// Upstream speech recognition produces two kinds of [Segment]:
//
//   - Final segments are committed and never revised. They are appended to a
//     user's history in arrival order.
//   - The intermediate segment is the single, still-being-spoken chunk. Each
//     new interim result replaces it wholesale.
//
// A [Cursor] walks this history and returns only the text that has not yet
// been consumed, snapped to word boundaries and prefixed with a few words of
// already-consumed context ("backslide") so that phrases split across segment
// boundaries are seen whole at least once.
//
// Cursor is a pure function of a [UserState]. Persisting the advanced state
// and serialising calls per user is the job of a [Store] and its caller.
package transcript

import (
	"slices"
	"time"
)

// SentinelNone is the cursor marker value meaning "nothing has been consumed
// from the final-segment list"; the offset is then measured against the
// intermediate segment's text.
const SentinelNone = ""

// Segment is a single transcript chunk. Segments are values: once a final
// segment is stored it is never modified.
type Segment struct {
	// ID is an opaque unique token (a UUID string).
	ID string `json:"id"`

	// Text is the transcribed speech.
	Text string `json:"text"`

	// Timestamp is when the upstream recogniser produced the segment.
	Timestamp time.Time `json:"timestamp"`

	// IsFinal reports whether the recogniser committed the segment.
	IsFinal bool `json:"is_final"`
}

// UserState is the complete transcript history and consumption cursor of a
// single user.
type UserState struct {
	// UserID identifies the owner of this state.
	UserID string

	// Finals holds committed segments, oldest first. Append-only apart from
	// time-based expiry.
	Finals []Segment

	// Intermediate is the current interim segment. Its Text is empty when no
	// interim speech is pending.
	Intermediate Segment

	// Marker is the ID of the first final segment that still holds
	// unconsumed text, or [SentinelNone].
	Marker string

	// Offset is the byte position up to which the segment referenced by
	// Marker (or the intermediate, when Marker is SentinelNone) has been
	// consumed.
	Offset int
}

// Clone returns a copy of s that shares no mutable memory with it.
func (s UserState) Clone() UserState {
	s.Finals = slices.Clone(s.Finals)
	return s
}

// finalIndex returns the index of the final segment with the given ID, or -1.
func (s UserState) finalIndex(id string) int {
	if id == SentinelNone {
		return -1
	}
	for i, seg := range s.Finals {
		if seg.ID == id {
			return i
		}
	}
	return -1
}
