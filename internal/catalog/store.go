package catalog

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get and Remove when the requested entry does not exist.
var ErrNotFound = errors.New("catalog entry not found")

// ErrDuplicateID is returned when an entry with the same ID already exists
// in the user's catalog.
var ErrDuplicateID = errors.New("catalog entry with that ID already exists")

// ErrInvalidUpload is returned when an uploaded catalog lacks required columns.
var ErrInvalidUpload = errors.New("invalid catalog upload")

// Provider supplies the catalog a user's transcripts are matched against.
type Provider interface {
	// Catalog returns the user's entries in insertion order. A user without
	// a catalog gets an empty slice and no error.
	Catalog(ctx context.Context, userID string) ([]Entry, error)
}

// Store manages per-user catalogs.
//
// All implementations must be safe for concurrent use.
type Store interface {
	Provider

	// Replace swaps the user's whole catalog for entries. Entries without an
	// ID get one generated. Returns [ErrDuplicateID] if two entries share an
	// ID; the previous catalog is then left untouched.
	Replace(ctx context.Context, userID string, entries []Entry) error

	// Append adds entries to the user's catalog and returns how many were
	// added. It stops at the first entry whose ID is already taken and
	// returns [ErrDuplicateID].
	Append(ctx context.Context, userID string, entries []Entry) (int, error)

	// Get retrieves one entry by ID.
	// Returns [ErrNotFound] when no entry with that ID exists.
	Get(ctx context.Context, userID, id string) (Entry, error)

	// Remove deletes one entry by ID.
	// Returns [ErrNotFound] when no entry with that ID exists.
	Remove(ctx context.Context, userID, id string) error

	// Delete drops the user's whole catalog. Deleting a missing catalog is
	// not an error.
	Delete(ctx context.Context, userID string) error
}
