package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AugmentOS-Community/convoscope/internal/catalog"
)

// CatalogStore implements [catalog.Store] on the catalog_entries table.
// Entry order is kept in the position column.
//
// Obtain one via [Store.Catalogs].
type CatalogStore struct {
	pool *pgxpool.Pool
}

const catalogColumns = "id, title, description, url, image_url"

// Catalog implements [catalog.Provider].
func (s *CatalogStore) Catalog(ctx context.Context, userID string) ([]catalog.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+catalogColumns+` FROM catalog_entries WHERE user_id = $1 ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("catalog store: catalog: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("catalog store: catalog: %w", err)
	}
	if entries == nil {
		entries = []catalog.Entry{}
	}
	return entries, nil
}

// Replace implements [catalog.Store]. The swap happens in one transaction.
func (s *CatalogStore) Replace(ctx context.Context, userID string, entries []catalog.Entry) error {
	rows := make([][]any, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("catalog store: replace %q: entry %d (title %q): %w", userID, i, e.Title, catalog.ErrDuplicateID)
		}
		seen[e.ID] = struct{}{}
		rows = append(rows, []any{userID, e.ID, i, e.Title, e.Description, e.URL, e.ImageURL})
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM catalog_entries WHERE user_id = $1`, userID); err != nil {
			return err
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"catalog_entries"},
			[]string{"user_id", "id", "position", "title", "description", "url", "image_url"},
			pgx.CopyFromRows(rows),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("catalog store: replace %q: %w", userID, err)
	}
	return nil
}

// Append implements [catalog.Store]. Entries before the first duplicate are
// kept.
func (s *CatalogStore) Append(ctx context.Context, userID string, entries []catalog.Entry) (int, error) {
	const q = `
		INSERT INTO catalog_entries (user_id, id, position, title, description, url, image_url)
		SELECT $1, $2,
		       COALESCE((SELECT MAX(position) + 1 FROM catalog_entries WHERE user_id = $1), 0),
		       $3, $4, $5, $6
		ON CONFLICT (user_id, id) DO NOTHING`

	added := 0
	var dupErr error
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, e := range entries {
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			tag, err := tx.Exec(ctx, q, userID, e.ID, e.Title, e.Description, e.URL, e.ImageURL)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				dupErr = fmt.Errorf("catalog store: append %q at index %d (title %q): %w", userID, added, e.Title, catalog.ErrDuplicateID)
				return nil
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("catalog store: append %q: %w", userID, err)
	}
	return added, dupErr
}

// Get implements [catalog.Store].
func (s *CatalogStore) Get(ctx context.Context, userID, id string) (catalog.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+catalogColumns+` FROM catalog_entries WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return catalog.Entry{}, fmt.Errorf("catalog store: get: %w", err)
	}
	e, err := pgx.CollectExactlyOneRow(rows, scanEntry)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Entry{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Entry{}, fmt.Errorf("catalog store: get: %w", err)
	}
	return e, nil
}

// Remove implements [catalog.Store].
func (s *CatalogStore) Remove(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM catalog_entries WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("catalog store: remove: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// Delete implements [catalog.Store].
func (s *CatalogStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM catalog_entries WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("catalog store: delete: %w", err)
	}
	return nil
}

func scanEntry(row pgx.CollectableRow) (catalog.Entry, error) {
	var e catalog.Entry
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.URL, &e.ImageURL)
	return e, err
}
