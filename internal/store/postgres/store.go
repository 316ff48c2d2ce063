package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AugmentOS-Community/convoscope/internal/catalog"
	"github.com/AugmentOS-Community/convoscope/internal/transcript"
)

// Compile-time interface checks.
var (
	_ transcript.Store = (*TranscriptStore)(nil)
	_ catalog.Store    = (*CatalogStore)(nil)
)

// Store is the PostgreSQL-backed persistence layer. It holds a single
// [pgxpool.Pool] shared by the transcript and catalog stores.
//
// All operations are safe for concurrent use.
type Store struct {
	pool        *pgxpool.Pool
	transcripts *TranscriptStore
	catalogs    *CatalogStore
}

// NewStore connects to the database at dsn and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{
		pool:        pool,
		transcripts: &TranscriptStore{pool: pool},
		catalogs:    &CatalogStore{pool: pool},
	}, nil
}

// Transcripts returns the store implementing [transcript.Store].
func (s *Store) Transcripts() *TranscriptStore { return s.transcripts }

// Catalogs returns the store implementing [catalog.Store].
func (s *Store) Catalogs() *CatalogStore { return s.catalogs }

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
