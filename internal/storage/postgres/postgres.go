// Package postgres implements storage.Store against PostgreSQL using
// pgx/v5, following the teacher's one-file-per-operation layout
// (internal/storage/postgres/claim.go, create_task.go, ...).
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements storage.Store using a pgxpool.Pool.
type Store struct {
	pool         *pgxpool.Pool
	schema       string
	migrationURI string
	owned        bool
}

// NewStore wraps an existing pool the caller owns (Close is a no-op).
// migrationURI is the same postgres:// connection string used to build
// pool, passed separately because golang-migrate drives its own
// connection rather than reusing the pool.
func NewStore(pool *pgxpool.Pool, migrationURI, schema string) *Store {
	if schema == "" {
		schema = "public"
	}
	return &Store{pool: pool, migrationURI: migrationURI, schema: schema}
}

// Open creates and owns a new connection pool from connURI (Close tears it
// down), mirroring the teacher's cmd-level pgxpool.New wiring but moved
// behind the Store so callers don't have to construct it by hand.
func Open(ctx context.Context, connURI, schema string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connURI)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	s := NewStore(pool, connURI, schema)
	s.owned = true
	return s, nil
}

// Close releases the pool if this Store created it.
func (s *Store) Close() {
	if s.owned {
		s.pool.Close()
	}
}

// Pool returns the underlying connection pool (for tests).
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}
