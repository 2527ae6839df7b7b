package postgres

import (
	"context"
	"crypto/md5"  //nolint:gosec // lock-key derivation, not a security boundary
	"crypto/sha1" //nolint:gosec // content-addressing, not a security boundary
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/amitbasuri/taskbus-go/db"
	"github.com/amitbasuri/taskbus-go/internal/models"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
)

// advisoryLockKey derives the per-schema migration lock key of spec.md §5:
// md5(database || '.tb.' || schema) cast to bigint. The first 8 bytes of the
// digest are read as a big-endian int64, the same value Postgres yields for
// ('x' || md5(...))::bit(64)::bigint.
func advisoryLockKey(database, schema string) int64 {
	sum := md5.Sum([]byte(database + ".tb." + schema)) //nolint:gosec
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// migrationSchemeURI rewrites a postgres://.../postgresql:// connection URI
// to the pgx5:// scheme golang-migrate's pgx/v5 database driver expects,
// the same translation the teacher's config.Database.ToMigrationUri does.
func migrationSchemeURI(connURI string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(connURI, prefix) {
			return "pgx5://" + strings.TrimPrefix(connURI, prefix)
		}
	}
	return connURI
}

// Migrate applies every pending migration under a Postgres advisory lock,
// then validates the sha1 hash of every already-applied migration against
// its source text, per spec.md §3 ("a changed hash is a fatal startup
// error") and §8 property 6.
func (s *Store) Migrate(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection for migration lock: %w", err)
	}
	dbName := conn.Conn().Config().Database
	lockKey := advisoryLockKey(dbName, s.schema)

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", lockKey); err != nil {
		conn.Release()
		return fmt.Errorf("acquire migration advisory lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", lockKey)
		conn.Release()
	}()

	if err := s.runMigrate(ctx); err != nil {
		return err
	}
	return s.verifyMigrationHashes(ctx)
}

func (s *Store) runMigrate(ctx context.Context) error {
	src, err := iofs.New(db.Migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrationSchemeURI(s.migrationURI))
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return s.recordMigrationHashes(ctx)
}

// recordMigrationHashes stamps every embedded migration file's sha1 hash
// into the migrations table the first time it is applied, and leaves
// already-recorded rows untouched.
func (s *Store) recordMigrationHashes(ctx context.Context) error {
	entries, err := fs.ReadDir(db.Migrations, "migrations")
	if err != nil {
		return fmt.Errorf("list embedded migrations: %w", err)
	}

	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS migrations (
			id         BIGSERIAL PRIMARY KEY,
			name       TEXT NOT NULL UNIQUE,
			hash       TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("create migrations bookkeeping table: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		content, err := fs.ReadFile(db.Migrations, "migrations/"+e.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		sum := sha1.Sum(content) //nolint:gosec
		hash := hex.EncodeToString(sum[:])

		if _, err := s.pool.Exec(ctx, `
			INSERT INTO migrations (name, hash) VALUES ($1, $2)
			ON CONFLICT (name) DO NOTHING
		`, e.Name(), hash); err != nil {
			return fmt.Errorf("record migration %s: %w", e.Name(), err)
		}
	}
	return nil
}

// verifyMigrationHashes compares every recorded migration's stored hash
// against the embedded source text, failing startup on any mismatch.
func (s *Store) verifyMigrationHashes(ctx context.Context) error {
	entries, err := fs.ReadDir(db.Migrations, "migrations")
	if err != nil {
		return fmt.Errorf("list embedded migrations: %w", err)
	}
	onDisk := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		content, err := fs.ReadFile(db.Migrations, "migrations/"+e.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		sum := sha1.Sum(content) //nolint:gosec
		onDisk[e.Name()] = hex.EncodeToString(sum[:])
	}

	rows, err := s.pool.Query(ctx, `SELECT name, hash FROM migrations`)
	if err != nil {
		return fmt.Errorf("load recorded migration hashes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, hash string
		if err := rows.Scan(&name, &hash); err != nil {
			return err
		}
		want, ok := onDisk[name]
		if !ok {
			continue // migration was recorded by a newer binary we don't ship; not our concern
		}
		if want != hash {
			slog.Error("migration hash mismatch", "migration", name, "recorded", hash, "source", want)
			return fmt.Errorf("%w: %s", models.ErrMigrationTampered, name)
		}
	}
	return rows.Err()
}
