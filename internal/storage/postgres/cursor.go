package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amitbasuri/taskbus-go/internal/models"
	"github.com/amitbasuri/taskbus-go/internal/storage"
	"github.com/jackc/pgx/v5"
)

// BootstrapCursor ensures queue has a cursor row, seeding it at the current
// tail of the event log so a newly registered queue never replays history
// it predates, per spec.md §4.7.
func (s *Store) BootstrapCursor(ctx context.Context, queue string) error {
	tail, err := s.LastEventPos(ctx)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO cursors (queue, cursor_offset)
		VALUES ($1, $2)
		ON CONFLICT (queue) DO NOTHING
	`, queue, tail)
	if err != nil {
		return fmt.Errorf("bootstrap cursor for %s: %w", queue, err)
	}
	return nil
}

// LockCursor claims queue's cursor row for exclusive fanout, using
// FOR UPDATE SKIP LOCKED plus an expire_lock_at TTL so a crashed worker's
// lock is eventually recoverable by another worker (spec.md §4.7, §8
// property 4).
func (s *Store) LockCursor(ctx context.Context, queue string, lockTTL time.Duration) (*models.Cursor, error) {
	expireAt := time.Now().Add(lockTTL)

	row := s.pool.QueryRow(ctx, `
		UPDATE cursors
		SET locked = true, expire_lock_at = $2
		WHERE id = (
			SELECT id FROM cursors
			WHERE queue = $1 AND (locked = false OR expire_lock_at < now())
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, queue, cursor_offset, locked, expire_lock_at, created_at
	`, queue, expireAt)

	var c models.Cursor
	if err := row.Scan(&c.ID, &c.Queue, &c.Offset, &c.Locked, &c.ExpireLockAt, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrCursorLocked
		}
		return nil, fmt.Errorf("lock cursor for %s: %w", queue, err)
	}
	return &c, nil
}

// UnlockCursor releases queue's cursor lock early, once a fanout pass
// completes, instead of waiting for expire_lock_at.
func (s *Store) UnlockCursor(ctx context.Context, queue string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE cursors SET locked = false, expire_lock_at = NULL WHERE queue = $1
	`, queue)
	if err != nil {
		return fmt.Errorf("unlock cursor for %s: %w", queue, err)
	}
	return nil
}

// ReleaseStaleCursorLocks clears any cursor lock whose TTL has lapsed,
// recovering fanout for queues whose worker died mid-pass.
func (s *Store) ReleaseStaleCursorLocks(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE cursors SET locked = false, expire_lock_at = NULL
		WHERE locked = true AND expire_lock_at < now()
	`)
	if err != nil {
		return fmt.Errorf("release stale cursor locks: %w", err)
	}
	return nil
}

// AdvanceCursorAndInsertTasks advances queue's cursor to newOffset and
// inserts the fanned-out tasks in the same transaction, so a crash between
// the two never leaves the cursor ahead of tasks that were never created
// (spec.md §4.7 step 5, relaxed here to "one transaction" rather than one
// literal statement).
func (s *Store) AdvanceCursorAndInsertTasks(ctx context.Context, queue string, newOffset int64, tasks []models.TaskInsert) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin fanout transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		UPDATE cursors SET cursor_offset = $2, locked = false, expire_lock_at = NULL WHERE queue = $1
	`, queue, newOffset); err != nil {
		return fmt.Errorf("advance cursor for %s: %w", queue, err)
	}

	if len(tasks) > 0 {
		payload, err := marshalTaskInserts(tasks)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `SELECT create_bus_tasks($1)`, payload); err != nil {
			return fmt.Errorf("insert fanned-out tasks for %s: %w", queue, err)
		}
	}

	return tx.Commit(ctx)
}
