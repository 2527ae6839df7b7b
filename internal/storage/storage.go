// Package storage defines the Store contract the rest of the bus is built
// against, the way the teacher's internal/storage package decouples
// internal/worker and internal/api from any one backend.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/amitbasuri/taskbus-go/internal/models"
)

// Common errors.
var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrCursorLocked  = errors.New("cursor is already locked by another worker")
	ErrSingletonSkip = errors.New("singleton task already exists for this queue/key")
)

// Store is the SQL-plan surface of spec.md §3/§4/§6. A conforming
// implementation (PostgreSQL is the reference backend) must provide the
// exact concurrency contracts spec.md §5 and §8 describe.
type Store interface {
	// Migrate applies every pending migration under a per-schema advisory
	// lock, then validates the hash of every applied migration.
	Migrate(ctx context.Context) error

	// BootstrapCursor ensures a cursor row exists for queue, initializing
	// its offset to the event log's current max pos if newly created
	// (spec.md §4.8, "join-later cursor").
	BootstrapCursor(ctx context.Context, queue string) error

	// InsertTask inserts a single task, honoring singleton uniqueness.
	// Returns (0, ErrSingletonSkip) when a singleton conflict silently
	// dropped the insert.
	InsertTask(ctx context.Context, in models.TaskInsert) (int64, error)

	// InsertEvent appends a single event and returns its id (pos is
	// assigned asynchronously by the commit-order trigger).
	InsertEvent(ctx context.Context, in models.EventInsert) (int64, error)

	// PopTasks atomically claims up to n pickable tasks for queue and
	// transitions them to active (spec.md §4.4's "fetch-and-start").
	PopTasks(ctx context.Context, queue string, n int) ([]models.Task, error)

	// ResolveTasks atomically archives/updates a batch of resolved tasks
	// (spec.md §4.4 "resolve batching").
	ResolveTasks(ctx context.Context, resolved []models.ResolvedTask) error

	// LockCursor claims and locks queue's cursor row for fanout. Returns
	// ErrCursorLocked if another worker already holds it.
	LockCursor(ctx context.Context, queue string, lockTTL time.Duration) (*models.Cursor, error)

	// UnlockCursor releases queue's cursor lock without advancing it
	// (used when a locked fanout pass finds no new events).
	UnlockCursor(ctx context.Context, queue string) error

	// FetchEventsAfter returns up to limit events with pos > after,
	// ascending pos order.
	FetchEventsAfter(ctx context.Context, after int64, limit int) ([]models.Event, error)

	// AdvanceCursorAndInsertTasks advances queue's cursor to newOffset,
	// unlocks it, and inserts the synthesized tasks — within one
	// transaction, per spec.md §4.5 step 5.
	AdvanceCursorAndInsertTasks(ctx context.Context, queue string, newOffset int64, tasks []models.TaskInsert) error

	// ExpireStuckTasks claims up to limit active tasks whose wall-clock
	// deadline has passed (spec.md §4.6).
	ExpireStuckTasks(ctx context.Context, limit int) ([]models.Task, error)

	// ReleaseStaleCursorLocks clears locked=true on any cursor whose
	// expire_lock_at has passed.
	ReleaseStaleCursorLocks(ctx context.Context) error

	// DeleteExpiredEvents removes events past retention.
	DeleteExpiredEvents(ctx context.Context) (int64, error)

	// PurgeArchivedTasks removes archived tasks past keep_until.
	PurgeArchivedTasks(ctx context.Context) (int64, error)

	// LastEventPos returns the highest committed pos in the event log, or
	// 0 if the log is empty.
	LastEventPos(ctx context.Context) (int64, error)

	// Close releases the underlying connection pool, if owned.
	Close()
}
