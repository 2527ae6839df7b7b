package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/amitbasuri/taskbus-go/internal/models"
	"github.com/jackc/pgx/v5"
)

// ResolveTasks applies a batch of completion/failure/retry outcomes through
// the resolve_tasks SQL function in a single round trip, the server side of
// the resolve batching described in spec.md §4.4.
func (s *Store) ResolveTasks(ctx context.Context, resolved []models.ResolvedTask) error {
	if len(resolved) == 0 {
		return nil
	}
	payload, err := json.Marshal(resolved)
	if err != nil {
		return fmt.Errorf("marshal resolve payload: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `SELECT resolve_tasks($1)`, payload); err != nil {
		return fmt.Errorf("resolve_tasks: %w", err)
	}
	return nil
}

// resolveTasksTx is the same call issued against an already-open
// transaction, used where expiry needs to claim rows and resolve them
// atomically (see ExpireStuckTasks).
func resolveTasksTx(ctx context.Context, tx pgx.Tx, resolved []models.ResolvedTask) error {
	if len(resolved) == 0 {
		return nil
	}
	payload, err := json.Marshal(resolved)
	if err != nil {
		return fmt.Errorf("marshal resolve payload: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT resolve_tasks($1)`, payload); err != nil {
		return fmt.Errorf("resolve_tasks: %w", err)
	}
	return nil
}
