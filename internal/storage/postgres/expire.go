package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/amitbasuri/taskbus-go/internal/models"
)

// ExpireStuckTasks finds active tasks whose expire_in deadline has elapsed
// since started_on and resolves each one through the same retry/terminal
// branching a failed handler would take: back to retry if retries remain,
// else to expired (spec.md §4.6). Returns the tasks it claimed, state field
// set to whichever state they were actually resolved to.
func (s *Store) ExpireStuckTasks(ctx context.Context, limit int) ([]models.Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin expire transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT * FROM tasks
		WHERE state = 2 AND started_on IS NOT NULL AND started_on + expire_in < now()
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("select stuck tasks: %w", err)
	}

	var stuck []models.Task
	for rows.Next() {
		row, err := scanTaskRow(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		t, err := row.toTask()
		if err != nil {
			rows.Close()
			return nil, err
		}
		stuck = append(stuck, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(stuck) == 0 {
		return nil, tx.Commit(ctx)
	}

	errOut := expireOutput()
	resolved := make([]models.ResolvedTask, 0, len(stuck))
	out := make([]models.Task, 0, len(stuck))
	for _, t := range stuck {
		r := models.ResolvedTask{ID: t.ID, Output: errOut}
		if int(t.RetryCount) < t.Config.RetryLimit {
			r.State = models.StateRetry
			saf := time.Now().Add(retryDelay(t))
			r.StartAfter = &saf
			t.State = models.StateRetry
		} else {
			r.State = models.StateExpired
			t.State = models.StateExpired
		}
		resolved = append(resolved, r)
		out = append(out, t)
	}

	if err := resolveTasksTx(ctx, tx, resolved); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// retryDelay mirrors the task worker's backoff formula
// (retry_delay * 2^retrycount when backoff is enabled) so an expiry-driven
// retry schedules identically to a handler-failure-driven one.
func retryDelay(t models.Task) time.Duration {
	if !t.Config.RetryBackoff {
		return t.Config.RetryDelay
	}
	d := t.Config.RetryDelay
	for i := int16(0); i < t.RetryCount; i++ {
		d *= 2
	}
	return d
}

func expireOutput() []byte {
	return []byte(`{"message":"handler deadline exceeded"}`)
}
