package postgres

import (
	"context"
	"fmt"
)

// PurgeArchivedTasks deletes archived tasks whose retention window
// (keep_until) has elapsed, per spec.md §4.6.
func (s *Store) PurgeArchivedTasks(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM archived_tasks WHERE keep_until < now()`)
	if err != nil {
		return 0, fmt.Errorf("purge archived tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}
