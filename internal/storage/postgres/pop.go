package postgres

import (
	"context"
	"fmt"

	"github.com/amitbasuri/taskbus-go/internal/models"
)

// PopTasks claims up to n pickable tasks from queue via the get_tasks SQL
// function, which moves them to active/retry->active under
// FOR UPDATE SKIP LOCKED so concurrent workers never double-claim the same
// row (spec.md §4.3, §8 property 1).
func (s *Store) PopTasks(ctx context.Context, queue string, n int) ([]models.Task, error) {
	rows, err := s.pool.Query(ctx, `SELECT * FROM get_tasks($1, $2)`, queue, n)
	if err != nil {
		return nil, fmt.Errorf("get_tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		row, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		t, err := row.toTask()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
