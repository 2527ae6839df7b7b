package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/amitbasuri/taskbus-go/internal/models"
	"github.com/amitbasuri/taskbus-go/internal/storage"
)

// InsertTask inserts a single task via create_bus_tasks, relying on the
// partial unique index + ON CONFLICT DO NOTHING for singleton dedup
// (spec.md §3, §5).
func (s *Store) InsertTask(ctx context.Context, in models.TaskInsert) (int64, error) {
	ids, err := s.insertTasksBatch(ctx, []models.TaskInsert{in})
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, storage.ErrSingletonSkip
	}
	return ids[0], nil
}

func marshalTaskInserts(ins []models.TaskInsert) ([]byte, error) {
	payload, err := json.Marshal(ins)
	if err != nil {
		return nil, fmt.Errorf("marshal task insert payload: %w", err)
	}
	return payload, nil
}

func (s *Store) insertTasksBatch(ctx context.Context, ins []models.TaskInsert) ([]int64, error) {
	if len(ins) == 0 {
		return nil, nil
	}
	payload, err := marshalTaskInserts(ins)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT id FROM create_bus_tasks($1)`, payload)
	if err != nil {
		return nil, fmt.Errorf("create_bus_tasks: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
