package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/amitbasuri/taskbus-go/internal/models"
)

// InsertEvent appends a single event via create_bus_events, returning the
// generated row id (the commit-order pos is assigned later by the deferred
// trigger, so it is not known at insert time).
func (s *Store) InsertEvent(ctx context.Context, in models.EventInsert) (int64, error) {
	payload, err := json.Marshal([]models.EventInsert{in})
	if err != nil {
		return 0, fmt.Errorf("marshal event insert payload: %w", err)
	}

	var id int64
	row := s.pool.QueryRow(ctx, `SELECT id FROM create_bus_events($1)`, payload)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("create_bus_events: %w", err)
	}
	return id, nil
}

// FetchEventsAfter returns up to limit events whose commit-order pos is
// strictly greater than after, ordered by pos, skipping rows the deferred
// assign_event_pos trigger has not yet stamped (pos = 0), per spec.md §4.5.
func (s *Store) FetchEventsAfter(ctx context.Context, after int64, limit int) ([]models.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_name, event_data, pos, created_at, expire_at
		FROM events
		WHERE pos > $1
		ORDER BY pos
		LIMIT $2
	`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch events after %d: %w", after, err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Data, &e.Pos, &e.CreatedAt, &e.ExpireAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// LastEventPos returns the highest assigned event position, used to seed a
// freshly bootstrapped cursor at the current tail instead of replaying the
// entire event log.
func (s *Store) LastEventPos(ctx context.Context) (int64, error) {
	var pos int64
	row := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(pos), 0) FROM events`)
	if err := row.Scan(&pos); err != nil {
		return 0, fmt.Errorf("last event pos: %w", err)
	}
	return pos, nil
}

// DeleteExpiredEvents removes events whose expire_at has passed, per the
// event retention window of spec.md §4.6.
func (s *Store) DeleteExpiredEvents(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE expire_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired events: %w", err)
	}
	return tag.RowsAffected(), nil
}
