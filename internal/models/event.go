package models

import (
	"encoding/json"
	"time"
)

// Event is an append-only, typed fact published to the bus. Pos is the
// commit-order position assigned by the database trigger described in
// spec.md §4.7; it is zero until the row becomes visible to fanout.
type Event struct {
	ID        int64
	Name      string
	Data      json.RawMessage
	Pos       int64
	CreatedAt time.Time
	ExpireAt  time.Time
}

// EventInsert is the wire shape accepted by create_bus_events.
type EventInsert struct {
	Name          string          `json:"e_n"`
	Data          json.RawMessage `json:"d"`
	RetentionDays *int            `json:"rid,omitempty"`
}

// Cursor is a queue's high-water mark over the event log.
type Cursor struct {
	ID           int64
	Queue        string
	Offset       int64
	Locked       bool
	ExpireLockAt *time.Time
	CreatedAt    time.Time
}
