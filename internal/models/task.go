package models

import (
	"encoding/json"
	"time"
)

// MetaData is the "md" wire payload attached to every task: its name plus
// the descriptor of whatever scheduled it.
type MetaData struct {
	TaskName string  `json:"tn"`
	Trace    Trigger `json:"trace"`
}

// Task is a durable unit of work, addressed to a queue, carrying a typed
// payload and the retry/expire policy it was created with.
type Task struct {
	ID           int64
	Queue        string
	State        State
	Data         json.RawMessage
	MetaData     MetaData
	Config       Config
	RetryCount   int16
	StartedOn    *time.Time
	CreatedOn    time.Time
	StartAfter   time.Time
	ExpireIn     time.Duration
	SingletonKey *string
	Output       json.RawMessage
}

// ArchivedTask is the immutable record of a task that reached a terminal
// state, plus the two columns the archive adds over the active shape.
type ArchivedTask struct {
	Task
	CompletedOn time.Time
	KeepUntil   time.Time
}

// ResolvedTask is what a task worker produces after a handler settles —
// the input to the resolve SQL plan (spec.md §4.4).
type ResolvedTask struct {
	ID         int64           `json:"id"`
	State      State           `json:"s"`
	Output     json.RawMessage `json:"out,omitempty"`
	StartAfter *time.Time      `json:"saf,omitempty"`
}

// ExpireInSeconds returns the expiry policy duration in (possibly
// fractional) seconds, matching the wire-level "eis" field.
func (t Task) ExpireInSeconds() float64 {
	return t.ExpireIn.Seconds()
}

// TaskInsert is the shape accepted by the create_bus_tasks SQL function —
// field names mirror the short wire codes of spec.md §6 exactly so the
// JSON produced here can be passed straight through to the database.
type TaskInsert struct {
	Queue        string          `json:"q"`
	State        *State          `json:"s,omitempty"`
	Data         json.RawMessage `json:"d"`
	MetaData     MetaData        `json:"md"`
	Config       insertConfig    `json:"cf"`
	SingletonKey *string         `json:"skey,omitempty"`
	StartAfter   float64         `json:"saf"`
	ExpireIn     float64         `json:"eis"`
}

type insertConfig struct {
	RetryLimit    int  `json:"r_l"`
	RetryDelay    int  `json:"r_d"`
	RetryBackoff  bool `json:"r_b"`
	KeepInSeconds int  `json:"ki_s"`
}

// NewTaskInsert builds the wire-shaped insert payload for a task about to
// be sent, from its name, data and resolved config.
func NewTaskInsert(queue, taskName string, data json.RawMessage, cfg Config, trigger Trigger) TaskInsert {
	var skey *string
	if cfg.SingletonKey != "" {
		k := cfg.SingletonKey
		skey = &k
	}
	return TaskInsert{
		Queue:        queue,
		Data:         data,
		MetaData:     MetaData{TaskName: taskName, Trace: trigger},
		SingletonKey: skey,
		StartAfter:   float64(cfg.StartAfterSeconds),
		ExpireIn:     cfg.ExpireIn.Seconds(),
		Config: insertConfig{
			RetryLimit:    cfg.RetryLimit,
			RetryDelay:    int(cfg.RetryDelay.Seconds()),
			RetryBackoff:  cfg.RetryBackoff,
			KeepInSeconds: cfg.KeepInSeconds,
		},
	}
}
