package registry

import (
	"encoding/json"
	"fmt"

	"github.com/amitbasuri/taskbus-go/internal/models"
	"github.com/amitbasuri/taskbus-go/internal/schema"
)

// TaskDefinition describes a named unit of work: its payload schema,
// optional home queue, and default retry/expire config. Queue is empty
// when the definition is registered directly against a queue-bound
// registry (the common case); it is set when a TaskClient compiled from a
// TaskBuilder needs to remember which queue its tasks belong to.
type TaskDefinition struct {
	Name     string
	Queue    string
	Config   models.Config
	validate *schema.Validator
}

// NewTaskDefinition compiles schemaDef (a JSON-schema literal, or nil for
// "accept anything") and returns a TaskDefinition ready for From/registration.
func NewTaskDefinition(name string, schemaDef any, cfg models.Config) (TaskDefinition, error) {
	v, err := schema.Compile("task:"+name, schemaDef)
	if err != nil {
		return TaskDefinition{}, err
	}
	merged := models.DefaultConfig().Merge(cfg)
	return TaskDefinition{Name: name, Config: merged, validate: v}, nil
}

// Task is the validated, ready-to-send result of TaskDefinition.From.
type Task struct {
	Name   string
	Queue  string
	Data   json.RawMessage
	Config models.Config
}

// From validates input against the definition's schema and returns a
// sendable Task. overrideConfig, if non-zero, is merged on top of the
// definition's default config.
func (d TaskDefinition) From(input any, overrideConfig ...models.Config) (Task, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return Task{}, fmt.Errorf("invalid input for task %s: %w", d.Name, err)
	}
	if d.validate != nil {
		if err := d.validate.Validate(data); err != nil {
			return Task{}, fmt.Errorf("invalid input for task %s: %w", d.Name, err)
		}
	}

	cfg := d.Config
	if len(overrideConfig) > 0 {
		cfg = cfg.Merge(overrideConfig[0])
	}

	return Task{Name: d.Name, Queue: d.Queue, Data: data, Config: cfg}, nil
}

// EventDefinition describes a named, append-only fact and the schema its
// payload must satisfy at publish time.
type EventDefinition struct {
	Name     string
	validate *schema.Validator
}

// NewEventDefinition compiles schemaDef for the named event.
func NewEventDefinition(name string, schemaDef any) (EventDefinition, error) {
	v, err := schema.Compile("event:"+name, schemaDef)
	if err != nil {
		return EventDefinition{}, err
	}
	return EventDefinition{Name: name, validate: v}, nil
}

// Event is the validated, ready-to-publish result of EventDefinition.From.
type Event struct {
	Name string
	Data json.RawMessage
}

// From validates input against the event's schema.
func (d EventDefinition) From(input any) (Event, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return Event{}, fmt.Errorf("invalid input for event %s: %w", d.Name, err)
	}
	if d.validate != nil {
		if err := d.validate.Validate(data); err != nil {
			return Event{}, fmt.Errorf("invalid input for event %s: %w", d.Name, err)
		}
	}
	return Event{Name: d.Name, Data: data}, nil
}
