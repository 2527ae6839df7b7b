// Package registry is the per-process, per-queue task-boss registry of
// spec.md §4.1: it binds task names and event subscriptions to handler
// functions and routes incoming task invocations to them.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/amitbasuri/taskbus-go/internal/models"
	"github.com/amitbasuri/taskbus-go/internal/raceutil"
)

// Handler executes a task's payload. tc exposes the task's identity and
// the one-shot Resolve/Fail escape hatch.
type Handler func(ctx context.Context, data json.RawMessage, tc *TaskContext) (any, error)

type taskEntry struct {
	def     TaskDefinition
	handler Handler
}

type eventBinding struct {
	eventName string
	taskName  string
	config    ConfigResolver
}

// Registry is bound to a single queue. It is safe for concurrent use.
type Registry struct {
	queue string

	mu       sync.RWMutex
	tasks    map[string]taskEntry
	bindings []eventBinding
}

// New creates an empty registry for queue. Rejects models.ReservedQueue,
// the internal maintenance queue name, per spec.md §6.
func New(queue string) (*Registry, error) {
	if queue == models.ReservedQueue {
		return nil, models.ErrReservedQueue
	}
	return &Registry{queue: queue, tasks: make(map[string]taskEntry)}, nil
}

// Queue returns the registry's bound queue name.
func (r *Registry) Queue() string { return r.queue }

// RegisterTask binds def's name to handler. Rejects a duplicate task name,
// or a definition explicitly scoped to a different queue.
func (r *Registry) RegisterTask(def TaskDefinition, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if def.Queue != "" && def.Queue != r.queue {
		return fmt.Errorf("%w: task %s wants queue %s, registry is %s",
			models.ErrTaskQueueMismatch, def.Name, def.Queue, r.queue)
	}
	if _, exists := r.tasks[def.Name]; exists {
		return fmt.Errorf("%w: %s", models.ErrDuplicateTaskName, def.Name)
	}

	def.Queue = r.queue
	r.tasks[def.Name] = taskEntry{def: def, handler: handler}
	return nil
}

// EventSubscription is the binding passed to On: a task name identifying
// this handler, the handler itself, and a static-or-dynamic config.
type EventSubscription struct {
	TaskName string
	Handler  Handler
	Config   ConfigResolver
}

// On binds an event subscription: eventDef's payload, once published and
// fanned out, produces a task named sub.TaskName dispatched to sub.Handler.
// Rejects a name already bound by RegisterTask or a previous On.
func (r *Registry) On(eventDef EventDefinition, sub EventSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[sub.TaskName]; exists {
		return fmt.Errorf("%w: %s", models.ErrDuplicateTaskName, sub.TaskName)
	}

	r.tasks[sub.TaskName] = taskEntry{
		def:     TaskDefinition{Name: sub.TaskName, Queue: r.queue, Config: models.DefaultConfig()},
		handler: sub.Handler,
	}
	r.bindings = append(r.bindings, eventBinding{
		eventName: eventDef.Name,
		taskName:  sub.TaskName,
		config:    sub.Config,
	})
	return nil
}

// OutgoingTask is what EventsToTasks produces: a task ready to be inserted
// for this registry's queue.
type OutgoingTask struct {
	Queue    string
	TaskName string
	Data     json.RawMessage
	Config   models.Config
	Trigger  models.Trigger
}

// EventsToTasks projects committed events into outgoing tasks, one per
// bound handler whose event name matches. Performs no schema validation —
// events are already-committed facts (spec.md §4.1).
func (r *Registry) EventsToTasks(events []models.Event) []OutgoingTask {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []OutgoingTask
	for _, ev := range events {
		for _, b := range r.bindings {
			if b.eventName != ev.Name {
				continue
			}
			entry := r.tasks[b.taskName]
			cfg := entry.def.Config.Merge(b.config.resolve(ev.Data))
			out = append(out, OutgoingTask{
				Queue:    r.queue,
				TaskName: b.taskName,
				Data:     ev.Data,
				Config:   cfg,
				Trigger:  models.EventTrigger(ev.ID, ev.Name),
			})
		}
	}
	return out
}

// HandleTask looks up the handler for tc.TaskName, races it against a
// deadline of tc.ExpireInSeconds, and returns the flattened output plus a
// non-nil error when the task should be treated as failed (handler threw,
// deadline was breached, or the handler called tc.Fail). tc.Resolve always
// wins and yields a nil error regardless of what the handler does after.
func (r *Registry) HandleTask(ctx context.Context, tc *TaskContext, data json.RawMessage) (json.RawMessage, error) {
	r.mu.RLock()
	entry, ok := r.tasks[tc.TaskName]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrHandlerNotFound, tc.TaskName)
	}

	deadline := time.Duration(tc.ExpireInSeconds * float64(time.Second))
	result, herr := raceutil.Race(ctx, deadline, func(rctx context.Context) (any, error) {
		return entry.handler(rctx, data, tc)
	})

	if done, isFailure, payload := tc.cell.get(); done {
		if isFailure {
			return FlattenOutput(payload), fmt.Errorf("task failed via fail()")
		}
		return FlattenOutput(payload), nil
	}

	if herr != nil {
		return FlattenOutput(NewHandlerError(herr)), herr
	}
	return FlattenOutput(result), nil
}

// NewTaskContext builds the context HandleTask's caller (the task worker)
// passes in, from a stored task's identity.
func NewTaskContext(id int64, taskName string, trig models.Trigger, retried int, expireInSeconds float64) *TaskContext {
	return newTaskContext(id, taskName, trig, retried, expireInSeconds)
}

// QueueState describes a registry's bound task/event surface, used by the
// webhook transport (spec.md §6).
type QueueState struct {
	Queue  string   `json:"queue"`
	Tasks  []string `json:"tasks"`
	Events []string `json:"events"`
}

// GetState returns a serializable description of this registry.
func (r *Registry) GetState() QueueState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state := QueueState{Queue: r.queue}
	for name := range r.tasks {
		state.Tasks = append(state.Tasks, name)
	}
	seen := make(map[string]bool)
	for _, b := range r.bindings {
		if !seen[b.eventName] {
			seen[b.eventName] = true
			state.Events = append(state.Events, b.eventName)
		}
	}
	return state
}
