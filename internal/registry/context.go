package registry

import (
	"sync"

	"github.com/amitbasuri/taskbus-go/internal/models"
)

// outcome is the one-shot cell backing TaskContext.Resolve/Fail: first
// writer wins, later writes no-op, per spec.md §9.
type outcome struct {
	mu        sync.Mutex
	done      bool
	isFailure bool
	payload   any
}

func (o *outcome) set(isFailure bool, payload any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return
	}
	o.done = true
	o.isFailure = isFailure
	o.payload = payload
}

func (o *outcome) get() (done, isFailure bool, payload any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done, o.isFailure, o.payload
}

// TaskContext is handed to a task handler. Resolve/Fail let the handler
// short-circuit the eventual completion payload without returning.
type TaskContext struct {
	ID              int64
	TaskName        string
	Trigger         models.Trigger
	Retried         int
	ExpireInSeconds float64

	cell *outcome
}

func newTaskContext(id int64, taskName string, trig models.Trigger, retried int, expireInSeconds float64) *TaskContext {
	return &TaskContext{
		ID:              id,
		TaskName:        taskName,
		Trigger:         trig,
		Retried:         retried,
		ExpireInSeconds: expireInSeconds,
		cell:            &outcome{},
	}
}

// Resolve completes the task with payload regardless of what the handler
// later returns or throws.
func (c *TaskContext) Resolve(payload any) { c.cell.set(false, payload) }

// Fail fails the task with payload, winning over any later return.
func (c *TaskContext) Fail(payload any) { c.cell.set(true, payload) }
