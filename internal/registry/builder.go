package registry

import (
	"fmt"

	"github.com/amitbasuri/taskbus-go/internal/models"
)

// TaskBuilder accumulates task definitions for a single queue so a process
// that only needs to publish (not handle) them can depend on the compiled
// TaskClient instead of the full registry.
type TaskBuilder struct {
	queue string
	defs  map[string]TaskDefinition
	err   error
}

// NewTaskBuilder starts a builder for queue.
func NewTaskBuilder(queue string) *TaskBuilder {
	return &TaskBuilder{queue: queue, defs: make(map[string]TaskDefinition)}
}

// Add registers a task definition with the builder. Chainable; a
// duplicate name is recorded and surfaced from Compile.
func (b *TaskBuilder) Add(name string, schemaDef any, cfg models.Config) *TaskBuilder {
	if b.err != nil {
		return b
	}
	if _, exists := b.defs[name]; exists {
		b.err = fmt.Errorf("%w: %s", models.ErrDuplicateTaskName, name)
		return b
	}
	def, err := NewTaskDefinition(name, schemaDef, cfg)
	if err != nil {
		b.err = err
		return b
	}
	def.Queue = b.queue
	b.defs[name] = def
	return b
}

// Compile freezes the builder into an immutable TaskClient.
func (b *TaskBuilder) Compile() (*TaskClient, error) {
	if b.err != nil {
		return nil, b.err
	}
	frozen := make(map[string]TaskDefinition, len(b.defs))
	for k, v := range b.defs {
		frozen[k] = v
	}
	return &TaskClient{queue: b.queue, defs: frozen}, nil
}

// TaskClient is an immutable name→definition mapping another process can
// import to build typed Task values without owning their handlers.
type TaskClient struct {
	queue string
	defs  map[string]TaskDefinition
}

// Queue returns the queue every task in this client belongs to.
func (c *TaskClient) Queue() string { return c.queue }

// Get looks up a compiled task definition by name.
func (c *TaskClient) Get(name string) (TaskDefinition, bool) {
	d, ok := c.defs[name]
	return d, ok
}
