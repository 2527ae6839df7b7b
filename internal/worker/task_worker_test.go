package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/amitbasuri/taskbus-go/internal/models"
	"github.com/amitbasuri/taskbus-go/internal/registry"
	"github.com/stretchr/testify/require"
)

var errHandlerFailed = errors.New("handler failed")

func newTestRegistry(t *testing.T, name string, handler registry.Handler) *registry.Registry {
	t.Helper()
	reg, err := registry.New("default")
	require.NoError(t, err)
	def, err := registry.NewTaskDefinition(name, nil, models.Config{RetryLimit: 1, RetryDelay: time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, reg.RegisterTask(def, handler))
	return reg
}

func TestTaskWorker_ProcessesAndResolvesCompletedTask(t *testing.T) {
	store := newFakeStore()
	reg := newTestRegistry(t, "ping", func(ctx context.Context, data json.RawMessage, tc *registry.TaskContext) (any, error) {
		return map[string]string{"ok": "yes"}, nil
	})

	id, err := store.InsertTask(context.Background(), models.NewTaskInsert("default", "ping", json.RawMessage(`{}`), models.Config{ExpireIn: time.Second}, models.DirectTrigger()))
	require.NoError(t, err)

	cfg := DefaultTaskWorkerConfig()
	cfg.PollInterval = 10 * time.Millisecond
	w := NewTaskWorker("default", store, reg, cfg)
	w.Start(context.Background())
	defer w.Stop()

	// Resolutions are batched, so wait for the flush as well as the count.
	require.Eventually(t, func() bool {
		store.mu.Lock()
		flushed := len(store.resolved) > 0
		store.mu.Unlock()
		return w.Stats().Processed == 1 && flushed
	}, time.Second, 5*time.Millisecond)

	store.mu.Lock()
	var resolved *models.ResolvedTask
	for i := range store.resolved {
		if store.resolved[i].ID == id {
			resolved = &store.resolved[i]
		}
	}
	store.mu.Unlock()
	require.NotNil(t, resolved)
	require.Equal(t, models.StateCompleted, resolved.State)
}

func TestTaskWorker_FailsTaskWithNoRetriesLeft(t *testing.T) {
	store := newFakeStore()
	reg := newTestRegistry(t, "boom", func(ctx context.Context, data json.RawMessage, tc *registry.TaskContext) (any, error) {
		return nil, errHandlerFailed
	})

	_, err := store.InsertTask(context.Background(), models.NewTaskInsert("default", "boom", json.RawMessage(`{}`), models.Config{RetryLimit: 0, ExpireIn: time.Second}, models.DirectTrigger()))
	require.NoError(t, err)

	cfg := DefaultTaskWorkerConfig()
	cfg.PollInterval = 10 * time.Millisecond
	w := NewTaskWorker("default", store, reg, cfg)
	w.Start(context.Background())
	defer w.Stop()

	require.Eventually(t, func() bool {
		return w.Stats().Failed == 1
	}, time.Second, 5*time.Millisecond)
}

