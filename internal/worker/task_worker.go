// Package worker implements the three self-scheduling workers of
// spec.md §4.4-§4.6, each a thin step function layered on workerloop.Loop,
// generalizing the teacher's dispatcher/worker-pool split
// (internal/worker/worker.go) to the bus's pop/handle/resolve cycle.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/amitbasuri/taskbus-go/internal/batcher"
	"github.com/amitbasuri/taskbus-go/internal/debounce"
	"github.com/amitbasuri/taskbus-go/internal/models"
	"github.com/amitbasuri/taskbus-go/internal/registry"
	"github.com/amitbasuri/taskbus-go/internal/storage"
	"github.com/amitbasuri/taskbus-go/internal/workerloop"
	"go.uber.org/atomic"
)

// TaskWorkerConfig tunes a TaskWorker per spec.md §6.
type TaskWorkerConfig struct {
	MaxConcurrency   int
	PollInterval     time.Duration
	RefillThreshold  float64 // fraction of MaxConcurrency in (0,1]
	ResolveBatchSize int
	ResolveBatchWait time.Duration
}

// DefaultTaskWorkerConfig matches spec.md §6's worker.* defaults.
func DefaultTaskWorkerConfig() TaskWorkerConfig {
	return TaskWorkerConfig{
		MaxConcurrency:   25,
		PollInterval:     1500 * time.Millisecond,
		RefillThreshold:  0.33,
		ResolveBatchSize: 75,
		ResolveBatchWait: 30 * time.Millisecond,
	}
}

// TaskWorker pops tasks for a queue, dispatches them to the registry's
// handlers with bounded concurrency, and batches their resolutions
// (spec.md §4.4).
type TaskWorker struct {
	queue    string
	store    storage.Store
	registry *registry.Registry
	cfg      TaskWorkerConfig
	loop     *workerloop.Loop
	resolver *batcher.Batcher[models.ResolvedTask]
	debounce *debounce.Debouncer

	mu           sync.Mutex
	active       map[int64]struct{}
	hasMoreTasks bool
	wg           sync.WaitGroup

	processed atomic.Int64
	failed    atomic.Int64
}

// NewTaskWorker builds a TaskWorker for queue, reading from store and
// dispatching through reg.
func NewTaskWorker(queue string, store storage.Store, reg *registry.Registry, cfg TaskWorkerConfig) *TaskWorker {
	w := &TaskWorker{
		queue:    queue,
		store:    store,
		registry: reg,
		cfg:      cfg,
		active:   make(map[int64]struct{}),
	}
	w.resolver = batcher.New(cfg.ResolveBatchSize, cfg.ResolveBatchWait, w.flushResolutions)
	w.loop = workerloop.New(w.step, cfg.PollInterval, func(err error) {
		slog.Error("task worker step failed", "queue", queue, "error", err)
	})
	w.debounce = debounce.New(75*time.Millisecond, 150*time.Millisecond, w.loop.Notify)
	return w
}

// Start begins polling. Idempotent.
func (w *TaskWorker) Start(ctx context.Context) {
	w.loop.Start(ctx)
}

// Stop stops polling, waits for in-flight handlers to settle, then flushes
// the resolve batch (spec.md §4.4).
func (w *TaskWorker) Stop() {
	w.loop.Stop()
	w.wg.Wait()
	w.resolver.Flush()
}

// Notify wakes the worker early, debounced at 75ms/150ms (spec.md §5), used
// when a local send() targets this queue.
func (w *TaskWorker) Notify() {
	w.debounce.Trigger()
}

// TaskWorkerStats is a point-in-time snapshot of a TaskWorker's counters.
type TaskWorkerStats struct {
	Processed int64
	Failed    int64
	InFlight  int
}

// Stats reports lifetime processed/failed counts and the current in-flight
// count. Safe to call concurrently with Start/Stop.
func (w *TaskWorker) Stats() TaskWorkerStats {
	w.mu.Lock()
	inFlight := len(w.active)
	w.mu.Unlock()
	return TaskWorkerStats{
		Processed: w.processed.Load(),
		Failed:    w.failed.Load(),
		InFlight:  inFlight,
	}
}

func (w *TaskWorker) step(ctx context.Context) (bool, error) {
	w.mu.Lock()
	inFlight := len(w.active)
	w.mu.Unlock()

	if inFlight >= w.cfg.MaxConcurrency {
		return false, nil
	}

	n := w.cfg.MaxConcurrency - inFlight
	tasks, err := w.store.PopTasks(ctx, w.queue, n)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	w.hasMoreTasks = len(tasks) == n
	for _, t := range tasks {
		w.active[t.ID] = struct{}{}
	}
	w.mu.Unlock()

	for _, t := range tasks {
		t := t
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.handle(ctx, t)
		}()
	}

	w.mu.Lock()
	remaining := len(w.active)
	hasMore := w.hasMoreTasks
	w.mu.Unlock()
	return hasMore && remaining >= w.cfg.MaxConcurrency, nil
}

func (w *TaskWorker) handle(ctx context.Context, t models.Task) {
	retried := int(t.RetryCount)
	tc := registry.NewTaskContext(t.ID, t.MetaData.TaskName, t.MetaData.Trace, retried, t.ExpireInSeconds())

	output, herr := w.registry.HandleTask(ctx, tc, t.Data)

	resolved := models.ResolvedTask{ID: t.ID, Output: output}
	if herr == nil {
		resolved.State = models.StateCompleted
		w.processed.Inc()
	} else if int(t.RetryCount) >= t.Config.RetryLimit {
		resolved.State = models.StateFailed
		w.failed.Inc()
	} else {
		resolved.State = models.StateRetry
		saf := time.Now().Add(retryDelay(t.Config, t.RetryCount))
		resolved.StartAfter = &saf
	}

	w.resolver.Add(resolved)

	w.mu.Lock()
	delete(w.active, t.ID)
	remaining := len(w.active)
	hasMore := w.hasMoreTasks
	w.mu.Unlock()

	if hasMore && float64(remaining)/float64(w.cfg.MaxConcurrency) < w.cfg.RefillThreshold {
		w.loop.Notify()
	}
}

func (w *TaskWorker) flushResolutions(items []models.ResolvedTask) {
	if err := w.store.ResolveTasks(context.Background(), items); err != nil {
		slog.Error("failed to flush resolved tasks", "queue", w.queue, "count", len(items), "error", err)
	}
}

func retryDelay(cfg models.Config, retryCount int16) time.Duration {
	if !cfg.RetryBackoff {
		return cfg.RetryDelay
	}
	backoff := cfg.RetryDelay
	for i := int16(0); i < retryCount; i++ {
		backoff *= 2
	}
	return backoff
}
