package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/amitbasuri/taskbus-go/internal/debounce"
	"github.com/amitbasuri/taskbus-go/internal/models"
	"github.com/amitbasuri/taskbus-go/internal/registry"
	"github.com/amitbasuri/taskbus-go/internal/storage"
	"github.com/amitbasuri/taskbus-go/internal/workerloop"
)

// FanoutWorkerConfig tunes a FanoutWorker per spec.md §4.5/§6.
type FanoutWorkerConfig struct {
	PollInterval   time.Duration
	EventBatchSize int
	LockTTL        time.Duration
}

// DefaultFanoutWorkerConfig mirrors the task worker's poll cadence with the
// default events fetch size of spec.md §6.
func DefaultFanoutWorkerConfig() FanoutWorkerConfig {
	return FanoutWorkerConfig{
		PollInterval:   1500 * time.Millisecond,
		EventBatchSize: 200,
		LockTTL:        30 * time.Second,
	}
}

// FanoutWorker is the single per-queue instance projecting committed events
// into tasks via a lockable cursor (spec.md §4.5).
type FanoutWorker struct {
	queue    string
	store    storage.Store
	registry *registry.Registry
	cfg      FanoutWorkerConfig
	loop     *workerloop.Loop
	debounce *debounce.Debouncer
}

// NewFanoutWorker builds a FanoutWorker for queue.
func NewFanoutWorker(queue string, store storage.Store, reg *registry.Registry, cfg FanoutWorkerConfig) *FanoutWorker {
	w := &FanoutWorker{queue: queue, store: store, registry: reg, cfg: cfg}
	w.loop = workerloop.New(w.step, cfg.PollInterval, func(err error) {
		slog.Error("fanout worker step failed", "queue", queue, "error", err)
	})
	w.debounce = debounce.New(75*time.Millisecond, 300*time.Millisecond, w.loop.Notify)
	return w
}

// Start begins polling. Idempotent.
func (w *FanoutWorker) Start(ctx context.Context) {
	w.loop.Start(ctx)
}

// Stop stops polling and waits for any in-flight pass to finish.
func (w *FanoutWorker) Stop() {
	w.loop.Stop()
}

// Notify wakes the worker early, debounced at 75ms/300ms (spec.md §5), used
// when a local publish() may produce work for this queue.
func (w *FanoutWorker) Notify() {
	w.debounce.Trigger()
}

func (w *FanoutWorker) step(ctx context.Context) (bool, error) {
	cursor, err := w.store.LockCursor(ctx, w.queue, w.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, storage.ErrCursorLocked) {
			return false, nil
		}
		return false, err
	}

	events, err := w.store.FetchEventsAfter(ctx, cursor.Offset, w.cfg.EventBatchSize)
	if err != nil {
		_ = w.store.UnlockCursor(ctx, w.queue)
		return false, err
	}
	if len(events) == 0 {
		return false, w.store.UnlockCursor(ctx, w.queue)
	}

	outgoing := w.registry.EventsToTasks(events)
	inserts := make([]models.TaskInsert, 0, len(outgoing))
	for _, o := range outgoing {
		inserts = append(inserts, models.NewTaskInsert(o.Queue, o.TaskName, o.Data, o.Config, o.Trigger))
	}

	lastPos := events[len(events)-1].Pos
	if err := w.store.AdvanceCursorAndInsertTasks(ctx, w.queue, lastPos, inserts); err != nil {
		return false, err
	}

	return len(events) == w.cfg.EventBatchSize, nil
}
