package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/amitbasuri/taskbus-go/internal/storage"
	"github.com/amitbasuri/taskbus-go/internal/workerloop"
)

// MaintenanceWorkerConfig tunes a MaintenanceWorker per spec.md §4.6/§6.
type MaintenanceWorkerConfig struct {
	ExpireInterval   time.Duration
	CleanUpInterval  time.Duration
	ExpireBatchLimit int
}

// DefaultMaintenanceWorkerConfig matches spec.md §6's defaults.
func DefaultMaintenanceWorkerConfig() MaintenanceWorkerConfig {
	return MaintenanceWorkerConfig{
		ExpireInterval:   30 * time.Second,
		CleanUpInterval:  300 * time.Second,
		ExpireBatchLimit: 300,
	}
}

// MaintenanceWorker runs the two reconciliation loops of spec.md §4.6: an
// expire loop (stuck active tasks + stale cursor locks) and a clean-up loop
// (expired events + retention-lapsed archived tasks), each its own
// independently scheduled workerloop.Loop.
type MaintenanceWorker struct {
	store storage.Store
	cfg   MaintenanceWorkerConfig

	expireLoop  *workerloop.Loop
	cleanupLoop *workerloop.Loop
}

// NewMaintenanceWorker builds a MaintenanceWorker over store.
func NewMaintenanceWorker(store storage.Store, cfg MaintenanceWorkerConfig) *MaintenanceWorker {
	w := &MaintenanceWorker{store: store, cfg: cfg}
	w.expireLoop = workerloop.New(w.expireStep, cfg.ExpireInterval, func(err error) {
		slog.Error("maintenance expire step failed", "error", err)
	})
	w.cleanupLoop = workerloop.New(w.cleanupStep, cfg.CleanUpInterval, func(err error) {
		slog.Error("maintenance clean-up step failed", "error", err)
	})
	return w
}

// Start begins both loops. Idempotent.
func (w *MaintenanceWorker) Start(ctx context.Context) {
	w.expireLoop.Start(ctx)
	w.cleanupLoop.Start(ctx)
}

// Stop stops both loops, waiting for any in-flight pass to finish.
func (w *MaintenanceWorker) Stop() {
	w.expireLoop.Stop()
	w.cleanupLoop.Stop()
}

func (w *MaintenanceWorker) expireStep(ctx context.Context) (bool, error) {
	expired, err := w.store.ExpireStuckTasks(ctx, w.cfg.ExpireBatchLimit)
	if err != nil {
		return false, err
	}
	if len(expired) > 0 {
		slog.Info("expired stuck tasks", "count", len(expired))
	}

	if err := w.store.ReleaseStaleCursorLocks(ctx); err != nil {
		return false, err
	}

	return len(expired) == w.cfg.ExpireBatchLimit, nil
}

func (w *MaintenanceWorker) cleanupStep(ctx context.Context) (bool, error) {
	deletedEvents, err := w.store.DeleteExpiredEvents(ctx)
	if err != nil {
		return false, err
	}
	purgedTasks, err := w.store.PurgeArchivedTasks(ctx)
	if err != nil {
		return false, err
	}
	if deletedEvents > 0 || purgedTasks > 0 {
		slog.Info("cleaned up retention-lapsed rows", "events_deleted", deletedEvents, "tasks_purged", purgedTasks)
	}
	return false, nil
}
