// Package taskbus wires the registry, storage, and the three self-scheduling
// workers into a single bound bus instance, following the lifecycle
// described in spec.md §4.8.
package taskbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/amitbasuri/taskbus-go/internal/models"
	"github.com/amitbasuri/taskbus-go/internal/registry"
	"github.com/amitbasuri/taskbus-go/internal/storage"
	"github.com/amitbasuri/taskbus-go/internal/worker"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Config tunes the workers a Bus starts, plus the bus-level defaults
// applied to a Publish that doesn't specify its own retention.
type Config struct {
	Task        worker.TaskWorkerConfig
	Fanout      worker.FanoutWorkerConfig
	Maintenance worker.MaintenanceWorkerConfig

	// DefaultEventRetentionDays, when positive, is used by Publish for any
	// call that doesn't pass its own retentionDays. Zero leaves the
	// create_bus_events SQL function's own built-in default in effect.
	DefaultEventRetentionDays int
}

// DefaultConfig returns the spec's default tuning for all three workers.
func DefaultConfig() Config {
	return Config{
		Task:        worker.DefaultTaskWorkerConfig(),
		Fanout:      worker.DefaultFanoutWorkerConfig(),
		Maintenance: worker.DefaultMaintenanceWorkerConfig(),
	}
}

// Bus binds a Registry to a Store and drives the task, fanout, and
// maintenance workers over it.
type Bus struct {
	queue    string
	store    storage.Store
	registry *registry.Registry
	cfg      Config

	mu          sync.Mutex
	running     bool
	taskWorker  *worker.TaskWorker
	fanoutWrk   *worker.FanoutWorker
	maintenance *worker.MaintenanceWorker
}

// New binds reg (which must have been built for queue) to store. Rejects
// models.ReservedQueue, the internal maintenance queue name, the same as
// registry.New, since a Bus can be constructed against a raw queue string
// independent of the registry that happens to be passed alongside it.
func New(queue string, store storage.Store, reg *registry.Registry, cfg Config) (*Bus, error) {
	if queue == models.ReservedQueue {
		return nil, models.ErrReservedQueue
	}
	return &Bus{queue: queue, store: store, registry: reg, cfg: cfg}, nil
}

// Registry exposes the bound registry so callers can RegisterTask/On
// before Start.
func (b *Bus) Registry() *registry.Registry { return b.registry }

// Start applies migrations under an advisory lock, bootstraps this queue's
// cursor at the event log's current tail, then starts the maintenance,
// task, and fanout workers in that order (spec.md §4.8).
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil
	}

	if err := b.store.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if err := b.store.BootstrapCursor(ctx, b.queue); err != nil {
		return fmt.Errorf("bootstrap cursor for %s: %w", b.queue, err)
	}

	b.maintenance = worker.NewMaintenanceWorker(b.store, b.cfg.Maintenance)
	b.taskWorker = worker.NewTaskWorker(b.queue, b.store, b.registry, b.cfg.Task)
	b.fanoutWrk = worker.NewFanoutWorker(b.queue, b.store, b.registry, b.cfg.Fanout)

	b.maintenance.Start(ctx)
	b.taskWorker.Start(ctx)
	b.fanoutWrk.Start(ctx)

	b.running = true
	slog.Info("bus started", "queue", b.queue)
	return nil
}

// Send inserts t and, if it landed in this bus's own queue, debounce-wakes
// the task worker instead of waiting for the next poll (spec.md §2, §5).
// When two callers race to insert the same singleton, exactly one row
// persists and no error surfaces to either: Send reports that case as
// (0, nil), the same as a successful insert the caller doesn't need the id
// from, rather than leaking storage.ErrSingletonSkip across the library
// boundary.
func (b *Bus) Send(ctx context.Context, t registry.Task, trigger models.Trigger) (int64, error) {
	in := models.NewTaskInsert(t.Queue, t.Name, t.Data, t.Config, trigger)
	id, err := b.store.InsertTask(ctx, in)
	if err != nil {
		if errors.Is(err, storage.ErrSingletonSkip) {
			return 0, nil
		}
		return 0, err
	}
	if t.Queue == b.queue {
		b.NotifyTask()
	}
	return id, nil
}

// Publish inserts e and debounce-wakes this bus's fanout worker, since the
// new event might be bound to one of its handlers (spec.md §2, §5).
func (b *Bus) Publish(ctx context.Context, e registry.Event, retentionDays ...int) (int64, error) {
	in := models.EventInsert{Name: e.Name, Data: e.Data}
	switch {
	case len(retentionDays) > 0:
		in.RetentionDays = &retentionDays[0]
	case b.cfg.DefaultEventRetentionDays > 0:
		days := b.cfg.DefaultEventRetentionDays
		in.RetentionDays = &days
	}
	id, err := b.store.InsertEvent(ctx, in)
	if err != nil {
		return 0, err
	}
	b.NotifyFanout()
	return id, nil
}

// NotifyTask wakes the task worker early (debounced), for use right after
// a local Send targeting this queue.
func (b *Bus) NotifyTask() {
	b.mu.Lock()
	w := b.taskWorker
	b.mu.Unlock()
	if w != nil {
		w.Notify()
	}
}

// NotifyFanout wakes the fanout worker early (debounced), for use right
// after a local Publish.
func (b *Bus) NotifyFanout() {
	b.mu.Lock()
	w := b.fanoutWrk
	b.mu.Unlock()
	if w != nil {
		w.Notify()
	}
}

// Stats reports the task worker's lifetime processed/failed counts and
// current in-flight count. Zero value before Start.
func (b *Bus) Stats() worker.TaskWorkerStats {
	b.mu.Lock()
	w := b.taskWorker
	b.mu.Unlock()
	if w == nil {
		return worker.TaskWorkerStats{}
	}
	return w.Stats()
}

// Stop stops the fanout, task, and maintenance workers concurrently
// (waiting for in-flight work and flushing the resolve batch), then closes
// the store (which closes its pool if it owns one). A later Start re-applies
// migrations and resumes only when the store's pool is still open: a store
// built with postgres.NewStore keeps the caller's pool, while one from
// postgres.Open has its pool closed here, and Start on it then fails.
func (b *Bus) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return nil
	}

	var g errgroup.Group
	g.Go(func() error { b.fanoutWrk.Stop(); return nil })
	g.Go(func() error { b.taskWorker.Stop(); return nil })
	g.Go(func() error { b.maintenance.Stop(); return nil })

	var result *multierror.Error
	if err := g.Wait(); err != nil {
		result = multierror.Append(result, err)
	}

	b.store.Close()
	b.running = false
	slog.Info("bus stopped", "queue", b.queue)
	return result.ErrorOrNil()
}
