package taskbus

import (
	"context"
	"testing"
	"time"

	"github.com/amitbasuri/taskbus-go/internal/models"
	"github.com/amitbasuri/taskbus-go/internal/registry"
	"github.com/amitbasuri/taskbus-go/internal/storage"
	"github.com/stretchr/testify/require"
)

// singletonSkipStore is a minimal storage.Store stub whose InsertTask
// always reports a singleton conflict, used to check that Send never
// leaks storage.ErrSingletonSkip across the Bus boundary.
type singletonSkipStore struct{}

func (singletonSkipStore) Migrate(ctx context.Context) error                  { return nil }
func (singletonSkipStore) BootstrapCursor(ctx context.Context, q string) error { return nil }
func (singletonSkipStore) InsertTask(ctx context.Context, in models.TaskInsert) (int64, error) {
	return 0, storage.ErrSingletonSkip
}
func (singletonSkipStore) InsertEvent(ctx context.Context, in models.EventInsert) (int64, error) {
	return 0, nil
}
func (singletonSkipStore) PopTasks(ctx context.Context, queue string, n int) ([]models.Task, error) {
	return nil, nil
}
func (singletonSkipStore) ResolveTasks(ctx context.Context, resolved []models.ResolvedTask) error {
	return nil
}
func (singletonSkipStore) LockCursor(ctx context.Context, queue string, ttl time.Duration) (*models.Cursor, error) {
	return nil, storage.ErrCursorLocked
}
func (singletonSkipStore) UnlockCursor(ctx context.Context, queue string) error { return nil }
func (singletonSkipStore) FetchEventsAfter(ctx context.Context, after int64, limit int) ([]models.Event, error) {
	return nil, nil
}
func (singletonSkipStore) AdvanceCursorAndInsertTasks(ctx context.Context, queue string, newOffset int64, tasks []models.TaskInsert) error {
	return nil
}
func (singletonSkipStore) ExpireStuckTasks(ctx context.Context, limit int) ([]models.Task, error) {
	return nil, nil
}
func (singletonSkipStore) ReleaseStaleCursorLocks(ctx context.Context) error { return nil }
func (singletonSkipStore) DeleteExpiredEvents(ctx context.Context) (int64, error) { return 0, nil }
func (singletonSkipStore) PurgeArchivedTasks(ctx context.Context) (int64, error)  { return 0, nil }
func (singletonSkipStore) LastEventPos(ctx context.Context) (int64, error)        { return 0, nil }
func (singletonSkipStore) Close()                                                 {}

var _ storage.Store = singletonSkipStore{}

func TestBus_Send_SwallowsSingletonSkip(t *testing.T) {
	reg, err := registry.New("default")
	require.NoError(t, err)
	b, err := New("default", singletonSkipStore{}, reg, DefaultConfig())
	require.NoError(t, err)

	id, err := b.Send(context.Background(), registry.Task{Queue: "default", Name: "t"}, models.DirectTrigger())
	require.NoError(t, err)
	require.Zero(t, id)
}

func TestNew_RejectsReservedQueue(t *testing.T) {
	reg, err := registry.New("default")
	require.NoError(t, err)

	_, err = New(models.ReservedQueue, singletonSkipStore{}, reg, DefaultConfig())
	require.ErrorIs(t, err, models.ErrReservedQueue)
}

func TestRegistryNew_RejectsReservedQueue(t *testing.T) {
	_, err := registry.New(models.ReservedQueue)
	require.ErrorIs(t, err, models.ErrReservedQueue)
}
