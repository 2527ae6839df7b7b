package worker

import (
	"context"
	"sync"
	"time"

	"github.com/amitbasuri/taskbus-go/internal/models"
	"github.com/amitbasuri/taskbus-go/internal/storage"
)

// fakeStore is an in-memory storage.Store used to exercise the workers
// without a database.
type fakeStore struct {
	mu sync.Mutex

	nextID   int64
	tasks    []models.Task
	resolved []models.ResolvedTask

	events       []models.Event
	cursorOffset int64
	cursorLocked bool

	expired []models.Task
}

func newFakeStore() *fakeStore { return &fakeStore{} }

func (s *fakeStore) Migrate(ctx context.Context) error                  { return nil }
func (s *fakeStore) BootstrapCursor(ctx context.Context, q string) error { return nil }

func (s *fakeStore) InsertTask(ctx context.Context, in models.TaskInsert) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.tasks = append(s.tasks, models.Task{
		ID:       s.nextID,
		Queue:    in.Queue,
		State:    models.StateCreated,
		Data:     in.Data,
		MetaData: in.MetaData,
		Config: models.Config{
			RetryLimit:   in.Config.RetryLimit,
			RetryDelay:   time.Duration(in.Config.RetryDelay) * time.Second,
			RetryBackoff: in.Config.RetryBackoff,
		},
		ExpireIn: time.Duration(in.ExpireIn) * time.Second,
	})
	return s.nextID, nil
}

func (s *fakeStore) InsertEvent(ctx context.Context, in models.EventInsert) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := int64(len(s.events)) + 1
	s.events = append(s.events, models.Event{ID: pos, Pos: pos, Name: in.Name, Data: in.Data})
	return pos, nil
}

func (s *fakeStore) PopTasks(ctx context.Context, queue string, n int) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Task
	var rest []models.Task
	for _, t := range s.tasks {
		if t.Queue == queue && t.State == models.StateCreated && len(out) < n {
			t.State = models.StateActive
			out = append(out, t)
			continue
		}
		rest = append(rest, t)
	}
	s.tasks = append(rest, out...)
	return out, nil
}

func (s *fakeStore) ResolveTasks(ctx context.Context, resolved []models.ResolvedTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = append(s.resolved, resolved...)
	for i, t := range s.tasks {
		for _, r := range resolved {
			if t.ID == r.ID {
				s.tasks[i].State = r.State
				s.tasks[i].Output = r.Output
			}
		}
	}
	return nil
}

func (s *fakeStore) LockCursor(ctx context.Context, queue string, ttl time.Duration) (*models.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursorLocked {
		return nil, storage.ErrCursorLocked
	}
	s.cursorLocked = true
	return &models.Cursor{Queue: queue, Offset: s.cursorOffset}, nil
}

func (s *fakeStore) UnlockCursor(ctx context.Context, queue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursorLocked = false
	return nil
}

func (s *fakeStore) FetchEventsAfter(ctx context.Context, after int64, limit int) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Event
	for _, e := range s.events {
		if e.Pos > after {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *fakeStore) AdvanceCursorAndInsertTasks(ctx context.Context, queue string, newOffset int64, tasks []models.TaskInsert) error {
	s.mu.Lock()
	s.cursorOffset = newOffset
	s.cursorLocked = false
	s.mu.Unlock()
	for _, in := range tasks {
		if _, err := s.InsertTask(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeStore) ExpireStuckTasks(ctx context.Context, limit int) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.expired
	s.expired = nil
	return out, nil
}

func (s *fakeStore) ReleaseStaleCursorLocks(ctx context.Context) error { return nil }
func (s *fakeStore) DeleteExpiredEvents(ctx context.Context) (int64, error) { return 0, nil }
func (s *fakeStore) PurgeArchivedTasks(ctx context.Context) (int64, error)  { return 0, nil }

func (s *fakeStore) LastEventPos(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.events)), nil
}

func (s *fakeStore) Close() {}

var _ storage.Store = (*fakeStore)(nil)
