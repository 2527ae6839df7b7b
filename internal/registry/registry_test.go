package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/amitbasuri/taskbus-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(ctx context.Context, data json.RawMessage, tc *TaskContext) (any, error) {
	var v map[string]any
	_ = json.Unmarshal(data, &v)
	return v, nil
}

func TestRegisterTask_RejectsDuplicateName(t *testing.T) {
	r, err := New("q1")
	require.NoError(t, err)
	def, err := NewTaskDefinition("t", nil, models.Config{})
	require.NoError(t, err)

	require.NoError(t, r.RegisterTask(def, echoHandler))
	err = r.RegisterTask(def, echoHandler)
	require.ErrorIs(t, err, models.ErrDuplicateTaskName)
}

func TestRegisterTask_RejectsQueueMismatch(t *testing.T) {
	r, err := New("q1")
	require.NoError(t, err)
	def, err := NewTaskDefinition("t", nil, models.Config{})
	require.NoError(t, err)
	def.Queue = "other"

	err = r.RegisterTask(def, echoHandler)
	require.ErrorIs(t, err, models.ErrTaskQueueMismatch)
}

func TestEventsToTasks_FanoutScenario(t *testing.T) {
	// Queue Q subscribes h1,h2 to E1 and h3 to E2, per spec.md §8 scenario 5.
	r, err := New("q")
	require.NoError(t, err)
	e1, _ := NewEventDefinition("E1", nil)
	e2, _ := NewEventDefinition("E2", nil)

	require.NoError(t, r.On(e1, EventSubscription{TaskName: "h1", Handler: echoHandler, Config: StaticConfig(models.Config{})}))
	require.NoError(t, r.On(e1, EventSubscription{TaskName: "h2", Handler: echoHandler, Config: StaticConfig(models.Config{})}))
	require.NoError(t, r.On(e2, EventSubscription{TaskName: "h3", Handler: echoHandler, Config: StaticConfig(models.Config{})}))

	events := []models.Event{
		{ID: 1, Name: "E1", Data: json.RawMessage(`{"v":"a"}`)},
		{ID: 2, Name: "E2", Data: json.RawMessage(`{"v":"b"}`)},
		{ID: 3, Name: "E1", Data: json.RawMessage(`{"v":"c"}`)},
	}

	out := r.EventsToTasks(events)
	require.Len(t, out, 5)

	counts := map[string]int{}
	for _, t := range out {
		counts[t.TaskName]++
	}
	assert.Equal(t, 2, counts["h1"])
	assert.Equal(t, 2, counts["h2"])
	assert.Equal(t, 1, counts["h3"])
}

func TestHandleTask_DeadlineBreach(t *testing.T) {
	r, err := New("q")
	require.NoError(t, err)
	def, _ := NewTaskDefinition("slow", nil, models.Config{})
	require.NoError(t, r.RegisterTask(def, func(ctx context.Context, data json.RawMessage, tc *TaskContext) (any, error) {
		select {
		case <-time.After(time.Second):
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}))

	tc := NewTaskContext(1, "slow", models.DirectTrigger(), 0, 0.01)
	_, err = r.HandleTask(context.Background(), tc, json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler execution exceeded")
}

func TestHandleTask_ResolveWinsOverLaterThrow(t *testing.T) {
	r, err := New("q")
	require.NoError(t, err)
	def, _ := NewTaskDefinition("t", nil, models.Config{})
	require.NoError(t, r.RegisterTask(def, func(ctx context.Context, data json.RawMessage, tc *TaskContext) (any, error) {
		tc.Resolve(map[string]any{"success": "with result"})
		return nil, errors.New("boom")
	}))

	tc := NewTaskContext(1, "t", models.DirectTrigger(), 0, 10)
	out, err := r.HandleTask(context.Background(), tc, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":"with result"}`, string(out))
}

func TestHandleTask_FailWinsOverReturn(t *testing.T) {
	r, err := New("q")
	require.NoError(t, err)
	def, _ := NewTaskDefinition("t", nil, models.Config{})
	require.NoError(t, r.RegisterTask(def, func(ctx context.Context, data json.RawMessage, tc *TaskContext) (any, error) {
		tc.Fail(map[string]any{"reason": "custom"})
		return "ignored", nil
	}))

	tc := NewTaskContext(1, "t", models.DirectTrigger(), 0, 10)
	out, err := r.HandleTask(context.Background(), tc, json.RawMessage(`{}`))
	require.Error(t, err)
	assert.JSONEq(t, `{"reason":"custom"}`, string(out))
}
