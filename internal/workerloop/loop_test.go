package workerloop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoop_InvokesImmediatelyOnStart(t *testing.T) {
	var calls int32
	l := New(func(ctx context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return false, nil
	}, time.Hour, nil)

	l.Start(context.Background())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)
	l.Stop()
}

func TestLoop_ReinvokesImmediatelyWhileHasMore(t *testing.T) {
	var calls int32
	l := New(func(ctx context.Context) (bool, error) {
		n := atomic.AddInt32(&calls, 1)
		return n < 5, nil
	}, time.Hour, nil)

	l.Start(context.Background())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 5 }, time.Second, time.Millisecond)
	l.Stop()
}

func TestLoop_NotifyWakesEarly(t *testing.T) {
	var calls int32
	l := New(func(ctx context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return false, nil
	}, time.Hour, nil)

	l.Start(context.Background())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)

	l.Notify()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 2 }, time.Second, time.Millisecond)
	l.Stop()
}

func TestLoop_StopWaitsForInFlightInvocation(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	l := New(func(ctx context.Context) (bool, error) {
		close(started)
		<-release
		return false, nil
	}, time.Hour, nil)

	l.Start(context.Background())
	<-started

	stopped := make(chan struct{})
	go func() {
		l.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned before in-flight invocation finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-stopped
}

func TestLoop_StartAfterStopAllowed(t *testing.T) {
	var calls int32
	l := New(func(ctx context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return false, nil
	}, time.Hour, nil)

	l.Start(context.Background())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)
	l.Stop()

	l.Start(context.Background())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 2 }, time.Second, time.Millisecond)
	l.Stop()
}
