package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDebouncer_CoalescesBurstIntoOneCall(t *testing.T) {
	var calls int32
	d := New(20*time.Millisecond, time.Second, func() {
		atomic.AddInt32(&calls, 1)
	})

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestDebouncer_MaxWaitBoundsContinuousBurst(t *testing.T) {
	var calls int32
	d := New(30*time.Millisecond, 50*time.Millisecond, func() {
		atomic.AddInt32(&calls, 1)
	})

	stop := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(stop) {
		d.Trigger()
		time.Sleep(10 * time.Millisecond)
	}

	require.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	var calls int32
	d := New(20*time.Millisecond, time.Second, func() {
		atomic.AddInt32(&calls, 1)
	})

	d.Trigger()
	d.Stop()
	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 0, atomic.LoadInt32(&calls))
}
