package batcher

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBatcher_FlushesAtMaxSize(t *testing.T) {
	var mu sync.Mutex
	var flushes [][]int

	b := New(3, time.Hour, func(items []int) {
		mu.Lock()
		defer mu.Unlock()
		flushes = append(flushes, append([]int(nil), items...))
	})

	b.Add(1)
	b.Add(2)
	b.Add(3)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(flushes) == 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	require.Equal(t, []int{1, 2, 3}, flushes[0])
	mu.Unlock()
}

func TestBatcher_FlushesAtMaxLatency(t *testing.T) {
	var mu sync.Mutex
	var flushes [][]int

	b := New(100, 20*time.Millisecond, func(items []int) {
		mu.Lock()
		defer mu.Unlock()
		flushes = append(flushes, append([]int(nil), items...))
	})

	b.Add(42)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(flushes) == 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	require.Equal(t, []int{42}, flushes[0])
	mu.Unlock()
}

func TestBatcher_CloseFlushesPending(t *testing.T) {
	var mu sync.Mutex
	var flushes [][]int

	b := New(100, time.Hour, func(items []int) {
		mu.Lock()
		defer mu.Unlock()
		flushes = append(flushes, append([]int(nil), items...))
	})

	b.Add(1)
	b.Add(2)
	b.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, flushes, 1)
	require.Equal(t, []int{1, 2}, flushes[0])
}
