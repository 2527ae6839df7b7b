// Package batcher implements a size/time-bounded accumulator, used to group
// task resolutions into fewer round trips (spec.md §4.4's resolve
// batching: max-size 75, max-latency 30ms).
package batcher

import (
	"sync"
	"time"
)

// Flush is called with the accumulated items once a batch is ready to
// ship, either because it reached maxSize or maxLatency elapsed since the
// first item in the batch arrived.
type Flush[T any] func(items []T)

// Batcher accumulates items and flushes them in groups.
type Batcher[T any] struct {
	maxSize    int
	maxLatency time.Duration
	flush      Flush[T]

	mu      sync.Mutex
	pending []T
	timer   *time.Timer
	closed  bool
}

// New builds a Batcher that flushes whenever maxSize items have
// accumulated or maxLatency has elapsed since the oldest pending item,
// whichever comes first.
func New[T any](maxSize int, maxLatency time.Duration, flush Flush[T]) *Batcher[T] {
	return &Batcher[T]{maxSize: maxSize, maxLatency: maxLatency, flush: flush}
}

// Add enqueues item, flushing synchronously if this push reaches maxSize.
func (b *Batcher[T]) Add(item T) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.pending = append(b.pending, item)
	if len(b.pending) == 1 {
		b.timer = time.AfterFunc(b.maxLatency, b.flushTimer)
	}
	full := len(b.pending) >= b.maxSize
	var toFlush []T
	if full {
		toFlush = b.takeLocked()
	}
	b.mu.Unlock()

	if full {
		b.flush(toFlush)
	}
}

func (b *Batcher[T]) flushTimer() {
	b.mu.Lock()
	toFlush := b.takeLocked()
	b.mu.Unlock()
	if len(toFlush) > 0 {
		b.flush(toFlush)
	}
}

// takeLocked must be called with b.mu held; it detaches the pending slice
// and stops any running flush timer.
func (b *Batcher[T]) takeLocked() []T {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	items := b.pending
	b.pending = nil
	return items
}

// Flush forces an immediate flush of whatever is pending, used on shutdown
// so no resolution is left unsent.
func (b *Batcher[T]) Flush() {
	b.mu.Lock()
	toFlush := b.takeLocked()
	b.mu.Unlock()
	if len(toFlush) > 0 {
		b.flush(toFlush)
	}
}

// Close flushes any pending items and stops accepting new ones.
func (b *Batcher[T]) Close() {
	b.mu.Lock()
	b.closed = true
	toFlush := b.takeLocked()
	b.mu.Unlock()
	if len(toFlush) > 0 {
		b.flush(toFlush)
	}
}
