// Package workerloop implements the "call a function on an interval, with
// early wake-up and clean shutdown" primitive every worker in this module
// is built on, generalizing the teacher's ticker-based dispatcher loop
// (internal/worker/worker.go's dispatcherLoop) into a reusable scheduler.
package workerloop

import (
	"context"
	"sync"
	"time"
)

// Step is the function a Loop repeatedly invokes. It returns true when more
// work is immediately available (the loop re-invokes with no sleep) or
// false when the caller should wait loopInterval before trying again.
type Step func(ctx context.Context) (hasMore bool, err error)

// ErrorHandler receives any error a Step returns. It may be nil.
type ErrorHandler func(err error)

// Loop runs a Step on an interval with at most one invocation in flight at
// a time. Multiple Loop instances run independently (spec.md §4.3).
type Loop struct {
	step         Step
	interval     time.Duration
	onError      ErrorHandler
	notifyCh     chan struct{}
	stopCh       chan struct{}
	done         chan struct{}
	mu           sync.Mutex
	started      bool
	cancelParent context.CancelFunc
}

// New builds a Loop around step, woken every interval absent an earlier
// notify.
func New(step Step, interval time.Duration, onError ErrorHandler) *Loop {
	return &Loop{
		step:     step,
		interval: interval,
		onError:  onError,
	}
}

// Start is idempotent: the first call schedules an immediate invocation of
// the step function and begins the scheduling goroutine; later calls are a
// no-op until a matching Stop.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return
	}
	l.started = true
	l.notifyCh = make(chan struct{}, 1)
	l.stopCh = make(chan struct{})
	l.done = make(chan struct{})

	runCtx, cancel := context.WithCancel(ctx)
	l.cancelParent = cancel

	go l.run(runCtx)
}

// Notify cancels any pending sleep and schedules an immediate re-invocation.
// Multiple notifies before the loop wakes coalesce into a single wake-up.
func (l *Loop) Notify() {
	l.mu.Lock()
	ch := l.notifyCh
	l.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Stop waits for any in-flight step invocation to finish, then prevents
// further invocations. A later Start is allowed.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return
	}
	l.started = false
	close(l.stopCh)
	cancel := l.cancelParent
	done := l.done
	l.mu.Unlock()

	cancel()
	<-done
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	hasMore := true
	for {
		if !hasMore {
			select {
			case <-ctx.Done():
				return
			case <-l.stopCh:
				return
			case <-l.notifyCh:
			case <-time.After(l.interval):
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		default:
		}

		more, err := l.step(ctx)
		if err != nil && l.onError != nil {
			l.onError(err)
		}
		hasMore = more
	}
}
