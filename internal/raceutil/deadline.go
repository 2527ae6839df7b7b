// Package raceutil races an async operation against a deadline timer, the
// "deadline-race" utility named in spec.md §2.
package raceutil

import (
	"context"
	"fmt"
	"time"
)

// deadlineMessage formats the exact, observable error text spec.md §4.4
// requires on a deadline breach: "handler execution exceeded <ms>ms".
func deadlineMessage(d time.Duration) string {
	return fmt.Sprintf("handler execution exceeded %dms", d.Milliseconds())
}

// Race runs fn with a context bound to d. If fn returns first, its result
// is returned. If the deadline elapses first, Race returns the literal
// deadline error and abandons fn's goroutine (best-effort — fn is expected
// to observe ctx.Done() and stop on its own).
func Race[T any](parent context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)

	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%s", deadlineMessage(d))
	}
}
