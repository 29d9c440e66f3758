package resilience

import (
	"context"
	"fmt"
	"time"
)

// TimeoutError reports that an operation outlived its own limit while the
// caller's context was still live. It matches context.DeadlineExceeded.
type TimeoutError struct {
	Op    string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: exceeded %s", e.Op, e.Limit)
}

// Unwrap lets errors.Is(err, context.DeadlineExceeded) match.
func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// WithTimeout runs fn under a context limited to limit and returns its value.
// When the limit fires first it returns a *TimeoutError without waiting for
// fn, whose late result is discarded. Cancellation of ctx itself is returned
// as ctx.Err(). A non-positive limit runs fn inline.
func WithTimeout[T any](ctx context.Context, limit time.Duration, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	if limit <= 0 {
		return fn(ctx)
	}
	type result struct {
		val T
		err error
	}
	limited, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	done := make(chan result, 1)
	go func() {
		v, err := fn(limited)
		done <- result{v, err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && limited.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return zero, &TimeoutError{Op: op, Limit: limit}
		}
		return r.val, r.err
	case <-limited.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, &TimeoutError{Op: op, Limit: limit}
	}
}
