package dynproxy

import (
	"context"

	"github.com/google/uuid"
)

// Future is the handle to a call running on its own goroutine.
type Future struct {
	id     string
	done   chan struct{}
	result any
	err    error
}

// Go runs fn on a new goroutine and returns a handle to its outcome. A panic
// in fn is delivered as an invocation error.
func Go(fn func() (any, error)) *Future {
	f := &Future{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}

	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.result = nil
				f.err = panicError(r)
			}
		}()
		f.result, f.err = fn()
	}()

	return f
}

// ID returns the unique call identifier
func (f *Future) ID() string {
	return f.id
}

// Done returns a channel that closes when the call completes
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Ready reports whether the call has completed
func (f *Future) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Get blocks until the call completes and returns its result
func (f *Future) Get() (any, error) {
	<-f.done
	return f.result, f.err
}

// Wait is like Get but gives up when ctx is done. The call itself keeps
// running to completion.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.result, f.err
	default:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		return f.result, f.err
	}
}
