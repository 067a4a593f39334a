package core

import (
	"context"
	"sync"
)

// Reply is a one-shot response slot. Request commands embed a *Reply so
// the sender can wait for the outcome after sending the command. Only the
// first Resolve or Fail takes effect.
type Reply[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error

	mu   sync.Mutex
	gone <-chan struct{}
}

// NewReply creates an unfulfilled reply slot.
func NewReply[T any]() *Reply[T] {
	return &Reply[T]{done: make(chan struct{})}
}

// Resolve fulfills the reply with a value. It reports whether this call
// was the one that fulfilled it.
func (r *Reply[T]) Resolve(value T) bool {
	return r.complete(value, nil)
}

// Fail fulfills the reply with an error.
func (r *Reply[T]) Fail(err error) bool {
	var zero T
	return r.complete(zero, err)
}

// Wait blocks until the reply is fulfilled, the actor that received the
// command stops, or ctx is done.
func (r *Reply[T]) Wait(ctx context.Context) (T, error) {
	var zero T
	if r == nil {
		return zero, ErrActorGone
	}

	r.mu.Lock()
	gone := r.gone
	r.mu.Unlock()

	select {
	case <-r.done:
		return r.value, r.err
	case <-gone:
		// the actor may have fulfilled the reply right before exiting
		select {
		case <-r.done:
			return r.value, r.err
		default:
			return zero, ErrActorGone
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Fulfilled reports whether Resolve or Fail has been called.
func (r *Reply[T]) Fulfilled() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (r *Reply[T]) complete(value T, err error) bool {
	if r == nil {
		return false
	}
	completed := false
	r.once.Do(func() {
		r.value, r.err = value, err
		close(r.done)
		completed = true
	})
	return completed
}

func (r *Reply[T]) attach(gone <-chan struct{}) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.gone = gone
	r.mu.Unlock()
}

func (r *Reply[T]) settle(err error) {
	r.Fail(err)
}
