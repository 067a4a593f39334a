package core

import (
	"context"
	"errors"
)

var (
	// ErrActorGone is returned when the target actor has stopped, or when a
	// reply slot was dropped without being fulfilled.
	ErrActorGone = errors.New("actor gone")

	// ErrMailboxFull is returned by TrySend when the mailbox has no room.
	ErrMailboxFull = errors.New("mailbox is full")
)

// Handler processes the commands of one actor. Handle is never called
// concurrently with itself for the same actor.
type Handler[C any] interface {
	Handle(ctx context.Context, cmd C) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc[C any] func(ctx context.Context, cmd C) error

// Handle calls f(ctx, cmd).
func (f HandlerFunc[C]) Handle(ctx context.Context, cmd C) error {
	return f(ctx, cmd)
}

// Stopper is implemented by handlers that release resources once their
// actor has drained its last command.
type Stopper interface {
	OnStop()
}

// Ref is the type-erased view of a Remote, used where the command type
// does not matter (lifecycle, statistics).
type Ref interface {
	ID() ActorID
	Name() string
	Stop() error
	Done() <-chan struct{}
	Stats() ActorStats
}

// settler is implemented by every *Reply and, through embedding, by every
// request command. The runtime uses it to bind the reply to the actor that
// receives the command and to settle replies the handler left open.
type settler interface {
	attach(gone <-chan struct{})
	settle(err error)
}
