package core

import (
	"time"

	"github.com/sirupsen/logrus"
)

// ActorID represents a unique identifier for an Actor.
type ActorID uint32

// ActorState represents the current state of an Actor.
type ActorState uint8

const (
	// ActorStateIdle means the Actor is waiting for messages
	ActorStateIdle ActorState = iota

	// ActorStateRunning means the Actor is processing a message
	ActorStateRunning

	// ActorStateStopping means the Actor is shutting down
	ActorStateStopping

	// ActorStateStopped means the Actor has been stopped
	ActorStateStopped
)

// String returns the string representation of ActorState.
func (s ActorState) String() string {
	switch s {
	case ActorStateIdle:
		return "idle"
	case ActorStateRunning:
		return "running"
	case ActorStateStopping:
		return "stopping"
	case ActorStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ActorOptions contains configuration options for spawning an Actor.
type ActorOptions struct {
	// MailboxSize sets the size of the Actor's command queue
	MailboxSize int

	// Name is a human-readable name for the Actor
	Name string

	// ProcessTimeout bounds the context handed to each Handle call
	ProcessTimeout time.Duration

	// Logger receives panics and shutdown diagnostics
	Logger *logrus.Logger
}

// DefaultActorOptions returns sensible default options.
func DefaultActorOptions() ActorOptions {
	return ActorOptions{
		MailboxSize:    1000,
		Name:           "",
		ProcessTimeout: 30 * time.Second,
	}
}

// WithName returns a copy of the options carrying the given name.
func (o ActorOptions) WithName(name string) ActorOptions {
	o.Name = name
	return o
}

// ActorStats contains runtime statistics for an Actor.
type ActorStats struct {
	// ID of the Actor
	ID ActorID `json:"id"`

	// Name of the Actor
	Name string `json:"name"`

	// Current state
	State ActorState `json:"state"`

	// Total commands processed
	MessagesProcessed uint64 `json:"messages_processed"`

	// Commands currently in mailbox
	MailboxSize int `json:"mailbox_size"`

	// Time when Actor was spawned
	CreatedAt time.Time `json:"created_at"`

	// Last command processing time
	LastMessageAt time.Time `json:"last_message_at"`
}
