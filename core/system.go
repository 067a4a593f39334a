package core

import (
	"context"
	"fmt"
	"sync"
)

// System keeps track of a group of actors so they can be inspected and
// shut down together.
type System struct {
	mu     sync.RWMutex
	actors []Ref
	byID   map[ActorID]Ref
	closed bool
}

// NewSystem creates an empty System.
func NewSystem() *System {
	return &System{byID: make(map[ActorID]Ref)}
}

// Register adds a running actor to the system.
func (s *System) Register(ref Ref) error {
	if ref == nil {
		return fmt.Errorf("cannot register nil actor")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("actor system is shutting down")
	}
	if _, exists := s.byID[ref.ID()]; exists {
		return fmt.Errorf("actor with ID %d already registered", ref.ID())
	}

	s.actors = append(s.actors, ref)
	s.byID[ref.ID()] = ref
	return nil
}

// SpawnIn spawns an actor and registers it with sys.
func SpawnIn[C any](sys *System, handler Handler[C], opts ActorOptions) (Remote[C], error) {
	remote := Spawn(handler, opts)
	if err := sys.Register(remote); err != nil {
		remote.Stop()
		return Remote[C]{}, err
	}
	return remote, nil
}

// Lookup finds an actor by its ID.
func (s *System) Lookup(id ActorID) (Ref, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.byID[id]
	return ref, ok
}

// Stats returns statistics for all registered actors, in spawn order.
func (s *System) Stats() []ActorStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make([]ActorStats, 0, len(s.actors))
	for _, ref := range s.actors {
		stats = append(stats, ref.Stats())
	}
	return stats
}

// Shutdown stops every registered actor in reverse spawn order.
func (s *System) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	actors := make([]Ref, len(s.actors))
	copy(actors, s.actors)
	s.mu.Unlock()

	for i := len(actors) - 1; i >= 0; i-- {
		stopped := make(chan struct{})
		go func(ref Ref) {
			ref.Stop()
			close(stopped)
		}(actors[i])

		select {
		case <-stopped:
		case <-ctx.Done():
			return fmt.Errorf("shutdown interrupted at actor %s: %w", actors[i].Name(), ctx.Err())
		}
	}
	return nil
}
