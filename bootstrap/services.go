package bootstrap

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/MajorBarnulf/harsh/core"
	"github.com/MajorBarnulf/harsh/network"
)

// actorService runs one actor of the server as a service.
type actorService[C any] struct {
	name   string
	spawn  func() (core.Remote[C], error)
	remote core.Remote[C]
}

func newActorService[C any](name string, spawn func() (core.Remote[C], error)) *actorService[C] {
	return &actorService[C]{name: name, spawn: spawn}
}

func (s *actorService[C]) Name() string {
	return s.name
}

func (s *actorService[C]) Start(ctx context.Context) error {
	remote, err := s.spawn()
	if err != nil {
		return err
	}
	s.remote = remote
	return nil
}

func (s *actorService[C]) Stop(ctx context.Context) error {
	stopped := make(chan struct{})
	go func() {
		s.remote.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("actor %s did not stop: %w", s.name, ctx.Err())
	}
}

func (s *actorService[C]) Health(ctx context.Context) (HealthStatus, error) {
	stats := s.remote.Stats()
	state := HealthHealthy
	if stats.State == core.ActorStateStopping || stats.State == core.ActorStateStopped {
		state = HealthStopped
	}
	return HealthStatus{
		State:   state,
		Message: fmt.Sprintf("actor %s", stats.State),
		Data: map[string]interface{}{
			"processed": stats.MessagesProcessed,
			"queued":    stats.MailboxSize,
		},
	}, nil
}

// tcpService runs the TCP listener.
type tcpService struct {
	server *network.Server
}

func (s *tcpService) Name() string {
	return "tcp"
}

func (s *tcpService) Start(ctx context.Context) error {
	return s.server.Start()
}

func (s *tcpService) Stop(ctx context.Context) error {
	return s.server.Stop()
}

func (s *tcpService) Health(ctx context.Context) (HealthStatus, error) {
	stats := s.server.GetStatistics()
	if !stats.Running {
		return HealthStatus{State: HealthStopped, Message: "TCP listener not running"}, nil
	}
	return HealthStatus{
		State:   HealthHealthy,
		Message: "TCP listener running on " + stats.Address,
		Data: map[string]interface{}{
			"connections": stats.CurrentConnections,
			"total":       stats.TotalConnections,
			"rejected":    stats.RejectedConnections,
		},
	}, nil
}

// websocketService runs the WebSocket endpoint.
type websocketService struct {
	server  *network.WSServer
	running atomic.Bool
}

func (s *websocketService) Name() string {
	return "websocket"
}

func (s *websocketService) Start(ctx context.Context) error {
	if err := s.server.Start(); err != nil {
		return err
	}
	s.running.Store(true)
	return nil
}

func (s *websocketService) Stop(ctx context.Context) error {
	s.running.Store(false)
	return s.server.Stop(ctx)
}

func (s *websocketService) Health(ctx context.Context) (HealthStatus, error) {
	if !s.running.Load() {
		return HealthStatus{State: HealthStopped, Message: "WebSocket endpoint not running"}, nil
	}
	return HealthStatus{
		State:   HealthHealthy,
		Message: "WebSocket endpoint running on " + s.server.Addr().String(),
		Data: map[string]interface{}{
			"connections": s.server.ConnectionCount(),
		},
	}, nil
}

// funcService adapts a start function to a Service.
type funcService struct {
	name  string
	start func(ctx context.Context) error
}

func (s *funcService) Name() string {
	return s.name
}

func (s *funcService) Start(ctx context.Context) error {
	return s.start(ctx)
}

func (s *funcService) Stop(ctx context.Context) error {
	return nil
}

func (s *funcService) Health(ctx context.Context) (HealthStatus, error) {
	return HealthStatus{State: HealthHealthy}, nil
}
