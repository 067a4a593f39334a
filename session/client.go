package session

import (
	"context"

	"github.com/MajorBarnulf/harsh/core"
	"github.com/MajorBarnulf/harsh/model"
	"github.com/MajorBarnulf/harsh/network"
)

// Client wraps the session registry's Remote with typed methods.
type Client struct {
	remote core.Remote[Command]
}

// NewClient creates a client for a running session registry.
func NewClient(remote core.Remote[Command]) *Client {
	return &Client{remote: remote}
}

// Remote returns the underlying actor handle.
func (c *Client) Remote() core.Remote[Command] {
	return c.remote
}

func request[T any](ctx context.Context, c *Client, cmd Command, reply *core.Reply[T]) (T, error) {
	if err := c.remote.Send(cmd); err != nil {
		var zero T
		return zero, err
	}
	return reply.Wait(ctx)
}

// Add registers transport and returns its address.
func (c *Client) Add(ctx context.Context, transport network.Transport, upstream Upstream) (model.Addr, error) {
	cmd := &AddSession{Transport: transport, Upstream: upstream, Reply: core.NewReply[model.Addr]()}
	return request(ctx, c, cmd, cmd.Reply)
}

func (c *Client) Remove(ctx context.Context, addr model.Addr) (bool, error) {
	cmd := &RemoveSession{Addr: addr, Reply: core.NewReply[bool]()}
	return request(ctx, c, cmd, cmd.Reply)
}

// Forget removes addr without waiting.
func (c *Client) Forget(addr model.Addr) error {
	return c.remote.Send(&RemoveSession{Addr: addr})
}

func (c *Client) Send(addr model.Addr, line string) error {
	return c.remote.Send(&Send{Addr: addr, Line: line})
}

func (c *Client) Broadcast(line string) error {
	return c.remote.Send(&Broadcast{Line: line})
}

// GetUser returns the authenticated user of addr.
func (c *Client) GetUser(ctx context.Context, addr model.Addr) (model.Id, bool, error) {
	cmd := &GetUser{Addr: addr, Reply: core.NewReply[*model.Id]()}
	user, err := request(ctx, c, cmd, cmd.Reply)
	if err != nil || user == nil {
		return 0, false, err
	}
	return *user, true, nil
}

func (c *Client) SetUser(ctx context.Context, addr model.Addr, user model.Id) (bool, error) {
	cmd := &SetUser{Addr: addr, User: user, Reply: core.NewReply[bool]()}
	return request(ctx, c, cmd, cmd.Reply)
}

func (c *Client) Count(ctx context.Context) (int, error) {
	cmd := &Count{Reply: core.NewReply[int]()}
	return request(ctx, c, cmd, cmd.Reply)
}
