package security

import (
	"context"

	"github.com/MajorBarnulf/harsh/core"
	"github.com/MajorBarnulf/harsh/model"
)

// Client wraps the security actor's Remote with typed request methods.
type Client struct {
	remote core.Remote[Command]
}

// NewClient creates a client for a running security actor.
func NewClient(remote core.Remote[Command]) *Client {
	return &Client{remote: remote}
}

// Remote returns the underlying actor handle.
func (c *Client) Remote() core.Remote[Command] {
	return c.remote
}

func (c *Client) Authorize(ctx context.Context, user model.Id, perm model.Perm) (bool, error) {
	cmd := &Authorize{User: user, Perm: perm, Reply: core.NewReply[bool]()}
	return c.request(ctx, cmd, cmd.Reply)
}

func (c *Client) Authenticate(ctx context.Context, user model.Id, pass string) (bool, error) {
	cmd := &Authenticate{User: user, Pass: pass, Reply: core.NewReply[bool]()}
	return c.request(ctx, cmd, cmd.Reply)
}

func (c *Client) StorePassword(ctx context.Context, user model.Id, pass string) (bool, error) {
	cmd := &StorePassword{User: user, Pass: pass, Reply: core.NewReply[bool]()}
	return c.request(ctx, cmd, cmd.Reply)
}

func (c *Client) request(ctx context.Context, cmd Command, reply *core.Reply[bool]) (bool, error) {
	if err := c.remote.Send(cmd); err != nil {
		return false, err
	}
	return reply.Wait(ctx)
}
