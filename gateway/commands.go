package gateway

import (
	"github.com/MajorBarnulf/harsh/core"
	"github.com/MajorBarnulf/harsh/model"
)

// Command is a message to the gateway actor.
type Command interface {
	gatewayCommand()
}

// Request carries one raw line read from Addr.
type Request struct {
	Addr model.Addr
	Line string
}

// ClosedConnection reports that the reader of Addr has exited.
type ClosedConnection struct {
	Addr model.Addr
}

func (*Request) gatewayCommand()          {}
func (*ClosedConnection) gatewayCommand() {}

// Client wraps the gateway's Remote. It is the session.Upstream of every
// connection.
type Client struct {
	remote core.Remote[Command]
}

// NewClient creates a client for a running gateway.
func NewClient(remote core.Remote[Command]) *Client {
	return &Client{remote: remote}
}

// Remote returns the underlying actor handle.
func (c *Client) Remote() core.Remote[Command] {
	return c.remote
}

func (c *Client) Request(addr model.Addr, line string) error {
	return c.remote.Send(&Request{Addr: addr, Line: line})
}

func (c *Client) ClosedConnection(addr model.Addr) error {
	return c.remote.Send(&ClosedConnection{Addr: addr})
}
