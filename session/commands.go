package session

import (
	"github.com/MajorBarnulf/harsh/core"
	"github.com/MajorBarnulf/harsh/model"
	"github.com/MajorBarnulf/harsh/network"
)

// Upstream receives what the reader of each session reads. The gateway
// implements it.
type Upstream interface {
	// Request forwards one non-blank line read from addr.
	Request(addr model.Addr, line string) error

	// ClosedConnection is called exactly once when the reader of addr exits.
	ClosedConnection(addr model.Addr) error
}

// Command is a request to the session registry.
type Command interface {
	sessionCommand()
}

// AddSession registers a freshly accepted transport and starts its reader.
// It resolves to the address the session is known by.
type AddSession struct {
	Transport network.Transport
	Upstream  Upstream
	*core.Reply[model.Addr]
}

// RemoveSession closes the transport of Addr and waits for its reader to
// exit. It resolves to false when the address is unknown.
type RemoveSession struct {
	Addr model.Addr
	*core.Reply[bool]
}

// Send writes Line to one session.
type Send struct {
	Addr model.Addr
	Line string
}

// Broadcast writes Line to every session.
type Broadcast struct {
	Line string
}

// GetUser resolves to the authenticated user of Addr, nil for anonymous or
// unknown sessions.
type GetUser struct {
	Addr model.Addr
	*core.Reply[*model.Id]
}

// SetUser records the authenticated user of Addr.
type SetUser struct {
	Addr model.Addr
	User model.Id
	*core.Reply[bool]
}

// Count resolves to the number of live sessions.
type Count struct {
	*core.Reply[int]
}

func (*AddSession) sessionCommand()    {}
func (*RemoveSession) sessionCommand() {}
func (*Send) sessionCommand()          {}
func (*Broadcast) sessionCommand()     {}
func (*GetUser) sessionCommand()       {}
func (*SetUser) sessionCommand()       {}
func (*Count) sessionCommand()         {}
