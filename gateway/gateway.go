// Package gateway implements the protocol actor. It parses the lines read
// by the session registry, applies the authorization policy, runs the
// request against storage and security and routes the resulting events
// back through the session registry.
package gateway

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/MajorBarnulf/harsh/model"
	"github.com/MajorBarnulf/harsh/protocol"
	"github.com/MajorBarnulf/harsh/security"
	"github.com/MajorBarnulf/harsh/session"
	"github.com/MajorBarnulf/harsh/storage"
)

// Gateway is the handler of the gateway actor. It keeps no per-connection
// state; identities live in the session registry.
type Gateway struct {
	sessions *session.Client
	storage  *storage.Client
	security *security.Client
	log      *logrus.Entry
}

// New creates the gateway handler.
func New(sessions *session.Client, store *storage.Client, sec *security.Client, logger *logrus.Logger) *Gateway {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Gateway{
		sessions: sessions,
		storage:  store,
		security: sec,
		log:      logger.WithField("component", "gateway"),
	}
}

func (g *Gateway) Handle(ctx context.Context, cmd Command) error {
	switch c := cmd.(type) {
	case *Request:
		if err := g.handleLine(ctx, c.Addr, c.Line); err != nil {
			g.log.WithError(err).WithField("addr", c.Addr).Warn("request failed")
			return err
		}
		return nil

	case *ClosedConnection:
		return g.sessions.Forget(c.Addr)

	default:
		return fmt.Errorf("unknown gateway command %T", cmd)
	}
}

func (g *Gateway) handleLine(ctx context.Context, addr model.Addr, line string) error {
	cmd, err := protocol.ParseCommand(line)
	if err != nil {
		g.log.WithError(err).WithField("addr", addr).Warn("dropping unparseable line")
		return nil
	}
	g.log.WithFields(logrus.Fields{"addr": addr, "command": cmd.Type()}).Debug("request")

	switch c := cmd.(type) {
	case *protocol.Ping:
		return g.send(addr, &protocol.PongEvent{Content: c.Content})
	case *protocol.Authenticate:
		return g.authenticate(ctx, addr, c)
	}

	user, ok, err := g.sessions.GetUser(ctx, addr)
	if err != nil {
		return err
	}
	if !ok {
		return g.unauthorized(addr, cmd)
	}

	r := &request{Gateway: g, ctx: ctx, addr: addr, user: user}
	return r.dispatch(cmd)
}

func (g *Gateway) authenticate(ctx context.Context, addr model.Addr, c *protocol.Authenticate) error {
	ok, err := g.security.Authenticate(ctx, c.ID, c.Pass)
	if err != nil {
		return err
	}
	if ok {
		if _, err := g.sessions.SetUser(ctx, addr, c.ID); err != nil {
			return err
		}
	}
	return g.send(addr, &protocol.AuthenticateEvent{ID: c.ID, Success: ok})
}

func (g *Gateway) unauthorized(addr model.Addr, cmd protocol.Command) error {
	g.log.WithFields(logrus.Fields{"addr": addr, "command": cmd.Type()}).Info("command refused")
	return g.send(addr, &protocol.UnauthorizedEvent{Command: cmd.Type()})
}

// send delivers ev to one session.
func (g *Gateway) send(addr model.Addr, ev protocol.Event) error {
	line, err := protocol.EncodeEvent(ev)
	if err != nil {
		return err
	}
	return g.sessions.Send(addr, line)
}

// broadcast delivers ev to every session.
func (g *Gateway) broadcast(ev protocol.Event) error {
	line, err := protocol.EncodeEvent(ev)
	if err != nil {
		return err
	}
	return g.sessions.Broadcast(line)
}
