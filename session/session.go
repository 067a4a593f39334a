// Package session implements the session registry actor. It owns the
// table of live connections, their outbound transports and the user each
// one authenticated as, and runs one reader goroutine per connection.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/MajorBarnulf/harsh/model"
	"github.com/MajorBarnulf/harsh/network"
)

// ErrDuplicateAddr is returned when a transport reports the address of a
// session that is still registered.
var ErrDuplicateAddr = errors.New("session address already registered")

type session struct {
	transport network.Transport
	user      *model.Id
	reader    chan struct{} // closed once the reader has exited
}

// Registry is the handler of the session registry actor.
type Registry struct {
	sessions map[model.Addr]*session
	log      *logrus.Entry
}

// New creates an empty registry.
func New(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Registry{
		sessions: make(map[model.Addr]*session),
		log:      logger.WithField("component", "sessions"),
	}
}

func (r *Registry) Handle(ctx context.Context, cmd Command) error {
	switch c := cmd.(type) {
	case *AddSession:
		addr := model.AddrOf(c.Transport.RemoteAddr())
		if _, exists := r.sessions[addr]; exists {
			c.Transport.Close()
			return fmt.Errorf("%w: %s", ErrDuplicateAddr, addr)
		}
		s := &session{transport: c.Transport, reader: make(chan struct{})}
		r.sessions[addr] = s
		go r.read(addr, s, c.Upstream)
		r.log.WithFields(logrus.Fields{"addr": addr, "sessions": len(r.sessions)}).Info("session opened")
		c.Resolve(addr)

	case *RemoveSession:
		s, ok := r.sessions[c.Addr]
		if !ok {
			c.Resolve(false)
			return nil
		}
		delete(r.sessions, c.Addr)
		s.transport.Close()
		<-s.reader
		r.log.WithFields(logrus.Fields{"addr": c.Addr, "sessions": len(r.sessions)}).Info("session closed")
		c.Resolve(true)

	case *Send:
		s, ok := r.sessions[c.Addr]
		if !ok {
			r.log.WithField("addr", c.Addr).Warn("dropping event for unknown session")
			return nil
		}
		r.write(c.Addr, s, c.Line)

	case *Broadcast:
		for _, addr := range r.addrs() {
			r.write(addr, r.sessions[addr], c.Line)
		}

	case *GetUser:
		s, ok := r.sessions[c.Addr]
		if !ok || s.user == nil {
			c.Resolve(nil)
			return nil
		}
		user := *s.user
		c.Resolve(&user)

	case *SetUser:
		s, ok := r.sessions[c.Addr]
		if !ok {
			c.Resolve(false)
			return nil
		}
		user := c.User
		s.user = &user
		r.log.WithFields(logrus.Fields{"addr": c.Addr, "user": user}).Info("session authenticated")
		c.Resolve(true)

	case *Count:
		c.Resolve(len(r.sessions))

	default:
		return fmt.Errorf("unknown session command %T", cmd)
	}
	return nil
}

// OnStop closes every transport and joins the readers.
func (r *Registry) OnStop() {
	for addr, s := range r.sessions {
		s.transport.Close()
		<-s.reader
		delete(r.sessions, addr)
	}
	r.log.Debug("all sessions closed")
}

// addrs returns the live addresses in a stable order.
func (r *Registry) addrs() []model.Addr {
	addrs := make([]model.Addr, 0, len(r.sessions))
	for addr := range r.sessions {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// write sends one line. A failed write closes the transport; the reader
// then reports the disconnect.
func (r *Registry) write(addr model.Addr, s *session, line string) {
	if err := s.transport.WriteLine(line); err != nil {
		r.log.WithError(err).WithField("addr", addr).Debug("write failed, closing session")
		s.transport.Close()
	}
}

// read forwards lines until the transport fails, then always reports the
// closed connection.
func (r *Registry) read(addr model.Addr, s *session, upstream Upstream) {
	defer close(s.reader)
	defer func() {
		if err := upstream.ClosedConnection(addr); err != nil {
			r.log.WithError(err).WithField("addr", addr).Debug("could not report closed connection")
		}
	}()

	for {
		line, err := s.transport.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, network.ErrConnectionClosed) {
				r.log.WithError(err).WithField("addr", addr).Debug("read failed")
			}
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := upstream.Request(addr, line); err != nil {
			r.log.WithError(err).WithField("addr", addr).Warn("upstream refused request")
			return
		}
	}
}
