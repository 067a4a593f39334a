package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Server accepts TCP connections and hands each one, wrapped in a
// LineConn, to its ConnectHandler.
type Server struct {
	config   ServerConfig
	handler  ConnectHandler
	log      *logrus.Entry
	listener net.Listener
	running  int32 // atomic flag

	// Connection tracking
	connections   map[string]*LineConn
	connectionsMu sync.Mutex

	// Synchronization
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Statistics
	totalConnections    int64
	currentConnections  int64
	rejectedConnections int64
	startTime           time.Time
}

// NewServer creates a TCP server. It does not listen until Start.
func NewServer(config ServerConfig, handler ConnectHandler, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		config:      config,
		handler:     handler,
		log:         logger.WithField("component", "listener"),
		connections: make(map[string]*LineConn),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start binds the listener and starts accepting connections.
func (s *Server) Start() error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerRunning
	}

	address := net.JoinHostPort(s.config.Address, fmt.Sprint(s.config.Port))
	listener, err := net.Listen("tcp", address)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s.listener = listener
	s.startTime = time.Now()

	s.wg.Add(1)
	go s.acceptLoop()

	s.log.WithField("address", listener.Addr().String()).Info("TCP server started")
	return nil
}

// Stop closes the listener and every connection still open.
func (s *Server) Stop() error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return nil // Already stopped
	}

	s.cancel()
	err := s.listener.Close()
	s.wg.Wait()

	for _, conn := range s.snapshot() {
		conn.Close()
	}

	s.log.Info("TCP server stopped")
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ConnectionCount returns the number of open connections
func (s *Server) ConnectionCount() int {
	return int(atomic.LoadInt64(&s.currentConnections))
}

// GetStatistics returns server statistics
func (s *Server) GetStatistics() ServerStatistics {
	address := ""
	if addr := s.Addr(); addr != nil {
		address = addr.String()
	}
	return ServerStatistics{
		Address:             address,
		Protocol:            "tcp",
		Running:             atomic.LoadInt32(&s.running) == 1,
		StartTime:           s.startTime,
		Uptime:              time.Since(s.startTime),
		TotalConnections:    atomic.LoadInt64(&s.totalConnections),
		CurrentConnections:  atomic.LoadInt64(&s.currentConnections),
		RejectedConnections: atomic.LoadInt64(&s.rejectedConnections),
	}
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	var backoff time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}

			// exponential backoff while accept keeps failing
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff < time.Second {
				backoff *= 2
			}
			s.log.WithError(err).Warn("failed to accept connection")
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		if s.config.MaxConnections > 0 && s.ConnectionCount() >= s.config.MaxConnections {
			atomic.AddInt64(&s.rejectedConnections, 1)
			s.log.WithFields(logrus.Fields{
				"limit": s.config.MaxConnections,
				"addr":  conn.RemoteAddr().String(),
			}).Warn("connection limit reached, rejecting connection")
			conn.Close()
			continue
		}

		if tcpConn, ok := conn.(*net.TCPConn); ok && s.config.KeepAlive {
			tcpConn.SetKeepAlive(true)
			if s.config.KeepAliveInterval > 0 {
				tcpConn.SetKeepAlivePeriod(s.config.KeepAliveInterval)
			}
		}

		lineConn := NewLineConn(conn, s.config.BufferSize)
		lineConn.SetReadTimeout(s.config.ReadTimeout)
		lineConn.SetWriteTimeout(s.config.WriteTimeout)
		lineConn.onClose = s.removeConnection
		s.addConnection(lineConn)

		atomic.AddInt64(&s.totalConnections, 1)
		s.log.WithField("addr", conn.RemoteAddr().String()).Debug("connection accepted")

		if s.handler != nil {
			s.handler(lineConn)
		}
	}
}

func (s *Server) addConnection(conn *LineConn) {
	s.connectionsMu.Lock()
	defer s.connectionsMu.Unlock()

	s.connections[conn.ID()] = conn
	atomic.AddInt64(&s.currentConnections, 1)
}

func (s *Server) removeConnection(conn *LineConn) {
	s.connectionsMu.Lock()
	defer s.connectionsMu.Unlock()

	if _, exists := s.connections[conn.ID()]; exists {
		delete(s.connections, conn.ID())
		atomic.AddInt64(&s.currentConnections, -1)
	}
}

func (s *Server) snapshot() []*LineConn {
	s.connectionsMu.Lock()
	defer s.connectionsMu.Unlock()

	conns := make([]*LineConn, 0, len(s.connections))
	for _, conn := range s.connections {
		conns = append(conns, conn)
	}
	return conns
}
