package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WSConn is a Transport carrying one line per WebSocket text frame.
type WSConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	readTimeout  time.Duration

	writeMu   sync.Mutex
	closed    int32
	closeOnce sync.Once
	closeErr  error
	onClose   func(*WSConn)
}

// NewWSConn wraps an established WebSocket connection. maxLine bounds
// the size of an incoming frame; zero selects 64KiB.
func NewWSConn(conn *websocket.Conn, maxLine int) *WSConn {
	if maxLine <= 0 {
		maxLine = 64 * 1024
	}
	conn.SetReadLimit(int64(maxLine))
	return &WSConn{conn: conn}
}

// ReadLine returns the payload of the next text frame.
func (wc *WSConn) ReadLine() (string, error) {
	for {
		if wc.readTimeout > 0 {
			_ = wc.conn.SetReadDeadline(time.Now().Add(wc.readTimeout))
		}
		kind, data, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return "", io.EOF
			}
			if errors.Is(err, websocket.ErrReadLimit) {
				return "", ErrLineTooLong
			}
			if atomic.LoadInt32(&wc.closed) == 1 {
				return "", ErrConnectionClosed
			}
			return "", err
		}
		if kind != websocket.TextMessage {
			continue
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
}

// WriteLine sends line as a single text frame.
func (wc *WSConn) WriteLine(line string) error {
	if atomic.LoadInt32(&wc.closed) == 1 {
		return ErrConnectionClosed
	}

	wc.writeMu.Lock()
	defer wc.writeMu.Unlock()

	if wc.writeTimeout > 0 {
		_ = wc.conn.SetWriteDeadline(time.Now().Add(wc.writeTimeout))
	}
	if err := wc.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// RemoteAddr returns the remote address
func (wc *WSConn) RemoteAddr() net.Addr {
	return wc.conn.RemoteAddr()
}

// Close sends a close frame and closes the connection.
func (wc *WSConn) Close() error {
	wc.closeOnce.Do(func() {
		atomic.StoreInt32(&wc.closed, 1)

		wc.writeMu.Lock()
		_ = wc.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		wc.writeMu.Unlock()

		wc.closeErr = wc.conn.Close()
		if wc.onClose != nil {
			wc.onClose(wc)
		}
	})
	return wc.closeErr
}

// HealthFunc reports the health of the process for the /healthz probe.
type HealthFunc func() (healthy bool, details interface{})

// WSServer serves the WebSocket endpoint and a health probe over HTTP.
type WSServer struct {
	config   ServerConfig
	handler  ConnectHandler
	health   HealthFunc
	log      *logrus.Entry
	upgrader websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener
	running    int32

	connections   map[*WSConn]struct{}
	connectionsMu sync.Mutex
}

// NewWSServer creates a WebSocket server. health may be nil.
func NewWSServer(config ServerConfig, handler ConnectHandler, health HealthFunc, logger *logrus.Logger) *WSServer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if config.Path == "" {
		config.Path = "/ws"
	}
	return &WSServer{
		config:  config,
		handler: handler,
		health:  health,
		log:     logger.WithField("component", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		connections: make(map[*WSConn]struct{}),
	}
}

// Router returns the HTTP routes of the server.
func (s *WSServer) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(s.config.Path, s.handleWebSocket).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return r
}

// Start binds the listener and serves in the background.
func (s *WSServer) Start() error {
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
	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("websocket server failed")
		}
	}()

	s.log.WithFields(logrus.Fields{
		"address": listener.Addr().String(),
		"path":    s.config.Path,
	}).Info("WebSocket server started")
	return nil
}

// Stop shuts the HTTP server down and closes upgraded connections, which
// http.Server does not track.
func (s *WSServer) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return nil
	}

	err := s.httpServer.Shutdown(ctx)

	s.connectionsMu.Lock()
	conns := make([]*WSConn, 0, len(s.connections))
	for conn := range s.connections {
		conns = append(conns, conn)
	}
	s.connectionsMu.Unlock()
	for _, conn := range conns {
		conn.Close()
	}

	s.log.Info("WebSocket server stopped")
	return err
}

// Addr returns the bound address, or nil before Start.
func (s *WSServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ConnectionCount returns the number of open WebSocket connections
func (s *WSServer) ConnectionCount() int {
	s.connectionsMu.Lock()
	defer s.connectionsMu.Unlock()
	return len(s.connections)
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.config.MaxConnections > 0 && s.ConnectionCount() >= s.config.MaxConnections {
		s.log.WithField("addr", r.RemoteAddr).Warn("connection limit reached, rejecting connection")
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("failed to upgrade websocket")
		return
	}

	wsConn := NewWSConn(conn, s.config.BufferSize)
	wsConn.readTimeout = s.config.ReadTimeout
	wsConn.writeTimeout = s.config.WriteTimeout
	wsConn.onClose = s.removeConnection

	s.connectionsMu.Lock()
	s.connections[wsConn] = struct{}{}
	s.connectionsMu.Unlock()

	s.log.WithField("addr", conn.RemoteAddr().String()).Debug("websocket connection accepted")
	if s.handler != nil {
		s.handler(wsConn)
	}
}

func (s *WSServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	healthy, details := true, interface{}(nil)
	if s.health != nil {
		healthy, details = s.health()
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  status,
		"details": details,
	}); err != nil {
		s.log.WithError(err).Debug("failed to write health response")
	}
}

func (s *WSServer) removeConnection(conn *WSConn) {
	s.connectionsMu.Lock()
	defer s.connectionsMu.Unlock()
	delete(s.connections, conn)
}
