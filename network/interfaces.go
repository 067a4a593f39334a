// Package network provides the line oriented transports of the harsh
// server: plain TCP and WebSocket.
package network

import (
	"errors"
	"net"
	"time"

	"github.com/MajorBarnulf/harsh/config"
)

var (
	// ErrConnectionClosed is returned when using a closed transport.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrLineTooLong is returned when a peer sends a line longer than the
	// configured maximum. The transport is unusable afterwards.
	ErrLineTooLong = errors.New("line too long")

	// ErrServerRunning is returned by Start on a running server.
	ErrServerRunning = errors.New("server is already running")
)

// ConnectionState represents the state of a network connection
type ConnectionState int

const (
	ConnectionStateConnected ConnectionState = iota
	ConnectionStateClosed
)

// String returns the string representation of ConnectionState
func (cs ConnectionState) String() string {
	switch cs {
	case ConnectionStateConnected:
		return "connected"
	case ConnectionStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport is a bidirectional stream of text lines. ReadLine and
// WriteLine may be called from different goroutines; Close unblocks a
// pending ReadLine.
type Transport interface {
	// ReadLine returns the next line without its line terminator. It
	// returns io.EOF once the peer has closed the connection.
	ReadLine() (string, error)

	// WriteLine sends line followed by a newline.
	WriteLine(line string) error

	// RemoteAddr returns the remote network address
	RemoteAddr() net.Addr

	// Close closes the transport
	Close() error
}

// ConnectHandler receives every accepted transport and becomes its owner.
type ConnectHandler func(Transport)

// ServerConfig contains the listener settings shared by the TCP and
// WebSocket servers.
type ServerConfig struct {
	// Address and Port to listen on, port 0 picks a free one
	Address string
	Port    int

	// WebSocket endpoint path
	Path string

	// TCP keep-alive
	KeepAlive         bool
	KeepAliveInterval time.Duration

	// MaxConnections is the maximum number of concurrent connections, 0 is unlimited
	MaxConnections int

	// BufferSize is the read buffer size and the longest accepted line
	BufferSize int

	// Zero disables a timeout
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns a configuration listening on a free
// loopback port.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:           "127.0.0.1",
		Port:              0,
		Path:              "/ws",
		KeepAlive:         true,
		KeepAliveInterval: 60 * time.Second,
		MaxConnections:    1000,
		BufferSize:        64 * 1024,
		WriteTimeout:      10 * time.Second,
	}
}

// TCPServerConfig extracts the TCP listener settings from the network
// configuration.
func TCPServerConfig(cfg config.NetworkConfig) ServerConfig {
	return ServerConfig{
		Address:           cfg.TCP.Address,
		Port:              cfg.TCP.Port,
		KeepAlive:         cfg.TCP.KeepAlive,
		KeepAliveInterval: cfg.TCP.KeepAliveInterval,
		MaxConnections:    cfg.Limits.MaxConnections,
		BufferSize:        cfg.TCP.BufferSize,
		ReadTimeout:       cfg.Timeouts.Read,
		WriteTimeout:      cfg.Timeouts.Write,
	}
}

// WebSocketServerConfig extracts the WebSocket listener settings from the
// network configuration.
func WebSocketServerConfig(cfg config.NetworkConfig) ServerConfig {
	return ServerConfig{
		Address:        cfg.WebSocket.Address,
		Port:           cfg.WebSocket.Port,
		Path:           cfg.WebSocket.Path,
		MaxConnections: cfg.Limits.MaxConnections,
		BufferSize:     cfg.TCP.BufferSize,
		ReadTimeout:    cfg.Timeouts.Read,
		WriteTimeout:   cfg.Timeouts.Write,
	}
}

// ConnectionStatistics holds statistics for a connection
type ConnectionStatistics struct {
	ConnectionID string          `json:"connection_id"`
	State        ConnectionState `json:"state"`
	BytesRead    int64           `json:"bytes_read"`
	BytesWritten int64           `json:"bytes_written"`
	LinesRead    int64           `json:"lines_read"`
	LinesSent    int64           `json:"lines_sent"`
	LastActivity time.Time       `json:"last_activity"`
	RemoteAddr   string          `json:"remote_addr"`
}

// ServerStatistics holds statistics for a server
type ServerStatistics struct {
	Address             string        `json:"address"`
	Protocol            string        `json:"protocol"`
	Running             bool          `json:"running"`
	StartTime           time.Time     `json:"start_time"`
	Uptime              time.Duration `json:"uptime"`
	TotalConnections    int64         `json:"total_connections"`
	CurrentConnections  int64         `json:"current_connections"`
	RejectedConnections int64         `json:"rejected_connections"`
}
