package network

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a line client over any Transport, used by tools and tests.
// Incoming lines are read in the background and queued for Receive.
type Client struct {
	transport Transport
	lines     chan string

	mu  sync.Mutex
	err error

	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to a harsh TCP server.
func Dial(ctx context.Context, address string) (*Client, error) {
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 60 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return NewClient(NewLineConn(conn, 0)), nil
}

// DialWebSocket connects to a harsh WebSocket endpoint such as
// ws://127.0.0.1:42070/ws.
func DialWebSocket(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	return NewClient(NewWSConn(conn, 0)), nil
}

// NewClient starts reading lines from transport.
func NewClient(transport Transport) *Client {
	c := &Client{
		transport: transport,
		lines:     make(chan string, 256),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Send writes one line.
func (c *Client) Send(line string) error {
	return c.transport.WriteLine(line)
}

// Receive returns the next line from the server. Once the connection is
// gone it returns the read error, io.EOF for a clean close.
func (c *Client) Receive(ctx context.Context) (string, error) {
	select {
	case line, ok := <-c.lines:
		if !ok {
			c.mu.Lock()
			defer c.mu.Unlock()
			return "", c.err
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Done is closed once the server side has gone away.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection and waits for the reader to exit.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closing) })
	err := c.transport.Close()
	<-c.done
	return err
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.lines)

	for {
		line, err := c.transport.ReadLine()
		if err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			return
		}
		select {
		case c.lines <- line:
		case <-c.closing:
			return
		}
	}
}
