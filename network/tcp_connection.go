package network

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// connectionIDCounter generates unique connection IDs
var connectionIDCounter int64

// LineConn is a newline framed Transport over a stream connection.
type LineConn struct {
	id           string
	conn         net.Conn
	reader       *bufio.Reader
	maxLine      int
	state        int32 // ConnectionState as atomic int32
	lastActivity int64 // Unix timestamp as atomic int64

	mu           sync.RWMutex
	readTimeout  time.Duration
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
	onClose   func(*LineConn)

	// Statistics
	bytesRead    int64
	bytesWritten int64
	linesRead    int64
	linesSent    int64
}

// NewLineConn wraps conn. bufferSize bounds the length of a single line;
// zero selects 64KiB.
func NewLineConn(conn net.Conn, bufferSize int) *LineConn {
	if bufferSize <= 0 {
		bufferSize = 64 * 1024
	}
	return &LineConn{
		id:           fmt.Sprintf("tcp-%d", atomic.AddInt64(&connectionIDCounter, 1)),
		conn:         conn,
		reader:       bufio.NewReaderSize(conn, bufferSize),
		maxLine:      bufferSize,
		state:        int32(ConnectionStateConnected),
		lastActivity: time.Now().Unix(),
	}
}

// ID returns the connection ID
func (lc *LineConn) ID() string {
	return lc.id
}

// RemoteAddr returns the remote address
func (lc *LineConn) RemoteAddr() net.Addr {
	return lc.conn.RemoteAddr()
}

// LocalAddr returns the local address
func (lc *LineConn) LocalAddr() net.Addr {
	return lc.conn.LocalAddr()
}

// SetReadTimeout sets the idle timeout of ReadLine
func (lc *LineConn) SetReadTimeout(timeout time.Duration) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.readTimeout = timeout
}

// SetWriteTimeout sets the write timeout
func (lc *LineConn) SetWriteTimeout(timeout time.Duration) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.writeTimeout = timeout
}

// ReadLine reads the next line. A final line without terminator is still
// returned before io.EOF.
func (lc *LineConn) ReadLine() (string, error) {
	if lc.isClosed() {
		return "", ErrConnectionClosed
	}

	lc.mu.RLock()
	readTimeout := lc.readTimeout
	lc.mu.RUnlock()
	if readTimeout > 0 {
		if err := lc.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return "", fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	var line []byte
	for {
		chunk, err := lc.reader.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > lc.maxLine {
			return "", ErrLineTooLong
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && len(line) > 0 {
			break
		}
		if lc.isClosed() {
			return "", ErrConnectionClosed
		}
		return "", err
	}

	atomic.AddInt64(&lc.bytesRead, int64(len(line)))
	atomic.AddInt64(&lc.linesRead, 1)
	lc.updateActivity()

	text := strings.TrimSuffix(string(line), "\n")
	return strings.TrimSuffix(text, "\r"), nil
}

// WriteLine writes line and a newline in a single write.
func (lc *LineConn) WriteLine(line string) error {
	if lc.isClosed() {
		return ErrConnectionClosed
	}

	lc.writeMu.Lock()
	defer lc.writeMu.Unlock()

	lc.mu.RLock()
	writeTimeout := lc.writeTimeout
	lc.mu.RUnlock()
	if writeTimeout > 0 {
		if err := lc.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	n, err := io.WriteString(lc.conn, line+"\n")
	atomic.AddInt64(&lc.bytesWritten, int64(n))
	if err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}

	atomic.AddInt64(&lc.linesSent, 1)
	lc.updateActivity()
	return nil
}

// Close closes the connection. It is safe to call more than once.
func (lc *LineConn) Close() error {
	lc.closeOnce.Do(func() {
		atomic.StoreInt32(&lc.state, int32(ConnectionStateClosed))
		lc.closeErr = lc.conn.Close()
		if lc.onClose != nil {
			lc.onClose(lc)
		}
	})
	return lc.closeErr
}

// State returns the current connection state
func (lc *LineConn) State() ConnectionState {
	return ConnectionState(atomic.LoadInt32(&lc.state))
}

// GetLastActivity returns the last activity timestamp
func (lc *LineConn) GetLastActivity() time.Time {
	return time.Unix(atomic.LoadInt64(&lc.lastActivity), 0)
}

// GetStatistics returns connection statistics
func (lc *LineConn) GetStatistics() ConnectionStatistics {
	return ConnectionStatistics{
		ConnectionID: lc.id,
		State:        lc.State(),
		BytesRead:    atomic.LoadInt64(&lc.bytesRead),
		BytesWritten: atomic.LoadInt64(&lc.bytesWritten),
		LinesRead:    atomic.LoadInt64(&lc.linesRead),
		LinesSent:    atomic.LoadInt64(&lc.linesSent),
		LastActivity: lc.GetLastActivity(),
		RemoteAddr:   lc.RemoteAddr().String(),
	}
}

func (lc *LineConn) isClosed() bool {
	return lc.State() == ConnectionStateClosed
}

func (lc *LineConn) updateActivity() {
	atomic.StoreInt64(&lc.lastActivity, time.Now().Unix())
}
