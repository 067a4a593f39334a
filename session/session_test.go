package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MajorBarnulf/harsh/core"
	"github.com/MajorBarnulf/harsh/model"
	"github.com/MajorBarnulf/harsh/network"
)

type forwarded struct {
	addr model.Addr
	line string
}

type recordingUpstream struct {
	requests chan forwarded
	closed   chan model.Addr
}

func newUpstream() *recordingUpstream {
	return &recordingUpstream{
		requests: make(chan forwarded, 100),
		closed:   make(chan model.Addr, 100),
	}
}

func (u *recordingUpstream) Request(addr model.Addr, line string) error {
	u.requests <- forwarded{addr, line}
	return nil
}

func (u *recordingUpstream) ClosedConnection(addr model.Addr) error {
	u.closed <- addr
	return nil
}

type testAddr string

func (a testAddr) Network() string { return "test" }
func (a testAddr) String() string  { return string(a) }

// pipeTransport gives each in-memory pipe its own address.
type pipeTransport struct {
	*network.LineConn
	addr net.Addr
}

func (p pipeTransport) RemoteAddr() net.Addr { return p.addr }

// peer is the client end of a pipe, reading lines in the background.
type peer struct {
	conn  net.Conn
	lines chan string
	eof   chan struct{}
}

func newPeer(t *testing.T, name string) (network.Transport, *peer) {
	local, remote := net.Pipe()
	p := &peer{conn: remote, lines: make(chan string, 100), eof: make(chan struct{})}
	go func() {
		defer close(p.eof)
		scanner := bufio.NewScanner(remote)
		for scanner.Scan() {
			p.lines <- scanner.Text()
		}
	}()
	t.Cleanup(func() { remote.Close() })
	return pipeTransport{LineConn: network.NewLineConn(local, 0), addr: testAddr(name)}, p
}

func (p *peer) send(t *testing.T, text string) {
	t.Helper()
	_, err := io.WriteString(p.conn, text)
	require.NoError(t, err)
}

func (p *peer) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case line := <-p.lines:
		assert.Equal(t, want, line)
	case <-time.After(2 * time.Second):
		t.Fatalf("no line received, wanted %q", want)
	}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func startRegistry(t *testing.T) *Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	remote := core.Spawn[Command](New(logger), core.DefaultActorOptions().WithName("sessions"))
	t.Cleanup(func() { remote.Stop() })
	return NewClient(remote)
}

func TestReaderForwardsNonBlankLines(t *testing.T) {
	sessions := startRegistry(t)
	upstream := newUpstream()
	ctx := testContext(t)

	transport, p := newPeer(t, "alice")
	addr, err := sessions.Add(ctx, transport, upstream)
	require.NoError(t, err)
	assert.Equal(t, model.Addr("test://alice"), addr)

	p.send(t, "first\n\n   \nsecond\r\n")

	for _, want := range []string{"first", "second"} {
		select {
		case req := <-upstream.requests:
			assert.Equal(t, addr, req.addr)
			assert.Equal(t, want, req.line)
		case <-ctx.Done():
			t.Fatal("request not forwarded")
		}
	}
	assert.Empty(t, upstream.requests)
}

func TestSendAndBroadcast(t *testing.T) {
	sessions := startRegistry(t)
	upstream := newUpstream()
	ctx := testContext(t)

	var peers []*peer
	var addrs []model.Addr
	for i := 0; i < 3; i++ {
		transport, p := newPeer(t, fmt.Sprintf("peer-%d", i))
		addr, err := sessions.Add(ctx, transport, upstream)
		require.NoError(t, err)
		peers = append(peers, p)
		addrs = append(addrs, addr)
	}

	count, err := sessions.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, sessions.Send(addrs[1], "only you"))
	require.NoError(t, sessions.Broadcast("everyone"))

	peers[0].expect(t, "everyone")
	peers[1].expect(t, "only you")
	peers[1].expect(t, "everyone")
	peers[2].expect(t, "everyone")
}

func TestSendToUnknownAddressIsIgnored(t *testing.T) {
	sessions := startRegistry(t)
	ctx := testContext(t)

	require.NoError(t, sessions.Send("test://nobody", "hello"))

	count, err := sessions.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestUserBookkeeping(t *testing.T) {
	sessions := startRegistry(t)
	ctx := testContext(t)

	transport, _ := newPeer(t, "bob")
	addr, err := sessions.Add(ctx, transport, newUpstream())
	require.NoError(t, err)

	_, ok, err := sessions.GetUser(ctx, addr)
	require.NoError(t, err)
	assert.False(t, ok)

	set, err := sessions.SetUser(ctx, addr, model.Id(42))
	require.NoError(t, err)
	assert.True(t, set)

	user, ok, err := sessions.GetUser(ctx, addr)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.Id(42), user)

	set, err = sessions.SetUser(ctx, "test://ghost", model.Id(1))
	require.NoError(t, err)
	assert.False(t, set)
}

func TestPeerDisconnectIsReported(t *testing.T) {
	sessions := startRegistry(t)
	upstream := newUpstream()
	ctx := testContext(t)

	transport, p := newPeer(t, "carol")
	addr, err := sessions.Add(ctx, transport, upstream)
	require.NoError(t, err)
	_, err = sessions.SetUser(ctx, addr, model.Id(7))
	require.NoError(t, err)

	p.conn.Close()

	select {
	case closed := <-upstream.closed:
		assert.Equal(t, addr, closed)
	case <-ctx.Done():
		t.Fatal("closed connection not reported")
	}

	removed, err := sessions.Remove(ctx, addr)
	require.NoError(t, err)
	assert.True(t, removed)

	require.NoError(t, sessions.Send(addr, "too late"))
	_, ok, err := sessions.GetUser(ctx, addr)
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err = sessions.Remove(ctx, addr)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRemoveJoinsReader(t *testing.T) {
	sessions := startRegistry(t)
	upstream := newUpstream()
	ctx := testContext(t)

	transport, p := newPeer(t, "dave")
	addr, err := sessions.Add(ctx, transport, upstream)
	require.NoError(t, err)

	removed, err := sessions.Remove(ctx, addr)
	require.NoError(t, err)
	assert.True(t, removed)

	// the reader reported before Remove returned
	select {
	case closed := <-upstream.closed:
		assert.Equal(t, addr, closed)
	default:
		t.Fatal("reader still running after Remove")
	}

	select {
	case <-p.eof:
	case <-ctx.Done():
		t.Fatal("transport not closed")
	}
}

func TestDuplicateAddressIsRejected(t *testing.T) {
	sessions := startRegistry(t)
	ctx := testContext(t)

	first, _ := newPeer(t, "same")
	second, p := newPeer(t, "same")

	_, err := sessions.Add(ctx, first, newUpstream())
	require.NoError(t, err)
	_, err = sessions.Add(ctx, second, newUpstream())
	assert.ErrorIs(t, err, ErrDuplicateAddr)

	select {
	case <-p.eof:
	case <-ctx.Done():
		t.Fatal("rejected transport left open")
	}
}

func TestStopClosesEverySession(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	remote := core.Spawn[Command](New(logger), core.DefaultActorOptions())
	sessions := NewClient(remote)
	upstream := newUpstream()
	ctx := testContext(t)

	var peers []*peer
	for i := 0; i < 2; i++ {
		transport, p := newPeer(t, fmt.Sprintf("stop-%d", i))
		_, err := sessions.Add(ctx, transport, upstream)
		require.NoError(t, err)
		peers = append(peers, p)
	}

	require.NoError(t, remote.Stop())

	for _, p := range peers {
		select {
		case <-p.eof:
		case <-ctx.Done():
			t.Fatal("session left open after stop")
		}
	}
	assert.Len(t, upstream.closed, 2)

	_, err := sessions.Count(ctx)
	assert.ErrorIs(t, err, core.ErrActorGone)
}
