package gateway

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MajorBarnulf/harsh/config"
	"github.com/MajorBarnulf/harsh/core"
	"github.com/MajorBarnulf/harsh/logging"
	"github.com/MajorBarnulf/harsh/model"
	"github.com/MajorBarnulf/harsh/network"
	"github.com/MajorBarnulf/harsh/protocol"
	"github.com/MajorBarnulf/harsh/security"
	"github.com/MajorBarnulf/harsh/session"
	"github.com/MajorBarnulf/harsh/storage"
)

type harness struct {
	t        *testing.T
	ctx      context.Context
	store    *storage.Client
	security *security.Client
	sessions *session.Client
	gateway  *Client

	admin model.Id
	alice model.Id
	bob   model.Id
}

func newHarness(t *testing.T) *harness {
	logger := logging.Discard()
	opts := core.DefaultActorOptions()

	backend, err := storage.OpenBadger(config.StorageConfig{InMemory: true})
	require.NoError(t, err)
	st, err := storage.New(backend, logger)
	require.NoError(t, err)

	storeRemote := core.Spawn[storage.Command](st, opts.WithName("storage"))
	store := storage.NewClient(storeRemote)
	secRemote := core.Spawn[security.Command](security.New(store, security.DefaultSalt, logger), opts.WithName("security"))
	sec := security.NewClient(secRemote)
	sessRemote := core.Spawn[session.Command](session.New(logger), opts.WithName("sessions"))
	sessions := session.NewClient(sessRemote)
	gwRemote := core.Spawn[Command](New(sessions, store, sec, logger), opts.WithName("gateway"))

	t.Cleanup(func() {
		gwRemote.Stop()
		sessRemote.Stop()
		secRemote.Stop()
		storeRemote.Stop()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	h := &harness{
		t:        t,
		ctx:      ctx,
		store:    store,
		security: sec,
		sessions: sessions,
		gateway:  NewClient(gwRemote),
	}
	h.admin = h.user("admin", "root")
	_, err = store.ServerOpAdd(ctx, h.admin)
	require.NoError(t, err)
	h.alice = h.user("alice", "alice-pass")
	h.bob = h.user("bob", "bob-pass")
	return h
}

func (h *harness) user(name, pass string) model.Id {
	id, err := h.store.UserCreate(h.ctx, name, "")
	require.NoError(h.t, err)
	ok, err := h.security.StorePassword(h.ctx, id, pass)
	require.NoError(h.t, err)
	require.True(h.t, ok)
	return id
}

type testAddr string

func (a testAddr) Network() string { return "test" }
func (a testAddr) String() string  { return string(a) }

type pipeTransport struct {
	*network.LineConn
	addr net.Addr
}

func (p pipeTransport) RemoteAddr() net.Addr { return p.addr }

// peer is a connected client at the far end of a pipe.
type peer struct {
	h     *harness
	addr  model.Addr
	conn  net.Conn
	lines chan string
}

func (h *harness) connect(name string) *peer {
	local, remote := net.Pipe()
	p := &peer{h: h, conn: remote, lines: make(chan string, 100)}
	go func() {
		defer close(p.lines)
		scanner := bufio.NewScanner(remote)
		for scanner.Scan() {
			p.lines <- scanner.Text()
		}
	}()
	h.t.Cleanup(func() { remote.Close() })

	addr, err := h.sessions.Add(h.ctx, pipeTransport{LineConn: network.NewLineConn(local, 0), addr: testAddr(name)}, h.gateway)
	require.NoError(h.t, err)
	p.addr = addr
	return p
}

func (p *peer) raw(line string) {
	p.h.t.Helper()
	_, err := io.WriteString(p.conn, line+"\n")
	require.NoError(p.h.t, err)
}

func (p *peer) do(cmd protocol.Command) {
	p.h.t.Helper()
	line, err := protocol.EncodeCommand(cmd)
	require.NoError(p.h.t, err)
	p.raw(line)
}

func (p *peer) next() protocol.Event {
	p.h.t.Helper()
	select {
	case line, ok := <-p.lines:
		require.True(p.h.t, ok, "connection closed")
		ev, err := protocol.ParseEvent(line)
		require.NoError(p.h.t, err)
		return ev
	case <-p.h.ctx.Done():
		p.h.t.Fatal("no event received")
		return nil
	}
}

func (p *peer) expect(want protocol.Event) {
	p.h.t.Helper()
	assert.Equal(p.h.t, want, p.next())
}

// ping proves that nothing was queued for p before the pong.
func (p *peer) ping(content string) {
	p.h.t.Helper()
	p.do(&protocol.Ping{Content: content})
	p.expect(&protocol.PongEvent{Content: content})
}

func (p *peer) login(id model.Id, pass string) {
	p.h.t.Helper()
	p.do(&protocol.Authenticate{ID: id, Pass: pass})
	p.expect(&protocol.AuthenticateEvent{ID: id, Success: true})
}

func strPtr(s string) *string { return &s }

func TestPingWithoutLogin(t *testing.T) {
	h := newHarness(t)
	p := h.connect("anonymous")

	p.ping("hello")
	p.ping("")
}

func TestAuthentication(t *testing.T) {
	h := newHarness(t)
	p := h.connect("alice")

	p.do(&protocol.ChannelList{})
	p.expect(&protocol.UnauthorizedEvent{Command: protocol.TypeChannelList})

	p.do(&protocol.Authenticate{ID: h.alice, Pass: "wrong"})
	p.expect(&protocol.AuthenticateEvent{ID: h.alice, Success: false})
	p.do(&protocol.Authenticate{ID: model.Id(12345), Pass: "alice-pass"})
	p.expect(&protocol.AuthenticateEvent{ID: model.Id(12345), Success: false})

	_, ok, err := h.sessions.GetUser(h.ctx, p.addr)
	require.NoError(t, err)
	assert.False(t, ok)

	p.login(h.alice, "alice-pass")
	user, ok, err := h.sessions.GetUser(h.ctx, p.addr)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, h.alice, user)

	p.do(&protocol.ChannelList{})
	p.expect(&protocol.ChannelListEvent{Channels: []model.Id{}})
}

func TestUnparseableLinesAreDropped(t *testing.T) {
	h := newHarness(t)
	p := h.connect("noisy")

	p.raw("hello there")
	p.raw(`{"type":"teleport","to":"mars"}`)
	p.raw(`{"content":"no type"}`)
	p.raw(`{"type":"ping","content":`)
	p.ping("still here")
}

func TestChannelScenario(t *testing.T) {
	h := newHarness(t)
	p := h.connect("alice")
	p.login(h.alice, "alice-pass")

	p.do(&protocol.ChannelCreate{Name: "general"})
	ev := p.next()
	require.IsType(t, &protocol.ChannelCreateEvent{}, ev)
	c1 := ev.(*protocol.ChannelCreateEvent).ID
	assert.Equal(t, "general", ev.(*protocol.ChannelCreateEvent).Name)

	p.do(&protocol.MessageCreate{ChannelID: c1, Content: "hi"})
	ev = p.next()
	require.IsType(t, &protocol.MessageCreateEvent{}, ev)
	m1 := ev.(*protocol.MessageCreateEvent).ID
	assert.Equal(t, &protocol.MessageCreateEvent{ChannelID: c1, ID: m1, Content: "hi"}, ev)

	p.do(&protocol.MessageGetContent{ChannelID: c1, ID: m1})
	p.expect(&protocol.MessageGetContentEvent{ChannelID: c1, ID: m1, Content: strPtr("hi")})

	p.do(&protocol.MessageList{ChannelID: c1})
	p.expect(&protocol.MessageListEvent{ChannelID: c1, Messages: []model.Id{m1}})

	p.do(&protocol.ChannelDelete{ID: c1})
	p.expect(&protocol.ChannelDeleteEvent{ID: c1})

	p.do(&protocol.MessageGetContent{ChannelID: c1, ID: m1})
	p.expect(&protocol.MessageGetContentEvent{ChannelID: c1, ID: m1, Content: nil})

	p.do(&protocol.ChannelList{})
	ev = p.next()
	require.IsType(t, &protocol.ChannelListEvent{}, ev)
	assert.NotContains(t, ev.(*protocol.ChannelListEvent).Channels, c1)

	p.do(&protocol.ChannelGetName{ID: c1})
	p.expect(&protocol.ChannelGetNameEvent{ID: c1, Name: nil})
}

func TestChannelPermissions(t *testing.T) {
	h := newHarness(t)
	alice := h.connect("alice")
	alice.login(h.alice, "alice-pass")
	bob := h.connect("bob")
	bob.login(h.bob, "bob-pass")

	alice.do(&protocol.ChannelCreate{Name: "alice's"})
	ev := alice.next()
	require.IsType(t, &protocol.ChannelCreateEvent{}, ev)
	channel := ev.(*protocol.ChannelCreateEvent).ID
	bob.expect(&protocol.ChannelCreateEvent{ID: channel, Name: "alice's"})

	ops, err := h.store.ChannelOpList(h.ctx, channel)
	require.NoError(t, err)
	assert.Equal(t, []model.Id{h.alice}, ops)

	// anyone logged in may post
	bob.do(&protocol.MessageCreate{ChannelID: channel, Content: "from bob"})
	ev = bob.next()
	require.IsType(t, &protocol.MessageCreateEvent{}, ev)
	message := ev.(*protocol.MessageCreateEvent).ID
	alice.expect(&protocol.MessageCreateEvent{ChannelID: channel, ID: message, Content: "from bob"})

	denied := []protocol.Command{
		&protocol.ChannelSetName{ID: channel, Name: "bob's"},
		&protocol.ChannelDelete{ID: channel},
		&protocol.MessageSetContent{ChannelID: channel, ID: message, Content: "edited"},
		&protocol.MessageDelete{ChannelID: channel, ID: message},
	}
	for _, cmd := range denied {
		bob.do(cmd)
		bob.expect(&protocol.UnauthorizedEvent{Command: cmd.Type()})
	}
	alice.ping("nothing leaked")

	alice.do(&protocol.MessageSetContent{ChannelID: channel, ID: message, Content: "moderated"})
	alice.expect(&protocol.MessageSetContentEvent{ChannelID: channel, ID: message, Content: "moderated"})
	bob.expect(&protocol.MessageSetContentEvent{ChannelID: channel, ID: message, Content: "moderated"})

	alice.do(&protocol.ChannelSetName{ID: channel, Name: "renamed"})
	alice.expect(&protocol.ChannelSetNameEvent{ID: channel, Name: "renamed"})
	bob.expect(&protocol.ChannelSetNameEvent{ID: channel, Name: "renamed"})

	// server operators administer every channel
	admin := h.connect("admin")
	admin.login(h.admin, "root")
	admin.do(&protocol.MessageDelete{ChannelID: channel, ID: message})
	for _, p := range []*peer{admin, alice, bob} {
		p.expect(&protocol.MessageDeleteEvent{ChannelID: channel, ID: message})
	}
}

func TestUserAdministration(t *testing.T) {
	h := newHarness(t)
	admin := h.connect("admin")
	admin.login(h.admin, "root")
	bob := h.connect("bob")
	bob.login(h.bob, "bob-pass")

	bob.do(&protocol.UserCreate{Name: "mallory", Pass: "x"})
	bob.expect(&protocol.UnauthorizedEvent{Command: protocol.TypeUserCreate})
	bob.do(&protocol.UserDelete{ID: h.alice})
	bob.expect(&protocol.UnauthorizedEvent{Command: protocol.TypeUserDelete})
	bob.do(&protocol.UserSetName{ID: h.alice, Name: "not alice"})
	bob.expect(&protocol.UnauthorizedEvent{Command: protocol.TypeUserSetName})
	bob.do(&protocol.UserSetPass{ID: h.alice, Pass: "stolen"})
	bob.expect(&protocol.UnauthorizedEvent{Command: protocol.TypeUserSetPass})

	admin.do(&protocol.UserCreate{Name: "carol", Pass: "carol-pass"})
	ev := admin.next()
	require.IsType(t, &protocol.UserCreateEvent{}, ev)
	carol := ev.(*protocol.UserCreateEvent).ID
	bob.expect(&protocol.UserCreateEvent{ID: carol, Name: "carol"})

	newcomer := h.connect("carol")
	newcomer.login(carol, "carol-pass")

	bob.do(&protocol.UserSetName{ID: h.bob, Name: "robert"})
	for _, p := range []*peer{admin, bob, newcomer} {
		p.expect(&protocol.UserSetNameEvent{ID: h.bob, Name: "robert"})
	}
	bob.do(&protocol.UserGetName{ID: h.bob})
	bob.expect(&protocol.UserGetNameEvent{ID: h.bob, Name: strPtr("robert")})

	// password changes are silent
	bob.do(&protocol.UserSetPass{ID: h.bob, Pass: "new-pass"})
	bob.ping("after set pass")
	again := h.connect("bob-again")
	again.do(&protocol.Authenticate{ID: h.bob, Pass: "bob-pass"})
	again.expect(&protocol.AuthenticateEvent{ID: h.bob, Success: false})
	again.login(h.bob, "new-pass")

	admin.do(&protocol.UserDelete{ID: carol})
	for _, p := range []*peer{admin, bob, newcomer, again} {
		p.expect(&protocol.UserDeleteEvent{ID: carol})
	}

	admin.do(&protocol.UserList{})
	admin.expect(&protocol.UserListEvent{Users: []model.Id{h.admin, h.alice, h.bob}})
	admin.do(&protocol.UserGetName{ID: carol})
	admin.expect(&protocol.UserGetNameEvent{ID: carol, Name: nil})
}

func TestMutationsOnAbsentEntitiesAreNotBroadcast(t *testing.T) {
	h := newHarness(t)
	admin := h.connect("admin")
	admin.login(h.admin, "root")
	watcher := h.connect("watcher")

	missing := model.Id(999)
	admin.do(&protocol.ChannelDelete{ID: missing})
	admin.do(&protocol.ChannelSetName{ID: missing, Name: "ghost"})
	admin.do(&protocol.MessageCreate{ChannelID: missing, Content: "into the void"})
	admin.do(&protocol.MessageDelete{ChannelID: missing, ID: missing})
	admin.do(&protocol.MessageSetContent{ChannelID: missing, ID: missing, Content: "x"})
	admin.do(&protocol.UserDelete{ID: missing})
	admin.do(&protocol.UserSetName{ID: missing, Name: "ghost"})
	admin.ping("done")

	watcher.ping("quiet")
}

func TestBroadcastSkipsDisconnectedSessions(t *testing.T) {
	h := newHarness(t)
	a := h.connect("a")
	a.login(h.alice, "alice-pass")
	b := h.connect("b")
	c := h.connect("c")

	c.conn.Close()
	assert.Eventually(t, func() bool {
		count, err := h.sessions.Count(h.ctx)
		return err == nil && count == 2
	}, 5*time.Second, 10*time.Millisecond)

	a.do(&protocol.ChannelCreate{Name: "after c left"})
	ev := a.next()
	require.IsType(t, &protocol.ChannelCreateEvent{}, ev)
	b.expect(ev)

	_, open := <-c.lines
	assert.False(t, open)
}

func TestDisconnectRemovesSession(t *testing.T) {
	h := newHarness(t)
	p := h.connect("leaving")
	p.login(h.alice, "alice-pass")

	p.conn.Close()
	assert.Eventually(t, func() bool {
		_, ok, err := h.sessions.GetUser(h.ctx, p.addr)
		count, countErr := h.sessions.Count(h.ctx)
		return err == nil && countErr == nil && !ok && count == 0
	}, 5*time.Second, 10*time.Millisecond)

	// late events for the address are ignored
	require.NoError(t, h.sessions.Send(p.addr, "late"))
	other := h.connect("other")
	other.ping("fine")
}
