package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MajorBarnulf/harsh/config"
	"github.com/MajorBarnulf/harsh/core"
	"github.com/MajorBarnulf/harsh/logging"
	"github.com/MajorBarnulf/harsh/model"
)

type backendFactory func(t *testing.T) Backend

func backends() map[string]backendFactory {
	return map[string]backendFactory{
		"badger": func(t *testing.T) Backend {
			b, err := OpenBadger(config.StorageConfig{InMemory: true})
			require.NoError(t, err)
			return b
		},
		"sqlite": func(t *testing.T) Backend {
			b, err := OpenSQLite(config.StorageConfig{InMemory: true})
			require.NoError(t, err)
			return b
		},
	}
}

func startStorage(t *testing.T, backend Backend) *Client {
	t.Helper()
	st, err := New(backend, logging.Discard())
	require.NoError(t, err)

	remote := core.Spawn[Command](st, core.DefaultActorOptions().WithName("storage"))
	t.Cleanup(func() { remote.Stop() })
	return NewClient(remote)
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func forEachBackend(t *testing.T, test func(t *testing.T, client *Client)) {
	for name, factory := range backends() {
		factory := factory
		t.Run(name, func(t *testing.T) {
			test(t, startStorage(t, factory(t)))
		})
	}
}

func TestChannels(t *testing.T) {
	forEachBackend(t, func(t *testing.T, client *Client) {
		ctx := testContext(t)

		a, err := client.ChannelCreate(ctx, "a-channel")
		require.NoError(t, err)

		ids, err := client.ChannelList(ctx)
		require.NoError(t, err)
		assert.Equal(t, []model.Id{a}, ids)

		name, ok, err := client.ChannelGetName(ctx, a)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "a-channel", name)

		b, err := client.ChannelCreate(ctx, "b-channel")
		require.NoError(t, err)
		ids, err = client.ChannelList(ctx)
		require.NoError(t, err)
		assert.Equal(t, []model.Id{a, b}, ids)

		found, err := client.ChannelSetName(ctx, b, "renamed")
		require.NoError(t, err)
		assert.True(t, found)
		name, _, err = client.ChannelGetName(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, "renamed", name)

		_, ok, err = client.ChannelGetName(ctx, b+1000)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestMessagesListInCreationOrder(t *testing.T) {
	forEachBackend(t, func(t *testing.T, client *Client) {
		ctx := testContext(t)
		channel, err := client.ChannelCreate(ctx, "general")
		require.NoError(t, err)

		const n = 50
		created := make([]model.Id, 0, n)
		for i := 0; i < n; i++ {
			id, ok, err := client.MessageCreate(ctx, channel, "message")
			require.NoError(t, err)
			require.True(t, ok)
			created = append(created, id)
		}

		listed, err := client.MessageList(ctx, channel)
		require.NoError(t, err)
		assert.Equal(t, created, listed)
	})
}

func TestCascadeDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, client *Client) {
		ctx := testContext(t)
		channel, err := client.ChannelCreate(ctx, "doomed")
		require.NoError(t, err)
		other, err := client.ChannelCreate(ctx, "survivor")
		require.NoError(t, err)
		user, err := client.UserCreate(ctx, "op", "hash")
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			_, _, err := client.MessageCreate(ctx, channel, "bye")
			require.NoError(t, err)
		}
		kept, _, err := client.MessageCreate(ctx, other, "stay")
		require.NoError(t, err)
		ok, err := client.ChannelOpAdd(ctx, channel, user)
		require.NoError(t, err)
		require.True(t, ok)

		existed, err := client.ChannelDelete(ctx, channel)
		require.NoError(t, err)
		assert.True(t, existed)

		messages, err := client.MessageList(ctx, channel)
		require.NoError(t, err)
		assert.Empty(t, messages)

		channels, err := client.ChannelList(ctx)
		require.NoError(t, err)
		assert.Equal(t, []model.Id{other}, channels)

		ops, err := client.ChannelOpList(ctx, channel)
		require.NoError(t, err)
		assert.Empty(t, ops)

		messages, err = client.MessageList(ctx, other)
		require.NoError(t, err)
		assert.Equal(t, []model.Id{kept}, messages)

		existed, err = client.ChannelDelete(ctx, channel)
		require.NoError(t, err)
		assert.False(t, existed)
	})
}

func TestConcreteScenario(t *testing.T) {
	forEachBackend(t, func(t *testing.T, client *Client) {
		ctx := testContext(t)
		c1, err := client.ChannelCreate(ctx, "general")
		require.NoError(t, err)
		m1, ok, err := client.MessageCreate(ctx, c1, "hi")
		require.NoError(t, err)
		require.True(t, ok)

		content, ok, err := client.MessageGetContent(ctx, c1, m1)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "hi", content)

		_, err = client.ChannelDelete(ctx, c1)
		require.NoError(t, err)

		_, ok, err = client.MessageGetContent(ctx, c1, m1)
		require.NoError(t, err)
		assert.False(t, ok)

		channels, err := client.ChannelList(ctx)
		require.NoError(t, err)
		assert.NotContains(t, channels, c1)
	})
}

func TestMutationsOnMissingEntities(t *testing.T) {
	forEachBackend(t, func(t *testing.T, client *Client) {
		ctx := testContext(t)
		const missing = model.Id(42)

		_, ok, err := client.MessageCreate(ctx, missing, "orphan")
		require.NoError(t, err)
		assert.False(t, ok)
		messages, err := client.MessageList(ctx, missing)
		require.NoError(t, err)
		assert.Empty(t, messages)

		found, err := client.ChannelSetName(ctx, missing, "x")
		require.NoError(t, err)
		assert.False(t, found)
		_, ok, err = client.ChannelGetName(ctx, missing)
		require.NoError(t, err)
		assert.False(t, ok, "set on a missing channel must not create it")

		found, err = client.MessageSetContent(ctx, missing, missing, "x")
		require.NoError(t, err)
		assert.False(t, found)

		found, err = client.MessageDelete(ctx, missing, missing)
		require.NoError(t, err)
		assert.False(t, found)

		found, err = client.UserSetPass(ctx, missing, "x")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestUsersAndPermissions(t *testing.T) {
	forEachBackend(t, func(t *testing.T, client *Client) {
		ctx := testContext(t)
		alice, err := client.UserCreate(ctx, "alice", "h1")
		require.NoError(t, err)
		bob, err := client.UserCreate(ctx, "bob", "h2")
		require.NoError(t, err)
		channel, err := client.ChannelCreate(ctx, "general")
		require.NoError(t, err)

		users, err := client.UserList(ctx)
		require.NoError(t, err)
		assert.Equal(t, []model.Id{alice, bob}, users)

		pass, ok, err := client.UserGetPass(ctx, bob)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "h2", pass)

		_, err = client.UserSetName(ctx, bob, "robert")
		require.NoError(t, err)
		name, _, err := client.UserGetName(ctx, bob)
		require.NoError(t, err)
		assert.Equal(t, "robert", name)

		added, err := client.ServerOpAdd(ctx, alice)
		require.NoError(t, err)
		assert.True(t, added)
		added, err = client.ServerOpAdd(ctx, 7)
		require.NoError(t, err)
		assert.False(t, added, "unknown users cannot become operators")

		added, err = client.ChannelOpAdd(ctx, channel, bob)
		require.NoError(t, err)
		assert.True(t, added)

		ops, err := client.ServerOpList(ctx)
		require.NoError(t, err)
		assert.Equal(t, []model.Id{alice}, ops)
		ops, err = client.ChannelOpList(ctx, channel)
		require.NoError(t, err)
		assert.Equal(t, []model.Id{bob}, ops)

		removed, err := client.ServerOpRemove(ctx, alice)
		require.NoError(t, err)
		assert.True(t, removed)
		removed, err = client.ServerOpRemove(ctx, alice)
		require.NoError(t, err)
		assert.False(t, removed)

		existed, err := client.UserDelete(ctx, bob)
		require.NoError(t, err)
		assert.True(t, existed)
		ops, err = client.ChannelOpList(ctx, channel)
		require.NoError(t, err)
		assert.Empty(t, ops, "deleting a user drops its channel operator entries")
		_, ok, err = client.UserGetName(ctx, bob)
		require.NoError(t, err)
		assert.False(t, ok)

		removed, err = client.ChannelOpRemove(ctx, channel, bob)
		require.NoError(t, err)
		assert.False(t, removed)
	})
}

func TestIdsAreUniqueUnderBurst(t *testing.T) {
	client := startStorage(t, backends()["badger"](t))
	ctx := testContext(t)

	seen := make(map[model.Id]bool)
	var last model.Id
	for i := 0; i < 2000; i++ {
		id, err := client.ChannelCreate(ctx, "c")
		require.NoError(t, err)
		require.False(t, seen[id], "id %s reused", id)
		require.Greater(t, id, last)
		seen[id] = true
		last = id
	}
}

func TestGeneratorSeededFromStore(t *testing.T) {
	backend := backends()["sqlite"](t)

	// an id far in the future, as if written by a clock running ahead
	future := model.Id(uint64(time.Now().Add(24*time.Hour).UnixMilli()) * 1000)
	require.NoError(t, backend.Set(userKey(future), []byte(`{"id":1,"name":"x","pass":"y"}`)))

	client := startStorage(t, backend)
	id, err := client.UserCreate(testContext(t), "next", "hash")
	require.NoError(t, err)
	assert.Greater(t, id, future)
}

func TestStopSettlesRequests(t *testing.T) {
	backend := backends()["badger"](t)
	client := startStorage(t, backend)

	require.NoError(t, client.Remote().Stop())

	_, err := client.ChannelList(testContext(t))
	assert.ErrorIs(t, err, core.ErrActorGone)
}

func configFor(engine, dir string) config.StorageConfig {
	return config.StorageConfig{Engine: config.StorageEngine(engine), DatabasePath: dir}
}
